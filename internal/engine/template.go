package engine

import (
	"regexp"
	"strings"

	"github.com/shaiso/Relay/internal/jsonv"
)

// StepLookup — источник результатов шагов для шаблонов.
// Реализуется Context.
type StepLookup interface {
	Get(stepID string) (jsonv.Value, bool)
}

// templatePattern — ссылка {{ steps.<stepId>.<path> }}.
// stepId — буквы, цифры, _ и -; path — всё до закрывающих }}.
var templatePattern = regexp.MustCompile(`\{\{\s*steps\.([a-zA-Z0-9_\-]+)\.([^}]+)\s*\}\}`)

// ResolveString подставляет ссылки на шаги в строку.
//
// Каждая ссылка разрешается независимо. Отсутствующий шаг или путь,
// а также null дают пустую строку. Подставленный текст повторно
// не разрешается. Разрешение никогда не завершается ошибкой:
// пустая строка означает "не удалось разрешить".
//
//	ResolveString("/users/{{steps.post.userId}}", ctx) // "/users/1"
func ResolveString(s string, steps StepLookup) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := templatePattern.FindStringSubmatch(match)
		if len(groups) != 3 {
			return ""
		}

		stepID := groups[1]
		path := strings.TrimSpace(groups[2])

		stepValue, ok := steps.Get(stepID)
		if !ok {
			return ""
		}

		v, ok := stepValue.Lookup(path)
		if !ok {
			return ""
		}

		return v.Text()
	})
}

// Resolve рекурсивно разрешает шаблоны в значении.
//
// Массивы и объекты пересобираются, каждая строка-лист разрешается.
// Ключи объектов не шаблонизируются. Остальные скаляры возвращаются как есть.
func Resolve(value jsonv.Value, steps StepLookup) jsonv.Value {
	switch value.Kind() {
	case jsonv.KindString:
		s, _ := value.AsString()
		return jsonv.String(ResolveString(s, steps))

	case jsonv.KindArray:
		items, _ := value.AsArray()
		resolved := make([]jsonv.Value, len(items))
		for i, item := range items {
			resolved[i] = Resolve(item, steps)
		}
		return jsonv.Array(resolved...)

	case jsonv.KindObject:
		obj, _ := value.AsObject()
		resolved := jsonv.NewObject()
		obj.Range(func(key string, item jsonv.Value) bool {
			resolved.Set(key, Resolve(item, steps))
			return true
		})
		return jsonv.Obj(resolved)

	default:
		return value
	}
}

// ResolveHeaders разрешает шаблоны в значениях заголовков.
func ResolveHeaders(headers map[string]string, steps StepLookup) map[string]string {
	if headers == nil {
		return nil
	}

	resolved := make(map[string]string, len(headers))
	for key, val := range headers {
		resolved[key] = ResolveString(val, steps)
	}
	return resolved
}
