package engine

import (
	"fmt"
	"strconv"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/jsonv"
)

// Поля объекта шага.
const (
	fieldID        = "id"
	fieldKey       = "_key"
	fieldGroup     = "group"
	fieldMethod    = "method"
	fieldAction    = "action"
	fieldEndpoint  = "endpoint"
	fieldURLExt    = "url_ext"
	fieldHeaders   = "headers"
	fieldBody      = "body"
	fieldTimeoutMs = "timeoutMs"
	fieldRetries   = "retries"
	fieldCollect   = "collect"
	fieldExtract   = "extract"
	fieldOutputAs  = "outputAs"
)

// ParseSteps декодирует JSON-документ шагов и нормализует его.
func ParseSteps(data []byte) ([]domain.Step, error) {
	v, err := jsonv.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return Normalize(v)
}

// Normalize превращает вход в список шагов.
//
// Массив — шаги в исходном порядке. Объект — шаги в порядке ключей,
// каждый получает свой ключ как _key. Любая другая форма — ErrInvalidInput.
//
// ID назначается до планирования: явный id, затем _key,
// затем сгенерированный s<позиция> (с 1).
func Normalize(input jsonv.Value) ([]domain.Step, error) {
	var (
		items []jsonv.Value
		keys  []string
	)

	switch input.Kind() {
	case jsonv.KindArray:
		items, _ = input.AsArray()
		keys = make([]string, len(items))

	case jsonv.KindObject:
		obj, _ := input.AsObject()
		obj.Range(func(key string, v jsonv.Value) bool {
			keys = append(keys, key)
			items = append(items, v)
			return true
		})

	default:
		return nil, fmt.Errorf("%w: got %s", ErrInvalidInput, input.Kind())
	}

	steps := make([]domain.Step, 0, len(items))
	for i, item := range items {
		step, err := parseStep(item, i+1, keys[i])
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return steps, nil
}

// parseStep разбирает один объект шага.
func parseStep(item jsonv.Value, index int, key string) (domain.Step, error) {
	obj, ok := item.AsObject()
	if !ok {
		return domain.Step{}, NewValidationError(index, key,
			fmt.Sprintf("expected object, got %s", item.Kind()), ErrInvalidStep)
	}

	step := domain.Step{
		Key:      key,
		Method:   textField(obj, fieldMethod),
		Endpoint: textField(obj, fieldEndpoint),
		URLExt:   textField(obj, fieldURLExt),
		Collect:  textField(obj, fieldCollect),
		OutputAs: textField(obj, fieldOutputAs),
	}

	// _key внутри элемента массива учитывается так же, как ключ объекта
	if step.Key == "" {
		step.Key = textField(obj, fieldKey)
	}

	if step.Method == "" {
		step.Method = textField(obj, fieldAction)
	}

	if body, ok := obj.Get(fieldBody); ok {
		step.Body = body
	}

	if group, ok := obj.Get(fieldGroup); ok && !group.IsNull() {
		name := group.Text()
		step.Group = &name
	}

	step.Headers = headersField(obj)
	step.Extract = extractField(obj)
	step.TimeoutMs = intField(obj, fieldTimeoutMs)
	step.Retries = intField(obj, fieldRetries)

	switch {
	case textField(obj, fieldID) != "":
		step.ID = textField(obj, fieldID)
	case step.Key != "":
		step.ID = step.Key
	default:
		step.ID = "s" + strconv.Itoa(index)
	}

	return step, nil
}

// textField возвращает строковое представление поля ("" для null и отсутствующего).
func textField(obj *jsonv.Object, field string) string {
	v, ok := obj.Get(field)
	if !ok {
		return ""
	}
	return v.Text()
}

// intField возвращает целое поле или nil, если поле не число.
func intField(obj *jsonv.Object, field string) *int {
	v, ok := obj.Get(field)
	if !ok {
		return nil
	}
	n, ok := v.AsNumber()
	if !ok {
		return nil
	}
	i := int(n)
	return &i
}

// headersField разбирает headers. Значения null пропускаются.
func headersField(obj *jsonv.Object) map[string]string {
	v, ok := obj.Get(fieldHeaders)
	if !ok {
		return nil
	}
	h, ok := v.AsObject()
	if !ok {
		return nil
	}

	headers := make(map[string]string, h.Len())
	h.Range(func(key string, val jsonv.Value) bool {
		if !val.IsNull() {
			headers[key] = val.Text()
		}
		return true
	})
	return headers
}

// extractField разбирает extract в правила с сохранением порядка.
func extractField(obj *jsonv.Object) []domain.ExtractRule {
	v, ok := obj.Get(fieldExtract)
	if !ok {
		return nil
	}
	e, ok := v.AsObject()
	if !ok {
		return nil
	}

	rules := make([]domain.ExtractRule, 0, e.Len())
	e.Range(func(field string, path jsonv.Value) bool {
		rules = append(rules, domain.ExtractRule{Field: field, Path: path.Text()})
		return true
	})
	return rules
}
