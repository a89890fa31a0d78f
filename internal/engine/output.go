package engine

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/jsonv"
)

// Ключи, которые сборщик создаёт сам.
const (
	stepRootPrefix = "step_"
	valueKey       = "value"
	chainKeyPrefix = "chain"
)

// Document — итоговый OutputDocument.
//
// Последовательность корней в порядке первого появления.
// Сериализуется как массив объектов с одним ключом: [{"root": {...}}, ...].
type Document []Root

// Root — один корень документа.
type Root struct {
	Name  string
	Value *jsonv.Object
}

// Root возвращает объект корня по имени.
func (d Document) Root(name string) (*jsonv.Object, bool) {
	for _, r := range d {
		if r.Name == name {
			return r.Value, true
		}
	}
	return nil, false
}

// Value возвращает документ как jsonv.Value.
func (d Document) Value() jsonv.Value {
	items := make([]jsonv.Value, len(d))
	for i, r := range d {
		obj := jsonv.NewObject()
		obj.Set(r.Name, jsonv.Obj(r.Value))
		items[i] = jsonv.Obj(obj)
	}
	return jsonv.Array(items...)
}

// MarshalJSON реализует json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	return d.Value().MarshalJSON()
}

// Indent возвращает документ как JSON с отступом в два пробела.
func (d Document) Indent() ([]byte, error) {
	raw, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Assemble собирает OutputDocument из результатов групп.
//
// Правила размещения ответа шага:
//   - без outputAs: корень step_<id>, ключ "output"
//   - outputAs из одного сегмента: первая запись в корень — ключ "value",
//     каждая следующая — chain<N>, где N = 1 + число ключей корня
//   - outputAs из нескольких сегментов: промежуточные объекты создаются,
//     последний сегмент — ключ записи (последняя запись побеждает)
//
// chain<N> — только способ избежать перезаписи, а не связь между шагами.
// Assemble не изменяет вход: ответы копируются в документ.
func Assemble(groups []domain.GroupResult) Document {
	roots := make(map[string]*jsonv.Object)
	var order []string

	ensureRoot := func(name string) *jsonv.Object {
		root, ok := roots[name]
		if !ok {
			root = jsonv.NewObject()
			roots[name] = root
			order = append(order, name)
		}
		return root
	}

	for _, item := range domain.Flatten(groups) {
		response := item.Response.Clone()

		if item.Step.OutputAs == "" {
			root := ensureRoot(stepRootPrefix + item.Step.ID)
			root.Set(domain.DefaultOutputKey, response)
			continue
		}

		parts := strings.Split(item.Step.OutputAs, ".")
		root := ensureRoot(parts[0])

		if len(parts) == 1 {
			if root.Len() == 0 {
				root.Set(valueKey, response)
			} else {
				root.Set(chainKeyPrefix+strconv.Itoa(root.Len()+1), response)
			}
			continue
		}

		cur := root
		for _, p := range parts[1 : len(parts)-1] {
			next, _ := cur.Get(p)
			nextObj, ok := next.AsObject()
			if !ok {
				nextObj = jsonv.NewObject()
				cur.Set(p, jsonv.Obj(nextObj))
			}
			cur = nextObj
		}
		cur.Set(parts[len(parts)-1], response)
	}

	doc := make(Document, 0, len(order))
	for _, name := range order {
		doc = append(doc, Root{Name: name, Value: roots[name]})
	}
	return doc
}
