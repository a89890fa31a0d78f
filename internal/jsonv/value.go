package jsonv

import (
	"math"
	"strconv"
	"strings"
)

// Kind — тип JSON-значения.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String возвращает имя типа.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value — JSON-значение одного из шести типов.
//
// Нулевое значение Value — null. Value неизменяемо по соглашению:
// код, которому нужно модифицировать вложенный объект, сначала делает Clone.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *Object
}

// Null возвращает значение null.
func Null() Value {
	return Value{}
}

// Bool создаёт булево значение.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number создаёт числовое значение.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// String создаёт строковое значение.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Array создаёт массив из элементов.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// Obj оборачивает Object в Value. nil превращается в пустой объект.
func Obj(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

// Kind возвращает тип значения.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull проверяет, является ли значение null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsBool возвращает булево значение.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber возвращает числовое значение.
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsInt возвращает число как int, если оно целое.
func (v Value) AsInt() (int, bool) {
	if v.kind != KindNumber || v.n != math.Trunc(v.n) {
		return 0, false
	}
	if v.n > math.MaxInt32 || v.n < math.MinInt32 {
		return 0, false
	}
	return int(v.n), true
}

// AsString возвращает строковое значение.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// AsArray возвращает элементы массива.
func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

// AsObject возвращает объект.
func (v Value) AsObject() (*Object, bool) {
	return v.obj, v.kind == KindObject
}

// Lookup обходит значение по dot-path ("a.b.0.c").
//
// Сегмент из одних цифр индексирует массив, у объекта ищется ключ
// (в том числе числовой). Пустой путь, отсутствующий ключ, выход за
// границы массива или спуск в скаляр — значение не найдено.
func (v Value) Lookup(path string) (Value, bool) {
	if path == "" {
		return Value{}, false
	}

	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch cur.kind {
		case KindArray:
			idx, ok := arrayIndex(seg)
			if !ok || idx >= len(cur.arr) {
				return Value{}, false
			}
			cur = cur.arr[idx]
		case KindObject:
			next, ok := cur.obj.Get(seg)
			if !ok {
				return Value{}, false
			}
			cur = next
		default:
			return Value{}, false
		}
	}

	return cur, true
}

// arrayIndex разбирает сегмент пути как индекс массива.
func arrayIndex(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// Text возвращает строковое представление для подстановки в шаблон.
//
// Строки возвращаются как есть, null — пустая строка,
// массивы и объекты — компактный JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return formatNumber(v.n)
	case KindString:
		return v.s
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// formatNumber форматирует число в кратчайшей форме: 42, 0.5, 1e+21.
func formatNumber(n float64) string {
	abs := math.Abs(n)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Clone возвращает глубокую копию значения.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return Value{kind: KindArray, arr: items}
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	default:
		return v
	}
}

// Equal сравнивает два значения структурно.
// Порядок ключей объектов при сравнении не учитывается.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, key := range a.obj.Keys() {
			av, _ := a.obj.Get(key)
			bv, ok := b.obj.Get(key)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}

	return false
}
