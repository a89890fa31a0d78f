package jsonv

// Object — JSON-объект с сохранением порядка ключей.
//
// Повторный Set существующего ключа заменяет значение,
// но сохраняет позицию первой вставки.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject создаёт пустой объект.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set устанавливает значение ключа.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get возвращает значение ключа. Безопасен для nil.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has проверяет наличие ключа.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Len возвращает количество ключей.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys возвращает ключи в порядке вставки.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Range вызывает fn для каждой пары в порядке вставки.
// Обход прекращается, если fn возвращает false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for _, key := range o.keys {
		if !fn(key, o.values[key]) {
			return
		}
	}
}

// Clone возвращает глубокую копию объекта.
func (o *Object) Clone() *Object {
	out := NewObject()
	o.Range(func(key string, v Value) bool {
		out.Set(key, v.Clone())
		return true
	})
	return out
}
