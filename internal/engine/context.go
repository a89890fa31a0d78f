package engine

import (
	"sort"
	"sync"

	"github.com/shaiso/Relay/internal/jsonv"
)

// Context — ExecutionContext run: ответы шагов по их ID.
//
// Пишется всеми воркерами групп, поэтому защищён RWMutex.
// Записи никогда не удаляются. Читатель видит то, что успело
// записаться к моменту чтения: порядок между группами не гарантируется.
type Context struct {
	mu    sync.RWMutex
	steps map[string]jsonv.Value
	order []string
}

// NewContext создаёт пустой контекст.
func NewContext() *Context {
	return &Context{
		steps: make(map[string]jsonv.Value),
	}
}

// Set записывает результат шага. Повторная запись перезаписывает значение.
func (c *Context) Set(stepID string, v jsonv.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.steps[stepID]; !exists {
		c.order = append(c.order, stepID)
	}
	c.steps[stepID] = v
}

// Get возвращает результат шага.
func (c *Context) Get(stepID string) (jsonv.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.steps[stepID]
	return v, ok
}

// Len возвращает количество записанных шагов.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.steps)
}

// IDs возвращает отсортированный список ID записанных шагов.
func (c *Context) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.steps))
	for id := range c.steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot возвращает копию контекста как объект {stepID: value}
// в порядке первой записи.
func (c *Context) Snapshot() *jsonv.Object {
	c.mu.RLock()
	defer c.mu.RUnlock()

	obj := jsonv.NewObject()
	for _, id := range c.order {
		obj.Set(id, c.steps[id])
	}
	return obj
}

// MarshalJSON сериализует контекст в форме {"steps": {...}}.
func (c *Context) MarshalJSON() ([]byte, error) {
	root := jsonv.NewObject()
	root.Set("steps", jsonv.Obj(c.Snapshot()))
	return root.MarshalJSON()
}
