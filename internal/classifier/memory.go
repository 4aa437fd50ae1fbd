package classifier

import (
	"container/list"
	"sync"
)

// DefaultMaxExamples bounds both the memory and the example window handed
// to the remote model.
const DefaultMaxExamples = 12

// Memory remembers the category of the most recently labelled transactions
// by normalised key. Once full, the oldest insertion is evicted.
type Memory struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

type memoEntry struct {
	key      string
	category string
}

// NewMemory creates a memory holding at most capacity entries.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMaxExamples
	}
	return &Memory{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Put records key → category. Re-putting a key refreshes its position.
func (m *Memory) Put(key, category string) {
	if key == "" || category == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		el.Value.(*memoEntry).category = category
		m.order.MoveToBack(el)
		return
	}
	m.items[key] = m.order.PushBack(&memoEntry{key: key, category: category})
	for m.order.Len() > m.capacity {
		oldest := m.order.Front()
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*memoEntry).key)
	}
}

// Get returns the remembered category for key.
func (m *Memory) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return "", false
	}
	return el.Value.(*memoEntry).category, true
}

// Len is the number of remembered keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Reset forgets everything.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.order.Init()
}
