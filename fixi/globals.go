package fixi

import (
	"sort"
	"sync"
)

// Globals is the store shared by every frame of a runtime. Frames hold it by
// reference; single-key reads and writes are atomic.
type Globals struct {
	mu     sync.RWMutex
	values map[string]Value
}

func NewGlobals() *Globals {
	return &Globals{values: make(map[string]Value)}
}

func (g *Globals) Get(name string) (Value, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	val, ok := g.values[name]
	return val, ok
}

func (g *Globals) Set(name string, val Value) {
	g.mu.Lock()
	g.values[name] = val
	g.mu.Unlock()
}

func (g *Globals) Delete(name string) {
	g.mu.Lock()
	delete(g.values, name)
	g.mu.Unlock()
}

func (g *Globals) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.values)
}

// Keys returns the bound names in sorted order.
func (g *Globals) Keys() []string {
	g.mu.RLock()
	keys := make([]string, 0, len(g.values))
	for k := range g.values {
		keys = append(keys, k)
	}
	g.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (g *Globals) copyValues() map[string]Value {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]Value, len(g.values))
	for k, v := range g.values {
		out[k] = v
	}
	return out
}

// reconcile brings the store back to saved by key diff, keeping the store
// itself so every frame holding it stays valid.
func (g *Globals) reconcile(saved map[string]Value) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.values {
		if _, ok := saved[k]; !ok {
			delete(g.values, k)
		}
	}
	for k, v := range saved {
		if cur, ok := g.values[k]; !ok || !strictEquals(cur, v) {
			g.values[k] = v
		}
	}
}
