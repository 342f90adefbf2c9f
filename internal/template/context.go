package template

import (
	"sort"
	"sync"
)

// LastResultKey is the variable that holds the most recent successful step result.
const LastResultKey = "last_result"

// Variables is the mutable run-time state of one case execution.
// It is safe for concurrent use, but a single instance must not be shared
// between independent case runs.
type Variables struct {
	mu     sync.RWMutex
	values map[string]any
	engine *Engine
}

// NewVariables creates a Variables store seeded with a copy of initial.
func NewVariables(initial map[string]any) *Variables {
	v := &Variables{
		values: make(map[string]any, len(initial)),
		engine: New(),
	}
	for k, val := range initial {
		v.values[k] = val
	}
	return v
}

// Set stores value under name, replacing any previous value.
func (v *Variables) Set(name string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[name] = value
}

// Get returns the value stored under name and whether it was defined.
func (v *Variables) Get(name string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.values[name]
	return val, ok
}

// Delete removes name.
func (v *Variables) Delete(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.values, name)
}

// Merge copies every entry of other into the store, overriding existing names.
func (v *Variables) Merge(other map[string]any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for k, val := range other {
		v.values[k] = val
	}
}

// Reset discards every variable.
func (v *Variables) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values = make(map[string]any)
}

// Snapshot returns a shallow copy of the current variables.
func (v *Variables) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]any, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

// Names returns the defined variable names, sorted.
func (v *Variables) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.values))
	for k := range v.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of defined variables.
func (v *Variables) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.values)
}

// Resolve returns a copy of value with ${name} placeholders replaced by the
// current variables. Unknown names are left verbatim.
func (v *Variables) Resolve(value any) any {
	return v.engine.Replace(value, v.Snapshot())
}

// ResolveParams resolves a step parameter map.
func (v *Variables) ResolveParams(params map[string]any) map[string]any {
	return v.engine.ReplaceParams(params, v.Snapshot())
}

// MergeContexts merges multiple contexts into a single context
// Later contexts override values from earlier contexts
func MergeContexts(contexts ...map[string]any) map[string]any {
	result := make(map[string]any)

	for _, ctx := range contexts {
		for key, value := range ctx {
			result[key] = value
		}
	}

	return result
}
