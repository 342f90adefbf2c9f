// Package registry holds the catalog of action words available to cases.
//
// A Registry is constructed once at process start, populated through
// explicit Register calls, and handed to the runner. Registration and
// lookup are guarded by a read-write lock, so a registry may be shared by
// concurrently running cases.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"keyrunner/internal/api"
	"keyrunner/pkg/logging"
)

// Handler executes one action word. params holds the step's parameters
// after variable substitution.
//
// A handler signals failure by returning a non-nil error, by returning the
// boolean false, or by returning nil (no result). Any other value is a
// success and becomes the step's result.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// ParamSpec documents one parameter accepted by an action word.
type ParamSpec struct {
	Name        string `json:"name" yaml:"name"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Descriptor binds a keyword to its handler and metadata.
type Descriptor struct {
	Keyword     string      `json:"keyword"`
	Category    string      `json:"category"`
	Description string      `json:"description,omitempty"`
	Params      []ParamSpec `json:"params,omitempty"`

	// Compensation names the action word that undoes this one. A non-empty
	// value marks the keyword as recoverable: every successful invocation
	// pushes a compensation onto the run's recovery stack.
	Compensation string `json:"compensation,omitempty"`

	Handler Handler `json:"-"`
}

// Recoverable reports whether successful invocations register a compensation.
func (d Descriptor) Recoverable() bool {
	return d.Compensation != ""
}

// Result lets a recoverable handler shape the compensation pushed for a
// successful invocation. Handlers that return a plain value get the
// descriptor's compensation with the step's resolved parameters.
type Result struct {
	// Value is the step result and follows the usual failure policy.
	Value any

	// Compensation replaces the descriptor's compensation keyword.
	Compensation string

	// Params are merged over the step's parameters for the compensation.
	Params map[string]any

	// Skip reports that nothing was changed, so nothing needs undoing.
	Skip bool
}

// DefaultCategory is used when a descriptor is registered without one.
const DefaultCategory = "general"

// Registry maps keywords to descriptors.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		actions: make(map[string]Descriptor),
	}
}

// Register binds desc.Keyword to desc. If the keyword is already bound the
// registry keeps the existing binding and returns a DuplicateActionError;
// there is no silent overwrite.
func (r *Registry) Register(desc Descriptor) error {
	if desc.Keyword == "" {
		return fmt.Errorf("cannot register action with empty keyword")
	}
	if desc.Handler == nil {
		return fmt.Errorf("cannot register action %q without a handler", desc.Keyword)
	}
	if desc.Category == "" {
		desc.Category = DefaultCategory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.actions[desc.Keyword]; ok {
		return &api.DuplicateActionError{Keyword: desc.Keyword, ExistingCategory: existing.Category}
	}
	r.actions[desc.Keyword] = desc

	logging.Debug("Registry", "Registered action %s (category: %s, recoverable: %t)", desc.Keyword, desc.Category, desc.Recoverable())
	return nil
}

// RegisterFunc is a shorthand for registering a plain handler.
func (r *Registry) RegisterFunc(keyword, category string, handler Handler) error {
	return r.Register(Descriptor{Keyword: keyword, Category: category, Handler: handler})
}

// MustRegister registers desc and panics on failure. Use it only while
// wiring the process at start-up.
func (r *Registry) MustRegister(desc Descriptor) {
	if err := r.Register(desc); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor bound to keyword, or an UnknownActionError.
func (r *Registry) Lookup(keyword string) (Descriptor, error) {
	r.mu.RLock()
	desc, ok := r.actions[keyword]
	r.mu.RUnlock()

	if !ok {
		return Descriptor{}, api.NewUnknownActionError(keyword)
	}
	return desc, nil
}

// Has reports whether keyword is bound.
func (r *Registry) Has(keyword string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[keyword]
	return ok
}

// List returns the descriptors in the given category sorted by keyword. An
// empty category returns every descriptor.
func (r *Registry) List(category string) []Descriptor {
	r.mu.RLock()
	result := make([]Descriptor, 0, len(r.actions))
	for _, desc := range r.actions {
		if category != "" && desc.Category != category {
			continue
		}
		result = append(result, desc)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Keyword < result[j].Keyword
	})
	return result
}

// Categories returns the distinct categories in use, sorted.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	seen := make(map[string]bool)
	for _, desc := range r.actions {
		seen[desc.Category] = true
	}
	r.mu.RUnlock()

	categories := make([]string, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// MissingCompensations returns, for every recoverable action whose
// compensation keyword is not registered, a "keyword -> compensation" entry.
// The CLI reports these at start-up; drain would otherwise only discover
// them at teardown.
func (r *Registry) MissingCompensations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, desc := range r.actions {
		if !desc.Recoverable() {
			continue
		}
		if _, ok := r.actions[desc.Compensation]; !ok {
			missing = append(missing, fmt.Sprintf("%s -> %s", desc.Keyword, desc.Compensation))
		}
	}
	sort.Strings(missing)
	return missing
}
