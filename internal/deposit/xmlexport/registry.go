// Package xmlexport turns depositable objects into CrossRef deposit XML.
package xmlexport

import (
	"sort"
	"sync"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
)

// Filter serializes a set of objects into one XML document.
type Filter interface {
	Serialize(objects []*domain.Object, dep Deployment) ([]byte, error)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(objects []*domain.Object, dep Deployment) ([]byte, error)

// Serialize calls f.
func (f FilterFunc) Serialize(objects []*domain.Object, dep Deployment) ([]byte, error) {
	return f(objects, dep)
}

// Registry maps filter keys such as "article=>crossref-xml" to filters.
// Registering the same key twice keeps both so that the ambiguity is reported on export.
type Registry struct {
	mu      sync.RWMutex
	filters map[string][]Filter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{filters: make(map[string][]Filter)}
}

// DefaultRegistry returns a registry with the built-in CrossRef filters for articles and issues.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(domain.KindArticle.FilterKey(), ArticleFilter{})
	r.Register(domain.KindIssue.FilterKey(), IssueFilter{})
	return r
}

// Register adds a filter under key.
func (r *Registry) Register(key string, f Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[key] = append(r.filters[key], f)
}

// Lookup returns every filter registered under key.
func (r *Registry) Lookup(key string) []Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Filter(nil), r.filters[key]...)
}

// Keys returns the registered filter keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.filters))
	for k := range r.filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
