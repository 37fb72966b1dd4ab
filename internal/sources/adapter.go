package sources

import (
	"context"
	"slices"
	"strings"
)

// Adapter is the uniform contract every metadata provider implements.
type Adapter interface {
	// Name returns the configuration key of the source ("comicvine").
	Name() string
	// Validate reports missing or malformed credentials as
	// services.ErrConfiguration with an actionable hint.
	Validate() error
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)
	// FetchByID returns nil, nil when the source has no such series.
	FetchByID(ctx context.Context, id string) (*SeriesMatch, error)
	FetchIssues(ctx context.Context, seriesID string) ([]Issue, error)
}

// Registry holds the enabled adapters and the merge priority order.
type Registry struct {
	adapters map[string]Adapter
	priority []string
}

// NewRegistry registers adapters ordered by priority. Adapters whose name
// is missing from priority are appended in registration order.
func NewRegistry(priority []string, adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		r.adapters[strings.ToLower(adapter.Name())] = adapter
	}
	for _, name := range priority {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := r.adapters[name]; ok && !slices.Contains(r.priority, name) {
			r.priority = append(r.priority, name)
		}
	}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		if name := strings.ToLower(adapter.Name()); !slices.Contains(r.priority, name) {
			r.priority = append(r.priority, name)
		}
	}
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	return adapter, ok
}

// Names lists registered sources in priority order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.priority)
}

// Primary returns the highest-priority adapter.
func (r *Registry) Primary() (Adapter, bool) {
	if r == nil || len(r.priority) == 0 {
		return nil, false
	}
	return r.adapters[r.priority[0]], true
}

// Rank returns the priority position of name, or len(Names()) when the
// source is unknown so unknown sources sort last.
func (r *Registry) Rank(name string) int {
	if r == nil {
		return 0
	}
	if idx := slices.Index(r.priority, strings.ToLower(name)); idx >= 0 {
		return idx
	}
	return len(r.priority)
}

// Len reports the number of registered adapters.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.priority)
}
