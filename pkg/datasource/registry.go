package datasource

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nnnkkk7/geoquery/pkg/table"
)

// ViewInfo describes a live table view.
type ViewInfo struct {
	Handle     string
	Identity   table.Identity
	Capability table.Capability
	OpenedOn   time.Time
}

type entry struct {
	view     table.Table
	openedOn time.Time
}

// Registry tracks the table views that are still open, keyed by handle.
// It implements table.Tracker.
type Registry struct {
	mu    sync.RWMutex
	views map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*entry)}
}

// Track registers a view.
func (r *Registry) Track(handle string, t table.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[handle] = &entry{view: t, openedOn: time.Now()}
}

// Untrack removes a view.
func (r *Registry) Untrack(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, handle)
}

// Get retrieves a live view by handle.
func (r *Registry) Get(handle string) (table.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.views[handle]
	if !ok {
		return nil, false
	}
	return e.view, true
}

// Len returns the number of live views.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// List returns the live views, oldest first.
func (r *Registry) List() []ViewInfo {
	r.mu.RLock()
	out := make([]ViewInfo, 0, len(r.views))
	for handle, e := range r.views {
		out = append(out, ViewInfo{
			Handle:     handle,
			Identity:   e.view.Identity(),
			Capability: e.view.Capability(),
			OpenedOn:   e.openedOn,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedOn.Equal(out[j].OpenedOn) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].OpenedOn.Before(out[j].OpenedOn)
	})
	return out
}

// CloseAll closes every live view. Views untrack themselves on Close, so
// the registry lock is not held while closing.
func (r *Registry) CloseAll() error {
	return r.closeWhere(func(*entry) bool { return true })
}

// CloseOlderThan closes views opened more than ttl ago and returns how many
// were closed.
func (r *Registry) CloseOlderThan(ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	n := 0
	err := r.closeWhere(func(e *entry) bool {
		if e.openedOn.Before(cutoff) {
			n++
			return true
		}
		return false
	})
	return n, err
}

func (r *Registry) closeWhere(match func(*entry) bool) error {
	r.mu.RLock()
	var views []table.Table
	for _, e := range r.views {
		if match(e) {
			views = append(views, e.view)
		}
	}
	r.mu.RUnlock()

	var errs []error
	for _, v := range views {
		if err := v.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
