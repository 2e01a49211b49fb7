package operation

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
)

var ErrSurfaceMounted = errors.New("surface already mounted")

// Registry keeps at most one live controller per surface id.
type Registry struct {
	dispatcher Dispatcher
	opts       []Option

	mu       sync.Mutex
	surfaces map[string]*Controller
}

// NewRegistry builds controllers that share dispatcher and opts.
func NewRegistry(dispatcher Dispatcher, opts ...Option) *Registry {
	return &Registry{
		dispatcher: dispatcher,
		opts:       opts,
		surfaces:   make(map[string]*Controller),
	}
}

func (r *Registry) Mount(surface string, command proxy.CommandName) (*Controller, error) {
	if !command.Valid() {
		return nil, fmt.Errorf("mount %s: unknown command %q", surface, command)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surfaces[surface]; ok {
		return nil, fmt.Errorf("mount %s: %w", surface, ErrSurfaceMounted)
	}
	c := NewController(surface, command, r.dispatcher, r.opts...)
	r.surfaces[surface] = c
	return c, nil
}

func (r *Registry) Get(surface string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.surfaces[surface]
	return c, ok
}

// Unmount closes the surface's controller. Unknown surfaces are ignored.
func (r *Registry) Unmount(surface string) {
	r.mu.Lock()
	c, ok := r.surfaces[surface]
	delete(r.surfaces, surface)
	r.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Surfaces lists mounted surface ids in sorted order.
func (r *Registry) Surfaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.surfaces))
	for id := range r.surfaces {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close unmounts every surface.
func (r *Registry) Close() {
	for _, id := range r.Surfaces() {
		r.Unmount(id)
	}
}
