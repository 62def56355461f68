package tpiu

import (
	"fmt"
	"sync"
)

// Registry is the process-wide collection of named TPIU/SWO instances,
// the ownership root created at subsystem init and torn down at shutdown.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*Instance
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]*Instance)}
}

// Create allocates a new instance named name, rejecting a duplicate name.
func (r *Registry) Create(cfg Config) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.Name == "" {
		return nil, fmt.Errorf("tpiu: instance name required")
	}
	if _, exists := r.instances[cfg.Name]; exists {
		return nil, fmt.Errorf("tpiu: cannot create instance, name %q already exists", cfg.Name)
	}
	if cfg.Spot.DAP == nil {
		return nil, fmt.Errorf("tpiu %s: -dap required when creating TPIU", cfg.Name)
	}

	inst := newInstance(cfg)
	r.instances[cfg.Name] = inst
	r.order = append(r.order, cfg.Name)
	return inst, nil
}

// Get resolves an instance by name.
func (r *Registry) Get(name string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// Names lists every registered instance name in creation order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Init runs enable for every instance whose enable was deferred during
// configuration loading.
func (r *Registry) Init() error {
	r.mu.Lock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.Unlock()

	var firstErr error
	for _, name := range names {
		inst, ok := r.Get(name)
		if !ok || !inst.deferredEnable {
			continue
		}
		if err := inst.Enable(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CleanupAll disables and releases every instance, in reverse creation
// order, and is idempotent: a second call finds nothing enabled left to
// tear down.
func (r *Registry) CleanupAll() error {
	r.mu.Lock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.Unlock()

	var firstErr error
	for i := len(names) - 1; i >= 0; i-- {
		inst, ok := r.Get(names[i])
		if !ok {
			continue
		}
		if err := inst.disableLocked(true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
