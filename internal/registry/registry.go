package registry

import (
	"sort"
	"sync"

	"example.com/coastwatch/internal/models"
)

// Task is the cancellable recurring schedule attached to an active device
type Task interface {
	Generation() uint64
	Cancel() error
}

type entry struct {
	cfg  models.DeviceConfig
	task Task
}

// Registry owns every DeviceConfig and the schedule handle of each device
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*entry
}

// New creates an empty registry
func New() *Registry {
	return &Registry{devices: make(map[string]*entry)}
}

// Validate checks the invariants every stored config must hold
func Validate(cfg models.DeviceConfig) error {
	if cfg.ID == "" {
		return models.NewConfigurationError(cfg.ID, models.ErrInvalidDevice)
	}
	if !cfg.Type.Valid() {
		return models.NewConfigurationError(cfg.ID, models.ErrInvalidDevice)
	}
	if cfg.IntervalSeconds <= 0 {
		return models.NewConfigurationError(cfg.ID, models.ErrInvalidInterval)
	}
	return nil
}

// Add stores a new device
func (r *Registry) Add(cfg models.DeviceConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[cfg.ID]; exists {
		return models.NewConfigurationError(cfg.ID, models.ErrDuplicateDevice)
	}
	r.devices[cfg.ID] = &entry{cfg: cfg}
	return nil
}

// Remove deletes a device that has no schedule attached
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.devices[id]
	if !ok || e.task != nil {
		return false
	}
	delete(r.devices, id)
	return true
}

// Get returns a copy of the device config
func (r *Registry) Get(id string) (models.DeviceConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.devices[id]
	if !ok {
		return models.DeviceConfig{}, false
	}
	return e.cfg, true
}

// List returns copies of every config ordered by id
func (r *Registry) List() []models.DeviceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.DeviceConfig, 0, len(r.devices))
	for _, e := range r.devices {
		out = append(out, e.cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered devices
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Update applies fn to a copy of the config and stores the result if it validates.
// It returns the previous and the stored config.
func (r *Registry) Update(id string, fn func(models.DeviceConfig) models.DeviceConfig) (models.DeviceConfig, models.DeviceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.devices[id]
	if !ok {
		return models.DeviceConfig{}, models.DeviceConfig{}, models.NewConfigurationError(id, models.ErrUnknownDevice)
	}

	prev := e.cfg
	next := fn(prev)
	next.ID = prev.ID
	if err := Validate(next); err != nil {
		return prev, prev, err
	}
	e.cfg = next
	return prev, next, nil
}

// Attach stores the device's schedule handle and returns the one it replaces
func (r *Registry) Attach(id string, task Task) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.devices[id]
	if !ok {
		return nil, models.NewConfigurationError(id, models.ErrUnknownDevice)
	}
	prev := e.task
	e.task = task
	return prev, nil
}

// Detach removes and returns the device's schedule handle
func (r *Registry) Detach(id string) Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.devices[id]
	if !ok {
		return nil
	}
	task := e.task
	e.task = nil
	return task
}

// Task returns the device's current schedule handle, if any
func (r *Registry) Task(id string) Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.devices[id]; ok {
		return e.task
	}
	return nil
}

// Current returns the config if gen matches the attached task and the device is active
func (r *Registry) Current(id string, gen uint64) (models.DeviceConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.devices[id]
	if !ok || e.task == nil || e.task.Generation() != gen || !e.cfg.Active {
		return models.DeviceConfig{}, false
	}
	return e.cfg, true
}

// DetachAll removes every schedule handle, for shutdown
func (r *Registry) DetachAll() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tasks []Task
	for _, e := range r.devices {
		if e.task != nil {
			tasks = append(tasks, e.task)
			e.task = nil
		}
	}
	return tasks
}
