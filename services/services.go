// Package services provides the service registry through which stages
// discover runtime facilities. Each job keeps its own container for per-job
// services (the tracked thread factory and task scheduler) and falls back
// to the engine-wide container for everything else.
package services

import "sync"

// Kind identifies a service in a container.
type Kind string

// Well-known per-job service kinds.
const (
	// KindThreads resolves to the job's tracked thread factory.
	KindThreads Kind = "threads"
	// KindScheduler resolves to the job's tracked task scheduler.
	KindScheduler Kind = "scheduler"
)

// Provider resolves services by kind. Service returns nil when the kind is
// not registered.
type Provider interface {
	Service(kind Kind) any
}

// Cleaner releases whatever a container holds on behalf of one invocation
// of one job. It is called once the invocation has been closed.
type Cleaner func(jobID, invocationID string)

// Container maps service kinds to implementations.
// It is safe for concurrent use.
type Container struct {
	mu       sync.RWMutex
	services map[Kind]any
	cleaners []Cleaner
}

// NewContainer creates an empty service container.
func NewContainer() *Container {
	return &Container{
		services: make(map[Kind]any),
	}
}

// Add registers svc under kind, returning the service it replaced (if any).
func (c *Container) Add(kind Kind, svc any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.services[kind]
	c.services[kind] = svc
	return prev
}

// Remove unregisters the service for kind and returns it.
func (c *Container) Remove(kind Kind) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.services[kind]
	delete(c.services, kind)
	return prev
}

// Service returns the service registered under kind, or nil.
func (c *Container) Service(kind Kind) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services[kind]
}

// Kinds returns all registered service kinds.
func (c *Container) Kinds() []Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds := make([]Kind, 0, len(c.services))
	for k := range c.services {
		kinds = append(kinds, k)
	}
	return kinds
}

// AddCleaner registers a cleaner notified by CleanOplet.
func (c *Container) AddCleaner(fn Cleaner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleaners = append(c.cleaners, fn)
}

// CleanOplet notifies every registered cleaner that the invocation
// identified by (jobID, invocationID) has been closed.
func (c *Container) CleanOplet(jobID, invocationID string) {
	c.mu.RLock()
	cleaners := make([]Cleaner, len(c.cleaners))
	copy(cleaners, c.cleaners)
	c.mu.RUnlock()

	for _, fn := range cleaners {
		fn(jobID, invocationID)
	}
}

// Lookup resolves kind from p and asserts it to T.
func Lookup[T any](p Provider, kind Kind) (T, bool) {
	var zero T
	if p == nil {
		return zero, false
	}
	svc, ok := p.Service(kind).(T)
	if !ok {
		return zero, false
	}
	return svc, true
}
