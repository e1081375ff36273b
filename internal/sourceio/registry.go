package sourceio

import "sync"

// Registry hands out a CircuitBreaker per source key (typically a
// MediaSource's URL), so repeated failures against one upstream don't
// affect sessions reading from a different source.
type Registry struct {
	mu       sync.Mutex
	config   Config
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a Registry whose breakers all share config.
func NewRegistry(config Config) *Registry {
	return &Registry{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for key, creating one if it doesn't exist.
func (r *Registry) Get(key string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[key]
	if !ok {
		cb = New(r.config)
		r.breakers[key] = cb
	}
	return cb
}

// Remove discards the breaker for key, e.g. once its session ends.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, key)
}

// OpenKeys returns the keys of all currently-open breakers.
func (r *Registry) OpenKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var open []string
	for key, cb := range r.breakers {
		if cb.State() == StateOpen {
			open = append(open, key)
		}
	}
	return open
}

// Count returns the number of tracked breakers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.breakers)
}
