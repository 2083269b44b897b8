package memory

import (
	"context"
	"sync"

	"github.com/yummyorder/whatsapp-sandbox/settings"
)

// Repository is an in-memory settings.Repository. It backs tests and the
// degraded mode used when no durable store is reachable.
type Repository struct {
	mu     sync.RWMutex
	stored settings.Settings
	found  bool
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Load returns the stored settings, if any.
func (r *Repository) Load(ctx context.Context) (settings.Settings, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stored, r.found, nil
}

// Save replaces the stored settings.
func (r *Repository) Save(ctx context.Context, s settings.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = s
	r.found = true
	return nil
}
