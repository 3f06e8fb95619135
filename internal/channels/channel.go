package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/grigta/sentinel/internal/models"
)

// Channel delivers an alert through one transport. Every channel is an
// isolated failure domain: a failing Send must not affect other channels.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *models.Alert) error
}

// Registry holds the configured delivery channels by name.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

func (r *Registry) Register(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.Name()] = ch
}

// Get returns the channel or an error naming the missing channel, so a
// misconfigured channel list fails per channel rather than per alert.
func (r *Registry) Get(name string) (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("delivery channel %q is not registered", name)
	}
	return ch, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}
