package notify

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names subscribers can ask for.
const (
	EventPixelCommitted = "pixel.committed"
)

// SubscriberStatus represents the activation state of a subscriber.
type SubscriberStatus string

const (
	SubscriberStatusActive   SubscriberStatus = "active"
	SubscriberStatusInactive SubscriberStatus = "inactive"
)

// Subscriber is an external JSON-RPC service that receives purchase
// notifications, such as a mailer congratulating the buyer.
type Subscriber struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name"`
	Endpoint         string           `json:"endpoint"`
	SubscribedEvents []string         `json:"subscribed_events"`
	Status           SubscriberStatus `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Registry is a thread-safe in-memory store of registered subscribers.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscriber
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subscribers: make(map[uuid.UUID]*Subscriber)}
}

// Register adds a subscriber. It assigns an ID and creation timestamp.
func (r *Registry) Register(s *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	if s.Status == "" {
		s.Status = SubscriberStatusActive
	}
	r.subscribers[s.ID] = s
}

// Get returns a subscriber by ID.
func (r *Registry) Get(id uuid.UUID) (*Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subscribers[id]
	if !ok {
		return nil, fmt.Errorf("subscriber %s not found", id)
	}
	return s, nil
}

// List returns all registered subscribers.
func (r *Registry) List() []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		out = append(out, s)
	}
	return out
}

// Delete removes a subscriber by ID.
func (r *Registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribers[id]; !ok {
		return fmt.Errorf("subscriber %s not found", id)
	}
	delete(r.subscribers, id)
	return nil
}

// ForEvent returns all active subscribers of the given event.
func (r *Registry) ForEvent(event string) []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Subscriber
	for _, s := range r.subscribers {
		if s.Status != SubscriberStatusActive {
			continue
		}
		if slices.Contains(s.SubscribedEvents, event) {
			out = append(out, s)
		}
	}
	return out
}
