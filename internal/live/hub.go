package live

import (
	"context"
	"sync"

	"finze/internal/core"
)

type watchKey struct {
	user       string
	collection core.Collection
}

// Hub is an in-process Source and Publisher.
type Hub struct {
	mu       sync.Mutex
	watchers map[watchKey]map[chan Change]struct{}
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[watchKey]map[chan Change]struct{})}
}

func (h *Hub) Watch(ctx context.Context, userID string, collection core.Collection) (<-chan Change, error) {
	key := watchKey{userID, collection}
	// A buffer of one coalesces bursts: a pending notification already
	// guarantees a re-read that will observe every later write.
	ch := make(chan Change, 1)

	h.mu.Lock()
	if h.watchers[key] == nil {
		h.watchers[key] = make(map[chan Change]struct{})
	}
	h.watchers[key][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.watchers[key], ch)
		if len(h.watchers[key]) == 0 {
			delete(h.watchers, key)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch, nil
}

func (h *Hub) Publish(_ context.Context, change Change) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[watchKey{change.UserID, change.Collection}] {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

// Watchers reports how many subscriptions are open for a user's collection.
func (h *Hub) Watchers(userID string, collection core.Collection) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[watchKey{userID, collection}])
}
