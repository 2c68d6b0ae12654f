package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"finze/internal/core"
	"finze/internal/storage"
)

// Unsubscribe stops a subscription and waits for its goroutine to exit.
// It must not be called from inside the subscription's own callback.
// Calling it more than once is safe.
type Unsubscribe func()

// Subscribe delivers the user's full collection to fn once on start and
// again after every change announced by src. Each delivery replaces the
// previous one.
//
// On any watch or read error the subscription logs, delivers an empty
// collection once, and stops. It is never retried; callers resubscribe.
func Subscribe[T core.Document](
	ctx context.Context,
	src Source,
	coll storage.Collection[T],
	name core.Collection,
	userID string,
	fn func([]T),
) Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	logger := slog.Default().With("component", "live", "collection", string(name), "user_id", userID)

	fail := func(err error) {
		if ctx.Err() != nil {
			return
		}
		logger.ErrorContext(ctx, "Subscription failed", "error", err)
		fn([]T{})
	}

	go func() {
		defer close(done)

		changes, err := src.Watch(ctx, userID, name)
		if err != nil {
			fail(fmt.Errorf("watch: %w", err))
			return
		}

		deliver := func() bool {
			docs, err := coll.List(ctx, userID)
			if err != nil {
				fail(fmt.Errorf("list: %w", err))
				return false
			}
			if ctx.Err() != nil {
				return false
			}
			fn(docs)
			return true
		}

		if !deliver() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					fail(fmt.Errorf("change source closed"))
					return
				}
				if !deliver() {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// Session accumulates unsubscribe handles so that a whole screen's worth of
// subscriptions can be torn down at once (teardown or logout).
type Session struct {
	mu     sync.Mutex
	unsubs []Unsubscribe
	closed bool
}

// Add registers a handle. Adding to a closed session unsubscribes at once.
func (s *Session) Add(u Unsubscribe) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		u()
		return
	}
	s.unsubs = append(s.unsubs, u)
	s.mu.Unlock()
}

// Close calls every accumulated handle, newest first.
func (s *Session) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.closed = true
	s.mu.Unlock()

	for i := len(unsubs) - 1; i >= 0; i-- {
		unsubs[i]()
	}
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unsubs)
}
