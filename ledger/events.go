package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/lightsparkdev/kylan-go/common"
)

// DefaultSubscriptionBuffer is the number of undelivered changes a
// subscription may hold before it is dropped.
const DefaultSubscriptionBuffer = 1024

// Subscription delivers every committed change to accounts owned by one program.
type Subscription struct {
	ID      uuid.UUID
	Owner   common.Address
	Updates <-chan *Account
}

type subscriber struct {
	owner   common.Address
	updates chan *Account
	done    chan struct{}
	once    sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.updates)
		close(s.done)
	})
}

// EventRouter fans committed account changes out to subscribers.
type EventRouter struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]*subscriber
	buffer      int
}

func NewEventRouter(buffer int) *EventRouter {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	return &EventRouter{
		subscribers: make(map[uuid.UUID]*subscriber),
		buffer:      buffer,
	}
}

// Register adds a subscription that ends when ctx is done or it is unregistered.
func (r *EventRouter) Register(ctx context.Context, owner common.Address) *Subscription {
	id := uuid.New()
	sub := &subscriber{
		owner:   owner,
		updates: make(chan *Account, r.buffer),
		done:    make(chan struct{}),
	}

	r.mu.Lock()
	r.subscribers[id] = sub
	r.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = r.Unregister(id)
		case <-sub.done:
		}
	}()

	return &Subscription{ID: id, Owner: owner, Updates: sub.updates}
}

// Unregister closes the subscription's channel.
func (r *EventRouter) Unregister(id uuid.UUID) error {
	r.mu.Lock()
	sub, ok := r.subscribers[id]
	delete(r.subscribers, id)
	r.mu.Unlock()

	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.close()
	return nil
}

// Notify delivers accounts to every subscriber of their owner. A subscriber
// whose buffer is full is dropped rather than blocking the ledger.
func (r *EventRouter) Notify(accounts []*Account) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sub := range r.subscribers {
		for _, account := range accounts {
			if account.Owner != sub.owner {
				continue
			}
			select {
			case sub.updates <- account.Clone():
			default:
				slog.Error("Dropping subscription with a full buffer",
					"subscription", id,
					"owner", sub.owner,
				)
				delete(r.subscribers, id)
				sub.close()
			}
			if _, ok := r.subscribers[id]; !ok {
				break
			}
		}
	}
}

// Len returns the number of live subscriptions.
func (r *EventRouter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}
