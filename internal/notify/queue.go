package notify

import (
	"context"
	"sync"

	"github.com/scholarly-tools/doideposit/internal/pubsub"
)

const defaultQueueLimit = 100

// Queued is published for every notification added to a Queue.
type Queued struct {
	User         string
	Notification Notification
}

// Queue keeps pending notifications per user until they are drained, and publishes
// each one to subscribers of the queue's broker.
type Queue struct {
	mu      sync.Mutex
	pending map[string][]Notification
	limit   int
	broker  *pubsub.Broker[Queued]
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		pending: make(map[string][]Notification),
		limit:   defaultQueueLimit,
		broker:  pubsub.NewBroker[Queued](),
	}
}

// Notify implements Sink. When a user has more than the queue limit pending, the
// oldest notification is dropped.
func (q *Queue) Notify(_ context.Context, user string, n Notification) error {
	q.mu.Lock()
	pending := append(q.pending[user], n)
	if len(pending) > q.limit {
		pending = pending[len(pending)-q.limit:]
	}
	q.pending[user] = pending
	q.mu.Unlock()

	q.broker.Publish(pubsub.NotifiedEvent, Queued{User: user, Notification: n})
	return nil
}

// Drain returns and removes the user's pending notifications in arrival order.
func (q *Queue) Drain(user string) []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.pending[user]
	delete(q.pending, user)
	return pending
}

// Pending returns how many notifications wait for user.
func (q *Queue) Pending(user string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[user])
}

// Subscribe streams queued notifications of all users until ctx is cancelled.
func (q *Queue) Subscribe(ctx context.Context) <-chan pubsub.Event[Queued] {
	return q.broker.Subscribe(ctx)
}

// Close stops the broker. Pending notifications stay drainable.
func (q *Queue) Close() {
	q.broker.Close()
}
