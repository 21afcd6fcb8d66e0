package pubsub

import "context"

// HandlerFunc is called for every event delivered to a subscription.
type HandlerFunc[T any] func(Event[T])

// Handle subscribes fn to the broker and calls it for each event on a dedicated
// goroutine until ctx is cancelled or the broker is closed.
// The returned channel is closed once the handler goroutine exits.
func Handle[T any](ctx context.Context, sub Subscriber[T], fn HandlerFunc[T]) <-chan struct{} {
	ch := sub.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range ch {
			fn(event)
		}
	}()
	return done
}
