package checkpoint

import (
	"context"

	"github.com/rickchristie/agentcore/internal/buffer"
)

// QueuedNotifier hands records to another Notifier one at a time, in the order the
// checkpoints were offered, on its own goroutine. Notify returns at once, so a slow
// notifier never holds up a waiting checkpoint, and notifiers that talk to a single
// terminal are never called concurrently.
type QueuedNotifier struct {
	next  Notifier
	queue *buffer.Queue[notification]
	done  chan struct{}
}

type notification struct {
	ctx context.Context
	rec Record
}

// NewQueuedNotifier starts delivering to next. Call Close to stop it.
func NewQueuedNotifier(next Notifier) *QueuedNotifier {
	n := &QueuedNotifier{
		next:  next,
		queue: buffer.NewQueue[notification](),
		done:  make(chan struct{}),
	}
	go n.deliver()
	return n
}

// Notify queues rec. The record is delivered with ctx detached from its cancellation,
// since the offering flow may have moved on by then. Records offered after Close are
// dropped.
func (n *QueuedNotifier) Notify(ctx context.Context, rec Record) {
	n.queue.Push(notification{ctx: context.WithoutCancel(ctx), rec: rec})
}

// Pending returns the number of records not yet handed to the wrapped notifier.
func (n *QueuedNotifier) Pending() int {
	return n.queue.Len()
}

// Close stops accepting records and waits until the queued ones have been delivered,
// or until ctx ends.
func (n *QueuedNotifier) Close(ctx context.Context) error {
	n.queue.Close()
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *QueuedNotifier) deliver() {
	defer close(n.done)
	for {
		item, ok := n.queue.Pop(context.Background())
		if !ok {
			return
		}
		n.next.Notify(item.ctx, item.rec)
	}
}

var _ Notifier = (*QueuedNotifier)(nil)
