package inmem

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rickchristie/agentcore"
)

// ErrUnknownTask is returned when completing a task that is not in flight.
var ErrUnknownTask = errors.New("inmem: task not in flight")

// TaskQueue is a FIFO TaskProvider. Next moves a task to in-flight; Complete records
// its result.
type TaskQueue struct {
	mu       sync.Mutex
	queue    []agentcore.Task
	inFlight map[string]agentcore.Task
	results  map[string]any
}

// NewTaskQueue creates a queue holding tasks in order.
func NewTaskQueue(tasks ...agentcore.Task) *TaskQueue {
	q := &TaskQueue{
		inFlight: make(map[string]agentcore.Task),
		results:  make(map[string]any),
	}
	for _, t := range tasks {
		q.Push(t)
	}
	return q
}

// Push appends a task. An empty ID is replaced with a generated one.
func (q *TaskQueue) Push(t agentcore.Task) string {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, t)
	return t.ID
}

// Next pops the oldest queued task, or returns agentcore.ErrNoTask.
func (q *TaskQueue) Next(ctx context.Context) (agentcore.Task, error) {
	if err := ctx.Err(); err != nil {
		return agentcore.Task{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return agentcore.Task{}, agentcore.ErrNoTask
	}
	t := q.queue[0]
	q.queue = q.queue[1:]
	q.inFlight[t.ID] = t
	return t, nil
}

// Complete records the result of an in-flight task.
func (q *TaskQueue) Complete(_ context.Context, taskID string, result any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inFlight[taskID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	delete(q.inFlight, taskID)
	q.results[taskID] = result
	return nil
}

// Result returns the recorded result of a completed task.
func (q *TaskQueue) Result(taskID string) (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.results[taskID]
	return r, ok
}

// Len returns the number of queued (not yet handed out) tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

var _ agentcore.TaskProvider = (*TaskQueue)(nil)
