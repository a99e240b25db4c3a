package api

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luispater/feeOptOut/internal/portal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrQueueRunning = errors.New("queue is already running")
	ErrQueueStopped = errors.New("queue is not running")
	ErrQueueFull    = errors.New("queue is full")
)

// RequestQueue hands messages to the page agent one at a time, so two popups
// can never click in the same tab concurrently. A message whose caller has
// already given up is dropped instead of being acted on late.
type RequestQueue struct {
	processor TaskProcessor
	tasks     chan *RequestTask

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	processed atomic.Int64
	dropped   atomic.Int64
}

// TaskProcessor answers one queued message.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, task *RequestTask) portal.Response
}

// HandlerProcessor answers tasks with a portal.Handler.
type HandlerProcessor struct {
	Handler *portal.Handler
}

func (p HandlerProcessor) ProcessTask(ctx context.Context, task *RequestTask) portal.Response {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if task.Context != nil {
		stop := context.AfterFunc(task.Context, cancel)
		defer stop()
	}
	return p.Handler.Handle(taskCtx, task.Session, task.Request)
}

// QueueStats counts what the queue has done since it was created.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Processed int64 `json:"processed"`
	Dropped   int64 `json:"dropped"`
}

func NewRequestQueue(processor TaskProcessor) *RequestQueue {
	return &RequestQueue{
		processor: processor,
		tasks:     make(chan *RequestTask, 16),
	}
}

func (q *RequestQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return ErrQueueRunning
	}

	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.running = true
	q.wg.Add(1)
	go q.worker(q.ctx)

	log.Debug("Request queue started")
	return nil
}

// Stop cancels the message being handled, if any, and waits for the worker.
// Messages still queued get no answer; their callers time out.
func (q *RequestQueue) Stop() error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	log.Debug("Request queue stopped")
	return nil
}

func (q *RequestQueue) AddTask(task *RequestTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return ErrQueueStopped
	}

	select {
	case q.tasks <- task:
		log.Debugf("Task %s (%s) queued", task.ID, task.Request.Action)
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *RequestQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			q.handle(ctx, task)
		}
	}
}

func (q *RequestQueue) handle(ctx context.Context, task *RequestTask) {
	if task.Context != nil && task.Context.Err() != nil {
		q.dropped.Add(1)
		log.Debugf("Task %s dropped, caller gave up after %v", task.ID, time.Since(task.CreatedAt))
		return
	}

	start := time.Now()
	response := q.processor.ProcessTask(ctx, task)
	q.processed.Add(1)
	log.Debugf("Task %s (%s) answered in %v", task.ID, task.Request.Action, time.Since(start))

	// Response channels are buffered by the caller.
	task.Response <- response
}

func (q *RequestQueue) Stats() QueueStats {
	return QueueStats{
		Pending:   len(q.tasks),
		Processed: q.processed.Load(),
		Dropped:   q.dropped.Load(),
	}
}

func (q *RequestQueue) IsRunning() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.running
}
