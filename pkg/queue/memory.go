package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"MarketSnap/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrQueueFull       = errors.New("queue full")
	ErrQueueNotRunning = errors.New("queue not running")
)

// MemoryQueue is a bounded in-process worker pool with the same job and
// retry semantics as RedisQueue. Messages do not survive a restart.
type MemoryQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	jobs      jobRegistry
	msgs      chan Message
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	dead      atomic.Int64
}

func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	if lgr == nil {
		lgr = logger.NewNop()
	}
	cfg := config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		logger: lgr,
		config: cfg,
		jobs:   make(jobRegistry),
		msgs:   make(chan Message, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJob must be called before Start.
func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	if q.ctx.Err() != nil {
		return fmt.Errorf("queue stopped")
	}
	q.isRunning = true

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("memory queue started",
		logger.Int("workers", q.config.Workers),
		logger.Int("queue_size", q.config.QueueSize))
	return nil
}

// Stop cancels in-flight jobs and waits for workers. Buffered messages are dropped.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.mu.Unlock()

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		if n := len(q.msgs); n > 0 {
			q.logger.Warn("memory queue stopped with pending messages", logger.Int("pending", n))
		}
		return nil
	}
}

// Enqueue never blocks. A full buffer returns ErrQueueFull.
func (q *MemoryQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.isRunning {
		return ErrQueueNotRunning
	}
	if _, ok := q.jobs.lookup(msgType); !ok {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}

	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: time.Now()}
	select {
	case q.msgs <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return q.Enqueue(ctx, msgType, payload)
}

// DeadLetters counts messages dropped after exhausting retries.
func (q *MemoryQueue) DeadLetters() int64 { return q.dead.Load() }

func (q *MemoryQueue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.msgs:
			q.process(msg)
		}
	}
}

func (q *MemoryQueue) process(msg Message) {
	q.mu.RLock()
	job, ok := q.jobs.lookup(msg.Type)
	q.mu.RUnlock()
	if !ok {
		q.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}

	err := runJob(q.ctx, job, msg, q.config.JobTimeout)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		q.dead.Add(1)
		q.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("job", job.Name()))
		return
	}

	msg.Attempts++
	time.AfterFunc(q.config.RetryDelay, func() {
		select {
		case q.msgs <- msg:
		case <-q.ctx.Done():
		default:
			q.dead.Add(1)
			q.logger.Warn("retry dropped, queue full", logger.String("id", msg.ID))
		}
	})
}
