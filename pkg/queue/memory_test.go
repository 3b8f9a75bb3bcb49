package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Symbol string `json:"symbol"`
}

type recordingJob struct {
	failFirst int32
	calls     atomic.Int32
	mu        sync.Mutex
	seen      []string
	done      chan struct{}
}

func (j *recordingJob) Name() string { return "recording" }
func (j *recordingJob) Type() string { return "test.job" }

func (j *recordingJob) Handle(_ context.Context, raw interface{}) error {
	n := j.calls.Add(1)
	if n <= j.failFirst {
		return errors.New("transient")
	}
	p, err := ParsePayload[payload](raw)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.seen = append(j.seen, p.Symbol)
	j.mu.Unlock()
	j.done <- struct{}{}
	return nil
}

func startQueue(t *testing.T, cfg *QueueConfig, job Job) *MemoryQueue {
	t.Helper()
	q := NewMemoryQueue(nil, cfg)
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	return q
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestMemoryQueue_RunsJob(t *testing.T) {
	job := &recordingJob{done: make(chan struct{}, 1)}
	q := startQueue(t, &QueueConfig{Workers: 2}, job)

	require.NoError(t, q.PublishMessage(context.Background(), "test.job", payload{Symbol: "INFY"}))
	waitDone(t, job.done)

	job.mu.Lock()
	defer job.mu.Unlock()
	assert.Equal(t, []string{"INFY"}, job.seen)
}

func TestMemoryQueue_RetriesThenSucceeds(t *testing.T) {
	job := &recordingJob{failFirst: 2, done: make(chan struct{}, 1)}
	q := startQueue(t, &QueueConfig{Workers: 1, RetryLimit: 2, RetryDelay: 10 * time.Millisecond}, job)

	require.NoError(t, q.Enqueue(context.Background(), "test.job", payload{Symbol: "TCS"}))
	waitDone(t, job.done)
	assert.Equal(t, int32(3), job.calls.Load())
	assert.Zero(t, q.DeadLetters())
}

func TestMemoryQueue_ExhaustedRetriesAreDeadLettered(t *testing.T) {
	job := &recordingJob{failFirst: 100, done: make(chan struct{}, 1)}
	q := startQueue(t, &QueueConfig{Workers: 1, RetryLimit: 1, RetryDelay: 5 * time.Millisecond}, job)

	require.NoError(t, q.Enqueue(context.Background(), "test.job", payload{Symbol: "X"}))
	assert.Eventually(t, func() bool { return q.DeadLetters() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), job.calls.Load())
}

func TestMemoryQueue_Rejections(t *testing.T) {
	job := &recordingJob{done: make(chan struct{}, 1)}
	q := NewMemoryQueue(nil, &QueueConfig{Workers: 1, QueueSize: 1})
	q.RegisterJob(job)

	err := q.Enqueue(context.Background(), "test.job", payload{})
	assert.ErrorIs(t, err, ErrQueueNotRunning)

	require.NoError(t, q.Start())
	defer func() { _ = q.Stop(context.Background()) }()

	err = q.Enqueue(context.Background(), "other", payload{})
	assert.Error(t, err)
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[payload]([]byte(`{"symbol":"AAPL"}`))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", p.Symbol)

	p, err = ParsePayload[payload](map[string]interface{}{"symbol": "MSFT"})
	require.NoError(t, err)
	assert.Equal(t, "MSFT", p.Symbol)

	_, err = ParsePayload[payload](42)
	assert.Error(t, err)
}
