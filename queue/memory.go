package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/livepeer/catalyst-vod/config"
	caterrs "github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
)

const defaultMemoryBuffer = 1024

type memoryTask struct {
	job     UploadJob
	retried int
}

// Memory is an in-process queue drained by Concurrency goroutines. Jobs are
// lost on restart.
type Memory struct {
	opts   Options
	tasks  chan memoryTask
	mu     sync.RWMutex
	closed bool
}

func NewMemory(opts Options) *Memory {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Memory{opts: opts, tasks: make(chan memoryTask, defaultMemoryBuffer)}
}

func (m *Memory) push(t memoryTask) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	select {
	case m.tasks <- t:
		return nil
	default:
		return fmt.Errorf("memory queue full (%d jobs)", cap(m.tasks))
	}
}

func (m *Memory) Enqueue(_ context.Context, job UploadJob) (string, error) {
	if err := job.validate(); err != nil {
		return "", err
	}
	if job.ID == "" {
		job.ID = config.NewJobID()
	}
	if err := m.push(memoryTask{job: job}); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (m *Memory) Consume(ctx context.Context, handler Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < m.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-m.tasks:
					if !ok {
						return
					}
					m.run(ctx, handler, t)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (m *Memory) run(ctx context.Context, handler Handler, t memoryTask) {
	err := runHandler(ctx, handler, t.job.ID, t.job)
	if err == nil {
		return
	}
	if caterrs.IsUnretriable(err) || t.retried >= m.opts.MaxRetry || ctx.Err() != nil {
		log.LogError(t.job.ID, "job failed, abandoning", err, "retried", t.retried)
		return
	}
	t.retried++
	log.LogError(t.job.ID, "job failed, retrying", err, "retry", t.retried)
	if err := m.push(t); err != nil {
		log.LogError(t.job.ID, "could not requeue job", err)
	}
}

// runHandler converts a handler panic into an error so a bad job can't take
// a worker down with it.
func runHandler(ctx context.Context, handler Handler, jobID string, job UploadJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.LogNoRequestID("panic in job handler, recovering", "job_id", jobID, "panic", r, "trace", string(debug.Stack()))
			err = caterrs.Unretriable(fmt.Errorf("panic in job handler: %v", r))
		}
	}()
	return handler(ctx, jobID, job)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.tasks)
	}
	return nil
}
