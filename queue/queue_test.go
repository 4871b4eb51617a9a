package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	caterrs "github.com/livepeer/catalyst-vod/errors"
	"github.com/stretchr/testify/require"
)

var testJob = UploadJob{UserID: "user-1", SourceFilePath: "/uploads/incoming/abc.mp4", Title: "t", Description: "d"}

func TestEnqueueValidates(t *testing.T) {
	q := NewMemory(Options{})
	_, err := q.Enqueue(context.Background(), UploadJob{UserID: "u"})
	require.Error(t, err)
	_, err = q.Enqueue(context.Background(), UploadJob{SourceFilePath: "/x"})
	require.Error(t, err)
}

func TestMemoryQueueRunsEveryJobOnce(t *testing.T) {
	q := NewMemory(Options{Concurrency: 4})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[string]UploadJob{}
	var wg sync.WaitGroup
	wg.Add(10)
	go func() {
		_ = q.Consume(ctx, func(ctx context.Context, jobID string, job UploadJob) error {
			mu.Lock()
			seen[jobID] = job
			mu.Unlock()
			wg.Done()
			return nil
		})
	}()

	var ids []string
	for i := 0; i < 10; i++ {
		id, err := q.Enqueue(ctx, testJob)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 10)
	for _, id := range ids {
		require.Equal(t, id, seen[id].ID)
		require.Equal(t, testJob.SourceFilePath, seen[id].SourceFilePath)
	}
}

func TestMemoryQueueRetries(t *testing.T) {
	for _, tc := range []struct {
		name      string
		maxRetry  int
		err       error
		wantCalls int32
	}{
		{name: "no retries by default", maxRetry: 0, err: errors.New("boom"), wantCalls: 1},
		{name: "retried", maxRetry: 2, err: errors.New("boom"), wantCalls: 3},
		{name: "unretriable", maxRetry: 2, err: caterrs.Unretriable(errors.New("bad input")), wantCalls: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			q := NewMemory(Options{Concurrency: 1, MaxRetry: tc.maxRetry})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			var calls atomic.Int32
			go func() {
				_ = q.Consume(ctx, func(context.Context, string, UploadJob) error {
					calls.Add(1)
					return tc.err
				})
			}()
			_, err := q.Enqueue(ctx, testJob)
			require.NoError(t, err)
			require.Eventually(t, func() bool { return calls.Load() == tc.wantCalls }, time.Second, 5*time.Millisecond)
			time.Sleep(50 * time.Millisecond)
			require.Equal(t, tc.wantCalls, calls.Load())
		})
	}
}

func TestMemoryQueueSurvivesPanics(t *testing.T) {
	q := NewMemory(Options{Concurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan string, 2)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, jobID string, job UploadJob) error {
			if job.Title == "panic" {
				panic("oh no")
			}
			done <- jobID
			return nil
		})
	}()
	bad := testJob
	bad.Title = "panic"
	_, err := q.Enqueue(ctx, bad)
	require.NoError(t, err)
	id, err := q.Enqueue(ctx, testJob)
	require.NoError(t, err)
	select {
	case got := <-done:
		require.Equal(t, id, got)
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemory(Options{})
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	_, err := q.Enqueue(context.Background(), testJob)
	require.ErrorIs(t, err, ErrClosed)
	// consume returns once the channel is drained
	require.NoError(t, q.Consume(context.Background(), func(context.Context, string, UploadJob) error { return nil }))
}

func TestTaskHandler(t *testing.T) {
	payload, err := json.Marshal(UploadJob{ID: "job-1", UserID: "u", SourceFilePath: "/x"})
	require.NoError(t, err)

	var got UploadJob
	h := taskHandler(func(_ context.Context, jobID string, job UploadJob) error {
		require.Equal(t, "job-1", jobID)
		got = job
		return nil
	}, 0)
	require.NoError(t, h(context.Background(), asynq.NewTask(TaskProcessVideo, payload)))
	require.Equal(t, "/x", got.SourceFilePath)

	transient := func(context.Context, string, UploadJob) error { return errors.New("transient") }
	err = taskHandler(transient, 2)(context.Background(), asynq.NewTask(TaskProcessVideo, payload))
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))

	// without a failure budget the first failure is final, the remaining
	// retries are only for redelivering crashed runs
	err = taskHandler(transient, 0)(context.Background(), asynq.NewTask(TaskProcessVideo, payload))
	require.ErrorIs(t, err, asynq.SkipRetry)

	h = taskHandler(func(context.Context, string, UploadJob) error { return caterrs.Unretriable(errors.New("bad source")) }, 2)
	err = h(context.Background(), asynq.NewTask(TaskProcessVideo, payload))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h(context.Background(), asynq.NewTask(TaskProcessVideo, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAsynqEnqueue(t *testing.T) {
	mr := miniredis.RunT(t)
	q, err := NewAsynq("redis://"+mr.Addr(), Options{Concurrency: 2})
	require.NoError(t, err)
	defer q.Close()

	id, err := q.Enqueue(context.Background(), testJob)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()
	info, err := inspector.GetTaskInfo(asynqQueueName, id)
	require.NoError(t, err)
	require.Equal(t, asynqRedeliveries, info.MaxRetry)

	dup := testJob
	dup.ID = id
	_, err = q.Enqueue(context.Background(), dup)
	require.ErrorIs(t, err, asynq.ErrTaskIDConflict)
}

func TestOpen(t *testing.T) {
	q, err := Open(&url.URL{Scheme: "memory"}, Options{})
	require.NoError(t, err)
	require.IsType(t, &Memory{}, q)

	q, err = Open(&url.URL{Scheme: "redis", Host: "localhost:6379"}, Options{})
	require.NoError(t, err)
	require.IsType(t, &Asynq{}, q)
	require.NoError(t, q.Close())

	_, err = Open(&url.URL{Scheme: "amqp"}, Options{})
	require.Error(t, err)
}
