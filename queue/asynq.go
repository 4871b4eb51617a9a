package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"github.com/livepeer/catalyst-vod/config"
	caterrs "github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
)

const asynqQueueName = "videos"

// asynqRedeliveries is added to every task's retry budget so a job whose
// worker died mid-run (lease expired) is redelivered rather than archived.
// Handler failures only spend Options.MaxRetry of it.
const asynqRedeliveries = 3

// Asynq is a Redis backed queue with at-least-once delivery. A job is only
// removed once its handler returns nil or it runs out of retries.
type Asynq struct {
	opts     Options
	redisOpt asynq.RedisConnOpt
	client   *asynq.Client
}

func NewAsynq(redisURL string, opts Options) (*Asynq, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing queue url: %w", err)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Asynq{
		opts:     opts,
		redisOpt: redisOpt,
		client:   asynq.NewClient(redisOpt),
	}, nil
}

func (a *Asynq) Enqueue(ctx context.Context, job UploadJob) (string, error) {
	if err := job.validate(); err != nil {
		return "", err
	}
	if job.ID == "" {
		job.ID = config.NewJobID()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	task := asynq.NewTask(TaskProcessVideo, payload)

	operation := func() error {
		_, err := a.client.EnqueueContext(ctx, task,
			asynq.TaskID(job.ID),
			asynq.Queue(asynqQueueName),
			asynq.MaxRetry(a.opts.MaxRetry+asynqRedeliveries),
		)
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return caterrs.Unretriable(err)
		}
		return err
	}
	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 200 * time.Millisecond
	backOff.MaxInterval = time.Second
	backOff.MaxElapsedTime = 0
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(backOff, 3), ctx)); err != nil {
		return "", fmt.Errorf("error enqueueing job %s: %w", job.ID, err)
	}
	return job.ID, nil
}

// taskHandler adapts a Handler to asynq. Jobs that can never succeed, or that
// have already failed maxRetry times, skip the remaining retries.
func taskHandler(handler Handler, maxRetry int) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var job UploadJob
		if err := json.Unmarshal(t.Payload(), &job); err != nil {
			return fmt.Errorf("error decoding job payload: %v: %w", err, asynq.SkipRetry)
		}
		if id, ok := asynq.GetTaskID(ctx); ok {
			job.ID = id
		}
		err := runHandler(ctx, handler, job.ID, job)
		if err == nil {
			return nil
		}
		retried, _ := asynq.GetRetryCount(ctx)
		if caterrs.IsUnretriable(err) || retried >= maxRetry {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
}

func (a *Asynq) Consume(ctx context.Context, handler Handler) error {
	srv := asynq.NewServer(a.redisOpt, asynq.Config{
		Concurrency: a.opts.Concurrency,
		Queues:      map[string]int{asynqQueueName: 1},
		Logger:      asynqLogger{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.LogError(id, "job failed", err, "retried", retried, "max_retry", maxRetry)
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskProcessVideo, taskHandler(handler, a.opts.MaxRetry))
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("error starting queue consumer: %w", err)
	}
	<-ctx.Done()
	srv.Shutdown()
	return nil
}

func (a *Asynq) Close() error {
	return a.client.Close()
}

// asynqLogger routes asynq's own logging through our logfmt logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) {}
func (asynqLogger) Info(args ...interface{}) {
	log.LogNoRequestID(fmt.Sprint(args...), "component", "asynq")
}
func (asynqLogger) Warn(args ...interface{}) {
	log.LogNoRequestID(fmt.Sprint(args...), "component", "asynq", "level", "warn")
}
func (asynqLogger) Error(args ...interface{}) {
	log.LogNoRequestID(fmt.Sprint(args...), "component", "asynq", "level", "error")
}
func (asynqLogger) Fatal(args ...interface{}) {
	log.LogNoRequestID(fmt.Sprint(args...), "component", "asynq", "level", "fatal")
}
