// Package queue hands upload jobs from the API to the transcode workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const TaskProcessVideo = "video:process"

var ErrClosed = errors.New("queue closed")

// UploadJob is the immutable payload of one transcode job.
type UploadJob struct {
	// Assigned on enqueue, doubles as the queue task id
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	SourceFilePath string `json:"source_file_path"`
	Title          string `json:"title"`
	Description    string `json:"description"`
}

func (j UploadJob) validate() error {
	if j.SourceFilePath == "" {
		return errors.New("upload job has no source file")
	}
	if j.UserID == "" {
		return errors.New("upload job has no user")
	}
	return nil
}

type Handler func(ctx context.Context, jobID string, job UploadJob) error

type Queue interface {
	// Enqueue makes the job durable (as far as the backend allows) and returns its id.
	Enqueue(ctx context.Context, job UploadJob) (string, error)
	// Consume runs handler over claimed jobs until ctx is cancelled.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

type Options struct {
	Concurrency int
	MaxRetry    int
}

// Open picks a backend from the URL scheme: memory:// or redis://host:port/db.
func Open(u *url.URL, opts Options) (Queue, error) {
	scheme := ""
	if u != nil {
		scheme = strings.ToLower(u.Scheme)
	}
	switch scheme {
	case "", "memory":
		return NewMemory(opts), nil
	case "redis", "rediss":
		return NewAsynq(u.String(), opts)
	}
	return nil, fmt.Errorf("unsupported queue url scheme %q", scheme)
}
