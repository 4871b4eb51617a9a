// Package records persists the two durable outputs of a transcode job: the
// video asset and the job result that marks the job complete.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type Visibility string

const (
	VisibilityPublic   Visibility = "PUBLIC"
	VisibilityUnlisted Visibility = "UNLISTED"
	VisibilityPrivate  Visibility = "PRIVATE"
)

func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate:
		return v, nil
	}
	return "", fmt.Errorf("unknown visibility %q", s)
}

type Asset struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
	// Directory name in the rendition store, and the key used to watch the video
	BaseName   string     `json:"base_name"`
	AuthorID   string     `json:"author_id"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// JobResult exists only for jobs that fully succeeded.
type JobResult struct {
	JobID     string    `json:"job_id"`
	VideoID   string    `json:"video_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AssetUpdate is a partial update, nil fields are left unchanged.
type AssetUpdate struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
}

func (u AssetUpdate) Apply(a Asset, now time.Time) Asset {
	if u.Title != nil {
		a.Title = *u.Title
	}
	if u.Description != nil {
		a.Description = *u.Description
	}
	if u.Visibility != nil {
		a.Visibility = *u.Visibility
	}
	a.UpdatedAt = now
	return a
}

type Store interface {
	// CreateAsset fails with ErrConflict if the id or base name is taken.
	CreateAsset(ctx context.Context, a Asset) error
	GetAsset(ctx context.Context, id string) (Asset, error)
	// GetAssetByKey looks an asset up by its base name.
	GetAssetByKey(ctx context.Context, baseName string) (Asset, error)
	UpdateAsset(ctx context.Context, id string, u AssetUpdate) (Asset, error)
	// DeleteAsset returns the deleted record.
	DeleteAsset(ctx context.Context, id string) (Asset, error)
	// CreateJobResult fails with ErrConflict if the job already has a result.
	CreateJobResult(ctx context.Context, r JobResult) error
	GetJobResult(ctx context.Context, jobID string) (JobResult, error)
	Close() error
}

func validateAsset(a Asset) error {
	if a.ID == "" || a.BaseName == "" {
		return fmt.Errorf("asset needs an id and a base name")
	}
	if _, err := ParseVisibility(string(a.Visibility)); err != nil {
		return err
	}
	return nil
}
