package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/livepeer/catalyst-vod/config"
	caterrs "github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/metrics"
	"github.com/livepeer/catalyst-vod/queue"
	"github.com/livepeer/catalyst-vod/records"
	"github.com/livepeer/catalyst-vod/storage"
	"github.com/livepeer/catalyst-vod/video"
	"golang.org/x/sync/errgroup"
)

// Stage is a step of the job state machine. A job that fails at any stage is
// abandoned and leaves no records behind.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageProbing    Stage = "probing"
	StagePlanning   Stage = "planning"
	StageEncoding   Stage = "encoding"
	StagePublishing Stage = "publishing"
	StageCompleted  Stage = "completed"
	StageAbandoned  Stage = "abandoned"
)

const (
	taskResize    = "resize"
	taskThumbnail = "thumbnail"
	taskCopy      = "copy"
)

// Worker turns one uploaded source file into a ladder of renditions, a
// thumbnail and the asset and job result records.
type Worker struct {
	Prober  video.Prober
	Encoder video.Encoder
	Storage *storage.Store
	Records records.Store
	// Base of the thumbnail URLs written into assets
	PublicURL       *url.URL
	ThumbnailOffset time.Duration
}

// Handle adapts Process to the queue consumer.
func (w *Worker) Handle(ctx context.Context, jobID string, job queue.UploadJob) error {
	job.ID = jobID
	return w.Process(ctx, job)
}

func (w *Worker) enter(jobID string, stage Stage, keyvals ...interface{}) {
	metrics.Metrics.JobStageCount.WithLabelValues(string(stage)).Inc()
	log.Log(jobID, "job stage", append([]interface{}{"stage", stage}, keyvals...)...)
}

func (w *Worker) Process(ctx context.Context, job queue.UploadJob) (err error) {
	start := time.Now()
	log.AddContext(job.ID, "job_id", job.ID, "user_id", job.UserID)
	ctx = log.WithLogValues(ctx, "request_id", job.ID)
	w.enter(job.ID, StageQueued, "source", job.SourceFilePath)
	defer func() {
		metrics.Metrics.JobDurationSec.WithLabelValues(strconv.FormatBool(err == nil)).Observe(time.Since(start).Seconds())
		if err != nil {
			w.enter(job.ID, StageAbandoned, "err", err.Error())
		}
		log.Forget(job.ID)
	}()

	// at-least-once delivery means a finished job can come round again
	if res, err := w.Records.GetJobResult(ctx, job.ID); err == nil {
		log.Log(job.ID, "job already completed, skipping", "video_id", res.VideoID)
		return nil
	} else if !errors.Is(err, records.ErrNotFound) {
		return fmt.Errorf("error checking job result: %w", err)
	}

	w.enter(job.ID, StageProbing)
	probe, err := w.Prober.Probe(ctx, job.SourceFilePath)
	if err != nil {
		return caterrs.Unretriable(fmt.Errorf("probing source: %w", err))
	}
	source := probe.Result()

	baseName := config.NewBaseName()
	plan := video.PlanLadder(source.Height)
	w.enter(job.ID, StagePlanning, "width", source.Width, "height", source.Height, "duration", source.DurationSeconds, "base_name", baseName, "renditions", strings.Join(plan.Names(), ","))
	dir, err := w.Storage.CreateJobDir(baseName)
	if err != nil {
		return err
	}

	w.enter(job.ID, StageEncoding)
	if err := w.encode(ctx, job, source, plan, dir, baseName); err != nil {
		return err
	}

	w.enter(job.ID, StagePublishing)
	BestEffort(func() error { return os.Remove(job.SourceFilePath) }).Run(ctx, "delete source file")

	now := config.Clock.Now()
	asset := records.Asset{
		ID:           config.NewAssetID(now),
		Title:        job.Title,
		Description:  job.Description,
		ThumbnailURL: ThumbnailURL(w.PublicURL, baseName),
		BaseName:     baseName,
		AuthorID:     job.UserID,
		Visibility:   records.VisibilityPublic,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := w.Records.CreateAsset(ctx, asset); err != nil {
		return fmt.Errorf("error creating asset: %w", err)
	}
	if err := w.Records.CreateJobResult(ctx, records.JobResult{JobID: job.ID, VideoID: asset.ID, CreatedAt: now}); err != nil {
		// a redelivery publishes again under a new baseName, so this asset must not stay visible
		BestEffort(func() error {
			_, err := w.Records.DeleteAsset(ctx, asset.ID)
			return err
		}).Run(ctx, "withdraw asset without job result")
		return fmt.Errorf("error creating job result: %w", err)
	}

	w.enter(job.ID, StageCompleted, "video_id", asset.ID, "base_name", baseName)
	return nil
}

type encodeTask struct {
	kind   string
	output string
	run    func(ctx context.Context) error
}

// encode runs every task of the plan at once and waits for all of them. One
// failing task doesn't cancel the others, outputs that did succeed are left on
// disk, and every failure is reported in the returned error.
func (w *Worker) encode(ctx context.Context, job queue.UploadJob, source video.ProbeResult, plan video.Plan, dir, baseName string) error {
	var tasks []encodeTask
	for _, r := range plan.Renditions(dir) {
		r := r
		if r.Verbatim {
			tasks = append(tasks, encodeTask{kind: taskCopy, output: r.OutputPath, run: func(ctx context.Context) error {
				return w.Encoder.Copy(ctx, job.SourceFilePath, r.OutputPath)
			}})
			continue
		}
		tasks = append(tasks, encodeTask{kind: taskResize, output: r.OutputPath, run: func(ctx context.Context) error {
			return w.Encoder.Resize(ctx, job.SourceFilePath, r.Rung.Size, r.OutputPath)
		}})
	}
	thumbPath, err := w.Storage.ThumbnailPath(baseName)
	if err != nil {
		return err
	}
	offset := w.ThumbnailOffset.Seconds()
	tasks = append(tasks, encodeTask{kind: taskThumbnail, output: thumbPath, run: func(ctx context.Context) error {
		if source.DurationSeconds > 0 && source.DurationSeconds < offset {
			return fmt.Errorf("%w: source is %.2fs long, thumbnail is taken at %.2fs", video.ErrEncodeFailure, source.DurationSeconds, offset)
		}
		return w.Encoder.Thumbnail(ctx, job.SourceFilePath, offset, video.ThumbnailSize, thumbPath)
	}})

	errs := make([]error, len(tasks))
	var group errgroup.Group
	for i, task := range tasks {
		i, task := i, task
		group.Go(func() error {
			start := time.Now()
			_, err := recovered(func() (struct{}, error) {
				return struct{}{}, task.run(ctx)
			})
			metrics.Metrics.EncodeTaskDuration.WithLabelValues(task.kind, strconv.FormatBool(err == nil)).Observe(time.Since(start).Seconds())
			if err != nil {
				log.LogCtxError(ctx, "encode task failed", err, "kind", task.kind, "output", task.output)
				errs[i] = fmt.Errorf("%s %s: %w", task.kind, task.output, err)
				return errs[i]
			}
			log.LogCtx(ctx, "encode task done", "kind", task.kind, "output", task.output, "duration", time.Since(start))
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}

// ThumbnailURL is the public URL the thumbnail of a job is served at.
func ThumbnailURL(publicURL *url.URL, baseName string) string {
	if publicURL == nil {
		publicURL = &url.URL{Path: "/"}
	}
	return publicURL.JoinPath("static", config.VideosSubdir, baseName, config.ThumbnailFilename).String()
}

// BestEffort is a cleanup step whose failure is logged and counted but never
// fails the job.
type BestEffort func() error

func (b BestEffort) Run(ctx context.Context, what string) {
	_, err := recovered(func() (struct{}, error) {
		return struct{}{}, b()
	})
	if err != nil {
		metrics.Metrics.BestEffortFailures.WithLabelValues(what).Inc()
		log.LogCtxError(ctx, "best effort step failed, ignoring", err, "step", what)
	}
}

func recovered[T any](f func() (T, error)) (t T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoRequestID("panic in pipeline goroutine, recovering", "err", rec, "trace", string(debug.Stack()))
			err = fmt.Errorf("panic in pipeline: %v", rec)
		}
	}()
	return f()
}
