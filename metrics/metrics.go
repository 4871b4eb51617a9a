package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Encode tasks take far longer than requests
var encodeBuckets = []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800}

type VODMetrics struct {
	UploadRequestCount *prometheus.CounterVec
	UploadBytes        prometheus.Counter
	UploadsInFlight    prometheus.Gauge

	JobStageCount      *prometheus.CounterVec
	JobDurationSec     *prometheus.SummaryVec
	EncodeTaskDuration *prometheus.HistogramVec
	BestEffortFailures *prometheus.CounterVec

	StreamBytes         *prometheus.CounterVec
	StreamRejectedCount *prometheus.CounterVec

	HTTPRequestDurationSec *prometheus.HistogramVec
}

func NewMetrics() *VODMetrics {
	m := &VODMetrics{
		// upload request metrics
		UploadRequestCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vod_upload_request_count",
			Help: "The total number of upload requests, by outcome",
		}, []string{"status_code"}),
		UploadBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vod_upload_bytes_total",
			Help: "Bytes of source video accepted by the upload endpoint",
		}),
		UploadsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vod_uploads_in_flight",
			Help: "Uploads currently being received",
		}),

		// worker metrics
		JobStageCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vod_job_stage_count",
			Help: "The number of transcode jobs that entered each stage",
		}, []string{"stage"}),
		JobDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "vod_job_duration_seconds",
			Help: "The time transcode jobs take from being claimed to finishing, broken up by success",
		}, []string{"success"}),
		EncodeTaskDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vod_encode_task_duration_seconds",
			Help:    "Time taken by a single encode task, by kind (resize, thumbnail, copy)",
			Buckets: encodeBuckets,
		}, []string{"kind", "success"}),
		BestEffortFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vod_best_effort_failure_count",
			Help: "Cleanup steps (e.g. deleting a published raw upload) that failed and were ignored",
		}, []string{"step"}),

		// playback metrics
		StreamBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vod_stream_bytes_total",
			Help: "Bytes written to watch responses, by quality",
		}, []string{"quality"}),
		StreamRejectedCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vod_stream_rejected_count",
			Help: "Watch requests rejected before streaming, by error code",
		}, []string{"code"}),

		HTTPRequestDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vod_http_request_duration_seconds",
			Help:    "Latency of HTTP requests, by route and status code",
			Buckets: defaultBuckets,
		}, []string{"route", "method", "status_code"}),
	}

	return m
}

var Metrics = NewMetrics()
