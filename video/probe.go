package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	caterrs "github.com/livepeer/catalyst-vod/errors"
	"gopkg.in/vansante/go-ffprobe.v2"
)

var ErrProbeFailure = errors.New("probe failed")

const (
	CodecTypeVideo = "video"
	CodecTypeAudio = "audio"
)

// StreamInfo is the subset of an ffprobe stream the pipeline relies on.
type StreamInfo struct {
	CodecType string  `json:"codec_type"`
	CodecName string  `json:"codec_name,omitempty"`
	Width     int64   `json:"width,omitempty"`
	Height    int64   `json:"height,omitempty"`
	FPS       float64 `json:"fps,omitempty"`
}

type ProbeData struct {
	Streams  []StreamInfo `json:"streams"`
	Duration float64      `json:"duration"`
	Format   string       `json:"format,omitempty"`
}

// ProbeResult is what the ladder planner and thumbnail step need from a source.
type ProbeResult struct {
	Width           int64
	Height          int64
	DurationSeconds float64
}

// Result reads dimensions from the first video stream. A source with no video
// stream has a zero height, which plans to an empty ladder.
func (p ProbeData) Result() ProbeResult {
	res := ProbeResult{DurationSeconds: p.Duration}
	for _, s := range p.Streams {
		if s.CodecType == CodecTypeVideo {
			res.Width = s.Width
			res.Height = s.Height
			break
		}
	}
	return res
}

type Prober interface {
	Probe(ctx context.Context, path string) (ProbeData, error)
}

type FFProbe struct {
	// Per attempt. Zero means a minute.
	Timeout time.Duration
	// Zero means 3.
	MaxRetries uint64
	Options    []string
}

func (p FFProbe) Probe(ctx context.Context, path string) (ProbeData, error) {
	// ffprobe's error for a missing file is just the exit status, so check up front
	// and don't bother retrying
	if _, err := os.Stat(path); err != nil {
		return ProbeData{}, fmt.Errorf("%w: %s", ErrProbeFailure, err)
	}

	timeout := p.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	retries := p.MaxRetries
	if retries == 0 {
		retries = 3
	}
	opts := p.Options
	if len(opts) == 0 {
		opts = []string{"-loglevel", "error"}
	}

	var data *ffprobe.ProbeData
	operation := func() error {
		probeCtx, probeCancel := context.WithTimeout(ctx, timeout)
		defer probeCancel()
		var err error
		data, err = ffprobe.ProbeURL(probeCtx, path, opts...)
		if ctx.Err() != nil {
			return caterrs.Unretriable(ctx.Err())
		}
		return err
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0 // don't impose a timeout as part of the retries
	if err := backoff.Retry(operation, backoff.WithMaxRetries(backOff, retries)); err != nil {
		return ProbeData{}, fmt.Errorf("%w: error probing %s: %s", ErrProbeFailure, path, err)
	}
	return parseProbeOutput(data)
}

func parseProbeOutput(probeData *ffprobe.ProbeData) (ProbeData, error) {
	if probeData == nil {
		return ProbeData{}, fmt.Errorf("%w: empty probe output", ErrProbeFailure)
	}
	// duration comes from here, so a missing format section is not something we can work with
	if probeData.Format == nil {
		return ProbeData{}, fmt.Errorf("%w: format information missing", ErrProbeFailure)
	}

	pd := ProbeData{
		Duration: probeData.Format.DurationSeconds,
		Format:   probeData.Format.FormatName,
	}
	for _, s := range probeData.Streams {
		if s == nil {
			continue
		}
		info := StreamInfo{
			CodecType: strings.ToLower(s.CodecType),
			CodecName: s.CodecName,
			Width:     int64(s.Width),
			Height:    int64(s.Height),
		}
		if info.CodecType == CodecTypeVideo {
			fps, err := parseFps(s.AvgFrameRate)
			if err != nil || fps == 0 {
				fps, err = parseFps(s.RFrameRate)
			}
			if err != nil {
				return ProbeData{}, fmt.Errorf("%w: error parsing fps: %s", ErrProbeFailure, err)
			}
			info.FPS = fps
			// some containers only report duration on the stream
			if pd.Duration == 0 {
				if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
					pd.Duration = d
				}
			}
		}
		pd.Streams = append(pd.Streams, info)
	}
	return pd, nil
}

func parseFps(framerate string) (float64, error) {
	if framerate == "" {
		return 0, nil
	}
	num, den, found := strings.Cut(framerate, "/")
	if !found {
		fps, err := strconv.ParseFloat(framerate, 64)
		if err != nil {
			return 0, fmt.Errorf("error parsing framerate: %w", err)
		}
		return fps, nil
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("error parsing framerate numerator: %w", err)
	}
	d, err := strconv.Atoi(den)
	if err != nil {
		return 0, fmt.Errorf("error parsing framerate denominator: %w", err)
	}
	if d == 0 {
		// 0/0 is what ffprobe reports for still-image codecs
		if n == 0 {
			return 0, nil
		}
		return 0, errors.New("invalid framerate denominator 0")
	}
	return float64(n) / float64(d), nil
}
