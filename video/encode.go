package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var ErrEncodeFailure = errors.New("encode failed")

// Encoder produces the files of one job. Every method overwrites output.
type Encoder interface {
	Resize(ctx context.Context, input string, size Size, output string) error
	Thumbnail(ctx context.Context, input string, offsetSeconds float64, size Size, output string) error
	Copy(ctx context.Context, input, output string) error
}

type FFmpeg struct {
	// Defaults to "ffmpeg" on the PATH
	Bin    string
	Preset string
	// Where intermediate thumbnail frames go. Defaults to os.TempDir.
	TempDir string
}

const defaultPreset = "fast"

func (f FFmpeg) bin() string {
	if f.Bin == "" {
		return "ffmpeg"
	}
	return f.Bin
}

func resizeArgs(input string, size Size, output, preset string) []string {
	if preset == "" {
		preset = defaultPreset
	}
	return ffmpeg.Input(input).
		Output(output, ffmpeg.KwArgs{
			"c:v":      "libx264",
			"preset":   preset,
			"s":        size.String(),
			"c:a":      "aac",
			"movflags": "+faststart",
		}).
		OverWriteOutput().
		GetArgs()
}

func frameArgs(input string, offsetSeconds float64, output string) []string {
	return ffmpeg.Input(input, ffmpeg.KwArgs{"ss": strconv.FormatFloat(offsetSeconds, 'f', -1, 64)}).
		Output(output, ffmpeg.KwArgs{"frames:v": 1}).
		OverWriteOutput().
		GetArgs()
}

func (f FFmpeg) run(ctx context.Context, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.bin(), args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: ffmpeg %v: %s: %s", ErrEncodeFailure, args, err, lastLine(stderr.Bytes()))
	}
	return nil
}

func (f FFmpeg) Resize(ctx context.Context, input string, size Size, output string) error {
	if err := f.run(ctx, resizeArgs(input, size, output, f.Preset)); err != nil {
		return err
	}
	return checkOutput(output)
}

// Thumbnail grabs a single frame at the offset and fits it inside size as a JPEG.
func (f FFmpeg) Thumbnail(ctx context.Context, input string, offsetSeconds float64, size Size, output string) error {
	frame, err := os.CreateTemp(f.TempDir, "frame-*.png")
	if err != nil {
		return fmt.Errorf("%w: creating frame file: %s", ErrEncodeFailure, err)
	}
	framePath := frame.Name()
	frame.Close()
	defer os.Remove(framePath)

	if err := f.run(ctx, frameArgs(input, offsetSeconds, framePath)); err != nil {
		return err
	}
	// ffmpeg exits 0 when seeking past the end, it just writes nothing
	if fi, err := os.Stat(framePath); err != nil || fi.Size() == 0 {
		return fmt.Errorf("%w: no frame at %.2fs in %s", ErrEncodeFailure, offsetSeconds, input)
	}
	return fitThumbnail(framePath, size, output)
}

func (f FFmpeg) Copy(ctx context.Context, input, output string) error {
	return CopyFile(ctx, input, output)
}

// CopyFile writes a byte-identical copy of input to output via a temp file in
// the same directory, so readers never see a partial rendition.
func CopyFile(ctx context.Context, input, output string) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrEncodeFailure, err)
	}
	src, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEncodeFailure, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+"-*")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEncodeFailure, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = io.Copy(tmp, src); err != nil {
		return fmt.Errorf("%w: copying %s: %s", ErrEncodeFailure, input, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s", ErrEncodeFailure, err)
	}
	if err = os.Rename(tmp.Name(), output); err != nil {
		return fmt.Errorf("%w: %s", ErrEncodeFailure, err)
	}
	return nil
}

func checkOutput(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: output missing: %s", ErrEncodeFailure, err)
	}
	return nil
}

func lastLine(b []byte) string {
	b = bytes.TrimSpace(b)
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	return string(b)
}
