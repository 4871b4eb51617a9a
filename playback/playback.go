// Package playback resolves watch requests to rendition files and streams
// byte ranges out of them.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	caterrs "github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/records"
	"github.com/livepeer/catalyst-vod/storage"
	"github.com/livepeer/catalyst-vod/video"
)

const ContentType = "video/mp4"

var (
	ErrAssetNotFound = errors.New("asset not found")
	// The record exists but its rendition directory doesn't. Still an ErrAssetNotFound.
	ErrAssetStorageMissing = fmt.Errorf("%w: storage missing", ErrAssetNotFound)
	ErrQualityNotFound     = errors.New("quality not found")
)

// Target is an open rendition ready to be streamed. The caller closes it.
type Target struct {
	Asset   records.Asset
	Quality string
	File    *os.File
	Size    int64
}

func (t *Target) Close() error {
	return t.File.Close()
}

type Server struct {
	Records records.Store
	Storage *storage.Store
}

// Resolve runs every check that can reject a watch request. Nothing is
// written to the client before it returns, and visibility is checked before
// the filesystem is touched.
func (s *Server) Resolve(ctx context.Context, key, quality string) (*Target, error) {
	asset, err := s.Records.GetAssetByKey(ctx, key)
	if errors.Is(err, records.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	if asset.Visibility != records.VisibilityPublic {
		return nil, fmt.Errorf("%w: asset %s is %s", caterrs.ErrForbidden, asset.ID, asset.Visibility)
	}

	exists, err := s.Storage.JobDirExists(asset.BaseName)
	if err != nil && !errors.Is(err, storage.ErrInvalidName) {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAssetStorageMissing, asset.BaseName)
	}

	// anything that isn't a ladder rung can't name a rendition, and is never
	// allowed near the filesystem
	if _, ok := video.RungByName(quality); !ok {
		return nil, fmt.Errorf("%w: %q", ErrQualityNotFound, quality)
	}
	path, err := s.Storage.RenditionPath(asset.BaseName, quality)
	if err != nil {
		return nil, err
	}
	f, size, err := storage.OpenFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrQualityNotFound, quality)
	}
	if err != nil {
		return nil, err
	}
	return &Target{Asset: asset, Quality: quality, File: f, Size: size}, nil
}

// Stream copies exactly rng out of r into w through a buffer of bufSize,
// returning how many bytes were written. A slow writer slows the loop down,
// there is no read-ahead. Any error ends the stream, nothing is retried.
func Stream(ctx context.Context, w io.Writer, r io.ReaderAt, rng Range, bufSize int) (int64, error) {
	if bufSize <= 0 {
		bufSize = 32 * 1024
	}
	buf := make([]byte, bufSize)
	var written int64
	remaining := rng.Length()
	offset := rng.Start
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		chunk := buf
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		n, err := r.ReadAt(chunk, offset)
		if n > 0 {
			m, werr := w.Write(chunk[:n])
			written += int64(m)
			if werr != nil {
				return written, fmt.Errorf("error writing stream: %w", werr)
			}
			if m < n {
				return written, fmt.Errorf("error writing stream: %w", io.ErrShortWrite)
			}
			offset += int64(n)
			remaining -= int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) && remaining == 0 {
				break
			}
			// the file shrank underneath us, or the read failed
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return written, fmt.Errorf("error reading rendition: %w", err)
		}
	}
	return written, nil
}
