package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/livepeer/catalyst-vod/config"
)

var (
	ErrInvalidRange        = errors.New("invalid range header")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// Range is an inclusive byte range within a file.
type Range struct {
	Start int64
	End   int64
}

func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header for a file of the given size.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// UnsatisfiedContentRange is the Content-Range sent along with a 416.
func UnsatisfiedContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// DefaultRange is served when the request has no Range header: the first
// chunk of the file, capped at config.DefaultChunkBytes.
func DefaultRange(size int64) (Range, error) {
	if size <= 0 {
		return Range{}, ErrRangeNotSatisfiable
	}
	return Range{Start: 0, End: min(size-1, config.DefaultChunkBytes-1)}, nil
}

// ParseRange resolves a "bytes=" Range header against a file size.
//
//	bytes=100-     from 100 to the end of the file
//	bytes=100-199  an end past the file is clamped to the last byte
//	bytes=-500     the last 500 bytes
//	bytes=-0       never satisfiable
//
// Only the first range of a multi-range header is served.
func ParseRange(header string, size int64) (Range, error) {
	if header == "" {
		return DefaultRange(size)
	}
	ranges, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	first, _, _ := strings.Cut(ranges, ",")
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(first), "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)

	if startStr == "" {
		// suffix form, a zero length suffix selects nothing
		n, err := parseOffset(endStr)
		if err != nil {
			return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
		}
		if n == 0 || size <= 0 {
			return Range{}, ErrRangeNotSatisfiable
		}
		return Range{Start: max(size-n, 0), End: size - 1}, nil
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	end := size - 1
	if endStr != "" {
		end, err = parseOffset(endStr)
		if err != nil || end < start {
			return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
		}
	}
	if start >= size {
		return Range{}, ErrRangeNotSatisfiable
	}
	return Range{Start: start, End: min(end, size-1)}, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, ErrInvalidRange
	}
	return strconv.ParseInt(s, 10, 64)
}
