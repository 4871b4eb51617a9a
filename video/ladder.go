package video

import (
	"fmt"
	"path/filepath"
)

// Size is a pixel resolution, formatted the way ffmpeg's -s option expects it.
type Size struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Rung is one fixed target resolution tier in the transcode ladder.
type Rung struct {
	Name        string `json:"name"`
	Size        Size   `json:"size"`
	PixelHeight int64  `json:"pixel_height"`
}

// Highest first. An array rather than a slice so that every caller of Rungs
// gets its own copy and the table can't be mutated at runtime.
var ladder = [...]Rung{
	{Name: "4320p", Size: Size{7680, 4320}, PixelHeight: 4320},
	{Name: "2160p", Size: Size{3840, 2160}, PixelHeight: 2160},
	{Name: "1080p", Size: Size{1920, 1080}, PixelHeight: 1080},
	{Name: "720p", Size: Size{1280, 720}, PixelHeight: 720},
	{Name: "480p", Size: Size{854, 480}, PixelHeight: 480},
	{Name: "360p", Size: Size{640, 360}, PixelHeight: 360},
	{Name: "240p", Size: Size{426, 240}, PixelHeight: 240},
	{Name: "144p", Size: Size{256, 144}, PixelHeight: 144},
}

// ThumbnailSize is the bounding box the job thumbnail is fitted into.
var ThumbnailSize = Size{Width: 1280, Height: 720}

// Rungs returns a copy of the ladder, highest resolution first.
func Rungs() []Rung {
	l := ladder
	return l[:]
}

// RungByName resolves a quality label such as "720p".
func RungByName(name string) (Rung, bool) {
	for _, r := range ladder {
		if r.Name == name {
			return r, true
		}
	}
	return Rung{}, false
}

// RenditionFilename is the file name of a rung's output inside a job directory.
func RenditionFilename(rungName string) string {
	return rungName + ".mp4"
}

// Plan is the set of renditions a source of a given height turns into.
type Plan struct {
	// Every rung strictly smaller than the source. No ordering guarantee.
	Targets []Rung
	// The rung whose height equals the source, if any. Its output is a
	// verbatim copy of the source rather than a re-encode.
	Exact *Rung
}

// PlanLadder computes the renditions for a source of the given pixel height.
// A height that matches no rung exactly (e.g. 1000) gets no verbatim copy:
// only the strictly smaller rungs are produced.
func PlanLadder(height int64) Plan {
	var p Plan
	for _, r := range ladder {
		switch {
		case r.PixelHeight < height:
			p.Targets = append(p.Targets, r)
		case r.PixelHeight == height:
			exact := r
			p.Exact = &exact
		}
	}
	return p
}

// PlannedRendition ties a rung to the path its output will be written to.
type PlannedRendition struct {
	Rung       Rung
	OutputPath string
	// Verbatim renditions are copied from the source instead of encoded
	Verbatim bool
}

// Renditions lays the plan out under dir, targets first then the exact rung.
func (p Plan) Renditions(dir string) []PlannedRendition {
	out := make([]PlannedRendition, 0, len(p.Targets)+1)
	for _, r := range p.Targets {
		out = append(out, PlannedRendition{Rung: r, OutputPath: filepath.Join(dir, RenditionFilename(r.Name))})
	}
	if p.Exact != nil {
		out = append(out, PlannedRendition{Rung: *p.Exact, OutputPath: filepath.Join(dir, RenditionFilename(p.Exact.Name)), Verbatim: true})
	}
	return out
}

// Names lists the rung names a plan produces, including the exact rung.
func (p Plan) Names() []string {
	names := make([]string, 0, len(p.Targets)+1)
	for _, r := range p.Targets {
		names = append(names, r.Name)
	}
	if p.Exact != nil {
		names = append(names, p.Exact.Name)
	}
	return names
}
