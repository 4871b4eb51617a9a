// Package storage is the on-disk layout for raw uploads and transcoded renditions.
//
//	<videos>/<baseName>/<rung>.mp4
//	<videos>/<baseName>/thumbnail.jpg
//	<incoming>/<uuid><ext>
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/livepeer/catalyst-vod/config"
	"github.com/livepeer/catalyst-vod/video"
)

var ErrInvalidName = errors.New("invalid storage name")

type Store struct {
	VideosDir   string
	IncomingDir string
}

func New(videosDir, incomingDir string) *Store {
	return &Store{VideosDir: videosDir, IncomingDir: incomingDir}
}

// Init creates both roots.
func (s *Store) Init() error {
	for _, d := range []string{s.VideosDir, s.IncomingDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}

// Names end up as single path elements, never anything that could walk out of the root.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (s *Store) JobDir(baseName string) (string, error) {
	if err := checkName(baseName); err != nil {
		return "", err
	}
	return filepath.Join(s.VideosDir, baseName), nil
}

// CreateJobDir creates the directory every file of one job lives under.
func (s *Store) CreateJobDir(baseName string) (string, error) {
	dir, err := s.JobDir(baseName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}
	return dir, nil
}

// JobDirExists reports whether the job directory is present.
func (s *Store) JobDirExists(baseName string) (bool, error) {
	dir, err := s.JobDir(baseName)
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

func (s *Store) RenditionPath(baseName, quality string) (string, error) {
	dir, err := s.JobDir(baseName)
	if err != nil {
		return "", err
	}
	if err := checkName(quality); err != nil {
		return "", err
	}
	return filepath.Join(dir, video.RenditionFilename(quality)), nil
}

func (s *Store) ThumbnailPath(baseName string) (string, error) {
	dir, err := s.JobDir(baseName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.ThumbnailFilename), nil
}

// OpenFile opens a regular file and returns it with its size. fs.ErrNotExist is
// returned for directories as well as for missing files.
func OpenFile(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, 0, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
	}
	return f, fi.Size(), nil
}

// Qualities lists the ladder rungs present for a job, highest first.
func (s *Store) Qualities(baseName string) ([]string, error) {
	dir, err := s.JobDir(baseName)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	present := map[string]bool{}
	for _, e := range entries {
		if e.Type().IsRegular() {
			present[e.Name()] = true
		}
	}
	var out []string
	for _, r := range video.Rungs() {
		if present[video.RenditionFilename(r.Name)] {
			out = append(out, r.Name)
		}
	}
	return out, nil
}

// RemoveJob deletes a job directory and everything in it.
func (s *Store) RemoveJob(baseName string) error {
	dir, err := s.JobDir(baseName)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// SaveIncoming streams an upload to <incoming>/<name><ext>, removing the
// partial file on failure.
func (s *Store) SaveIncoming(r io.Reader, name, ext string) (path string, n int64, err error) {
	if err := checkName(name + ext); err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(s.IncomingDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create incoming directory: %w", err)
	}
	path = filepath.Join(s.IncomingDir, name+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file %s: %w", path, err)
	}
	n, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", n, fmt.Errorf("failed to write to file %s: %w", path, err)
	}
	return path, n, nil
}

// SafeExt keeps a short, plain file extension from a client file name and
// drops anything else.
func SafeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, c := range ext[1:] {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return ""
		}
	}
	return ext
}
