// Package frames stores captured page images for a run.
//
// Frames are PNG files named page_0001.png, page_0002.png, ... in a single
// directory. Indices are contiguous and start at 1; the store only ever
// appends a frame or drops the newest one.
package frames

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/kodiwosan/pdf-converter/internal/home"
)

var (
	// ErrGap is returned when a write would leave a hole in the sequence.
	ErrGap = errors.New("frame index is not the next in sequence")

	// ErrNotLast is returned when removing any frame other than the newest.
	ErrNotLast = errors.New("only the last frame can be removed")

	// ErrNotContiguous is returned when the directory holds a broken sequence.
	ErrNotContiguous = errors.New("frame sequence has gaps")
)

var frameNamePattern = regexp.MustCompile(`^page_(\d{4,})\.png$`)

// Frame is one stored page image.
type Frame struct {
	Index int    `json:"index" yaml:"index"`
	Path  string `json:"path" yaml:"path"`
}

// Store manages the frames directory of one run. It assumes it is the only
// writer of that directory while it is in use.
type Store struct {
	dir   string
	count int // -1 until the directory has been listed
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frames directory: %w", err)
	}
	return &Store{dir: dir, count: -1}, nil
}

// Open returns a store for an existing frames directory.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("frames directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("frames path is not a directory: %s", dir)
	}
	return &Store{dir: dir, count: -1}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns where frame n lives, whether or not it exists yet.
func (s *Store) Path(n int) string {
	return filepath.Join(s.dir, home.FrameName(n))
}

// Write saves img as frame n. n must be exactly one past the current count.
func (s *Store) Write(n int, img image.Image) (Frame, error) {
	count, err := s.Count()
	if err != nil {
		return Frame{}, err
	}
	if n != count+1 {
		return Frame{}, fmt.Errorf("%w: have %d frames, got index %d", ErrGap, count, n)
	}

	path := s.Path(n)
	if err := imaging.Save(img, path); err != nil {
		return Frame{}, fmt.Errorf("failed to save frame %d: %w", n, err)
	}
	s.count = n
	return Frame{Index: n, Path: path}, nil
}

// Remove deletes frame n, which must be the newest frame.
func (s *Store) Remove(n int) error {
	count, err := s.Count()
	if err != nil {
		return err
	}
	if count == 0 || n != count {
		return fmt.Errorf("%w: have %d frames, got index %d", ErrNotLast, count, n)
	}
	if err := os.Remove(s.Path(n)); err != nil {
		return fmt.Errorf("failed to remove frame %d: %w", n, err)
	}
	s.count = n - 1
	return nil
}

// RemoveLast deletes the newest frame.
func (s *Store) RemoveLast() error {
	count, err := s.Count()
	if err != nil {
		return err
	}
	return s.Remove(count)
}

// Count returns the number of stored frames.
func (s *Store) Count() (int, error) {
	if s.count >= 0 {
		return s.count, nil
	}
	if _, err := s.List(); err != nil {
		return 0, err
	}
	return s.count, nil
}

// List returns the frames ordered by index. Files that do not follow the
// frame naming scheme are ignored.
func (s *Store) List() ([]Frame, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory: %w", err)
	}

	var out []Frame
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := frameNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, Frame{Index: n, Path: filepath.Join(s.dir, e.Name())})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	for i, f := range out {
		if f.Index != i+1 {
			return nil, fmt.Errorf("%w: expected page %d, found %d", ErrNotContiguous, i+1, f.Index)
		}
	}
	s.count = len(out)
	return out, nil
}
