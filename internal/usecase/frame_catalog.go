package usecase

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/infra/filesystem"
)

// FrameCatalog lists and resolves the frames already written for a session.
type FrameCatalog struct {
	layout filesystem.Layout
}

func NewFrameCatalog(layout filesystem.Layout) *FrameCatalog {
	return &FrameCatalog{layout: layout}
}

// List returns the session's frame names in ordinal order, or an empty list
// when nothing was sampled yet.
func (c *FrameCatalog) List(sessionID string) ([]string, error) {
	entries, err := os.ReadDir(c.layout.FramesDir(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read frames dir: %w", err)
	}

	frames := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && c.layout.IsFrameName(e.Name()) {
			frames = append(frames, e.Name())
		}
	}
	sort.Strings(frames)
	return frames, nil
}

// Resolve composes the path of a frame without checking that it exists.
func (c *FrameCatalog) Resolve(sessionID, name string) string {
	return c.layout.FramePath(sessionID, name)
}

// Paths resolves every listed frame of the session.
func (c *FrameCatalog) Paths(sessionID string) ([]string, error) {
	frames, err := c.List(sessionID)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(frames))
	for i, name := range frames {
		paths[i] = c.Resolve(sessionID, name)
	}
	return paths, nil
}

// Open returns the frame file for reading, or a not-found error.
func (c *FrameCatalog) Open(sessionID, name string) (*os.File, fs.FileInfo, error) {
	if !c.layout.IsFrameName(name) {
		return nil, nil, entity.Errorf(entity.KindNotFound, "frame %s not found", name)
	}
	f, err := os.Open(c.Resolve(sessionID, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, entity.Errorf(entity.KindNotFound, "frame %s not found", name)
		}
		return nil, nil, fmt.Errorf("open frame: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat frame: %w", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, entity.Errorf(entity.KindNotFound, "frame %s not found", name)
	}
	return f, info, nil
}
