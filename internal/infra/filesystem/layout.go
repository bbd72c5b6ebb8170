package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	videosArea = "videos"
	framesArea = "frames"
	cropsArea  = "crops"

	sourceVideoName = "raw.mp4"
	statusFileName  = "status.json"

	FrameExt = ".jpg"

	// OrdinalWidth bounds a session to MaxFrames sampled frames: beyond it the
	// lexical order of frame names would no longer match their ordinal order.
	OrdinalWidth = 5
	MaxFrames    = 99999
)

// Layout composes the per-session paths under a data root.
//
//	<root>/videos/<id>/raw.mp4
//	<root>/frames/<id>/frame_00001.jpg ... status.json
//	<root>/crops/<id>/
type Layout struct {
	Root        string
	FramePrefix string
}

func NewLayout(root, framePrefix string) Layout {
	if framePrefix == "" {
		framePrefix = "frame_"
	}
	return Layout{Root: root, FramePrefix: framePrefix}
}

func (l Layout) VideoDir(sessionID string) string {
	return filepath.Join(l.Root, videosArea, sessionID)
}

func (l Layout) VideoPath(sessionID string) string {
	return filepath.Join(l.VideoDir(sessionID), sourceVideoName)
}

func (l Layout) FramesDir(sessionID string) string {
	return filepath.Join(l.Root, framesArea, sessionID)
}

func (l Layout) CropsDir(sessionID string) string {
	return filepath.Join(l.Root, cropsArea, sessionID)
}

func (l Layout) StatusPath(sessionID string) string {
	return filepath.Join(l.FramesDir(sessionID), statusFileName)
}

// FrameName returns the file name of the frame with the given 1-based ordinal.
func (l Layout) FrameName(ordinal int) string {
	return fmt.Sprintf("%s%0*d%s", l.FramePrefix, OrdinalWidth, ordinal, FrameExt)
}

func (l Layout) FramePath(sessionID, name string) string {
	return filepath.Join(l.FramesDir(sessionID), name)
}

// IsFrameName reports whether name looks like a sampled frame of this layout.
func (l Layout) IsFrameName(name string) bool {
	return strings.HasPrefix(name, l.FramePrefix) && strings.HasSuffix(name, FrameExt)
}

// EnsureSessionDirs creates the three per-session areas.
func (l Layout) EnsureSessionDirs(sessionID string) error {
	for _, dir := range []string{l.VideoDir(sessionID), l.FramesDir(sessionID), l.CropsDir(sessionID)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session dir %s: %w", dir, err)
		}
	}
	return nil
}
