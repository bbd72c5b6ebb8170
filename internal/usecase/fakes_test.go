package usecase

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/domain/port"
	"github.com/framelab/frame-extraction-service/internal/infra/filesystem"
	"github.com/stretchr/testify/require"
)

var errBrokenFrame = errors.New("broken frame")

// fakeDecoder yields `frames` tiny frames and optionally fails at frame failAt.
type fakeDecoder struct {
	info     port.StreamInfo
	frames   int
	failAt   int
	failErr  error
	openErr  error
	closeErr error
	opened   int
}

func (d *fakeDecoder) Open(_ context.Context, _ string) (port.VideoStream, error) {
	d.opened++
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &fakeStream{dec: d, img: image.NewRGBA(image.Rect(0, 0, 4, 4))}, nil
}

type fakeStream struct {
	dec    *fakeDecoder
	img    *image.RGBA
	next   int
	closed bool
}

func (s *fakeStream) Info() port.StreamInfo { return s.dec.info }

func (s *fakeStream) Next() (image.Image, error) {
	if s.dec.failAt > 0 && s.next == s.dec.failAt {
		if s.dec.failErr != nil {
			return nil, s.dec.failErr
		}
		return nil, errBrokenFrame
	}
	if s.next >= s.dec.frames {
		return nil, io.EOF
	}
	s.next++
	return s.img, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return s.dec.closeErr
}

// fakeWriter writes a placeholder file per frame.
type fakeWriter struct {
	mu      sync.Mutex
	written []string
	err     error
	onWrite func(n int)
}

func (w *fakeWriter) WriteFrame(path string, _ image.Image) error {
	if w.err != nil {
		return w.err
	}
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		return err
	}
	w.mu.Lock()
	w.written = append(w.written, filepath.Base(path))
	n := len(w.written)
	w.mu.Unlock()
	if w.onWrite != nil {
		w.onWrite(n)
	}
	return nil
}

// recordingStore remembers every status written through it.
type recordingStore struct {
	*filesystem.SessionStore
	mu      sync.Mutex
	records []entity.StatusRecord
}

func (s *recordingStore) WriteStatus(sessionID string, record entity.StatusRecord) error {
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	return s.SessionStore.WriteStatus(sessionID, record)
}

func (s *recordingStore) written() []entity.StatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.StatusRecord(nil), s.records...)
}

type testEnv struct {
	layout filesystem.Layout
	store  *recordingStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	layout := filesystem.NewLayout(t.TempDir(), "frame_")
	return &testEnv{
		layout: layout,
		store:  &recordingStore{SessionStore: filesystem.NewSessionStore(layout)},
	}
}

// newSession creates a session, optionally with a placeholder source video,
// and forgets the initial status write.
func (e *testEnv) newSession(t *testing.T, withVideo bool) string {
	t.Helper()
	id, err := e.store.Create()
	require.NoError(t, err)
	if withVideo {
		require.NoError(t, os.WriteFile(e.layout.VideoPath(id), []byte("video"), 0o644))
	}
	e.store.mu.Lock()
	e.store.records = nil
	e.store.mu.Unlock()
	return id
}

func (e *testEnv) frameFiles(t *testing.T, id string) []string {
	t.Helper()
	entries, err := os.ReadDir(e.layout.FramesDir(id))
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		if e.layout.IsFrameName(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	return names
}

type fakePublisher struct {
	mu       sync.Mutex
	statuses [][]byte
	dlq      []string
}

func (p *fakePublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, msg)
	return nil
}

func (p *fakePublisher) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dlq = append(p.dlq, reason)
	return nil
}

type fakeNotifier struct {
	recipients []string
	sessions   []string
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, recipient, sessionID, _ string) error {
	n.recipients = append(n.recipients, recipient)
	n.sessions = append(n.sessions, sessionID)
	return nil
}

type fakeArchive struct {
	keys  []string
	sizes []int64
	err   error
}

func (a *fakeArchive) UploadArchive(_ context.Context, key string, r io.Reader, size int64) error {
	if a.err != nil {
		return a.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	a.keys = append(a.keys, key)
	a.sizes = append(a.sizes, size)
	return nil
}
