package usecase

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogListUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	frames, err := NewFrameCatalog(env.layout).List("does-not-exist")
	require.NoError(t, err)
	assert.NotNil(t, frames)
	assert.Empty(t, frames)
}

func TestCatalogListSortedAndFiltered(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, false)
	dir := env.layout.FramesDir(id)

	for _, name := range []string{"frame_00003.jpg", "frame_00001.jpg", "frame_00002.jpg", "notes.txt", "frame_00004.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame_00009.jpg"), 0o755))

	catalog := NewFrameCatalog(env.layout)
	first, err := catalog.List(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"frame_00001.jpg", "frame_00002.jpg", "frame_00003.jpg"}, first)

	second, err := catalog.List(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	paths, err := catalog.Paths(id)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "frame_00001.jpg"), paths[0])
}

func TestCatalogResolve(t *testing.T) {
	env := newTestEnv(t)
	catalog := NewFrameCatalog(env.layout)
	assert.Equal(t,
		filepath.Join(env.layout.Root, "frames", "abc", "frame_00007.jpg"),
		catalog.Resolve("abc", "frame_00007.jpg"),
	)
}

func TestCatalogOpen(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, false)
	dir := env.layout.FramesDir(id)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_00001.jpg"), []byte("jpeg-bytes"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame_00002.jpg"), 0o755))

	catalog := NewFrameCatalog(env.layout)

	f, info, err := catalog.Open(id, "frame_00001.jpg")
	require.NoError(t, err)
	defer f.Close()
	assert.EqualValues(t, len("jpeg-bytes"), info.Size())
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	_, _, err = catalog.Open(id, "frame_00099.jpg")
	assert.True(t, errors.Is(err, entity.ErrNotFound))

	_, _, err = catalog.Open(id, "frame_00002.jpg")
	assert.True(t, errors.Is(err, entity.ErrNotFound))

	_, _, err = catalog.Open(id, "status.json")
	assert.True(t, errors.Is(err, entity.ErrNotFound), "only frames are served")
}
