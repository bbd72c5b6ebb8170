package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/infra/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPipelineExtractsSyntheticVideo(t *testing.T) {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}

	src := filepath.Join(t.TempDir(), "clip.mp4")
	out, err := exec.Command("ffmpeg", "-v", "error", "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=duration=%d:size=96x64:rate=%d", 2, 30),
		"-c:v", "mpeg4",
		"-pix_fmt", "yuv420p",
		src,
	).CombinedOutput()
	require.NoError(t, err, string(out))

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.DataRoot = t.TempDir()
	cfg.TempDir = t.TempDir()
	cfg.FrameWidth, cfg.FrameHeight = 32, 24

	infra, err := Connect(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer infra.Close()
	p := NewPipeline(cfg, infra, zap.NewNop())

	id, err := p.Ingest.CreateSession()
	require.NoError(t, err)

	f, err := os.Open(src)
	require.NoError(t, err)
	defer f.Close()
	_, err = p.Ingest.StoreVideo(context.Background(), f, "clip.mp4", "video/mp4", id)
	require.NoError(t, err)

	res, err := p.Process.Run(context.Background(), entity.ExtractionRequest{SessionID: id, TargetFPS: 5})
	require.NoError(t, err)

	// 60 raw frames, interval round(30/5) = 6.
	assert.Len(t, res.Frames, 10)
	assert.Equal(t, "frame_00001.jpg", res.Frames[0])
	assert.Equal(t, "frame_00010.jpg", res.Frames[9])
	assert.Equal(t, entity.DoneStatus(60, 60), res.Status)

	listed, err := p.Catalog.List(id)
	require.NoError(t, err)
	assert.Equal(t, res.Frames, listed)

	frame, err := os.Open(p.Catalog.Resolve(id, listed[0]))
	require.NoError(t, err)
	defer frame.Close()
	img, err := jpeg.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())
}
