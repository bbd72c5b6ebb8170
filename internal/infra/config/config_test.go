package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataRoot)
	assert.Equal(t, int64(512*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, 1024*1024, cfg.UploadChunkBytes)
	assert.Equal(t, 50, cfg.CheckpointEvery)
	assert.Equal(t, "frame_", cfg.FramePrefix)
	assert.Equal(t, []string{".mp4"}, cfg.AllowedExtensions)
	assert.Equal(t, []string{"video/mp4", "application/octet-stream"}, cfg.AllowedContentTypes)
	assert.Equal(t, DispatchLocal, cfg.DispatchMode)
	assert.Equal(t, 30*time.Minute, cfg.ExtractionTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATA_ROOT", "/srv/frames")
	t.Setenv("FRAME_WIDTH", "640")
	t.Setenv("FRAME_HEIGHT", "360")
	t.Setenv("ALLOWED_EXTENSIONS", ".mp4,.mov")
	t.Setenv("EXTRACTION_TIMEOUT", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/frames", cfg.DataRoot)
	assert.Equal(t, 640, cfg.FrameWidth)
	assert.Equal(t, 360, cfg.FrameHeight)
	assert.Equal(t, []string{".mp4", ".mov"}, cfg.AllowedExtensions)
	assert.Equal(t, 5*time.Minute, cfg.ExtractionTimeout)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"JPEG_QUALITY":     "0",
		"CHECKPOINT_EVERY": "0",
		"FRAME_WIDTH":      "-1",
		"DISPATCH_MODE":    "cron",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestQueueDispatchRequiresRabbitMQ(t *testing.T) {
	t.Setenv("DISPATCH_MODE", DispatchQueue)
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("RABBITMQ_ENABLED", "true")
	_, err = Load()
	assert.NoError(t, err)
}
