package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSampler(env *testEnv, dec *fakeDecoder, w *fakeWriter, cfg SamplerConfig) *FrameSampler {
	return NewFrameSampler(env.layout, env.store, dec, w, cfg, zap.NewNop())
}

func TestSamplingInterval(t *testing.T) {
	tests := []struct {
		source float64
		target int
		want   int
	}{
		{30, 5, 6},
		{25, 10, 2},
		{15, 2, 8},
		{45, 10, 4},
		{30, 4, 8},
		{29.97, 10, 3},
		{10, 30, 1},
		{24, 24, 1},
		{0, 5, 1},
		{-12, 5, 1},
		{math.NaN(), 5, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/%d", tt.source, tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, SamplingInterval(tt.source, tt.target))
		})
	}
}

func TestExtractTenSecondsAtThirtyFPS(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, true)
	dec := &fakeDecoder{info: port.StreamInfo{FrameCount: 300, FPS: 30}, frames: 300}

	frames, err := newTestSampler(env, dec, &fakeWriter{}, SamplerConfig{}).Extract(context.Background(), id, 5)
	require.NoError(t, err)

	require.Len(t, frames, 50)
	assert.Equal(t, "frame_00001.jpg", frames[0])
	assert.Equal(t, "frame_00050.jpg", frames[49])
	assert.Equal(t, frames, env.frameFiles(t, id))

	status, err := env.store.ReadStatus(id)
	require.NoError(t, err)
	assert.Equal(t, entity.DoneStatus(300, 300), status)
}

func TestExtractFrameCountMatchesInterval(t *testing.T) {
	tests := []struct {
		frames int
		fps    float64
		target int
	}{
		{300, 30, 5},
		{301, 30, 5},
		{7, 30, 5},
		{1, 30, 5},
		{100, 25, 10},
		{97, 15, 2},
		{50, 10, 30},
		{0, 30, 5},
		{120, 0, 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d@%v->%d", tt.frames, tt.fps, tt.target), func(t *testing.T) {
			env := newTestEnv(t)
			id := env.newSession(t, true)
			dec := &fakeDecoder{info: port.StreamInfo{FrameCount: tt.frames, FPS: tt.fps}, frames: tt.frames}

			frames, err := newTestSampler(env, dec, &fakeWriter{}, SamplerConfig{}).Extract(context.Background(), id, tt.target)
			require.NoError(t, err)

			interval := SamplingInterval(tt.fps, tt.target)
			want := (tt.frames + interval - 1) / interval
			require.Len(t, frames, want)
			for i, name := range frames {
				assert.Equal(t, fmt.Sprintf("frame_%05d.jpg", i+1), name)
			}
		})
	}
}

func TestExtractCheckpointsAreMonotonic(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, true)
	dec := &fakeDecoder{info: port.StreamInfo{FrameCount: 310, FPS: 30}, frames: 310}

	_, err := newTestSampler(env, dec, &fakeWriter{}, SamplerConfig{CheckpointEvery: 50}).Extract(context.Background(), id, 5)
	require.NoError(t, err)

	records := env.store.written()
	require.Len(t, records, 1+6+1)

	assert.Equal(t, entity.ProcessingStatus(310, 0), records[0])
	for i := 1; i <= 6; i++ {
		assert.Equal(t, entity.ProcessingStatus(310, i*50), records[i])
	}
	assert.Equal(t, entity.DoneStatus(310, 310), records[len(records)-1])

	last := -1
	for _, r := range records {
		assert.GreaterOrEqual(t, r.ProcessedFrames, last)
		last = r.ProcessedFrames
	}
}

func TestExtractRejectsNonPositiveFPS(t *testing.T) {
	for _, fps := range []int{0, -3} {
		env := newTestEnv(t)
		id := env.newSession(t, true)
		dec := &fakeDecoder{info: port.StreamInfo{FrameCount: 30, FPS: 30}, frames: 30}

		frames, err := newTestSampler(env, dec, &fakeWriter{}, SamplerConfig{}).Extract(context.Background(), id, fps)
		require.Error(t, err)
		assert.True(t, errors.Is(err, entity.ErrValidation))
		assert.Nil(t, frames)

		assert.Zero(t, dec.opened)
		assert.Empty(t, env.store.written())
		assert.Empty(t, env.frameFiles(t, id))

		status, err := env.store.ReadStatus(id)
		require.NoError(t, err)
		assert.Equal(t, entity.DefaultStatus(), status)
	}
}

func TestExtractMissingSourceVideo(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, false)
	dec := &fakeDecoder{}

	_, err := newTestSampler(env, dec, &fakeWriter{}, SamplerConfig{}).Extract(context.Background(), id, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrNotFound))
	assert.Zero(t, dec.opened)
	assert.Empty(t, env.store.written())
}

func TestExtractUnopenableVideo(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, true)
	dec := &fakeDecoder{openErr: errors.New("moov atom not found")}

	_, err := newTestSampler(env, dec, &fakeWriter{}, SamplerConfig{}).Extract(context.Background(), id, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrDecode))
	assert.Empty(t, env.store.written())
}

func TestExtractMidRunDecodeFailureKeepsFrames(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, true)
	dec := &fakeDecoder{
		info:    port.StreamInfo{FrameCount: 300, FPS: 30},
		frames:  300,
		failAt:  120,
		failErr: entity.Errorf(entity.KindDecode, "truncated frame"),
	}

	frames, err := newTestSampler(env, dec, &fakeWriter{}, SamplerConfig{}).Extract(context.Background(), id, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrDecode))
	assert.Len(t, frames, 20)
	assert.Len(t, env.frameFiles(t, id), 20)

	status, err := env.store.ReadStatus(id)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusFailed, status.Status)
	assert.Equal(t, 300, status.TotalFrames)
	assert.Equal(t, 120, status.ProcessedFrames)
	assert.Equal(t, entity.KindDecode, status.ErrorKind)
	assert.Equal(t, "truncated frame", status.ErrorMessage)
}

func TestExtractUntypedStreamErrorIsDecode(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, true)
	dec := &fakeDecoder{info: port.StreamInfo{FrameCount: 30, FPS: 30}, frames: 30, failAt: 3}

	_, err := newTestSampler(env, dec, &fakeWriter{}, SamplerConfig{}).Extract(context.Background(), id, 30)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrDecode))
	assert.ErrorIs(t, err, errBrokenFrame)
}

func TestExtractDecoderExitFailure(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, true)
	exitErr := errors.New("exit status 1")
	dec := &fakeDecoder{info: port.StreamInfo{FrameCount: 30, FPS: 30}, frames: 30, closeErr: exitErr}

	frames, extractErr := newTestSampler(env, dec, &fakeWriter{}, SamplerConfig{}).Extract(context.Background(), id, 5)
	require.ErrorIs(t, extractErr, exitErr)
	assert.True(t, errors.Is(extractErr, entity.ErrDecode))
	assert.Len(t, frames, 5)

	status, err := env.store.ReadStatus(id)
	require.NoError(t, err)
	assert.Equal(t, entity.FailedStatus(30, 30, extractErr), status)
}

func TestExtractWriteFailure(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, true)
	dec := &fakeDecoder{info: port.StreamInfo{FrameCount: 30, FPS: 30}, frames: 30}
	diskFull := errors.New("no space left on device")

	_, err := newTestSampler(env, dec, &fakeWriter{err: diskFull}, SamplerConfig{}).Extract(context.Background(), id, 5)
	require.ErrorIs(t, err, diskFull)
	assert.Equal(t, entity.KindInternal, entity.KindOf(err))

	status, err := env.store.ReadStatus(id)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusFailed, status.Status)
	assert.Equal(t, entity.KindInternal, status.ErrorKind)
}

func TestExtractCanceled(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, true)
	dec := &fakeDecoder{info: port.StreamInfo{FrameCount: 300, FPS: 30}, frames: 300}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &fakeWriter{onWrite: func(n int) {
		if n == 3 {
			cancel()
		}
	}}

	frames, err := newTestSampler(env, dec, w, SamplerConfig{}).Extract(ctx, id, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrCanceled))
	assert.Len(t, frames, 3)

	status, err := env.store.ReadStatus(id)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusFailed, status.Status)
	assert.Equal(t, entity.KindCanceled, status.ErrorKind)
}

func TestExtractFrameLimit(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, true)
	dec := &fakeDecoder{info: port.StreamInfo{FrameCount: 10, FPS: 5}, frames: 10}

	frames, err := newTestSampler(env, dec, &fakeWriter{}, SamplerConfig{MaxFrames: 3}).Extract(context.Background(), id, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrSizeLimit))
	assert.Len(t, frames, 3)

	status, err := env.store.ReadStatus(id)
	require.NoError(t, err)
	assert.Equal(t, entity.KindSizeLimit, status.ErrorKind)
}
