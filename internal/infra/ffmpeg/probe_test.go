package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbe(t *testing.T) {
	out := []byte(`{"streams":[{"width":1920,"height":1080,"nb_frames":"300","avg_frame_rate":"30/1","r_frame_rate":"30/1"}]}`)

	info, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, 300, info.FrameCount)
	assert.Equal(t, 30.0, info.FPS)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
}

func TestParseProbeUnknownFrameCount(t *testing.T) {
	out := []byte(`{"streams":[{"width":640,"height":480,"nb_frames":"N/A","avg_frame_rate":"0/0","r_frame_rate":"30000/1001"}]}`)

	info, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, 0, info.FrameCount)
	assert.InDelta(t, 29.97, info.FPS, 0.01)
}

func TestParseProbeNoStream(t *testing.T) {
	_, err := parseProbe([]byte(`{"streams":[]}`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`{"streams":[{"width":0,"height":0}]}`))
	assert.Error(t, err)
}

func TestParseRate(t *testing.T) {
	assert.Equal(t, 25.0, parseRate("25/1"))
	assert.Equal(t, 24.0, parseRate("24"))
	assert.Equal(t, 0.0, parseRate("0/0"))
	assert.Equal(t, 0.0, parseRate(""))
	assert.Equal(t, 0.0, parseRate("x/1"))
}
