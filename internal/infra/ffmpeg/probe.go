package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/framelab/frame-extraction-service/internal/domain/port"
)

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbFrames     string `json:"nb_frames"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// probe reads the first video stream's geometry, frame count and frame rate.
func (d *Decoder) probe(ctx context.Context, videoPath string) (port.StreamInfo, error) {
	cmd := exec.CommandContext(ctx, d.ffprobeBin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,nb_frames,avg_frame_rate,r_frame_rate",
		"-of", "json",
		videoPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return port.StreamInfo{}, fmt.Errorf("ffprobe: %w, output: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (port.StreamInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return port.StreamInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return port.StreamInfo{}, fmt.Errorf("no video stream found")
	}

	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return port.StreamInfo{}, fmt.Errorf("invalid video dimensions %dx%d", s.Width, s.Height)
	}

	fps := parseRate(s.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(s.RFrameRate)
	}

	// nb_frames is "N/A" or absent for some containers.
	frames, err := strconv.Atoi(s.NbFrames)
	if err != nil || frames < 0 {
		frames = 0
	}

	return port.StreamInfo{
		FrameCount: frames,
		FPS:        fps,
		Width:      s.Width,
		Height:     s.Height,
	}, nil
}

// parseRate turns an ffprobe rational such as "30000/1001" into frames per second.
func parseRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
