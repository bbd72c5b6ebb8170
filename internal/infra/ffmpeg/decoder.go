package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/domain/port"
	"go.uber.org/zap"
)

// Decoder opens videos by probing them with ffprobe and piping raw RGBA
// frames out of ffmpeg. Only one frame is held in memory at a time.
type Decoder struct {
	ffmpegBin  string
	ffprobeBin string
	logger     *zap.Logger
}

func NewDecoder(ffmpegBin, ffprobeBin string, logger *zap.Logger) *Decoder {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Decoder{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin, logger: logger}
}

// CheckInstallation verifies both binaries are reachable.
func (d *Decoder) CheckInstallation() error {
	for _, bin := range []string{d.ffmpegBin, d.ffprobeBin} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s binary not found: %w", bin, err)
		}
	}
	return nil
}

func (d *Decoder) Open(ctx context.Context, videoPath string) (port.VideoStream, error) {
	info, err := d.probe(ctx, videoPath)
	if err != nil {
		return nil, entity.NewError(entity.KindDecode, "cannot open video", err)
	}

	cmd := exec.CommandContext(ctx, d.ffmpegBin,
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", videoPath,
		"-map", "0:v:0",
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, entity.NewError(entity.KindDecode, "cannot start ffmpeg", err)
	}

	d.logger.Debug("decoder opened",
		zap.String("video", videoPath),
		zap.Int("frame_count", info.FrameCount),
		zap.Float64("fps", info.FPS),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
	)

	return &stream{
		info:   info,
		cmd:    cmd,
		reader: bufio.NewReaderSize(stdout, 1<<20),
		stderr: stderr,
		frame:  image.NewRGBA(image.Rect(0, 0, info.Width, info.Height)),
	}, nil
}

type stream struct {
	info   port.StreamInfo
	cmd    *exec.Cmd
	reader io.Reader
	stderr *bytes.Buffer
	frame  *image.RGBA
	waited bool
	err    error
}

func (s *stream) Info() port.StreamInfo {
	return s.info
}

func (s *stream) Next() (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}

	_, err := io.ReadFull(s.reader, s.frame.Pix)
	switch {
	case err == nil:
		return s.frame, nil
	case errors.Is(err, io.EOF):
		if werr := s.wait(); werr != nil {
			s.err = entity.NewError(entity.KindDecode, "ffmpeg exited with error", werr)
			return nil, s.err
		}
		s.err = io.EOF
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.wait()
		s.err = entity.NewError(entity.KindDecode, "truncated frame", err)
		return nil, s.err
	default:
		s.err = entity.NewError(entity.KindDecode, "read frame", err)
		return nil, s.err
	}
}

func (s *stream) wait() error {
	if s.waited {
		return nil
	}
	s.waited = true
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

// Close stops ffmpeg if it is still producing frames and reaps it. An exit
// caused by the kill is expected; a non-zero exit ffmpeg reached by itself
// is reported.
func (s *stream) Close() error {
	if s.waited {
		return nil
	}
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.waited = true
	err := s.cmd.Wait()
	if state := s.cmd.ProcessState; err != nil && state != nil && state.Exited() && state.ExitCode() != 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}
