package port

import (
	"context"
	"image"
)

// StreamInfo is what the decoder knows about a video before decoding it.
// FrameCount and FPS are zero when the container does not report them.
type StreamInfo struct {
	FrameCount int
	FPS        float64
	Width      int
	Height     int
}

// VideoStream yields decoded frames in presentation order.
// Next returns io.EOF after the last frame. The returned image is only valid
// until the following call to Next.
type VideoStream interface {
	Info() StreamInfo
	Next() (image.Image, error)
	Close() error
}

type VideoDecoder interface {
	Open(ctx context.Context, path string) (VideoStream, error)
}

// FrameWriter resizes a frame to the configured resolution and writes it to path.
type FrameWriter interface {
	WriteFrame(path string, frame image.Image) error
}
