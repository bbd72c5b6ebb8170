package imaging

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"golang.org/x/image/draw"
)

// JPEGWriter scales frames to a fixed resolution and encodes them as JPEG.
// It is safe for concurrent use.
type JPEGWriter struct {
	width   int
	height  int
	quality int
}

func NewJPEGWriter(width, height, quality int) *JPEGWriter {
	return &JPEGWriter{width: width, height: height, quality: quality}
}

func (w *JPEGWriter) WriteFrame(path string, frame image.Image) error {
	dst := image.NewRGBA(image.Rect(0, 0, w.width, w.height))
	draw.BiLinear.Scale(dst, dst.Bounds(), frame, frame.Bounds(), draw.Src, nil)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := jpeg.Encode(bw, dst, &jpeg.Options{Quality: w.quality}); err != nil {
		f.Close()
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush frame: %w", err)
	}
	return f.Close()
}
