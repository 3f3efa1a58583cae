package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var patternPids atomic.Int64

func init() {
	patternPids.Store(900000)
}

// TestPatternLauncher emits generated JPEG frames instead of camera output.
// It lets the dashboard run on machines without a camera.
type TestPatternLauncher struct{}

// Launch starts an in-process frame generator for spec. Both codecs
// receive JPEG frames.
func (TestPatternLauncher) Launch(spec CaptureSpec) (Process, error) {
	r, w := io.Pipe()
	p := &patternProcess{
		pid:  int(patternPids.Add(1)),
		r:    r,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.generate(w, spec)
	return p, nil
}

type patternProcess struct {
	pid  int
	r    *io.PipeReader
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

func (p *patternProcess) Pid() int          { return p.pid }
func (p *patternProcess) Stdout() io.Reader { return p.r }
func (p *patternProcess) Terminate() error  { p.once.Do(func() { close(p.stop) }); return nil }
func (p *patternProcess) Kill() error       { return p.Terminate() }
func (p *patternProcess) Wait() error       { <-p.done; return nil }

func (p *patternProcess) generate(w *io.PipeWriter, spec CaptureSpec) {
	defer close(p.done)
	defer w.Close()

	fps := spec.FrameRate
	if fps <= 0 {
		fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			frame, err := placeholderFrame(spec.Width, spec.Height, seq)
			if err != nil {
				w.CloseWithError(err)
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
		}
	}
}

// placeholderFrame renders a gradient whose red channel cycles with seq.
func placeholderFrame(width, height, seq int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	color := byte(seq % 256)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := y*img.Stride + x*4
			img.Pix[offset] = color
			img.Pix[offset+1] = byte((x * 255) / width)
			img.Pix[offset+2] = byte((y * 255) / height)
			img.Pix[offset+3] = 255
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// PatternSnapshotter serves placeholder stills.
type PatternSnapshotter struct{}

func (PatternSnapshotter) Snapshot(_ context.Context, width, height int) ([]byte, error) {
	return placeholderFrame(width, height, int(time.Now().Unix()))
}
