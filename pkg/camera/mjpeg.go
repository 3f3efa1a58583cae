package camera

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// JPEG markers
var (
	soi = []byte{0xFF, 0xD8}
	eoi = []byte{0xFF, 0xD9}
)

const (
	// maxFrameSize resets the splitter if no EOI shows up.
	maxFrameSize = 10 * 1024 * 1024
	// frameStaleAfter is how old the latest frame may be for a snapshot.
	frameStaleAfter = 5 * time.Second
)

// frameSplitter extracts complete JPEG images from an MJPEG byte stream
// that arrives in arbitrary chunks.
type frameSplitter struct {
	buf     []byte
	inFrame bool
	// scanned is the offset in buf from which to look for EOI.
	scanned int
	emit    func(frame []byte)
}

func newFrameSplitter(emit func([]byte)) *frameSplitter {
	return &frameSplitter{emit: emit}
}

// Write consumes one chunk of stream output, emitting every frame it completes.
func (s *frameSplitter) Write(chunk []byte) {
	s.buf = append(s.buf, chunk...)

	for {
		if !s.inFrame {
			start := bytes.Index(s.buf, soi)
			if start == -1 {
				// A trailing 0xFF may be the first half of an SOI.
				if n := len(s.buf); n > 0 && s.buf[n-1] == 0xFF {
					s.buf = append(s.buf[:0], 0xFF)
				} else {
					s.buf = s.buf[:0]
				}
				return
			}
			n := copy(s.buf, s.buf[start:])
			s.buf = s.buf[:n]
			s.inFrame = true
			s.scanned = len(soi)
		}

		end := bytes.Index(s.buf[s.scanned:], eoi)
		if end == -1 {
			// Rescan the last byte next time in case EOI is split.
			s.scanned = max(len(s.buf)-1, len(soi))
			break
		}
		end += s.scanned + len(eoi)

		frame := make([]byte, end)
		copy(frame, s.buf[:end])
		s.emit(frame)

		n := copy(s.buf, s.buf[end:])
		s.buf = s.buf[:n]
		s.inFrame = false
	}

	if len(s.buf) > maxFrameSize {
		s.buf = nil
		s.inFrame = false
		slog.Warn("Frame buffer overflow, resetting")
	}
}

// frameStore keeps the most recent complete frame.
type frameStore struct {
	mu    sync.RWMutex
	frame []byte
	at    time.Time
}

func (f *frameStore) set(frame []byte, now time.Time) {
	f.mu.Lock()
	f.frame = frame
	f.at = now
	f.mu.Unlock()
}

func (f *frameStore) clear() {
	f.mu.Lock()
	f.frame = nil
	f.mu.Unlock()
}

// latest returns a copy of the latest frame, or ErrNoFrame when there is
// none or it is stale (e.g. the process died).
func (f *frameStore) latest(now time.Time) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.frame) == 0 {
		return nil, ErrNoFrame
	}
	if age := now.Sub(f.at); age > frameStaleAfter {
		return nil, fmt.Errorf("frame is stale (%s old): %w", age.Round(time.Second), ErrNoFrame)
	}
	dst := make([]byte, len(f.frame))
	copy(dst, f.frame)
	return dst, nil
}
