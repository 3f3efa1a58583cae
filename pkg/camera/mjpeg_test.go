package camera

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func jpegOf(body string) []byte {
	return append(append([]byte{0xFF, 0xD8}, body...), 0xFF, 0xD9)
}

func TestFrameSplitter(t *testing.T) {
	var frames [][]byte
	s := newFrameSplitter(func(f []byte) { frames = append(frames, f) })

	one, two := jpegOf("first"), jpegOf("second")
	stream := append([]byte("garbage"), one...)
	stream = append(stream, two...)

	// Feed byte pairs so markers get split across chunks.
	for i := 0; i < len(stream); i += 2 {
		end := i + 2
		if end > len(stream) {
			end = len(stream)
		}
		s.Write(stream[i:end])
	}

	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], one) || !bytes.Equal(frames[1], two) {
		t.Errorf("Unexpected frames %q", frames)
	}
}

func TestFrameSplitterSingleChunk(t *testing.T) {
	var frames [][]byte
	s := newFrameSplitter(func(f []byte) { frames = append(frames, f) })

	chunk := append(jpegOf("a"), jpegOf("b")...)
	chunk = append(chunk, 0xFF, 0xD8, 'c')
	s.Write(chunk)

	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	s.Write([]byte{0xFF, 0xD9})
	if len(frames) != 3 || !bytes.Equal(frames[2], jpegOf("c")) {
		t.Errorf("Expected trailing partial frame to complete, got %q", frames)
	}
}

func TestFrameStore(t *testing.T) {
	var fs frameStore
	now := time.Now()

	if _, err := fs.latest(now); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame on empty store, got %v", err)
	}

	fs.set(jpegOf("x"), now)
	got, err := fs.latest(now.Add(time.Second))
	if err != nil || !bytes.Equal(got, jpegOf("x")) {
		t.Errorf("Expected fresh frame, got %q, %v", got, err)
	}

	if _, err := fs.latest(now.Add(frameStaleAfter + time.Second)); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected stale frame to be rejected, got %v", err)
	}

	fs.clear()
	if _, err := fs.latest(now); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame after clear, got %v", err)
	}
}
