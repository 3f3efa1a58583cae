package camera

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRelayIsolatesSlowConsumer(t *testing.T) {
	r := NewRegistry(nil)
	relay := NewRelay(r, CodecH264)

	fast := &fakeConsumer{}
	r.Add(fast)

	// Nobody reads the other end of the pipe, so the writer blocks.
	server, client := net.Pipe()
	defer client.Close()
	slow := NewTCPConsumer(server, 1000)
	defer slow.Close()
	r.Add(slow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go slow.Serve(ctx)

	chunk := bytes.Repeat([]byte{'x'}, 100)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			relay.OnChunk(chunk)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Relay blocked on a slow consumer")
	}

	if n := fast.received(); n != 50 {
		t.Errorf("Expected fast consumer to get all 50 chunks, got %d", n)
	}
	if slow.Dropped() == 0 {
		t.Error("Expected slow consumer to drop chunks")
	}
	if slow.box.queued.Load() > 1000 {
		t.Errorf("Slow consumer queued %d bytes above its high-water mark", slow.box.queued.Load())
	}
}

func TestRelayRemovesDeadConsumer(t *testing.T) {
	r := NewRegistry(nil)
	relay := NewRelay(r, CodecMJPEG)

	dead := &fakeConsumer{}
	dead.Close()
	r.Add(dead)
	r.Add(&fakeConsumer{})

	relay.OnChunk([]byte("chunk"))
	if r.Count() != 1 {
		t.Errorf("Expected dead consumer to be removed, %d left", r.Count())
	}
}

func TestMJPEGConsumerWritesParts(t *testing.T) {
	frame := jpegOf("payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := NewMJPEGConsumer(w, 1<<20)
		if err := c.Write(frame); err != nil {
			t.Errorf("Write failed: %v", err)
		}
		ctx, cancel := context.WithTimeout(r.Context(), 100*time.Millisecond)
		defer cancel()
		c.Serve(ctx)
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	want := "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 11\r\n\r\n" + string(frame) + "\r\n"
	if !strings.HasPrefix(string(body), want) {
		t.Errorf("Unexpected body %q", body)
	}
}

func TestConsumerWriteAfterClose(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	c := NewTCPConsumer(server, 1<<20)
	c.Close()

	if err := c.Write([]byte("x")); err != ErrConsumerClosed {
		t.Errorf("Expected ErrConsumerClosed, got %v", err)
	}
}
