package camera

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// outboxSlots bounds the number of queued chunks independently of bytes.
	outboxSlots = 64
	// tcpWriteTimeout is the deadline for a single write to a TCP consumer.
	tcpWriteTimeout = 10 * time.Second
)

// Consumer is a client receiving relayed camera output.
type Consumer interface {
	// Write hands one chunk to the consumer without blocking. It returns
	// ErrHighWater when the chunk was dropped for this consumer and
	// ErrConsumerClosed once the consumer is dead.
	Write(chunk []byte) error
	// Close ends the consumer's transport.
	Close() error
	// Dropped reports how many chunks were dropped for this consumer.
	Dropped() uint64
}

// outbox is the bounded queue between the relay and one sink writer.
type outbox struct {
	queue     chan []byte
	queued    atomic.Int64
	highWater int64
	dropped   atomic.Uint64

	closed    chan struct{}
	closeOnce sync.Once
	dead      atomic.Bool
}

func newOutbox(highWater int64) *outbox {
	return &outbox{
		queue:     make(chan []byte, outboxSlots),
		highWater: highWater,
		closed:    make(chan struct{}),
	}
}

func (o *outbox) offer(chunk []byte) error {
	if o.dead.Load() {
		return ErrConsumerClosed
	}
	if o.queued.Load() >= o.highWater {
		o.dropped.Add(1)
		return ErrHighWater
	}
	n := int64(len(chunk))
	o.queued.Add(n)
	select {
	case o.queue <- chunk:
		return nil
	default:
		o.queued.Add(-n)
		o.dropped.Add(1)
		return ErrHighWater
	}
}

func (o *outbox) close() {
	o.closeOnce.Do(func() {
		o.dead.Store(true)
		close(o.closed)
	})
}

// drain writes queued chunks with write until ctx ends, the outbox is
// closed or write fails. A failed write kills the outbox.
func (o *outbox) drain(ctx context.Context, write func([]byte) error) error {
	for {
		select {
		case <-ctx.Done():
			o.close()
			return ctx.Err()
		case <-o.closed:
			return nil
		case chunk := <-o.queue:
			o.queued.Add(-int64(len(chunk)))
			if err := write(chunk); err != nil {
				o.close()
				return err
			}
		}
	}
}

// MJPEGConsumer writes each relayed frame as one part of a
// multipart/x-mixed-replace response.
type MJPEGConsumer struct {
	box *outbox
	w   io.Writer
	f   http.Flusher
}

// NewMJPEGConsumer wraps an HTTP response. Frames are written to w only
// from Serve, which must run on the handler goroutine.
func NewMJPEGConsumer(w http.ResponseWriter, highWater int64) *MJPEGConsumer {
	f, _ := w.(http.Flusher)
	return &MJPEGConsumer{box: newOutbox(highWater), w: w, f: f}
}

func (c *MJPEGConsumer) Write(frame []byte) error { return c.box.offer(frame) }
func (c *MJPEGConsumer) Close() error            { c.box.close(); return nil }
func (c *MJPEGConsumer) Dropped() uint64         { return c.box.dropped.Load() }

// Serve writes queued frames until ctx ends, the consumer is closed or the
// client goes away.
func (c *MJPEGConsumer) Serve(ctx context.Context) error {
	return c.box.drain(ctx, c.writePart)
}

func (c *MJPEGConsumer) writePart(frame []byte) error {
	if _, err := fmt.Fprintf(c.w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	if _, err := io.WriteString(c.w, "\r\n"); err != nil {
		return err
	}
	if c.f != nil {
		c.f.Flush()
	}
	return nil
}

// TCPConsumer writes the raw relayed byte stream to a TCP connection.
type TCPConsumer struct {
	box  *outbox
	conn net.Conn
}

// NewTCPConsumer wraps an accepted connection.
func NewTCPConsumer(conn net.Conn, highWater int64) *TCPConsumer {
	return &TCPConsumer{box: newOutbox(highWater), conn: conn}
}

func (c *TCPConsumer) Write(chunk []byte) error { return c.box.offer(chunk) }
func (c *TCPConsumer) Dropped() uint64          { return c.box.dropped.Load() }

// Close stops the writer and closes the connection.
func (c *TCPConsumer) Close() error {
	c.box.close()
	return c.conn.Close()
}

// Serve writes queued chunks to the connection until ctx ends, the consumer
// is closed or a write fails.
func (c *TCPConsumer) Serve(ctx context.Context) error {
	return c.box.drain(ctx, func(chunk []byte) error {
		if err := c.conn.SetWriteDeadline(time.Now().Add(tcpWriteTimeout)); err != nil {
			return err
		}
		_, err := c.conn.Write(chunk)
		return err
	})
}
