package camera

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// StreamServer relays a pipeline's raw output to TCP clients.
type StreamServer struct {
	Supervisor    *Supervisor
	HighWaterMark int64
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *StreamServer) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *StreamServer) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	c := NewTCPConsumer(conn, s.HighWaterMark)

	token, err := s.Supervisor.Attach(c)
	if err != nil {
		slog.Error("Failed to start stream for TCP client", "remote", remote, "error", err)
		conn.Close()
		return
	}
	slog.Info("TCP stream client connected", "remote", remote, "codec", s.Supervisor.Codec())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Clients never send anything; a read returning means they hung up.
	go func() {
		io.Copy(io.Discard, conn)
		cancel()
	}()

	err = c.Serve(ctx)
	s.Supervisor.Detach(token)
	c.Close()
	slog.Info("TCP stream client disconnected", "remote", remote, "dropped", c.Dropped(), "error", err)
}
