// Package connection persists where dashboard clients can reach this
// device.
package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound is returned when no connection info was stored yet.
var ErrNotFound = errors.New("connection info not found")

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Info is the published connection record.
type Info struct {
	WSURL       string     `json:"wsUrl"`
	TCPURL      string     `json:"tcpUrl"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Status      string     `json:"status"`
}

// Offline is returned to clients when nothing was published yet.
func Offline() Info {
	return Info{Status: StatusOffline}
}

// TCPEndpoint splits TCPURL (tcp://host:port) into host and port.
func (i Info) TCPEndpoint() (string, int, error) {
	u, err := url.Parse(i.TCPURL)
	if err != nil {
		return "", 0, err
	}
	if u.Scheme != "tcp" {
		return "", 0, fmt.Errorf("unexpected scheme %q in %q", u.Scheme, i.TCPURL)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", i.TCPURL, err)
	}
	return host, port, nil
}

// Store reads and writes the connection record.
type Store interface {
	Get(ctx context.Context) (Info, error)
	Save(ctx context.Context, info Info) error
	Close() error
}
