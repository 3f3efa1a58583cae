package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wachiwi/pi-control/pkg/logger"
)

// Announcer publishes this server's own endpoints, keeps lastUpdated fresh
// and marks the record offline on shutdown.
type Announcer struct {
	store    Store
	wsURL    string
	tcpURL   string
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewAnnouncer creates an announcer refreshing the record every interval.
func NewAnnouncer(store Store, wsURL, tcpURL string, interval time.Duration) *Announcer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Announcer{
		store:    store,
		wsURL:    wsURL,
		tcpURL:   tcpURL,
		interval: interval,
		now:      time.Now,
	}
}

// Start publishes the record as online and schedules the heartbeat.
func (a *Announcer) Start(ctx context.Context) error {
	if err := a.publish(ctx, StatusOnline); err != nil {
		return err
	}
	slog.Info("Connection info published", "wsUrl", a.wsURL, "tcpUrl", a.tcpURL)

	log := &logger.CronLogger{Logger: slog.Default()}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.SkipIfStillRunning(log)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", a.interval), a.heartbeat); err != nil {
		return fmt.Errorf("failed to schedule connection heartbeat: %w", err)
	}
	c.Start()

	a.mu.Lock()
	a.cron = c
	a.mu.Unlock()
	return nil
}

// Stop cancels the heartbeat and marks the record offline.
func (a *Announcer) Stop(ctx context.Context) error {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	return a.publish(ctx, StatusOffline)
}

func (a *Announcer) heartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.publish(ctx, StatusOnline); err != nil {
		slog.Warn("Failed to refresh connection info", "error", err)
	}
}

func (a *Announcer) publish(ctx context.Context, status string) error {
	now := a.now().UTC()
	return a.store.Save(ctx, Info{
		WSURL:       a.wsURL,
		TCPURL:      a.tcpURL,
		LastUpdated: &now,
		Status:      status,
	})
}
