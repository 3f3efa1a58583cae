package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wachiwi/pi-control/pkg/logger"
)

// Broadcaster samples stats on a schedule while monitoring is enabled and
// hands every sample to publish.
type Broadcaster struct {
	sampler  *Sampler
	interval time.Duration
	publish  func(Stats)

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	running bool
}

// NewBroadcaster creates a stopped broadcaster.
func NewBroadcaster(sampler *Sampler, interval time.Duration, publish func(Stats)) *Broadcaster {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	log := &logger.CronLogger{Logger: slog.Default()}
	return &Broadcaster{
		sampler:  sampler,
		interval: interval,
		publish:  publish,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(log),
			cron.WithChain(cron.SkipIfStillRunning(log)),
		),
	}
}

// Start enables periodic broadcasting. It is a no-op when already running.
func (b *Broadcaster) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}

	id, err := b.cron.AddFunc(fmt.Sprintf("@every %s", b.interval), b.tick)
	if err != nil {
		return fmt.Errorf("failed to schedule stats broadcast: %w", err)
	}
	b.entryID = id
	b.cron.Start()
	b.running = true
	slog.Info("Stats monitoring started", "interval", b.interval)
	return nil
}

// Stop disables periodic broadcasting and waits for a running tick.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.cron.Remove(b.entryID)
	ctx := b.cron.Stop()
	b.running = false
	b.mu.Unlock()

	<-ctx.Done()
	slog.Info("Stats monitoring stopped")
}

// Running reports whether monitoring is enabled.
func (b *Broadcaster) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Sample returns one sample without publishing it.
func (b *Broadcaster) Sample(ctx context.Context) Stats {
	return b.sampler.Sample(ctx)
}

func (b *Broadcaster) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), b.interval)
	defer cancel()
	b.publish(b.sampler.Sample(ctx))
}
