package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const readChunkSize = 32 * 1024

// State is the lifecycle state of a pipeline's capture process.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStoppingGrace
	StateRestarting
)

var stateNames = [...]string{"stopped", "starting", "running", "stopping-grace", "restarting"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is a point-in-time view of a pipeline.
type Status struct {
	Codec     Codec      `json:"codec"`
	State     State      `json:"state"`
	Active    bool       `json:"active"`
	PID       int        `json:"pid,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	Consumers int        `json:"consumers"`
	Dropped   uint64     `json:"dropped"`
	Restarts  int        `json:"restarts"`
	LastError string     `json:"lastError,omitempty"`
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithStatusHook registers fn to be called on every state change. fn runs
// on the supervisor goroutine and must not block.
func WithStatusHook(fn func(Status)) Option {
	return func(s *Supervisor) { s.onStatus = fn }
}

// WithDevice makes the supervisor claim d for the lifetime of each capture
// process. Pipelines sharing d never run at the same time.
func WithDevice(d *Device) Option {
	return func(s *Supervisor) { s.device = d }
}

type timerKind int

const (
	timerGrace timerKind = iota
	timerStartup
	timerRestart
)

type timer struct {
	t    *time.Timer
	kind timerKind
}

func (t *timer) stop() {
	if t != nil {
		t.t.Stop()
	}
}

// Supervisor events, all handled on the run goroutine.
type (
	evConsumers struct{ reply chan error }
	evStart     struct{ reply chan error }
	evStop      struct{ reply chan struct{} }
	evClose     struct{}
	evOutput    struct{ proc *CaptureProcess }
	evExited    struct {
		proc *CaptureProcess
		err  error
	}
	evTimer struct{ t *timer }
)

// Supervisor owns the capture process of one codec pipeline. It starts the
// process when the first consumer attaches, stops it after a grace period
// without consumers, restarts it after crashes and recycles it when the
// watchdog finds it too old or silent.
type Supervisor struct {
	cfg      Config
	spec     CaptureSpec
	launcher Launcher
	registry *Registry
	relay    *Relay
	frames   frameStore
	onStatus func(Status)
	device   *Device
	log      *slog.Logger

	events    chan any
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	status Status

	// Owned by the run goroutine.
	state        State
	proc         *CaptureProcess
	gen          uint64
	explicit     bool
	pendingStop  bool
	graceTimer   *timer
	startupTimer *timer
	restartTimer *timer
	bo           *backoff.ExponentialBackOff
	failures     int
	restartCount int
	lastCount    int
	lastErr      error
}

// NewSupervisor creates a supervisor for codec and starts its event loop.
func NewSupervisor(codec Codec, launcher Launcher, cfg Config, opts ...Option) *Supervisor {
	cfg = cfg.WithDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.RestartDelay
	bo.MaxInterval = cfg.MaxRestartDelay
	bo.RandomizationFactor = cfg.RestartJitter
	bo.Multiplier = 2
	bo.Reset()

	s := &Supervisor{
		cfg:      cfg,
		spec:     cfg.Spec(codec),
		launcher: launcher,
		log:      slog.Default().With("codec", string(codec)),
		events:   make(chan any, 64),
		done:     make(chan struct{}),
		bo:       bo,
	}
	s.registry = NewRegistry(func(int) { s.post(evConsumers{}) })
	s.relay = NewRelay(s.registry, codec)
	s.status = Status{Codec: codec, State: StateStopped}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s
}

// Codec returns the pipeline's codec.
func (s *Supervisor) Codec() Codec { return s.spec.Codec }

// Attach registers c and makes sure the capture process is running. When
// the process cannot be spawned c is deregistered and the error returned.
func (s *Supervisor) Attach(c Consumer) (Token, error) {
	t, _ := s.registry.insert(c)
	reply := make(chan error, 1)
	if !s.post(evConsumers{reply: reply}) {
		s.registry.delete(t)
		return 0, ErrSupervisorClosed
	}
	select {
	case err := <-reply:
		if err != nil {
			s.registry.delete(t)
			s.post(evConsumers{})
			return 0, err
		}
		return t, nil
	case <-s.done:
		s.registry.delete(t)
		return 0, ErrSupervisorClosed
	}
}

// Detach deregisters the consumer behind t. It is idempotent.
func (s *Supervisor) Detach(t Token) {
	s.registry.Remove(t)
}

// Start explicitly starts the capture process. It keeps running without
// consumers until Stop is called.
func (s *Supervisor) Start() error {
	reply := make(chan error, 1)
	if !s.post(evStart{reply: reply}) {
		return ErrSupervisorClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrSupervisorClosed
	}
}

// Stop stops the capture process without grace period and without
// automatic restart, closing attached consumers. A stop issued while the
// process is starting is carried out once it is running.
func (s *Supervisor) Stop() {
	reply := make(chan struct{})
	if !s.post(evStop{reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-s.done:
	}
}

// Close stops the process and ends the event loop.
func (s *Supervisor) Close() {
	s.closeOnce.Do(func() {
		s.post(evClose{})
	})
	<-s.done
}

// Status returns the current pipeline status.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()
	st.Consumers = s.registry.Count()
	st.Dropped = s.registry.Dropped()
	return st
}

// LatestFrame returns the most recent JPEG of an MJPEG pipeline.
func (s *Supervisor) LatestFrame() ([]byte, error) {
	if s.spec.Codec != CodecMJPEG {
		return nil, ErrNoFrame
	}
	return s.frames.latest(time.Now())
}

func (s *Supervisor) post(ev any) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Supervisor) after(d time.Duration, kind timerKind) *timer {
	t := &timer{kind: kind}
	t.t = time.AfterFunc(d, func() { s.post(evTimer{t: t}) })
	return t
}

func (s *Supervisor) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.events:
			if !s.handle(ev) {
				return
			}
		case <-ticker.C:
			s.watchdog()
		}
	}
}

func (s *Supervisor) handle(ev any) bool {
	switch ev := ev.(type) {
	case evConsumers:
		err := s.evaluate(ev.reply != nil)
		if ev.reply != nil {
			ev.reply <- err
		}
	case evStart:
		ev.reply <- s.startExplicit()
	case evStop:
		s.stopManual()
		close(ev.reply)
	case evOutput:
		if ev.proc == s.proc && s.state == StateStarting {
			s.becomeRunning()
		}
	case evExited:
		s.onExit(ev.proc, ev.err)
	case evTimer:
		s.onTimer(ev.t)
	case evClose:
		s.explicit = false
		s.pendingStop = false
		s.stopNow()
		return false
	}
	return true
}

// evaluate reacts to a consumer count change. attach is set when a new
// consumer asked for the stream; only that, or a count rising from zero,
// starts a stopped process. Consumers closed by a stop detach one by one
// and must not bring the process back.
func (s *Supervisor) evaluate(attach bool) error {
	n := s.registry.Count()
	prev := s.lastCount
	if d := n - prev; d != 0 {
		consumersGauge.Add(context.Background(), int64(d), metric.WithAttributes(attribute.String("codec", string(s.spec.Codec))))
		s.lastCount = n
	}

	switch s.state {
	case StateStopped:
		if n > 0 && (attach || prev == 0) {
			return s.spawn()
		}
	case StateRunning:
		if n == 0 && !s.explicit {
			s.log.Info("No consumers left, scheduling camera stop", "grace", s.cfg.GracePeriod)
			s.graceTimer = s.after(s.cfg.GracePeriod, timerGrace)
			s.setState(StateStoppingGrace)
		}
	case StateStoppingGrace:
		if n > 0 {
			s.graceTimer.stop()
			s.graceTimer = nil
			s.log.Info("Consumer reattached, cancelling camera stop")
			s.setState(StateRunning)
		}
	}
	return nil
}

func (s *Supervisor) startExplicit() error {
	s.explicit = true
	s.pendingStop = false

	switch s.state {
	case StateStopped:
		return s.spawn()
	case StateStoppingGrace:
		s.graceTimer.stop()
		s.graceTimer = nil
		s.setState(StateRunning)
	}
	return nil
}

func (s *Supervisor) spawn() error {
	l, err := s.device.acquire(string(s.spec.Codec))
	if err != nil {
		s.lastErr = err
		s.log.Warn("Camera device busy, not starting", "error", err)
		s.setState(StateStopped)
		return fmt.Errorf("start %s capture: %w", s.spec.Codec, err)
	}
	proc, err := s.launcher.Launch(s.spec)
	if err != nil {
		l.release()
		s.lastErr = err
		s.log.Error("Failed to start camera process", "error", err)
		s.setState(StateStopped)
		return fmt.Errorf("start %s capture: %w", s.spec.Codec, err)
	}

	s.gen++
	cp := &CaptureProcess{
		proc:      proc,
		gen:       s.gen,
		spec:      s.spec,
		startedAt: time.Now(),
	}
	s.proc = cp
	s.lastErr = nil
	processStarts.Add(context.Background(), 1, metric.WithAttributes(attribute.String("codec", string(s.spec.Codec))))

	go s.pump(cp)
	go func() {
		err := cp.proc.Wait()
		l.release()
		s.post(evExited{proc: cp, err: err})
	}()

	s.startupTimer = s.after(s.cfg.StartupTimeout, timerStartup)
	s.setState(StateStarting)
	return nil
}

// pump reads process output and hands it to the relay.
func (s *Supervisor) pump(cp *CaptureProcess) {
	var split *frameSplitter
	if s.spec.Codec == CodecMJPEG {
		split = newFrameSplitter(func(frame []byte) {
			s.frames.set(frame, time.Now())
			s.relay.OnChunk(frame)
		})
	}

	r := cp.proc.Stdout()
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			cp.touch(time.Now())
			if cp.firstOutput.CompareAndSwap(false, true) {
				s.post(evOutput{proc: cp})
			}
			if split != nil {
				split.Write(buf[:n])
			} else {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				s.relay.OnChunk(chunk)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.log.Debug("Stream read error", "pid", cp.proc.Pid(), "error", err)
			}
			return
		}
	}
}

func (s *Supervisor) becomeRunning() {
	s.startupTimer.stop()
	s.startupTimer = nil
	s.setState(StateRunning)

	if s.pendingStop {
		s.pendingStop = false
		s.stopManual()
		return
	}
	s.evaluate(false)
}

// terminate asks cp to exit and kills it after KillTimeout. It signals a
// process at most once.
func (s *Supervisor) terminate(cp *CaptureProcess) {
	if cp.expected {
		return
	}
	cp.expected = true
	if err := cp.proc.Terminate(); err != nil {
		s.log.Debug("Failed to signal camera process", "pid", cp.proc.Pid(), "error", err)
	}
	proc := cp.proc
	cp.killTimer = time.AfterFunc(s.cfg.KillTimeout, func() {
		if err := proc.Kill(); err == nil {
			s.log.Warn("Camera process did not exit in time, killed", "pid", proc.Pid())
		}
	})
}

// release terminates the current process and forgets it.
func (s *Supervisor) release() {
	if s.proc == nil {
		return
	}
	s.terminate(s.proc)
	s.proc = nil
	s.frames.clear()
}

func (s *Supervisor) stopManual() {
	s.explicit = false
	switch s.state {
	case StateStopped:
		return
	case StateStarting:
		s.pendingStop = true
		s.log.Info("Camera stop requested while starting, deferring")
		return
	}
	s.stopNow()
}

// stopNow stops from any state, bypassing grace and restart timers.
func (s *Supervisor) stopNow() {
	s.graceTimer.stop()
	s.restartTimer.stop()
	s.startupTimer.stop()
	s.graceTimer, s.restartTimer, s.startupTimer = nil, nil, nil

	if s.proc != nil {
		s.proc.manualStop = true
	}
	wasActive := s.state != StateStopped
	s.release()
	s.closeConsumers()
	if wasActive {
		s.log.Info("Camera stopped")
	}
	s.setState(StateStopped)
}

// closeConsumers ends every attached consumer. Transports detach themselves
// once their writer returns.
func (s *Supervisor) closeConsumers() {
	for _, m := range s.registry.snapshot() {
		if err := m.consumer.Close(); err != nil {
			s.log.Debug("Failed to close consumer", "token", m.token, "error", err)
		}
	}
}

func (s *Supervisor) onTimer(t *timer) {
	switch {
	case t == s.graceTimer:
		s.graceTimer = nil
		if s.state == StateStoppingGrace && s.registry.Count() == 0 {
			s.log.Info("Grace period elapsed, stopping camera")
			s.release()
			s.setState(StateStopped)
		}
	case t == s.startupTimer:
		s.startupTimer = nil
		if s.state == StateStarting {
			s.log.Warn("No camera output within startup timeout, assuming running", "timeout", s.cfg.StartupTimeout)
			s.becomeRunning()
		}
	case t == s.restartTimer:
		s.restartTimer = nil
		s.restartDue()
	}
}

func (s *Supervisor) onExit(cp *CaptureProcess, err error) {
	if cp.killTimer != nil {
		cp.killTimer.Stop()
	}
	code := exitCode(err)

	if cp != s.proc {
		s.log.Debug("Camera process exited", "pid", cp.proc.Pid(), "code", code, "manual", cp.manualStop)
		return
	}
	s.proc = nil
	s.frames.clear()

	if cp.expected {
		// Recycled by the watchdog.
		if s.state == StateRestarting {
			s.scheduleRestart(false)
		}
		return
	}

	s.startupTimer.stop()
	s.startupTimer = nil
	s.lastErr = fmt.Errorf("capture process exited with code %d", code)
	s.log.Warn("Camera process exited unexpectedly", "pid", cp.proc.Pid(), "code", code, "error", err)

	switch {
	case s.pendingStop:
		s.pendingStop = false
		s.closeConsumers()
		s.setState(StateStopped)
	case s.state == StateStoppingGrace:
		s.graceTimer.stop()
		s.graceTimer = nil
		s.setState(StateStopped)
	default:
		rapid := time.Since(cp.startedAt) < s.cfg.StartupTimeout
		restarts.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("codec", string(s.spec.Codec)),
			attribute.String("reason", "crash"),
		))
		s.setState(StateRestarting)
		s.scheduleRestart(rapid)
	}
}

func (s *Supervisor) scheduleRestart(rapid bool) {
	if rapid {
		s.failures++
	} else {
		s.failures = 0
		s.bo.Reset()
	}
	delay := s.bo.NextBackOff()
	s.restartCount++
	s.log.Info("Restarting camera process", "delay", delay, "consecutive_failures", s.failures)
	s.restartTimer = s.after(delay, timerRestart)
	s.publish()
}

func (s *Supervisor) restartDue() {
	if s.state != StateRestarting {
		return
	}
	if s.registry.Count() == 0 && !s.explicit {
		s.log.Info("No consumers left, not restarting camera")
		s.setState(StateStopped)
		return
	}
	if err := s.spawn(); err != nil {
		s.closeConsumers()
	}
}

// watchdog recycles a running process that outlived MaxUptime or stopped
// producing output.
func (s *Supervisor) watchdog() {
	if s.state != StateRunning || s.proc == nil {
		return
	}
	now := time.Now()
	reason := ""
	switch {
	case now.Sub(s.proc.startedAt) > s.cfg.MaxUptime:
		reason = "max_uptime"
	case now.Sub(s.proc.lastOutputAt()) > s.cfg.StaleAfter:
		reason = "stale"
	default:
		return
	}

	s.log.Warn("Watchdog recycling camera process", "pid", s.proc.proc.Pid(), "reason", reason, "uptime", now.Sub(s.proc.startedAt).Round(time.Second))
	restarts.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("codec", string(s.spec.Codec)),
		attribute.String("reason", reason),
	))
	s.terminate(s.proc)
	s.setState(StateRestarting)
}

func (s *Supervisor) setState(st State) {
	changed := s.state != st
	s.state = st
	s.publish()
	if changed && s.onStatus != nil {
		s.onStatus(s.Status())
	}
}

func (s *Supervisor) publish() {
	st := Status{
		Codec:    s.spec.Codec,
		State:    s.state,
		Active:   s.state != StateStopped,
		Restarts: s.restartCount,
	}
	if s.proc != nil {
		st.PID = s.proc.proc.Pid()
		started := s.proc.startedAt
		st.StartedAt = &started
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}
