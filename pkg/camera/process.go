package camera

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"
)

// Process is a running capture process. Once started it emits a continuous
// byte stream on Stdout until it is killed or exits on failure.
type Process interface {
	Pid() int
	Stdout() io.Reader
	// Terminate asks the process to exit (SIGTERM).
	Terminate() error
	// Kill forces the process to exit (SIGKILL).
	Kill() error
	// Wait blocks until the process exited. It is called exactly once.
	Wait() error
}

// Launcher spawns capture processes. Any backend whose processes satisfy
// the Process contract is substitutable.
type Launcher interface {
	Launch(spec CaptureSpec) (Process, error)
}

// CaptureProcess is the supervisor-owned record of one running capture process.
type CaptureProcess struct {
	proc       Process
	gen        uint64
	spec       CaptureSpec
	startedAt  time.Time
	manualStop bool
	// expected is set when the supervisor itself asked the process to exit
	// (manual stop, grace stop, watchdog recycle).
	expected bool

	lastOutput  atomic.Int64
	firstOutput atomic.Bool
	killTimer   *time.Timer
}

func (p *CaptureProcess) touch(now time.Time) {
	p.lastOutput.Store(now.UnixNano())
}

func (p *CaptureProcess) lastOutputAt() time.Time {
	n := p.lastOutput.Load()
	if n == 0 {
		return p.startedAt
	}
	return time.Unix(0, n)
}

// exitCode extracts the exit status from a Wait error; -1 means the
// process did not exit normally (signal, I/O error).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// execProcess is a Process backed by os/exec.
type execProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// startCommand starts name with args, exposing stdout and logging stderr lines.
func startCommand(name string, args ...string) (*execProcess, error) {
	cmd := exec.Command(name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Debug("Capture process output", "command", name, "line", scanner.Text())
		}
	}()

	return &execProcess{cmd: cmd, stdout: stdout}, nil
}

func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Terminate() error  { return p.cmd.Process.Signal(syscall.SIGTERM) }
func (p *execProcess) Kill() error       { return p.cmd.Process.Kill() }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }

// ExecLauncher launches the capture binary found on the host.
type ExecLauncher struct {
	Binary string
}

// NewExecLauncher probes the host for a supported capture binary.
func NewExecLauncher() (*ExecLauncher, error) {
	bin, err := probeCaptureBinary()
	if err != nil {
		return nil, err
	}
	return &ExecLauncher{Binary: bin}, nil
}

// Launch starts the capture binary for spec.
func (l *ExecLauncher) Launch(spec CaptureSpec) (Process, error) {
	args, err := captureArgs(l.Binary, spec)
	if err != nil {
		return nil, err
	}
	p, err := startCommand(l.Binary, args...)
	if err != nil {
		return nil, err
	}
	slog.Info("Started camera streaming process", "command", l.Binary, "pid", p.Pid(), "spec", spec.String())
	return p, nil
}
