// Package stdio implements the child-process transport variant (§4.2): it
// spawns the configured agent binary, wires its stdin/stdout as the byte
// stream, captures stderr into a bounded ring buffer for diagnostics, and
// owns the child's lifecycle (grace-period SIGTERM, then SIGKILL, always
// reaped).
package stdio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/copilot-cli/acp-sdk-go/internal/errfmt"
	"github.com/copilot-cli/acp-sdk-go/internal/ring"
	"github.com/copilot-cli/acp-sdk-go/transport"
)

// defaultStderrRing is the default capacity of the stderr diagnostic ring
// buffer (§4.2 "bounded ring buffer (drop oldest)").
const defaultStderrRing = 64 * 1024

// envBinaryOverride is the environment variable respected for the ACP
// agent's executable path (§6 "CLI/env surface").
const envBinaryOverride = "COPILOT_CLI_PATH"

// defaultArgs are the flags passed to the agent binary when the caller
// doesn't override them (§6).
var defaultArgs = []string{"--acp", "--no-auto-update"}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithBinary overrides the agent executable. If unset, Transport resolves
// COPILOT_CLI_PATH, falling back to "copilot" on PATH.
func WithBinary(path string) Option {
	return func(t *Transport) {
		if path != "" {
			t.binary = path
		}
	}
}

// WithArgs overrides the arguments passed to the binary. Defaults to
// []string{"--acp", "--no-auto-update"}.
func WithArgs(args ...string) Option {
	return func(t *Transport) { t.args = args }
}

// WithDir sets the child process's working directory.
func WithDir(dir string) Option {
	return func(t *Transport) { t.dir = dir }
}

// WithGracePeriod sets how long Close waits after SIGTERM before SIGKILL
// (§5 "Resource discipline"). Default 5s.
func WithGracePeriod(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.gracePeriod = d
		}
	}
}

// WithStderrRingSize sets the stderr diagnostic ring buffer capacity in
// bytes. Default 64KiB.
func WithStderrRingSize(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.stderrRingSize = n
		}
	}
}

// WithLogger sets the structured logger used for stderr diagnostics and
// process-exit logging (ambient stack — see SPEC_FULL.md).
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// Transport is the child-process (stdio) implementation of transport.Transport.
type Transport struct {
	binary         string
	args           []string
	dir            string
	gracePeriod    time.Duration
	stderrRingSize int
	logger         *slog.Logger

	cmd   *exec.Cmd
	stdin io.WriteCloser

	stderr      *ring.Buffer
	stderrLimit *rate.Limiter // caps how often a crash-looping agent's stderr triggers log writes

	pr *io.PipeReader
	pw *io.PipeWriter

	lastExitCode atomic.Int32
	exitKnown    atomic.Bool

	onErrorMu sync.Mutex
	onError   func(error)
	onCloseMu sync.Mutex
	onClose   func(error)

	onProcessExitMu sync.Mutex
	onProcessExit   func(code int)

	closeOnce sync.Once
	started   atomic.Bool
}

// New constructs a stdio Transport. The binary is resolved at Start time so
// configuration errors surface from Start, not from New (mirrors the
// teacher's Validate/resolveBinary split).
func New(opts ...Option) *Transport {
	t := &Transport{
		binary:         os.Getenv(envBinaryOverride),
		args:           defaultArgs,
		gracePeriod:    5 * time.Second,
		stderrRingSize: defaultStderrRing,
		logger:         slog.Default(),
	}
	if t.binary == "" {
		t.binary = "copilot"
	}
	for _, opt := range opts {
		opt(t)
	}
	t.stderr = ring.New(t.stderrRingSize)
	t.stderrLimit = rate.NewLimiter(rate.Every(time.Second), 5)
	return t
}

// OnProcessExit registers a callback invoked exactly once with the child's
// final exit code, once it has been reaped (§4.2 "notifies via
// onProcessExit when the child terminates").
func (t *Transport) OnProcessExit(f func(code int)) {
	t.onProcessExitMu.Lock()
	t.onProcessExit = f
	t.onProcessExitMu.Unlock()
}

// Stderr returns a snapshot of the captured stderr ring, for diagnostics.
func (t *Transport) Stderr() string { return t.stderr.String() }

// LastExitCode returns the child's exit code and whether it has exited yet.
func (t *Transport) LastExitCode() (code int, known bool) {
	return int(t.lastExitCode.Load()), t.exitKnown.Load()
}

// Start resolves the binary, spawns it, and wires stdin/stdout/stderr.
func (t *Transport) Start(ctx context.Context) error {
	resolved, err := exec.LookPath(t.binary)
	if err != nil {
		return &transport.ErrStartFailed{Reason: "binary not found: " + t.binary, Err: err}
	}

	cmd := exec.CommandContext(context.WithoutCancel(ctx), resolved, t.args...)
	if t.dir != "" {
		cmd.Dir = t.dir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &transport.ErrStartFailed{Reason: "stdin pipe", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &transport.ErrStartFailed{Reason: "stdout pipe", Err: err}
	}
	cmd.Stderr = t.stderrWriter()

	if err := cmd.Start(); err != nil {
		return &transport.ErrStartFailed{Reason: "spawn", Err: err}
	}

	t.cmd = cmd
	t.stdin = stdin
	t.pr, t.pw = io.Pipe()
	t.started.Store(true)

	go t.pumpStdout(stdout)
	go t.waitAndReap()

	return nil
}

// stderrWriter returns an io.Writer that tees the child's stderr into the
// diagnostic ring, rate-limiting how often it logs a warning so a
// crash-looping agent cannot flood the log sink (§4.2, SPEC_FULL.md DOMAIN STACK).
func (t *Transport) stderrWriter() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		_, _ = t.stderr.Write(p)
		if t.stderrLimit.Allow() {
			preview := errfmt.Truncate(strings.TrimSpace(string(bytes.TrimRight(p, "\n"))))
			t.logger.Warn("stdio transport: agent stderr", "preview", preview)
		}
		return len(p), nil
	})
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// pumpStdout copies the child's stdout into the internal pipe exposed via
// Receive, so callers see a plain io.Reader regardless of transport kind.
func (t *Transport) pumpStdout(stdout io.Reader) {
	_, err := io.Copy(t.pw, stdout)
	if err != nil && !errors.Is(err, io.ErrClosedPipe) {
		t.reportError(fmt.Errorf("stdio transport: read stdout: %w", err))
	}
	_ = t.pw.CloseWithError(io.EOF)
}

// waitAndReap waits for the child to exit, always reaping it (§5 "Always
// reap"), then records the exit code and fires callbacks.
func (t *Transport) waitAndReap() {
	err := t.cmd.Wait()
	code := exitCodeOf(err)
	t.lastExitCode.Store(int32(code))
	t.exitKnown.Store(true)

	t.onProcessExitMu.Lock()
	cb := t.onProcessExit
	t.onProcessExitMu.Unlock()
	if cb != nil {
		cb(code)
	}

	t.fireClose(closeErrFor(code, err))
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func closeErrFor(code int, waitErr error) error {
	if code == 0 {
		return nil
	}
	if waitErr != nil {
		return fmt.Errorf("stdio transport: process exited: %w", waitErr)
	}
	return fmt.Errorf("stdio transport: process exited with code %d", code)
}

// Send writes b to the child's stdin. Writes are already ordered: exec's
// stdin pipe is a single io.Writer, so concurrent callers serialize on its
// internal lock like any io.Writer — but the connection layer's write lane
// is the actual ordering guarantee (§5).
func (t *Transport) Send(b []byte) error {
	if !t.started.Load() {
		return transport.ErrNotStarted
	}
	_, err := t.stdin.Write(b)
	return err
}

// Receive returns the reader fed by the child's stdout.
func (t *Transport) Receive() io.Reader {
	return t.pr
}

// Close sends SIGTERM, waits up to the grace period, then SIGKILL (§5).
// Idempotent; always reaps via waitAndReap.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if t.stdin != nil {
			_ = t.stdin.Close()
		}
		if t.cmd == nil || t.cmd.Process == nil {
			return
		}
		_ = signalProcess(t.cmd.Process, syscall.SIGTERM)
		done := make(chan struct{})
		go func() {
			for !t.exitKnown.Load() {
				time.Sleep(10 * time.Millisecond)
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(t.gracePeriod):
			_ = signalProcess(t.cmd.Process, os.Kill)
			<-done
		}
	})
	return nil
}

func signalProcess(p *os.Process, sig os.Signal) error {
	err := p.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (t *Transport) OnError(f func(error)) {
	t.onErrorMu.Lock()
	t.onError = f
	t.onErrorMu.Unlock()
}

func (t *Transport) OnClose(f func(error)) {
	t.onCloseMu.Lock()
	t.onClose = f
	t.onCloseMu.Unlock()
}

func (t *Transport) reportError(err error) {
	t.onErrorMu.Lock()
	cb := t.onError
	t.onErrorMu.Unlock()
	if cb != nil {
		cb(err)
	} else {
		t.logger.Error("stdio transport error", "error", err)
	}
}

func (t *Transport) fireClose(err error) {
	t.onCloseMu.Lock()
	cb := t.onClose
	t.onCloseMu.Unlock()
	if cb != nil {
		cb(err)
	}
}

var _ transport.Transport = (*Transport)(nil)
