package boundary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
)

// RequestEnvVar carries the JSON encoded Request to a child process. Its
// presence is what makes a test binary act as a child.
const RequestEnvVar = "OP_HARNESS_CHILD_REQUEST"

const defaultKillGrace = 10 * time.Second

// SubprocessConfig holds configuration for a subprocess boundary
type SubprocessConfig struct {
	Log    log.Logger
	Binary string
	Args   []string
	Env    []string
	Dir    string
	// Prefix marks event lines on the child's stdout
	Prefix string
	// KillGrace is how long a child may take to exit after being interrupted
	KillGrace time.Duration
}

// Subprocess runs a test binary as a child process that calls ServeChild. The
// child can be killed without affecting the caller.
type Subprocess struct {
	cfg SubprocessConfig
}

var _ Boundary = (*Subprocess)(nil)

func NewSubprocess(cfg SubprocessConfig) (*Subprocess, error) {
	if cfg.Binary == "" {
		return nil, errors.New("test binary is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = events.DefaultLinePrefix
	}
	if cfg.KillGrace == 0 {
		cfg.KillGrace = defaultKillGrace
	}
	return &Subprocess{cfg: cfg}, nil
}

func (s *Subprocess) Run(ctx context.Context, req Request, sink events.Sink) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.cfg.Binary, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(append(os.Environ(), s.cfg.Env...), RequestEnvVar+"="+string(payload))
	cmd.WaitDelay = s.cfg.KillGrace
	prepareCommand(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &BoundaryFault{Boundary: "subprocess", Err: fmt.Errorf("failed to create stdout pipe: %w", err)}
	}
	stderr := &lineLogger{log: s.cfg.Log, stream: "stderr"}
	cmd.Stderr = stderr

	s.cfg.Log.Debug("Starting child", "binary", s.cfg.Binary, "args", s.cfg.Args)
	if err := cmd.Start(); err != nil {
		return &BoundaryFault{Boundary: "subprocess", Err: fmt.Errorf("failed to start %s: %w", s.cfg.Binary, err)}
	}

	t := &tracker{sink: sink}
	decodeErr := events.Decode(stdout, s.cfg.Prefix, t, func(line string) {
		s.cfg.Log.Info("Child output", "line", line)
	})
	if decodeErr != nil {
		// keep draining so the child is not blocked on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()
	stderr.Flush()

	if t.finished && decodeErr == nil {
		if waitErr != nil {
			s.cfg.Log.Debug("Child exited after finishing the run", "err", waitErr)
		}
		return nil
	}

	cause := waitErr
	switch {
	case decodeErr != nil:
		cause = decodeErr
	case ctx.Err() != nil:
		cause = ctx.Err()
	case cause == nil:
		cause = errors.New("child exited without finishing the run")
	}
	fault := types.Fault{Phase: types.PhaseBoundary, Message: cause.Error()}
	if ctx.Err() != nil {
		fault = types.Fault{Phase: types.PhaseRun, Message: runner.AbortMessage}
	}
	if t.run == nil {
		if tail := stderr.Tail(); tail != "" {
			cause = fmt.Errorf("%w: %s", cause, tail)
		}
	}
	t.abandon(fault)
	return &BoundaryFault{Boundary: "subprocess", Err: cause}
}

const maxTailLines = 20

// lineLogger logs every line written to it and keeps the last few
type lineLogger struct {
	log    log.Logger
	stream string
	mu     sync.Mutex
	buf    []byte
	tail   []string
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		l.emit(string(l.buf[:i]))
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}

func (l *lineLogger) emit(line string) {
	l.log.Info("Child output", "stream", l.stream, "line", line)
	l.tail = append(l.tail, line)
	if len(l.tail) > maxTailLines {
		l.tail = l.tail[1:]
	}
}

// Flush logs a trailing partial line
func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) > 0 {
		l.emit(string(l.buf))
		l.buf = nil
	}
}

// Tail returns the last lines written
func (l *lineLogger) Tail() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.tail, "\n")
}
