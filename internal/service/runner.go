package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/maisonguida/chatbot/internal/model"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineBuffer     = 1024 * 1024
)

// LineFunc receives every output line of a service, stripped of
// surrounding whitespace.
type LineFunc func(ctx context.Context, name, line string)

// LogLine is the default LineFunc, it logs the line prefixed by the
// service name.
func LogLine(ctx context.Context, name, line string) {
	slog.InfoContext(ctx, "["+name+"] "+line, "service", name)
}

type Result struct {
	Name         string
	Path         string
	Args         []string
	Dir          string
	PID          int
	Started      time.Time
	Stopped      time.Time
	State        *os.ProcessState
	Err          error // wait error other than a non zero exit
	Terminated   bool
	TerminatedAt time.Time
	Killed       bool
	KilledAt     time.Time
}

// ExitCode returns the exit code of a process or -1 when it is still
// running or was stopped by a signal.
func (r Result) ExitCode() int {
	if r.State == nil {
		return -1
	}
	return r.State.ExitCode()
}

// RunningService is a started child process with its output relay.
type RunningService struct {
	name    string
	cmd     *exec.Cmd
	done    chan struct{} // closed once the process was reaped
	relayed chan struct{} // closed once the output reached EOF

	mx     sync.Mutex
	result Result
}

// Start launches spec in its own process group with stdout and stderr
// merged into a single pipe. Each output line is passed to lineFunc from
// a dedicated goroutine. Start does not wait on the process to finish.
func Start(ctx context.Context, spec model.ServiceSpec, env Environ, lineFunc LineFunc) (*RunningService, error) {
	if lineFunc == nil {
		lineFunc = LogLine
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating output pipe: %w", err)
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = env.With(spec.Env).Slice()
	cmd.Stdout = pw
	cmd.Stderr = pw
	setSysProcAttr(cmd)

	started := time.Now().UTC()
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}
	// the child holds its own copy of the write end, EOF arrives when
	// every process sharing it is gone
	_ = pw.Close()

	rs := &RunningService{
		name:    spec.Name,
		cmd:     cmd,
		done:    make(chan struct{}),
		relayed: make(chan struct{}),
		result: Result{
			Name:    spec.Name,
			Path:    spec.Path,
			Args:    append([]string(nil), spec.Args...),
			Dir:     spec.Dir,
			PID:     cmd.Process.Pid,
			Started: started,
		},
	}

	go rs.relay(ctx, pr, lineFunc)
	go rs.wait()
	return rs, nil
}

func (r *RunningService) relay(ctx context.Context, out io.ReadCloser, lineFunc LineFunc) {
	defer close(r.relayed)
	defer out.Close()

	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, initialLineBuffer), maxLineBuffer)
	for scanner.Scan() {
		lineFunc(ctx, r.name, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		slog.ErrorContext(ctx, "relaying output", "service", r.name, "error", err)
		// keep the pipe drained, a full pipe blocks the child
		_, _ = io.Copy(io.Discard, out)
	}
}

func (r *RunningService) wait() {
	err := r.cmd.Wait()
	stopped := time.Now().UTC()

	var exitErr *exec.ExitError
	r.mx.Lock()
	r.result.Stopped = stopped
	r.result.State = r.cmd.ProcessState
	if err != nil && !errors.As(err, &exitErr) {
		r.result.Err = err
	}
	r.mx.Unlock()
	close(r.done)
}

func (r *RunningService) Name() string { return r.name }
func (r *RunningService) PID() int     { return r.cmd.Process.Pid }

// Done is closed once the process has been reaped.
func (r *RunningService) Done() <-chan struct{} { return r.done }

// Relayed is closed once all output has been relayed.
func (r *RunningService) Relayed() <-chan struct{} { return r.relayed }

// Exited reports without blocking whether the process has terminated.
func (r *RunningService) Exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code, or -1 if the process is still running
// or was stopped by a signal.
func (r *RunningService) ExitCode() int {
	return r.Result().ExitCode()
}

func (r *RunningService) Result() Result {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.result
}

// Alive reports whether the process or a descendant left in its process
// group is still running. After the leader exited the group only counts
// while the output is open, members which already exited may linger as
// zombies under an init that does not reap them.
func (r *RunningService) Alive() bool {
	if !r.Exited() {
		return true
	}
	select {
	case <-r.relayed:
		return false
	default:
		return groupAlive(r.PID())
	}
}

// Terminate asks the process group to exit. It returns false when nothing
// of the group is left.
func (r *RunningService) Terminate() (bool, error) {
	if !r.Alive() {
		return false, nil
	}
	r.mx.Lock()
	r.result.Terminated = true
	r.result.TerminatedAt = time.Now().UTC()
	r.mx.Unlock()
	return true, terminate(r.cmd.Process)
}

// Kill forcibly stops the process group. It returns false when nothing of
// the group is left.
func (r *RunningService) Kill() (bool, error) {
	if !r.Alive() {
		return false, nil
	}
	r.mx.Lock()
	r.result.Killed = true
	r.result.KilledAt = time.Now().UTC()
	r.mx.Unlock()
	return true, forceKill(r.cmd.Process)
}
