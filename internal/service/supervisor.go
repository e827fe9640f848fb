package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maisonguida/chatbot/internal/model"
)

// releaseTimeout bounds the wait on output relays during shutdown. A relay
// outlives its process only if a descendant escaped the process group and
// still holds the pipe.
const releaseTimeout = 5 * time.Second

var (
	ErrShuttingDown   = errors.New("supervisor is shutting down")
	ErrAlreadyRunning = errors.New("service already running")
)

type Supervisor struct {
	specs     []model.ServiceSpec
	env       Environ
	intervals model.Intervals
	lineFunc  LineFunc

	mx      sync.Mutex
	running []*RunningService // live services in spawn order
	spawned []*RunningService // every service ever started
	closing bool

	shutdownOnce sync.Once
}

func NewSupervisor(specs []model.ServiceSpec, env Environ, intervals model.Intervals) *Supervisor {
	return &Supervisor{
		specs:     slices.Clone(specs),
		env:       env,
		intervals: intervals,
		lineFunc:  LogLine,
	}
}

// WithLineFunc replaces the function receiving output lines of children.
// This method exists for unit testing only.
func (s *Supervisor) WithLineFunc(f LineFunc) *Supervisor {
	s.lineFunc = f
	return s
}

// Do starts the enabled services and supervises them until ctx is
// cancelled or all of them have exited. Services are started in order,
// every service after the first one is delayed by the start delay. The
// running services are then polled each poll interval.
//
// Shutdown sends a termination signal to every live service, waits up to
// the grace period and kills what is still alive. It runs exactly once on
// any return path.
//
// Returns nil when the supervision ended by a signal or because all
// services exited, or the error of a service which could not be started.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a supervisor", "services", len(s.specs))
	defer s.shutdown(ctx)

	if err := s.startAll(ctx); err != nil {
		slog.ErrorContext(ctx, "starting services failed", "error", err)
		return err
	}
	if ctx.Err() != nil {
		slog.InfoContext(ctx, "received termination signal")
		return nil
	}
	s.announce(ctx)

	ticker := time.NewTicker(s.intervals.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "received termination signal")
			return nil
		case <-ticker.C:
			if s.reap(ctx) == 0 {
				slog.ErrorContext(ctx, "all processes have exited")
				return nil
			}
		}
	}
}

// Results returns the results of every started service in spawn order.
func (s *Supervisor) Results() []Result {
	s.mx.Lock()
	defer s.mx.Unlock()
	ret := make([]Result, 0, len(s.spawned))
	for _, r := range s.spawned {
		ret = append(ret, r.Result())
	}
	return ret
}

// Running returns the number of tracked services.
func (s *Supervisor) Running() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.running)
}

func (s *Supervisor) startAll(ctx context.Context) error {
	first := true
	for _, spec := range s.specs {
		if !spec.Enabled {
			continue
		}
		if !first && s.intervals.StartDelay > 0 {
			t := time.NewTimer(s.intervals.StartDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := s.spawn(ctx, spec); err != nil {
			return fmt.Errorf("starting %s: %w", spec.Name, err)
		}
		first = false
	}
	return nil
}

func (s *Supervisor) spawn(ctx context.Context, spec model.ServiceSpec) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.closing {
		return ErrShuttingDown
	}
	for _, r := range s.running {
		if r.Name() == spec.Name {
			return ErrAlreadyRunning
		}
	}

	slog.InfoContext(ctx, "starting service", "service", spec.Name, "path", spec.Path, "args", spec.Args, "dir", spec.Dir)
	rs, err := Start(ctx, spec, s.env, s.lineFunc)
	if err != nil {
		return err
	}
	s.running = append(s.running, rs)
	s.spawned = append(s.spawned, rs)
	slog.InfoContext(ctx, "service started", "service", spec.Name, "pid", rs.PID())
	return nil
}

func (s *Supervisor) announce(ctx context.Context) {
	s.mx.Lock()
	names := make(map[string]struct{}, len(s.running))
	for _, r := range s.running {
		names[r.Name()] = struct{}{}
	}
	s.mx.Unlock()

	for _, spec := range s.specs {
		if _, ok := names[spec.Name]; !ok || spec.URL == "" {
			continue
		}
		slog.InfoContext(ctx, spec.Name+" available at: "+spec.URL, "service", spec.Name, "url", spec.URL)
	}
	slog.InfoContext(ctx, "Press Ctrl+C to stop all services")
}

// reap drops exited services and returns the number of live ones.
func (s *Supervisor) reap(ctx context.Context) int {
	s.mx.Lock()
	defer s.mx.Unlock()
	alive := s.running[:0]
	for _, r := range s.running {
		if !r.Exited() {
			alive = append(alive, r)
			continue
		}
		res := r.Result()
		slog.ErrorContext(ctx, "process exited", "service", r.Name(), "pid", res.PID, "exit_code", res.ExitCode())
	}
	clear(s.running[len(alive):])
	s.running = alive
	return len(alive)
}

func (s *Supervisor) shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		slog.InfoContext(ctx, "shutting down all services")

		// reaped leaders stay in scope, their descendants may still run
		s.mx.Lock()
		s.closing = true
		spawned := slices.Clone(s.spawned)
		s.running = nil
		s.mx.Unlock()

		for _, r := range spawned {
			ok, err := r.Terminate()
			if err != nil {
				slog.WarnContext(ctx, "terminating process", "service", r.Name(), "pid", r.PID(), "error", err)
			} else if ok {
				slog.DebugContext(ctx, "sent termination signal", "service", r.Name(), "pid", r.PID())
			}
		}

		waitExited(spawned, s.intervals.GracePeriod, s.intervals.PollInterval)

		for _, r := range spawned {
			ok, err := r.Kill()
			if err != nil {
				slog.WarnContext(ctx, "killing process", "service", r.Name(), "pid", r.PID(), "error", err)
			} else if ok {
				slog.WarnContext(ctx, "process did not exit in time: killed", "service", r.Name(), "pid", r.PID())
			}
		}

		release(ctx, spawned)
		slog.InfoContext(ctx, "all services shut down")
	})
}

// waitExited returns once every service and its process group are gone or
// grace elapsed. Leaders are awaited directly, groups are polled.
func waitExited(services []*RunningService, grace, poll time.Duration) {
	t := time.NewTimer(grace)
	defer t.Stop()
	for _, r := range services {
		select {
		case <-r.Done():
		case <-t.C:
			return
		}
	}

	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for slices.ContainsFunc(services, (*RunningService).Alive) {
		select {
		case <-ticker.C:
		case <-t.C:
			return
		}
	}
}

// release waits until every process has been reaped and its output
// relayed.
func release(ctx context.Context, services []*RunningService) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range services {
		g.Go(func() error {
			for _, ch := range []<-chan struct{}{r.Done(), r.Relayed()} {
				select {
				case <-ch:
				case <-gctx.Done():
					return fmt.Errorf("releasing %s: %w", r.Name(), gctx.Err())
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.WarnContext(ctx, "service resources not released", "error", err)
	}
}
