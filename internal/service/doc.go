// Package service implements supervision of the chatbot child processes.
//
// Overview
// The Supervisor starts an ordered list of services, one child process
// each, and watches them until it is told to stop or until every child has
// exited. Shutdown is escalated: a termination signal first, a kill after
// the grace period.
//
// Start is a thin, opinionated wrapper around os/exec:
//   - starts the process in its own process group
//   - replaces its environment with an Environ
//   - merges stdout and stderr into a single pipe
//   - relays each output line to a LineFunc (extra goroutine)
//   - reaps the process (extra goroutine)
//
// Data flow:
//
//	Supervisor                     RunningService{cmd}
//	    |                                |
//	    | Start(spec) ------------------>| os/exec.Start
//	    |   start delay                  | relay goroutine -> LineFunc
//	    | Start(spec) ------------------>| wait goroutine -> Done()
//	    |                                |
//	    | every poll interval: Exited()? |
//	    | ctx.Done() or none alive       |
//	    | Terminate() / grace / Kill() ->|
//	    | wait for Done() and Relayed()  |
//
// Invariants:
//   - Services start in order, never after shutdown began.
//   - At most one running service per name.
//   - Shutdown runs exactly once, every live service is signalled to
//     terminate before any is killed.
//   - Children never inherit the supervisor environment implicitly, see
//     BuildEnviron.
//
// internal/service/supervisor_test.go is the best source about how to use
// the Supervisor.
package service
