//go:build unix

package service

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSysProcAttr puts the child into a new process group led by itself,
// so signals reach the whole tree it spawns.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// groupAlive probes the group led by pid. The id of a live group is never
// handed out to a new process.
func groupAlive(pgid int) bool {
	return unix.Kill(-pgid, 0) == nil
}

func terminate(p *os.Process) error {
	return signalGroup(p, unix.SIGTERM)
}

func forceKill(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

// signalGroup signals the group whose id equals the pid of its leader. The
// leader's own pid is the fallback when the group is gone already.
func signalGroup(p *os.Process, sig unix.Signal) error {
	err := unix.Kill(-p.Pid, sig)
	if err == nil {
		return nil
	}
	err = p.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
