//go:build windows

package service

import (
	"errors"
	"os"
	"os/exec"
)

// setSysProcAttr is a no-op, there is no Setpgid on Windows.
func setSysProcAttr(*exec.Cmd) {}

// groupAlive is always false, a process has no group here.
func groupAlive(int) bool { return false }

// terminate kills the process, Windows has no SIGTERM.
func terminate(p *os.Process) error {
	return forceKill(p)
}

func forceKill(p *os.Process) error {
	err := p.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
