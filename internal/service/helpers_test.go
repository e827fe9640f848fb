package service_test

import (
	"context"
	"os"
	"os/exec"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/maisonguida/chatbot/internal/model"
	"github.com/maisonguida/chatbot/internal/service"
)

// lines collects relayed output per service.
type lines struct {
	mx  sync.Mutex
	got map[string][]string
}

func newLines() *lines {
	return &lines{got: make(map[string][]string)}
}

func (l *lines) add(_ context.Context, name, line string) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.got[name] = append(l.got[name], line)
}

func (l *lines) get(name string) []string {
	l.mx.Lock()
	defer l.mx.Unlock()
	return slices.Clone(l.got[name])
}

func (l *lines) has(name, line string) bool {
	return slices.Contains(l.get(name), line)
}

func lookSh(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	return sh
}

func shSpec(t *testing.T, name, script string) model.ServiceSpec {
	t.Helper()
	return model.ServiceSpec{
		Name:    name,
		Path:    lookSh(t),
		Args:    []string{"-c", script},
		Dir:     t.TempDir(),
		Enabled: true,
	}
}

func testEnviron() service.Environ {
	return service.EnvironFrom([]string{"PATH=" + os.Getenv("PATH")})
}

func fastIntervals() model.Intervals {
	return model.Intervals{
		PollInterval: 10 * time.Millisecond,
		GracePeriod:  300 * time.Millisecond,
	}
}
