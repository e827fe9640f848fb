package chatbot_test

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	chatbotPath string

	// tmpDir is a function used to create a tempdir
	// -test.keepdir flag says test to use os.MkdirTemp
	// default is t.TempDir, which will be cleaned up
	tmpDir func(t *testing.T) string
)

func TestMain(m *testing.M) {
	var keepTestDir bool
	flag.BoolVar(&keepTestDir, "test.keepdir", false, "use os.TempDir instead of t.TempDir to keep test artifacts")

	flag.Parse()

	if testing.Short() {
		slog.Warn("integration tests with -short are ignored")
		os.Exit(0)
	}

	if !keepTestDir {
		tmpDir = func(t *testing.T) string {
			t.Helper()
			return t.TempDir()
		}
	} else {
		tmpDir = func(t *testing.T) string {
			t.Helper()
			dir, err := os.MkdirTemp("", t.Name()+"*")
			require.NoError(t, err)
			_, err = fmt.Fprintf(t.Output(), "TEMPDIR %s: -test.keepdir used, so it won't be automatically deleted", dir)
			require.NoError(t, err)
			return dir
		}
	}

	if !isExecutable("chatbot-ci") {
		slog.Warn("integration tests skipped, run go build -race -cover -covermode=atomic -o chatbot-ci ./cmd/chatbot/ first")
		os.Exit(0)
	}

	var err error
	chatbotPath, err = filepath.Abs("chatbot-ci")
	if err != nil {
		slog.Error("can't get abspath for chatbot-ci", "error", err)
		os.Exit(1)
	}
	coverDir, err := filepath.Abs("coverage")
	if err != nil {
		slog.Error("can't get value for GOCOVERDIR for chatbot-ci", "error", err)
		os.Exit(1)
	}
	err = rmRfMkdirp(coverDir)
	if err != nil {
		slog.Error("can't reset GOCOVERDIR for chatbot-ci", "error", err, "coverdir", coverDir)
		os.Exit(1)
	}

	err = os.Setenv("GOCOVERDIR", coverDir)
	if err != nil {
		slog.Error("can't set GOCOVERDIR env variable", "error", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func TestRun(t *testing.T) {
	sh := lookSh(t)
	dir := tmpDir(t)
	config := fmt.Sprintf(`
version: 0
services:
    backend:
        command: [%[1]q, "-c", "echo backend $PORT $NODE_ENV $OPENAI_API_KEY"]
    frontend:
        command: [%[1]q, "-c", "echo frontend $PORT $REACT_APP_BACKEND_PORT"]
        dir: .
timing:
    poll_interval: 50ms
    start_delay: 10ms
    grace_period: 200ms
`, sh)
	creat(t, filepath.Join(dir, "chatbot.yaml"), []byte(config))
	creat(t, filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=\"sk-test\"\n"))

	stdout, stderr, err := chatbot(t, dir, "run", "--log-format", "text", "--prod", "--port-backend", "4000", "--port-frontend", "4001")
	if err != nil {
		t.Logf("stdout: %s\nstderr: %s", stdout, stderr)
	}
	require.NoError(t, err)
	require.Contains(t, stderr, "[BACKEND] backend 4000 production sk-test")
	require.Contains(t, stderr, "[FRONTEND] frontend 4001 4000")
	require.Contains(t, stderr, "all processes have exited")
	require.Contains(t, stderr, "all services shut down")
}

func TestRun_Interrupt(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipped, no SIGINT on windows")
	}
	sh := lookSh(t)
	dir := tmpDir(t)
	config := fmt.Sprintf(`
version: 0
services:
    backend:
        command: [%q, "-c", "sleep 30"]
timing:
    poll_interval: 50ms
`, sh)
	creat(t, filepath.Join(dir, "chatbot.yaml"), []byte(config))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Second)
	t.Cleanup(cancel)
	var stderr syncBuffer
	cmd := exec.CommandContext(ctx, chatbotPath, "run", "--backend-only", "--log-format", "text")
	cmd.Dir = dir
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Start())

	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "Press Ctrl+C to stop all services")
	}, 10*time.Second, 20*time.Millisecond)
	require.NoError(t, cmd.Process.Signal(os.Interrupt))

	err := cmd.Wait()
	if err != nil {
		t.Logf("stderr: %s", stderr.String())
	}
	require.NoError(t, err)
	require.Contains(t, stderr.String(), "received termination signal")
	require.Contains(t, stderr.String(), "all services shut down")
}

func TestRun_Fail(t *testing.T) {
	dir := tmpDir(t)
	creat(t, filepath.Join(dir, "chatbot.yaml"), []byte(`
version: 0
services:
    backend:
        command: [chatbot-does-not-exist]
`))

	cases := []struct {
		scenario string
		args     []string
		stderr   string
	}{
		{"spawn_failure", []string{"run", "--backend-only"}, "starting BACKEND"},
		{"exclusive_selectors", []string{"run", "--backend-only", "--frontend-only"}, "backend-only"},
		{"bad_port", []string{"run", "--port-backend", "0"}, "out of range"},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, stderr, err := chatbot(t, dir, tc.args...)
			var exitErr *exec.ExitError
			require.ErrorAs(t, err, &exitErr)
			require.Equal(t, 1, exitErr.ExitCode())
			require.Contains(t, stderr, tc.stderr)
		})
	}
}

func TestTest_ConnectionError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	stdout, _, err := chatbot(t, tmpDir(t), "test", "--host", "127.0.0.1", "--port", fmt.Sprint(port), "--timeout", "2s")
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 1, exitErr.ExitCode())
	require.Contains(t, stdout, "Connection error: Could not connect to the backend server")
}

func TestSetupAndEnv(t *testing.T) {
	dir, err := filepath.EvalSymlinks(tmpDir(t))
	require.NoError(t, err)

	stdout, _, err := chatbot(t, dir, "setup")
	require.NoError(t, err)
	require.Contains(t, stdout, "Created directory: "+filepath.Join(dir, "data", "embeddings"))
	require.DirExists(t, filepath.Join(dir, "config"))

	_, _, err = chatbot(t, dir, "env", "--set", "OPENAI_API_KEY=sk-test")
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	require.Equal(t, "NODE_ENV=development\nOPENAI_API_KEY=sk-test\nPORT=3002\n", string(b))
}

func chatbot(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Second)
	t.Cleanup(cancel)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, chatbotPath, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "CHATBOT_CONFIG=")
	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("chatbot %v timed out: %s", args, stderr.String())
	}
	return stdout.String(), stderr.String(), err
}

// syncBuffer is a bytes.Buffer safe for a concurrent writer and reader.
type syncBuffer struct {
	mx  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.String()
}

func lookSh(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	return sh
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}

func rmRfMkdirp(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func creat(t *testing.T, path string, content []byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	_, err = f.Write(content)
	require.NoError(t, err)
	err = f.Sync()
	require.NoError(t, err)
}
