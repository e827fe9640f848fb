package service

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/maisonguida/chatbot/internal/dotenv"
	"github.com/maisonguida/chatbot/internal/log"
	"github.com/maisonguida/chatbot/internal/model"
)

// Variables every child process gets.
const (
	EnvMode         = "NODE_ENV"
	EnvPort         = "PORT"
	EnvBackendPort  = "REACT_APP_BACKEND_PORT"
	EnvFrontendPort = "PORT_FRONTEND"
	EnvDebug        = "DEBUG"
)

// Environ is the environment of child processes. It replaces the
// environment of the supervisor, it is never merged with it.
type Environ map[string]string

// EnvironFrom converts a KEY=value list as returned by os.Environ.
// Entries without '=' are dropped, later entries win.
func EnvironFrom(kv []string) Environ {
	env := make(Environ, len(kv))
	for _, e := range kv {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// With returns a copy of e with overrides applied.
func (e Environ) With(overrides map[string]string) Environ {
	ret := make(Environ, len(e)+len(overrides))
	maps.Copy(ret, e)
	maps.Copy(ret, overrides)
	return ret
}

// Slice returns KEY=value pairs sorted by key.
func (e Environ) Slice() []string {
	keys := slices.Sorted(maps.Keys(e))
	ret := make([]string, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, k+"="+e[k])
	}
	return ret
}

// BuildEnviron derives the child environment from the inherited one, the
// dotenv file named by opts.EnvFile and the startup options. Values from
// the file override inherited ones, the values computed from opts are
// applied last. A dotenv file which can't be read is logged and skipped.
//
// When opts.Debug is set, the log level of the process is raised to debug.
func BuildEnviron(ctx context.Context, opts model.Options, inherited []string) Environ {
	env := EnvironFrom(inherited)

	if opts.EnvFile != "" {
		loadDotenv(ctx, env, opts.EnvFile)
	}

	env[EnvMode] = string(opts.Mode)
	if opts.Mode == "" {
		env[EnvMode] = string(model.ModeDevelopment)
	}

	env[EnvPort] = strconv.Itoa(opts.BackendPort)
	env[EnvBackendPort] = strconv.Itoa(opts.BackendPort)
	env[EnvFrontendPort] = strconv.Itoa(opts.FrontendPort)

	if opts.Debug {
		env[EnvDebug] = "*"
		log.SetLevel(slog.LevelDebug)
		slog.DebugContext(ctx, "debug logging enabled")
	}

	return env
}

func loadDotenv(ctx context.Context, env Environ, path string) {
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "can't access dotenv file, skipping", "path", path, "error", err)
		}
		return
	}

	slog.InfoContext(ctx, "loading environment variables from dotenv file", "path", path)
	vars, err := dotenv.Read(path)
	for _, v := range vars {
		env[v.Key] = v.Value
	}
	if err != nil {
		slog.WarnContext(ctx, "error loading dotenv file", "path", path, "loaded", len(vars), "error", err)
		return
	}
	slog.InfoContext(ctx, "successfully loaded environment variables from dotenv file", "path", path, "loaded", len(vars))
}
