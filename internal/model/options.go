package model

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"strconv"
)

const (
	BackendName  = "BACKEND"
	FrontendName = "FRONTEND"

	DefaultBackendPort  = 3002
	DefaultFrontendPort = 3001
)

type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

var ErrExclusiveSelectors = errors.New("--backend-only and --frontend-only are mutually exclusive")

// Options are the startup options of a single run.
type Options struct {
	BackendOnly  bool
	FrontendOnly bool
	BackendPort  int
	FrontendPort int
	Mode         Mode
	Debug        bool
	EnvFile      string // dotenv file, empty disables loading
}

func DefaultOptions() Options {
	return Options{
		BackendPort:  DefaultBackendPort,
		FrontendPort: DefaultFrontendPort,
		Mode:         ModeDevelopment,
	}
}

func (o Options) Validate() error {
	if o.BackendOnly && o.FrontendOnly {
		return ErrExclusiveSelectors
	}
	if err := validPort(o.BackendPort); err != nil {
		return fmt.Errorf("backend port: %w", err)
	}
	if err := validPort(o.FrontendPort); err != nil {
		return fmt.Errorf("frontend port: %w", err)
	}
	switch o.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		return fmt.Errorf("unsupported mode %q", o.Mode)
	}
	return nil
}

func validPort(p int) error {
	if p < 1 || p > 65535 {
		return fmt.Errorf("%d is out of range 1-65535", p)
	}
	return nil
}

func (o Options) Backend() bool  { return !o.FrontendOnly }
func (o Options) Frontend() bool { return !o.BackendOnly }

// ServiceSpec describes one child process of a run. Env holds overrides
// applied on top of the shared environment for this process only.
type ServiceSpec struct {
	Name    string
	Path    string
	Args    []string
	Dir     string
	Enabled bool
	Env     map[string]string
	URL     string // announced once the service is started
}

// Specs returns the backend and frontend specs, in spawn order, for the
// project at root.
func Specs(cfg Config, root string, opts Options) []ServiceSpec {
	backend := newSpec(BackendName, cfg.Services.Backend, root, opts.Backend())
	backend.URL = localURL(opts.BackendPort)
	frontend := newSpec(FrontendName, cfg.Services.Frontend, root, opts.Frontend())
	frontend.URL = localURL(opts.FrontendPort)
	// the dev server reads PORT, which carries the backend port for everybody else
	frontend.Env["PORT"] = strconv.Itoa(opts.FrontendPort)
	return []ServiceSpec{backend, frontend}
}

func localURL(port int) string {
	return "http://localhost:" + strconv.Itoa(port)
}

func newSpec(name string, svc Service, root string, enabled bool) ServiceSpec {
	spec := ServiceSpec{
		Name:    name,
		Enabled: enabled,
		Env:     make(map[string]string, len(svc.Env)+1),
	}
	if len(svc.Command) > 0 {
		spec.Path = svc.Command[0]
		spec.Args = append([]string(nil), svc.Command[1:]...)
	}
	spec.Dir = svc.Dir
	if !filepath.IsAbs(spec.Dir) {
		spec.Dir = filepath.Join(root, spec.Dir)
	}
	maps.Copy(spec.Env, svc.Env)
	return spec
}
