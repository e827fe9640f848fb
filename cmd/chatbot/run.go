package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/maisonguida/chatbot/internal/log"
	"github.com/maisonguida/chatbot/internal/model"
	"github.com/maisonguida/chatbot/internal/netscan"
	"github.com/maisonguida/chatbot/internal/service"
)

var runFlags struct {
	backendOnly  bool
	frontendOnly bool
	portBackend  int
	portFrontend int
	dev          bool
	prod         bool
	debug        bool
	envFile      string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run starts the chatbot backend and frontend and supervises them until interrupted",
	Args:  cobra.NoArgs,
	RunE:  doRun,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.backendOnly, "backend-only", false, "start only the backend server")
	f.BoolVar(&runFlags.frontendOnly, "frontend-only", false, "start only the frontend server")
	f.IntVar(&runFlags.portBackend, "port-backend", model.DefaultBackendPort, "port of the backend server")
	f.IntVar(&runFlags.portFrontend, "port-frontend", model.DefaultFrontendPort, "port of the frontend server")
	f.BoolVar(&runFlags.dev, "dev", false, "run in development mode (default)")
	f.BoolVar(&runFlags.prod, "prod", false, "run in production mode")
	f.BoolVar(&runFlags.debug, "debug", false, "enable debug logging of the supervisor and the services")
	f.StringVar(&runFlags.envFile, "env-file", "", "dotenv file to load - default is env_file from config, relative to the project root")
	runCmd.MarkFlagsMutuallyExclusive("backend-only", "frontend-only")
	runCmd.MarkFlagsMutuallyExclusive("dev", "prod")
}

func runOptions(root string) model.Options {
	opts := model.DefaultOptions()
	opts.BackendOnly = runFlags.backendOnly
	opts.FrontendOnly = runFlags.frontendOnly
	opts.BackendPort = runFlags.portBackend
	opts.FrontendPort = runFlags.portFrontend
	if runFlags.prod {
		opts.Mode = model.ModeProduction
	}
	opts.Debug = runFlags.debug
	opts.EnvFile = envFilePath(root, runFlags.envFile)
	return opts
}

func doRun(cmd *cobra.Command, _ []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	opts := runOptions(root)
	if err := opts.Validate(); err != nil {
		return err
	}
	intervals, err := config.Timing.Intervals()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attrs := slog.Group("chatbot",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
		slog.String("run_id", uuid.NewString()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	slog.InfoContext(ctx, "starting MaisonGuida AI assistant",
		"mode", opts.Mode,
		"root", root,
		"backend", opts.Backend(),
		"frontend", opts.Frontend(),
	)

	warnBusyPorts(ctx, opts)

	env := service.BuildEnviron(ctx, opts, os.Environ())
	specs := model.Specs(config, root, opts)
	return service.NewSupervisor(specs, env, intervals).Do(ctx)
}

// warnBusyPorts reports ports of the selected services which are taken
// already, the service bound to such port fails at startup.
func warnBusyPorts(ctx context.Context, opts model.Options) {
	var ports []int
	if opts.Backend() {
		ports = append(ports, opts.BackendPort)
	}
	if opts.Frontend() {
		ports = append(ports, opts.FrontendPort)
	}
	for _, port := range netscan.Listening(ctx, ports...) {
		slog.WarnContext(ctx, "port already in use", "port", port)
	}
}
