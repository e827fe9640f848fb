package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maisonguida/chatbot/internal/dotenv"
	"github.com/maisonguida/chatbot/internal/layout"
)

var envFlags struct {
	set     []string
	envFile string
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "env creates or updates the dotenv file of the project",
	Args:  cobra.NoArgs,
	RunE:  doEnv,
}

func init() {
	f := envCmd.Flags()
	f.StringArrayVar(&envFlags.set, "set", nil, "KEY=VALUE to store, can be repeated")
	f.StringVar(&envFlags.envFile, "env-file", "", "dotenv file to update - default is env_file from config, relative to the project root")
}

func doEnv(cmd *cobra.Command, _ []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	overrides, err := parseSets(envFlags.set)
	if err != nil {
		return err
	}

	path := envFilePath(root, envFlags.envFile)
	env, err := layout.UpdateEnv(path, overrides)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), ".env file updated at %s\n", path)
	if env[layout.APIKeyVar] == "" {
		slog.WarnContext(cmd.Context(), "no API key provided, the chatbot will not function without it", "var", layout.APIKeyVar, "path", path)
	}
	return nil
}

// parseSets turns KEY=VALUE arguments into a map, later keys win. Pairs
// the dotenv file can't hold are rejected.
func parseSets(sets []string) (map[string]string, error) {
	ret := make(map[string]string, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: expected KEY=VALUE", s)
		}
		if err := dotenv.Validate(k, v); err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", s, err)
		}
		ret[k] = v
	}
	return ret, nil
}
