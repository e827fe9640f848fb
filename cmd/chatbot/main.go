package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maisonguida/chatbot/internal/log"
	"github.com/maisonguida/chatbot/internal/model"

	"github.com/spf13/cobra"
)

const (
	configEnv      = "CHATBOT_CONFIG"
	configFileName = "chatbot.yaml"
)

var (
	configPath string // actual config file used (if loaded)
	config     model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagLogFormat      string // value of --log-format flag
	flagRoot           string // value of --root flag
)

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is "+configFileName+" in current directory")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: json or text, overrides the config file")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "project root directory - default is root from config file or current directory")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse the config, setup logging
	rootCmd.PersistentPreRunE = initChatbot

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("chatbot failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "chatbot",
	Short:        "Launcher and test harness of the MaisonGuida AI assistant",
	SilenceUsage: true,
}

func initChatbot(cmd *cobra.Command, _ []string) error {
	configPath = resolveConfigPath(flagConfigFilePath)

	if configPath == "" {
		config = model.DefaultConfig()
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error("invalid config", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config %s: %w", configPath, err)
		}
	}

	// --log-format has a precedence over config file
	if flagLogFormat != "" {
		config.LogFormat = flagLogFormat
	}
	switch config.LogFormat {
	case log.FormatJSON, log.FormatText:
	default:
		return fmt.Errorf("unsupported log format %q", config.LogFormat)
	}

	// initialize logging
	slog.SetDefault(log.New(os.Stderr, config.LogFormat, flagVerbose))

	slog.Debug("chatbot run", "configPath", configPath)
	slog.Debug("chatbot run", "config", config)
	return nil
}

// resolveConfigPath returns the config file to load: the CHATBOT_CONFIG
// environment variable, the --config flag, or chatbot.yaml in the current
// directory. An empty result means built-in defaults.
func resolveConfigPath(flagPath string) string {
	if envConfig, ok := os.LookupEnv(configEnv); ok && envConfig != "" {
		return envConfig
	}
	if flagPath != "" {
		return flagPath
	}
	if exists(configFileName) {
		return configFileName
	}
	return ""
}

// projectRoot returns the absolute project root: --root, the root of the
// config file, or the current directory.
func projectRoot() (string, error) {
	root := flagRoot
	if root == "" {
		root = config.Root
	}
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s: %w", abs, errNotADirectory)
	}
	return abs, nil
}

// envFilePath resolves the dotenv file against root unless flagPath is set.
func envFilePath(root, flagPath string) string {
	path := flagPath
	if path == "" {
		path = config.EnvFile
	}
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if flagPath != "" {
		// flags are relative to the working directory
		abs, err := filepath.Abs(path)
		if err == nil {
			return abs
		}
	}
	return filepath.Join(root, path)
}

var errNotADirectory = errors.New("not a directory")

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
