package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maisonguida/chatbot/internal/dotenv"
	"github.com/maisonguida/chatbot/internal/model"
	"github.com/stretchr/testify/require"
)

// tests in this package are not parallel, they touch package level state

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(configEnv, "")

	require.Empty(t, resolveConfigPath(""))
	require.Equal(t, "custom.yaml", resolveConfigPath("custom.yaml"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("version: 0\n"), 0o600))
	require.Equal(t, configFileName, resolveConfigPath(""))
	require.Equal(t, "custom.yaml", resolveConfigPath("custom.yaml"))

	t.Setenv(configEnv, "/etc/chatbot.yaml")
	require.Equal(t, "/etc/chatbot.yaml", resolveConfigPath("custom.yaml"))
}

func TestEnvFilePath(t *testing.T) {
	prev := config
	t.Cleanup(func() { config = prev })
	config = model.DefaultConfig()

	root := t.TempDir()
	require.Equal(t, filepath.Join(root, ".env"), envFilePath(root, ""))

	abs := filepath.Join(t.TempDir(), "prod.env")
	require.Equal(t, abs, envFilePath(root, abs))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cwd, "local.env"), envFilePath(root, "local.env"))

	config.EnvFile = ""
	require.Empty(t, envFilePath(root, ""))
}

func TestParseSets(t *testing.T) {
	sets, err := parseSets([]string{"OPENAI_API_KEY=sk=1", "PORT=4000", "PORT=4001", "EMPTY="})
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"OPENAI_API_KEY": "sk=1",
		"PORT":           "4001",
		"EMPTY":          "",
	}, sets)

	_, err = parseSets([]string{"NOVALUE"})
	require.Error(t, err)
	_, err = parseSets([]string{"=value"})
	require.Error(t, err)

	_, err = parseSets([]string{"#OPENAI_API_KEY=x"})
	require.ErrorIs(t, err, dotenv.ErrInvalidKey)
	_, err = parseSets([]string{"MY KEY=x"})
	require.ErrorIs(t, err, dotenv.ErrInvalidKey)
	_, err = parseSets([]string{"OPENAI_API_KEY=sk\nNODE_ENV=production"})
	require.ErrorIs(t, err, dotenv.ErrInvalidValue)
	_, err = parseSets([]string{"OPENAI_API_KEY=sk\r"})
	require.ErrorIs(t, err, dotenv.ErrInvalidValue)
}

func TestRunOptions(t *testing.T) {
	prevFlags, prevConfig := runFlags, config
	t.Cleanup(func() { runFlags, config = prevFlags, prevConfig })
	config = model.DefaultConfig()

	root := t.TempDir()
	runFlags.frontendOnly = true
	runFlags.portBackend = 4000
	runFlags.portFrontend = 4001
	runFlags.prod = true
	runFlags.debug = true

	opts := runOptions(root)
	require.NoError(t, opts.Validate())
	require.Equal(t, model.Options{
		FrontendOnly: true,
		BackendPort:  4000,
		FrontendPort: 4001,
		Mode:         model.ModeProduction,
		Debug:        true,
		EnvFile:      filepath.Join(root, ".env"),
	}, opts)
}
