package layout_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maisonguida/chatbot/internal/dotenv"
	"github.com/maisonguida/chatbot/internal/layout"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "logs"), 0o755))

	entries, err := layout.Setup(root)
	require.NoError(t, err)
	require.Len(t, entries, len(layout.Dirs))
	for i, e := range entries {
		require.Equal(t, filepath.Join(root, layout.Dirs[i]), e.Path)
		require.Equal(t, layout.Dirs[i] != "logs", e.Created, e.Path)
		require.DirExists(t, e.Path)
	}

	entries, err = layout.Setup(root)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, e.Created, "second run must not create %s", e.Path)
	}
}

func TestSetup_NotADirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "config"), nil, 0o600))

	entries, err := layout.Setup(root)
	require.Error(t, err)
	require.ErrorContains(t, err, "not a directory")
	last := entries[len(entries)-1]
	require.Error(t, last.Err)
	require.DirExists(t, filepath.Join(root, "data", "embeddings"), "other directories are still created")
}

func TestUpdateEnv(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=4000\nCUSTOM='kept'\n"), 0o600))

	env, err := layout.UpdateEnv(path, map[string]string{"NODE_ENV": "production"})
	require.NoError(t, err)
	expected := map[string]string{
		"CUSTOM":         "kept",
		"NODE_ENV":       "production",
		"OPENAI_API_KEY": "",
		"PORT":           "4000",
	}
	require.Equal(t, expected, env)

	onDisk, err := dotenv.ReadMap(path)
	require.NoError(t, err)
	require.Equal(t, expected, onDisk)
}

func TestUpdateEnv_Missing(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".env")
	env, err := layout.UpdateEnv(path, nil)
	require.NoError(t, err)
	require.Equal(t, layout.DefaultEnv(), env)
	require.FileExists(t, path)
}
