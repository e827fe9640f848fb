package layout

import (
	"maps"

	"github.com/maisonguida/chatbot/internal/dotenv"
)

const APIKeyVar = "OPENAI_API_KEY"

// DefaultEnv holds the variables every project dotenv file carries.
func DefaultEnv() map[string]string {
	return map[string]string{
		"NODE_ENV": "development",
		"PORT":     "3002",
		APIKeyVar:  "",
	}
}

// UpdateEnv merges DefaultEnv under the values of the dotenv file at path,
// applies overrides on top and writes the file back. A missing file is
// created. The written variables are returned.
func UpdateEnv(path string, overrides map[string]string) (map[string]string, error) {
	existing, err := dotenv.ReadMap(path)
	if err != nil {
		return nil, err
	}
	env := DefaultEnv()
	maps.Copy(env, existing)
	maps.Copy(env, overrides)
	if err := dotenv.WriteFile(path, env); err != nil {
		return nil, err
	}
	return env, nil
}
