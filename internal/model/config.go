package model

import (
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	"github.com/maisonguida/chatbot/internal/log"

	_ "embed"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

// Config is the optional chatbot.yaml file. Every field has a default, so an
// empty document is a valid configuration.
type Config struct {
	Version   int      `json:"version" yaml:"version"` // fixed 0 for now
	Root      string   `json:"root,omitempty" yaml:"root,omitempty"`
	EnvFile   string   `json:"env_file" yaml:"env_file"`
	LogFormat string   `json:"log_format" yaml:"log_format"` // "json" | "text"
	Services  Services `json:"services" yaml:"services"`
	Timing    Timing   `json:"timing" yaml:"timing"`
}

type Services struct {
	Backend  Service `json:"backend" yaml:"backend"`
	Frontend Service `json:"frontend" yaml:"frontend"`
}

// Service describes how to launch one child process.
type Service struct {
	Command []string          `json:"command" yaml:"command"` // program followed by its arguments
	Dir     string            `json:"dir" yaml:"dir"`         // relative to the project root
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Timing holds the supervisor intervals as Go duration strings.
type Timing struct {
	PollInterval string `json:"poll_interval" yaml:"poll_interval"`
	StartDelay   string `json:"start_delay" yaml:"start_delay"`
	GracePeriod  string `json:"grace_period" yaml:"grace_period"`
}

// Intervals are the parsed Timing values.
type Intervals struct {
	PollInterval time.Duration
	StartDelay   time.Duration
	GracePeriod  time.Duration
}

func (t Timing) Intervals() (Intervals, error) {
	var ret Intervals
	for _, f := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"poll_interval", t.PollInterval, &ret.PollInterval},
		{"start_delay", t.StartDelay, &ret.StartDelay},
		{"grace_period", t.GracePeriod, &ret.GracePeriod},
	} {
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return Intervals{}, fmt.Errorf("parsing timing.%s: %w", f.name, err)
		}
		if d < 0 {
			return Intervals{}, fmt.Errorf("timing.%s must not be negative", f.name)
		}
		*f.dst = d
	}
	if ret.PollInterval == 0 {
		return Intervals{}, fmt.Errorf("timing.poll_interval must be positive")
	}
	return ret, nil
}

// DefaultConfig mirrors the defaults of config.cue.
func DefaultConfig() Config {
	return Config{
		Version:   0,
		EnvFile:   ".env",
		LogFormat: log.FormatJSON,
		Services: Services{
			Backend: Service{
				Command: []string{"node", "src/server.js"},
				Dir:     ".",
			},
			Frontend: Service{
				Command: []string{"npm", "start"},
				Dir:     "chatbot-ui",
			},
		},
		Timing: Timing{
			PollInterval: "1s",
			StartDelay:   "2s",
			GracePeriod:  "1s",
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("chatbot.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}
