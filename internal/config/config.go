package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can use the usual string
// forms like "500ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every operator-tunable knob of the fleet manager.
type Config struct {
	// Image is the worker container image every node runs.
	Image string `yaml:"image"`

	// EnvVar carries the node id into the container's environment.
	EnvVar string `yaml:"env_var"`

	// LogDir and CronDir anchor the per-node derived paths.
	LogDir  string `yaml:"log_dir"`
	CronDir string `yaml:"cron_dir"`

	// CronExpr schedules each node's periodic log cleanup.
	CronExpr string `yaml:"cron_expr"`

	// VerifyRetries and VerifyInterval bound the post-start check window.
	VerifyRetries  int      `yaml:"verify_retries"`
	VerifyInterval Duration `yaml:"verify_interval"`

	// LogTail is how many trailing log lines a startup failure surfaces.
	LogTail int `yaml:"log_tail"`

	// Throttle is the pause between successive batch operations.
	Throttle Duration `yaml:"throttle"`
}

func Default() Config {
	return Config{
		Image:          "fleet-worker:latest",
		EnvVar:         "NODE_ID",
		LogDir:         "/var/log/fleet",
		CronDir:        "/etc/cron.d",
		CronExpr:       "0 3 * * *",
		VerifyRetries:  5,
		VerifyInterval: Duration(time.Second),
		LogTail:        20,
		Throttle:       Duration(500 * time.Millisecond),
	}
}

// Load reads path on top of the defaults. A missing file is not an error;
// the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Image == "" {
		return errors.New("image must not be empty")
	}
	if c.EnvVar == "" {
		return errors.New("env_var must not be empty")
	}
	if c.LogDir == "" || c.CronDir == "" {
		return errors.New("log_dir and cron_dir must not be empty")
	}
	if c.CronExpr == "" {
		return errors.New("cron_expr must not be empty")
	}
	if c.VerifyRetries < 1 {
		return errors.New("verify_retries must be at least 1")
	}
	return nil
}
