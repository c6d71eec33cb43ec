package cron

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Scheduler installs and removes per-node recurring jobs on the host. The
// ref is the job's descriptor path, derived from the node id.
type Scheduler interface {
	// Install writes the job, replacing any existing entry at ref. Repeated
	// installs for the same ref never accumulate duplicates.
	Install(ref, expr, command string) error

	// Remove deletes the job. Removing an absent entry is a no-op success.
	Remove(ref string) error
}

// FileScheduler writes one crontab fragment per job, a single line of the
// form "<cron-expression> <command>", mode 0644. The host's cron daemon
// picks the fragments up on its own; this process holds no state.
type FileScheduler struct{}

func NewFileScheduler() *FileScheduler {
	return &FileScheduler{}
}

func (s *FileScheduler) Install(ref, expr, command string) error {
	if err := os.MkdirAll(filepath.Dir(ref), 0o755); err != nil {
		return fmt.Errorf("create cron dir for %s: %w", ref, err)
	}
	line := fmt.Sprintf("%s %s\n", expr, command)
	if err := os.WriteFile(ref, []byte(line), 0o644); err != nil {
		return fmt.Errorf("install cron entry %s: %w", ref, err)
	}
	return nil
}

func (s *FileScheduler) Remove(ref string) error {
	if err := os.Remove(ref); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cron entry %s: %w", ref, err)
	}
	return nil
}
