// Package env loads KEY=value files into the process environment.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// StoredPath returns the path of the per-user env file, ~/.ssopilot/env.
func StoredPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ssopilot", "env"), nil
}

// Load reads file, if not empty, and then the per-user env file if it
// exists. Variables that are already set are never overwritten, so the
// environment beats file, which beats the per-user file.
func Load(file string) error {
	var paths []string
	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("env file: %w", err)
		}
		paths = append(paths, file)
	}
	if stored, err := StoredPath(); err == nil {
		if _, err := os.Stat(stored); err == nil {
			paths = append(paths, stored)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("env file: %w", err)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("env file: %w", err)
	}
	return nil
}
