// Package store provides graph storage implementations.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomePath returns the path to the per-user .vpgen directory.
// On Unix: ~/.vpgen
// On Windows: %USERPROFILE%\.vpgen
func HomePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".vpgen"), nil
}

// DefaultGraphDir returns the directory holding the SQLite graph and its
// JSONL rendering.
func DefaultGraphDir() (string, error) {
	home, err := HomePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "graph"), nil
}
