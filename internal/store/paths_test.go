package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHomePath(t *testing.T) {
	got, err := HomePath()
	if err != nil {
		t.Fatalf("HomePath() error = %v", err)
	}
	if !strings.HasSuffix(got, ".vpgen") {
		t.Errorf("HomePath() = %v, should end with .vpgen", got)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("HomePath() = %v, should be absolute path", got)
	}
	homeDir, _ := os.UserHomeDir()
	if !strings.HasPrefix(got, homeDir) {
		t.Errorf("HomePath() = %v, should start with home directory %v", got, homeDir)
	}
}

func TestDefaultGraphDir(t *testing.T) {
	got, err := DefaultGraphDir()
	if err != nil {
		t.Fatalf("DefaultGraphDir() error = %v", err)
	}
	if filepath.Base(got) != "graph" || filepath.Base(filepath.Dir(got)) != ".vpgen" {
		t.Errorf("DefaultGraphDir() = %v, want ~/.vpgen/graph", got)
	}
}
