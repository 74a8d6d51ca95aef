// Package docstore persists assembled model documents by name, on the local
// filesystem or in an S3-compatible bucket.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nvandessel/vpgen/internal/model"
	"github.com/nvandessel/vpgen/internal/sbml"
)

// Extension is appended to document names to form file names and keys.
const Extension = ".xml"

// ErrNotFound is returned when no document has the requested name.
var ErrNotFound = errors.New("document not found")

// Store saves and loads documents by name.
type Store interface {
	Put(ctx context.Context, name string, doc *sbml.Document) error
	Get(ctx context.Context, name string) (*sbml.Document, error)
	List(ctx context.Context) ([]string, error)
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*S3Store)(nil)
)

// LoadModel fetches a document and rebuilds its reaction model.
func LoadModel(ctx context.Context, s Store, name string) (*model.ReactionModel, error) {
	doc, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return model.Load(doc)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid document name %q", name)
	}
	return nil
}

// FileStore keeps documents as files in one directory.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.Dir, name+Extension)
}

// Put writes doc atomically, replacing any document of the same name.
func (s *FileStore) Put(_ context.Context, name string, doc *sbml.Document) error {
	if err := validName(name); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := sbml.Write(tmp, doc); err != nil {
		tmp.Close()
		return fmt.Errorf("write document %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close document %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("store document %s: %w", name, err)
	}
	return nil
}

// Get reads a document.
func (s *FileStore) Get(_ context.Context, name string) (*sbml.Document, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	doc, err := sbml.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return doc, err
}

// List returns the stored names, sorted.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, Extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(n, Extension))
	}
	slices.Sort(names)
	return names, nil
}
