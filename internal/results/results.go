// Package results persists objective evaluations so a search campaign can be
// inspected after the fact.
//   - JSONLSink appends one JSON line per evaluation to a local file
//   - PostgresSink inserts rows into an evaluations table
package results

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/nvandessel/vpgen/internal/blackbox"
)

// Sink records evaluations. Implementations are safe for concurrent use.
type Sink interface {
	blackbox.Recorder
	Close() error
}

var (
	_ Sink = (*JSONLSink)(nil)
	_ Sink = (*PostgresSink)(nil)
)

// Record is the persisted form of one evaluation.
type Record struct {
	RunID string `json:"run_id"`
	Model string `json:"model"`
	blackbox.Evaluation
}

// NewRunID returns a fresh identifier grouping the evaluations of one run.
func NewRunID() string {
	return uuid.NewString()
}

// JSONLSink appends records to a JSONL file. A nil JSONLSink is safe to use;
// all methods are no-ops on a nil receiver.
type JSONLSink struct {
	mu    sync.Mutex
	file  *os.File
	runID string
	model string
}

// NewJSONLSink opens path for append, creating its directory if needed.
func NewJSONLSink(path, runID, model string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	return &JSONLSink{file: f, runID: runID, model: model}, nil
}

// Record writes e as a single JSONL line.
func (s *JSONLSink) Record(_ context.Context, e blackbox.Evaluation) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(Record{RunID: s.runID, Model: s.model, Evaluation: e})
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("results file closed")
	}
	_, err = s.file.Write(data)
	return err
}

// Close closes the underlying file.
func (s *JSONLSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// ReadJSONL loads every record of a JSONL results file.
func ReadJSONL(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []Record
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var r Record
		if err := dec.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, r)
	}
	return out, nil
}
