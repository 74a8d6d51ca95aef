// Package store provides graph storage implementations.
package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// File names used for the JSONL rendering of a graph.
const (
	NodesFile = "nodes.jsonl"
	EdgesFile = "edges.jsonl"
)

// edgeLister is implemented by stores that can enumerate every edge directly.
type edgeLister interface {
	allEdges(ctx context.Context) ([]Edge, error)
}

// ImportJSONL loads nodes and then edges from JSONL files into s. Missing
// files are not an error. Malformed lines are logged and skipped.
func ImportJSONL(ctx context.Context, s GraphStore, nodesPath, edgesPath string) (nodes, edges int, err error) {
	nodes, err = scanJSONL(nodesPath, func(node Node) error {
		if _, err := s.AddNode(ctx, node); err != nil {
			return fmt.Errorf("failed to import node %s: %w", node.ID, err)
		}
		return nil
	})
	if err != nil {
		return nodes, 0, err
	}

	edges, err = scanJSONL(edgesPath, func(edge Edge) error {
		if err := s.AddEdge(ctx, edge); err != nil {
			return fmt.Errorf("failed to import edge %s -[%s]-> %s: %w", edge.Source, edge.Kind, edge.Target, err)
		}
		return nil
	})
	return nodes, edges, err
}

func scanJSONL[T any](path string, apply func(T) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil // No file is fine
		}
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024) // 1MB max line length

	lineNum, count := 0, 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			// Log but continue on parse errors
			slog.Warn("skipping malformed JSONL line", "file", path, "line", lineNum, "error", err)
			continue
		}
		if err := apply(item); err != nil {
			return count, err
		}
		count++
	}

	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("scanner error: %w", err)
	}
	return count, nil
}

// ExportJSONL writes every node and edge of s to JSONL files, sorted for
// stable diffs.
func ExportJSONL(ctx context.Context, s GraphStore, nodesPath, edgesPath string) (nodes, edges int, err error) {
	all, err := s.QueryNodes(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list nodes: %w", err)
	}
	slices.SortFunc(all, func(a, b Node) int { return strings.Compare(a.ID, b.ID) })

	var allEdges []Edge
	if lister, ok := s.(edgeLister); ok {
		allEdges, err = lister.allEdges(ctx)
		if err != nil {
			return 0, 0, err
		}
	} else {
		for _, n := range all {
			out, err := s.GetEdges(ctx, n.ID, DirectionOutbound, "")
			if err != nil {
				return 0, 0, fmt.Errorf("failed to list edges of %s: %w", n.ID, err)
			}
			allEdges = append(allEdges, out...)
		}
	}
	slices.SortFunc(allEdges, func(a, b Edge) int {
		return strings.Compare(a.Source+"\x00"+a.Target+"\x00"+a.Kind, b.Source+"\x00"+b.Target+"\x00"+b.Kind)
	})

	if err := writeJSONL(nodesPath, all); err != nil {
		return 0, 0, fmt.Errorf("failed to export nodes: %w", err)
	}
	if err := writeJSONL(edgesPath, allEdges); err != nil {
		return len(all), 0, fmt.Errorf("failed to export edges: %w", err)
	}
	return len(all), len(allEdges), nil
}

func writeJSONL[T any](path string, items []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	encoder := json.NewEncoder(w)
	for _, item := range items {
		if err := encoder.Encode(item); err != nil {
			return fmt.Errorf("failed to encode: %w", err)
		}
	}
	return w.Flush()
}
