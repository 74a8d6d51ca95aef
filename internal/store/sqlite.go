// Package store provides graph storage implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteGraphStore implements GraphStore using SQLite for persistence.
// It stores nodes and edges in a SQLite database and exports to JSONL on Sync().
type SQLiteGraphStore struct {
	mu        sync.RWMutex
	db        *sql.DB
	dir       string
	dbPath    string
	nodesFile string
	edgesFile string
}

// NewSQLiteGraphStore creates a new SQLiteGraphStore in dir.
// It creates the database at dir/graph.db and auto-imports nodes.jsonl and
// edges.jsonl from dir when the database is empty.
func NewSQLiteGraphStore(dir string) (*SQLiteGraphStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create graph directory: %w", err)
	}

	dbPath := filepath.Join(dir, "graph.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteGraphStore{
		db:        db,
		dir:       dir,
		dbPath:    dbPath,
		nodesFile: filepath.Join(dir, NodesFile),
		edgesFile: filepath.Join(dir, EdgesFile),
	}

	if err := s.autoImport(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to auto-import JSONL: %w", err)
	}

	return s, nil
}

// autoImport imports existing JSONL files if the database is empty.
func (s *SQLiteGraphStore) autoImport(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count nodes: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, _, err := ImportJSONL(ctx, s, s.nodesFile, s.edgesFile)
	return err
}

// AddNode adds or replaces a node.
func (s *SQLiteGraphStore) AddNode(ctx context.Context, node Node) (string, error) {
	if err := validateNode(node); err != nil {
		return "", err
	}

	content, err := marshalMap(node.Content)
	if err != nil {
		return "", fmt.Errorf("failed to marshal content: %w", err)
	}
	metadata, err := marshalMap(node.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO nodes (id, kind, content, metadata)
		VALUES (?, ?, ?, ?)
	`, node.ID, node.Kind, content, metadata)
	if err != nil {
		return "", fmt.Errorf("failed to insert node: %w", err)
	}
	return node.ID, nil
}

// GetNode retrieves a node by ID. Returns nil if not found.
func (s *SQLiteGraphStore) GetNode(ctx context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getNodeUnlocked(ctx, id)
}

func (s *SQLiteGraphStore) getNodeUnlocked(ctx context.Context, id string) (*Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, kind, content, metadata FROM nodes WHERE id = ?`, id)
	node, err := scanNode(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	return node, nil
}

// QueryNodes returns nodes matching the predicate. The kind and id keys are
// pushed into SQL, remaining keys are matched against content.
func (s *SQLiteGraphStore) QueryNodes(ctx context.Context, predicate map[string]interface{}) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, kind, content, metadata FROM nodes`
	var conds []string
	var args []interface{}
	if kind, ok := predicate["kind"].(string); ok {
		conds = append(conds, "kind = ?")
		args = append(args, kind)
	}
	if id, ok := predicate["id"].(string); ok {
		conds = append(conds, "id = ?")
		args = append(args, id)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	results := make([]Node, 0)
	for rows.Next() {
		node, err := scanNode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if matchesPredicate(*node, predicate) {
			results = append(results, *node)
		}
	}
	return results, rows.Err()
}

// AddEdge adds or replaces an edge.
func (s *SQLiteGraphStore) AddEdge(ctx context.Context, edge Edge) error {
	if err := validateEdge(edge); err != nil {
		return err
	}
	metadata, err := marshalMap(edge.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO edges (source, target, kind, stoichiometry, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, edge.Source, edge.Target, edge.Kind, edge.Stoichiometry, metadata)
	if err != nil {
		return fmt.Errorf("failed to add edge: %w", err)
	}
	return nil
}

// GetEdges returns edges connected to a node.
func (s *SQLiteGraphStore) GetEdges(ctx context.Context, nodeID string, direction Direction, kind string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getEdgesUnlocked(ctx, nodeID, direction, kind)
}

func (s *SQLiteGraphStore) getEdgesUnlocked(ctx context.Context, nodeID string, direction Direction, kind string) ([]Edge, error) {
	var query string
	var args []interface{}

	switch direction {
	case DirectionOutbound:
		query = `SELECT source, target, kind, stoichiometry, metadata FROM edges WHERE source = ?`
		args = append(args, nodeID)
	case DirectionInbound:
		query = `SELECT source, target, kind, stoichiometry, metadata FROM edges WHERE target = ?`
		args = append(args, nodeID)
	case DirectionBoth:
		query = `SELECT source, target, kind, stoichiometry, metadata FROM edges WHERE (source = ? OR target = ?)`
		args = append(args, nodeID, nodeID)
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}

	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// GetNodes returns the existing nodes among ids.
func (s *SQLiteGraphStore) GetNodes(ctx context.Context, ids []string) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getNodesUnlocked(ctx, ids)
}

func (s *SQLiteGraphStore) getNodesUnlocked(ctx context.Context, ids []string) ([]Node, error) {
	results := make([]Node, 0, len(ids))
	if len(ids) == 0 {
		return results, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, content, metadata FROM nodes WHERE id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Node, len(ids))
	for rows.Next() {
		node, err := scanNode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		byID[node.ID] = *node
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if node, ok := byID[id]; ok {
			results = append(results, node)
		}
	}
	return results, nil
}

// GetEdgesOf returns the edges connected to any of nodeIDs.
func (s *SQLiteGraphStore) GetEdgesOf(ctx context.Context, nodeIDs []string, direction Direction, kinds []string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getEdgesOfUnlocked(ctx, nodeIDs, direction, kinds)
}

func (s *SQLiteGraphStore) getEdgesOfUnlocked(ctx context.Context, nodeIDs []string, direction Direction, kinds []string) ([]Edge, error) {
	if len(nodeIDs) == 0 {
		return []Edge{}, nil
	}
	in := placeholders(len(nodeIDs))
	var where string
	var args []interface{}
	switch direction {
	case DirectionOutbound:
		where = `source IN (` + in + `)`
		args = stringArgs(nodeIDs)
	case DirectionInbound:
		where = `target IN (` + in + `)`
		args = stringArgs(nodeIDs)
	case DirectionBoth:
		where = `(source IN (` + in + `) OR target IN (` + in + `))`
		args = append(stringArgs(nodeIDs), stringArgs(nodeIDs)...)
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}
	if len(kinds) > 0 {
		where += ` AND kind IN (` + placeholders(len(kinds)) + `)`
		args = append(args, stringArgs(kinds)...)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, target, kind, stoichiometry, metadata FROM edges WHERE `+where+` ORDER BY source, target, kind`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// Traverse returns all nodes reachable from start by following edges of the given kinds.
func (s *SQLiteGraphStore) Traverse(ctx context.Context, start string, edgeKinds []string, direction Direction, maxDepth int) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := breadthFirst(ctx, start, direction, maxDepth, func(frontier []string) ([]Edge, error) {
		return s.getEdgesOfUnlocked(ctx, frontier, direction, edgeKinds)
	})
	if err != nil {
		return nil, err
	}
	return s.getNodesUnlocked(ctx, ids)
}

// Sync exports all nodes and edges to the JSONL files next to the database.
func (s *SQLiteGraphStore) Sync(ctx context.Context) error {
	_, _, err := ExportJSONL(ctx, s, s.nodesFile, s.edgesFile)
	return err
}

// allEdges streams every edge, used by ExportJSONL.
func (s *SQLiteGraphStore) allEdges(ctx context.Context) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT source, target, kind, stoichiometry, metadata FROM edges ORDER BY source, target, kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// Close syncs and closes the store.
func (s *SQLiteGraphStore) Close() error {
	if err := s.Sync(context.Background()); err != nil {
		// Log but don't fail on sync error during close
		slog.Warn("failed to sync graph during close", "dir", s.dir, "error", err)
	}
	return s.db.Close()
}

// Helper functions

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	var edges []Edge
	for rows.Next() {
		var edge Edge
		var metadataJSON sql.NullString
		if err := rows.Scan(&edge.Source, &edge.Target, &edge.Kind, &edge.Stoichiometry, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edge.Metadata = unmarshalMap(metadataJSON)
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// placeholders returns n comma separated SQL parameter markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func scanNode(scan func(dest ...any) error) (*Node, error) {
	var node Node
	var content, metadata sql.NullString
	if err := scan(&node.ID, &node.Kind, &content, &metadata); err != nil {
		return nil, err
	}
	node.Content = unmarshalMap(content)
	node.Metadata = unmarshalMap(metadata)
	return &node, nil
}

func marshalMap(m map[string]interface{}) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalMap(s sql.NullString) map[string]interface{} {
	if !s.Valid || s.String == "" {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil
	}
	return m
}
