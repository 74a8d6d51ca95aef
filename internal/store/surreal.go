package store

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

var tlsOnce sync.Once

// SurrealConfig holds SurrealDB connection configuration.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

// surrealSchema defines the tables used by SurrealGraphStore. Edges are
// records of the link relation table; source and target repeat the keys of
// in and out so lookups by node id stay on an index.
const surrealSchema = `
DEFINE TABLE IF NOT EXISTS node SCHEMALESS;
DEFINE INDEX IF NOT EXISTS node_key ON node FIELDS key UNIQUE;
DEFINE INDEX IF NOT EXISTS node_kind ON node FIELDS kind;
DEFINE TABLE IF NOT EXISTS link TYPE RELATION IN node OUT node SCHEMALESS;
DEFINE INDEX IF NOT EXISTS link_source ON link FIELDS source, kind;
DEFINE INDEX IF NOT EXISTS link_target ON link FIELDS target, kind;
DEFINE INDEX IF NOT EXISTS link_unique ON link FIELDS source, target, kind UNIQUE;
`

type surrealNode struct {
	Key      string                 `json:"key"`
	Kind     string                 `json:"kind"`
	Content  map[string]interface{} `json:"content,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type surrealEdge struct {
	Source        string                 `json:"source"`
	Target        string                 `json:"target"`
	Kind          string                 `json:"kind"`
	Stoichiometry int                    `json:"stoichiometry"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// SurrealGraphStore implements GraphStore on a SurrealDB server reached over
// an auto-reconnecting WebSocket.
type SurrealGraphStore struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	logger logger.Logger
}

// NewSurrealGraphStore connects, authenticates, selects the namespace and
// database and defines the graph tables. Connection failures wrap
// ErrUnavailable.
func NewSurrealGraphStore(ctx context.Context, cfg SurrealConfig, log *slog.Logger) (*SurrealGraphStore, error) {
	tlsOnce.Do(func() {
		// WebSocket upgrade requires HTTP/1.1; keep ALPN from negotiating HTTP/2.
		gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
			NextProtos: []string{"http/1.1"},
		}
	})

	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.Handler())
	codec := surrealcbor.New()

	// gorillaws appends /rpc itself
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 5
	conn.Retryer = retryer

	sdkLogger.Info("connecting to graph database", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrUnavailable, err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("%w: from connection: %v", ErrUnavailable, err)
	}

	auth := surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}
	if cfg.AuthLevel == "database" {
		auth.Namespace = cfg.Namespace
		auth.Database = cfg.Database
	}
	if _, err := db.SignIn(ctx, auth); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("%w: signin: %v", ErrUnavailable, err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("%w: use: %v", ErrUnavailable, err)
	}

	s := &SurrealGraphStore{conn: conn, db: db, logger: sdkLogger}
	if _, err := surrealdb.Query[any](ctx, db, surrealSchema, nil); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("init schema: %w", wrapSurrealError(err))
	}
	return s, nil
}

// wrapSurrealError marks transport failures as ErrUnavailable. Database-level
// query errors are returned unchanged.
func wrapSurrealError(err error) error {
	if err == nil {
		return nil
	}
	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// AddNode upserts a node.
func (s *SurrealGraphStore) AddNode(ctx context.Context, node Node) (string, error) {
	if err := validateNode(node); err != nil {
		return "", err
	}
	_, err := surrealdb.Query[any](ctx, s.db, `
		UPSERT type::record("node", $key) CONTENT {
			key: $key, kind: $kind, content: $content, metadata: $metadata
		}
	`, map[string]any{
		"key":      node.ID,
		"kind":     node.Kind,
		"content":  node.Content,
		"metadata": node.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("add node %s: %w", node.ID, wrapSurrealError(err))
	}
	return node.ID, nil
}

// GetNode retrieves a node by ID. Returns nil if not found.
func (s *SurrealGraphStore) GetNode(ctx context.Context, id string) (*Node, error) {
	results, err := surrealdb.Query[[]surrealNode](ctx, s.db, `
		SELECT key, kind, content, metadata FROM type::record("node", $key)
	`, map[string]any{"key": id})
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, wrapSurrealError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	node := (*results)[0].Result[0].node()
	return &node, nil
}

// QueryNodes returns nodes matching the predicate. The kind key is pushed
// into the query, remaining keys are matched client side.
func (s *SurrealGraphStore) QueryNodes(ctx context.Context, predicate map[string]interface{}) ([]Node, error) {
	sql := `SELECT key, kind, content, metadata FROM node`
	vars := map[string]any{}
	if kind, ok := predicate["kind"].(string); ok {
		sql += ` WHERE kind = $kind`
		vars["kind"] = kind
	}

	results, err := surrealdb.Query[[]surrealNode](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", wrapSurrealError(err))
	}
	nodes := make([]Node, 0)
	if results == nil || len(*results) == 0 {
		return nodes, nil
	}
	for _, row := range (*results)[0].Result {
		if n := row.node(); matchesPredicate(n, predicate) {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// AddEdge relates source to target, replacing an edge with the same source,
// target and kind.
func (s *SurrealGraphStore) AddEdge(ctx context.Context, edge Edge) error {
	if err := validateEdge(edge); err != nil {
		return err
	}
	_, err := surrealdb.Query[any](ctx, s.db, `
		BEGIN TRANSACTION;
		DELETE link WHERE source = $source AND target = $target AND kind = $kind;
		RELATE type::record("node", $source)->link->type::record("node", $target) SET
			source = $source,
			target = $target,
			kind = $kind,
			stoichiometry = $stoichiometry,
			metadata = $metadata;
		COMMIT TRANSACTION;
	`, map[string]any{
		"source":        edge.Source,
		"target":        edge.Target,
		"kind":          edge.Kind,
		"stoichiometry": edge.Stoichiometry,
		"metadata":      edge.Metadata,
	})
	if err != nil {
		return fmt.Errorf("add edge: %w", wrapSurrealError(err))
	}
	return nil
}

// GetEdges returns edges connected to a node.
func (s *SurrealGraphStore) GetEdges(ctx context.Context, nodeID string, direction Direction, kind string) ([]Edge, error) {
	var where string
	switch direction {
	case DirectionOutbound:
		where = `source = $id`
	case DirectionInbound:
		where = `target = $id`
	case DirectionBoth:
		where = `(source = $id OR target = $id)`
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}
	vars := map[string]any{"id": nodeID}
	if kind != "" {
		where += ` AND kind = $kind`
		vars["kind"] = kind
	}

	results, err := surrealdb.Query[[]surrealEdge](ctx, s.db,
		`SELECT source, target, kind, stoichiometry, metadata FROM link WHERE `+where, vars)
	if err != nil {
		return nil, fmt.Errorf("get edges of %s: %w", nodeID, wrapSurrealError(err))
	}
	var edges []Edge
	if results == nil || len(*results) == 0 {
		return edges, nil
	}
	for _, row := range (*results)[0].Result {
		edges = append(edges, Edge(row))
	}
	return edges, nil
}

// GetNodes returns the existing nodes among ids in one query.
func (s *SurrealGraphStore) GetNodes(ctx context.Context, ids []string) ([]Node, error) {
	nodes := make([]Node, 0, len(ids))
	if len(ids) == 0 {
		return nodes, nil
	}
	results, err := surrealdb.Query[[]surrealNode](ctx, s.db, `
		SELECT key, kind, content, metadata FROM node WHERE key IN $keys
	`, map[string]any{"keys": ids})
	if err != nil {
		return nil, fmt.Errorf("get nodes: %w", wrapSurrealError(err))
	}

	byID := make(map[string]Node, len(ids))
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			byID[row.Key] = row.node()
		}
	}
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// GetEdgesOf returns the edges connected to any of nodeIDs in one query.
func (s *SurrealGraphStore) GetEdgesOf(ctx context.Context, nodeIDs []string, direction Direction, kinds []string) ([]Edge, error) {
	if len(nodeIDs) == 0 {
		return []Edge{}, nil
	}
	var where string
	switch direction {
	case DirectionOutbound:
		where = `source IN $ids`
	case DirectionInbound:
		where = `target IN $ids`
	case DirectionBoth:
		where = `(source IN $ids OR target IN $ids)`
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}
	vars := map[string]any{"ids": nodeIDs}
	if len(kinds) > 0 {
		where += ` AND kind IN $kinds`
		vars["kinds"] = kinds
	}

	results, err := surrealdb.Query[[]surrealEdge](ctx, s.db,
		`SELECT source, target, kind, stoichiometry, metadata FROM link WHERE `+where, vars)
	if err != nil {
		return nil, fmt.Errorf("get edges of %d nodes: %w", len(nodeIDs), wrapSurrealError(err))
	}
	edges := make([]Edge, 0)
	if results == nil || len(*results) == 0 {
		return edges, nil
	}
	for _, row := range (*results)[0].Result {
		edges = append(edges, Edge(row))
	}
	return edges, nil
}

// Traverse returns all nodes reachable from start by following edges of the
// given kinds. Each depth level costs one query.
func (s *SurrealGraphStore) Traverse(ctx context.Context, start string, edgeKinds []string, direction Direction, maxDepth int) ([]Node, error) {
	ids, err := breadthFirst(ctx, start, direction, maxDepth, func(frontier []string) ([]Edge, error) {
		return s.GetEdgesOf(ctx, frontier, direction, edgeKinds)
	})
	if err != nil {
		return nil, fmt.Errorf("traverse from %s: %w", start, err)
	}
	return s.GetNodes(ctx, ids)
}

// allEdges lists every edge, used by ExportJSONL.
func (s *SurrealGraphStore) allEdges(ctx context.Context) ([]Edge, error) {
	results, err := surrealdb.Query[[]surrealEdge](ctx, s.db,
		`SELECT source, target, kind, stoichiometry, metadata FROM link`, nil)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", wrapSurrealError(err))
	}
	var edges []Edge
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			edges = append(edges, Edge(row))
		}
	}
	return edges, nil
}

// Sync is a no-op: writes are durable on the server.
func (s *SurrealGraphStore) Sync(ctx context.Context) error {
	return nil
}

// Close closes the connection.
func (s *SurrealGraphStore) Close() error {
	s.logger.Info("closing graph database connection")
	return s.conn.Close(context.Background())
}

func (n surrealNode) node() Node {
	return Node{ID: n.Key, Kind: n.Kind, Content: n.Content, Metadata: n.Metadata}
}
