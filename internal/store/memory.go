package store

import (
	"context"
	"sync"
)

type edgeKey struct {
	source, target, kind string
}

// InMemoryGraphStore implements GraphStore for testing and small graphs
// loaded from JSONL.
type InMemoryGraphStore struct {
	mu       sync.RWMutex
	nodes    map[string]Node
	edges    map[edgeKey]Edge
	outbound map[string][]edgeKey
	inbound  map[string][]edgeKey
}

// NewInMemoryGraphStore creates a new in-memory store.
func NewInMemoryGraphStore() *InMemoryGraphStore {
	return &InMemoryGraphStore{
		nodes:    make(map[string]Node),
		edges:    make(map[edgeKey]Edge),
		outbound: make(map[string][]edgeKey),
		inbound:  make(map[string][]edgeKey),
	}
}

// AddNode adds or replaces a node.
func (s *InMemoryGraphStore) AddNode(ctx context.Context, node Node) (string, error) {
	if err := validateNode(node); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes[node.ID] = node
	return node.ID, nil
}

// GetNode retrieves a node by ID. Returns nil if not found.
func (s *InMemoryGraphStore) GetNode(ctx context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, exists := s.nodes[id]
	if !exists {
		return nil, nil
	}
	return &node, nil
}

// QueryNodes returns nodes matching the predicate.
func (s *InMemoryGraphStore) QueryNodes(ctx context.Context, predicate map[string]interface{}) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Node, 0)
	for _, node := range s.nodes {
		if matchesPredicate(node, predicate) {
			results = append(results, node)
		}
	}
	return results, nil
}

// AddEdge adds or replaces an edge.
func (s *InMemoryGraphStore) AddEdge(ctx context.Context, edge Edge) error {
	if err := validateEdge(edge); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey{edge.Source, edge.Target, edge.Kind}
	if _, exists := s.edges[key]; !exists {
		s.outbound[edge.Source] = append(s.outbound[edge.Source], key)
		s.inbound[edge.Target] = append(s.inbound[edge.Target], key)
	}
	s.edges[key] = edge
	return nil
}

// GetEdges returns edges connected to a node.
func (s *InMemoryGraphStore) GetEdges(ctx context.Context, nodeID string, direction Direction, kind string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.edgesUnlocked(nodeID, direction, kind), nil
}

func (s *InMemoryGraphStore) edgesUnlocked(nodeID string, direction Direction, kind string) []Edge {
	var keys []edgeKey
	switch direction {
	case DirectionOutbound:
		keys = s.outbound[nodeID]
	case DirectionInbound:
		keys = s.inbound[nodeID]
	case DirectionBoth:
		keys = append(append(keys, s.outbound[nodeID]...), s.inbound[nodeID]...)
	}

	results := make([]Edge, 0, len(keys))
	for _, k := range keys {
		if kind != "" && k.kind != kind {
			continue
		}
		results = append(results, s.edges[k])
	}
	return results
}

// GetNodes returns the existing nodes among ids.
func (s *InMemoryGraphStore) GetNodes(ctx context.Context, ids []string) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nodesUnlocked(ids), nil
}

func (s *InMemoryGraphStore) nodesUnlocked(ids []string) []Node {
	results := make([]Node, 0, len(ids))
	for _, id := range ids {
		if node, exists := s.nodes[id]; exists {
			results = append(results, node)
		}
	}
	return results
}

// GetEdgesOf returns the edges connected to any of nodeIDs.
func (s *InMemoryGraphStore) GetEdgesOf(ctx context.Context, nodeIDs []string, direction Direction, kinds []string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.edgesOfUnlocked(nodeIDs, direction, kinds), nil
}

func (s *InMemoryGraphStore) edgesOfUnlocked(nodeIDs []string, direction Direction, kinds []string) []Edge {
	seen := make(map[edgeKey]bool)
	results := make([]Edge, 0)
	for _, id := range nodeIDs {
		for _, e := range s.edgesUnlocked(id, direction, "") {
			key := edgeKey{e.Source, e.Target, e.Kind}
			if seen[key] || !edgeKindMatches(e.Kind, kinds) {
				continue
			}
			seen[key] = true
			results = append(results, e)
		}
	}
	return results
}

// Traverse returns all nodes reachable from start by following edges of the given kinds.
func (s *InMemoryGraphStore) Traverse(ctx context.Context, start string, edgeKinds []string, direction Direction, maxDepth int) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := breadthFirst(ctx, start, direction, maxDepth, func(frontier []string) ([]Edge, error) {
		return s.edgesOfUnlocked(frontier, direction, edgeKinds), nil
	})
	if err != nil {
		return nil, err
	}
	return s.nodesUnlocked(ids), nil
}

// Sync is a no-op for in-memory store.
func (s *InMemoryGraphStore) Sync(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory store.
func (s *InMemoryGraphStore) Close() error {
	return nil
}
