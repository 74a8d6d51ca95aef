package order

import (
	"cmp"
	"slices"
)

// Components returns the strongly connected components of the directed
// graph formed by edges, using Tarjan's algorithm. Each component is sorted
// and components are returned sorted by their smallest element.
func Components[T cmp.Ordered](edges []Pair[T]) [][]T {
	adj := make(map[T][]T)
	var vertices []T
	seen := make(map[T]bool)
	addVertex := func(v T) {
		if !seen[v] {
			seen[v] = true
			vertices = append(vertices, v)
		}
	}
	for _, e := range edges {
		addVertex(e.A)
		addVertex(e.B)
		adj[e.A] = append(adj[e.A], e.B)
	}
	slices.Sort(vertices)
	for v := range adj {
		slices.Sort(adj[v])
	}

	t := tarjan[T]{
		adj:     adj,
		index:   make(map[T]int),
		lowlink: make(map[T]int),
		onStack: make(map[T]bool),
	}
	for _, v := range vertices {
		if _, visited := t.index[v]; !visited {
			t.connect(v)
		}
	}

	for _, c := range t.components {
		slices.Sort(c)
	}
	slices.SortFunc(t.components, func(a, b []T) int { return cmp.Compare(a[0], b[0]) })
	return t.components
}

type tarjan[T cmp.Ordered] struct {
	adj        map[T][]T
	next       int
	index      map[T]int
	lowlink    map[T]int
	onStack    map[T]bool
	stack      []T
	components [][]T
}

func (t *tarjan[T]) connect(v T) {
	t.index[v] = t.next
	t.lowlink[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.adj[v] {
		if _, visited := t.index[w]; !visited {
			t.connect(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	var component []T
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		component = append(component, w)
		if w == v {
			break
		}
	}
	t.components = append(t.components, component)
}

// Acyclic partitions edges into those that can be kept in a partial order and
// those that lie on a cycle: self loops and edges whose endpoints share a
// strongly connected component.
func Acyclic[T cmp.Ordered](edges []Pair[T]) (kept, dropped []Pair[T]) {
	component := make(map[T]int)
	for i, c := range Components(edges) {
		for _, v := range c {
			component[v] = i
		}
	}
	for _, e := range edges {
		if e.A == e.B || component[e.A] == component[e.B] {
			dropped = append(dropped, e)
			continue
		}
		kept = append(kept, e)
	}
	return kept, dropped
}
