package gql

import (
	"sync"
)

// ReactiveGraph manages reactive dependency relationships with safe traversal
type ReactiveGraph struct {
	// Using adjacency list representation for better memory efficiency
	downstream map[AnyExecutor][]AnyExecutor
	upstream   map[AnyExecutor][]AnyExecutor
	mu         sync.RWMutex
}

// NewReactiveGraph creates a new reactive dependency graph
func NewReactiveGraph() *ReactiveGraph {
	return &ReactiveGraph{
		downstream: make(map[AnyExecutor][]AnyExecutor),
		upstream:   make(map[AnyExecutor][]AnyExecutor),
	}
}

// AddDependency adds a reactive dependency relationship
func (g *ReactiveGraph) AddDependency(dependent AnyExecutor, dependency AnyExecutor) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.downstream[dependency] = appendUnique(g.downstream[dependency], dependent)
	g.upstream[dependent] = appendUnique(g.upstream[dependent], dependency)
}

// Detach removes every edge from dependent to its dependencies. Edges into
// dependent are kept.
func (g *ReactiveGraph) Detach(dependent AnyExecutor) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, dependency := range g.upstream[dependent] {
		g.downstream[dependency] = removeElement(g.downstream[dependency], dependent)
		if len(g.downstream[dependency]) == 0 {
			delete(g.downstream, dependency)
		}
	}
	delete(g.upstream, dependent)
}

// TopologicalDependents returns every executor reachable downstream from roots,
// ordered so that each executor comes after all of its reachable dependencies.
// The roots themselves are not included.
func (g *ReactiveGraph) TopologicalDependents(roots ...AnyExecutor) []AnyExecutor {
	g.mu.RLock()
	defer g.mu.RUnlock()

	isRoot := make(map[AnyExecutor]bool, len(roots))
	for _, r := range roots {
		isRoot[r] = true
	}

	// Iterative post-order DFS; reversed post-order is a topological order.
	type frame struct {
		node AnyExecutor
		next int
	}
	visited := make(map[AnyExecutor]bool, 32)
	postOrder := make([]AnyExecutor, 0, 32)

	for _, root := range roots {
		if visited[root] {
			continue
		}
		visited[root] = true
		stack := []frame{{node: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.downstream[top.node]
			if top.next < len(children) {
				child := children[top.next]
				top.next++
				if !visited[child] {
					visited[child] = true
					stack = append(stack, frame{node: child})
				}
				continue
			}
			postOrder = append(postOrder, top.node)
			stack = stack[:len(stack)-1]
		}
	}

	ordered := make([]AnyExecutor, 0, len(postOrder))
	for i := len(postOrder) - 1; i >= 0; i-- {
		if !isRoot[postOrder[i]] {
			ordered = append(ordered, postOrder[i])
		}
	}
	return ordered
}

// GetDirectDependents returns only direct dependents (no recursion)
func (g *ReactiveGraph) GetDirectDependents(executor AnyExecutor) []AnyExecutor {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if deps, exists := g.downstream[executor]; exists {
		result := make([]AnyExecutor, len(deps))
		copy(result, deps)
		return result
	}
	return nil
}

// Export returns a copy of the downstream adjacency lists.
func (g *ReactiveGraph) Export() map[AnyExecutor][]AnyExecutor {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[AnyExecutor][]AnyExecutor, len(g.downstream))
	for parent, children := range g.downstream {
		out[parent] = append([]AnyExecutor(nil), children...)
	}
	return out
}

func appendUnique[T comparable](slice []T, item T) []T {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}

func removeElement[T comparable](slice []T, item T) []T {
	for i, existing := range slice {
		if existing == item {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
