package sim

import "sort"

// Graph is the undirected social network between persons, keyed by id.
// Actions only read it; the engine applies link and sever requests between
// actions.
type Graph struct {
	adj map[AgentID]map[AgentID]struct{}
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{adj: make(map[AgentID]map[AgentID]struct{})}
}

// Link adds an undirected edge. Self links are ignored.
func (g *Graph) Link(a, b AgentID) {
	if a == b {
		return
	}
	g.add(a, b)
	g.add(b, a)
}

func (g *Graph) add(from, to AgentID) {
	if g.adj[from] == nil {
		g.adj[from] = make(map[AgentID]struct{})
	}
	g.adj[from][to] = struct{}{}
}

// Sever removes every edge touching id.
func (g *Graph) Sever(id AgentID) {
	for other := range g.adj[id] {
		delete(g.adj[other], id)
	}
	delete(g.adj, id)
}

// Neighbors returns the ids linked to id in ascending order.
func (g *Graph) Neighbors(id AgentID) []AgentID {
	out := make([]AgentID, 0, len(g.adj[id]))
	for other := range g.adj[id] {
		out = append(out, other)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Degree returns the number of links of id.
func (g *Graph) Degree(id AgentID) int {
	return len(g.adj[id])
}
