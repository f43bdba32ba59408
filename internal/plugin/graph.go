package plugin

import (
	"sort"

	"github.com/google/uuid"

	"github.com/crlotwhite/libetude-sub011/internal/config"
	"github.com/crlotwhite/libetude-sub011/internal/metrics"
	"github.com/crlotwhite/libetude-sub011/internal/semver"
)

// ResolveStatus classifies the outcome of matching one declared dependency
// edge against the graph's candidate plugin versions.
type ResolveStatus string

const (
	StatusResolved     ResolveStatus = "resolved"
	StatusMissing      ResolveStatus = "missing"
	StatusIncompatible ResolveStatus = "incompatible"
	StatusCircular     ResolveStatus = "circular"
	StatusUnresolved   ResolveStatus = "unresolved"
)

// ResolvedResult is one row of a dependency resolution report.
type ResolvedResult struct {
	Subject    string
	Dependency string
	Status     ResolveStatus
	Required   bool
	Chosen     semver.Version
	HasChosen  bool
	ErrorText  string
}

// node is one candidate plugin version in the graph's arena. Several nodes
// may share a Name; the Registry (not the graph) enforces per-name
// uniqueness among loaded instances.
type node struct {
	rec *Record
}

// Graph is the Dependency Graph (C8): an arena of candidate plugin versions
// plus a name index, supporting best-match dependency resolution, cycle
// detection, and topological load ordering. Grounded on the teacher's
// model_registry map-of-slices pattern, generalized to carry edges.
type Graph struct {
	nodes  []node
	byName map[string][]int
	byUUID map[string]int

	cfg config.DependencyConfig
	rmx *metrics.ResolverMetrics
}

// NewGraph constructs an empty Graph governed by cfg's version policy.
func NewGraph(cfg config.DependencyConfig) *Graph {
	return &Graph{
		byName: make(map[string][]int),
		byUUID: make(map[string]int),
		cfg:    cfg,
	}
}

// SetMetrics attaches the resolver collector every subsequent Resolve call
// reports outcomes to. A nil Graph-side collector (the zero value) is a
// silent no-op, matching the nil-safe convention metrics.ResolverMetrics'
// own methods already follow.
func (g *Graph) SetMetrics(rmx *metrics.ResolverMetrics) { g.rmx = rmx }

// Add inserts rec as a candidate node, keyed by UUID so re-adding the same
// record is a no-op. Returns the node index.
func (g *Graph) Add(rec *Record) int {
	key := rec.Metadata.UUID.String()
	if idx, ok := g.byUUID[key]; ok {
		g.nodes[idx].rec = rec
		return idx
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, node{rec: rec})
	g.byUUID[key] = idx
	g.byName[rec.Metadata.Name] = append(g.byName[rec.Metadata.Name], idx)
	return idx
}

// Remove drops every candidate node named name, along with any edges other
// nodes declare pointing at that name (those edges simply stop resolving).
func (g *Graph) Remove(name string) {
	indices, ok := g.byName[name]
	if !ok {
		return
	}
	remove := make(map[int]bool, len(indices))
	for _, idx := range indices {
		remove[idx] = true
		delete(g.byUUID, g.nodes[idx].rec.Metadata.UUID.String())
	}
	delete(g.byName, name)

	kept := make([]node, 0, len(g.nodes)-len(indices))
	remap := make(map[int]int, len(g.nodes))
	for i, n := range g.nodes {
		if remove[i] {
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, n)
	}
	g.nodes = kept

	for nm, idxs := range g.byName {
		fresh := make([]int, 0, len(idxs))
		for _, idx := range idxs {
			fresh = append(fresh, remap[idx])
		}
		g.byName[nm] = fresh
	}
	for key, idx := range g.byUUID {
		g.byUUID[key] = remap[idx]
	}
}

// NodeName returns the plugin name of the candidate at idx.
func (g *Graph) NodeName(idx int) string { return g.nodes[idx].rec.Metadata.Name }

// NodeUUID returns the plugin UUID of the candidate at idx.
func (g *Graph) NodeUUID(idx int) uuid.UUID { return g.nodes[idx].rec.Metadata.UUID }

// candidatesFor returns every live node index named name, sorted by
// descending version so callers can scan best-to-worst.
func (g *Graph) candidatesFor(name string) []int {
	idxs := append([]int(nil), g.byName[name]...)
	sort.Slice(idxs, func(i, j int) bool {
		return semver.Less(g.nodes[idxs[j]].rec.Metadata.Version, g.nodes[idxs[i]].rec.Metadata.Version)
	})
	return idxs
}

// bestMatch selects the node satisfying dep under the graph's version
// policy, returning (index, true) on success.
func (g *Graph) bestMatch(dep Dependency) (int, bool) {
	for _, idx := range g.candidatesFor(dep.TargetName) {
		v := g.nodes[idx].rec.Metadata.Version

		if !g.cfg.AllowPrerelease && v.IsPrerelease() {
			continue
		}
		if !dep.Range.Satisfies(v) {
			continue
		}

		switch g.cfg.VersionPolicy {
		case config.PolicyStrict:
			if dep.Range.HasMax && !semver.Equal(dep.Range.Min, dep.Range.Max) {
				continue
			}
			if !semver.Equal(v, dep.Range.Min) {
				continue
			}
			return idx, true
		case config.PolicyLatestStable:
			if v.IsPrerelease() {
				continue
			}
			return idx, true
		default: // PolicyCompatible, PolicyLatest: highest satisfying version
			return idx, true
		}
	}
	return 0, false
}

// Resolve evaluates every dependency declared by the node at idx, reporting
// each edge's outcome status to the attached resolver metrics collector.
func (g *Graph) Resolve(idx int) []ResolvedResult {
	rec := g.nodes[idx].rec
	_, cyclic := g.computeOrder()

	out := make([]ResolvedResult, 0, len(rec.Dependencies))
	record := func(res ResolvedResult) {
		g.rmx.RecordResolution(string(res.Status))
		out = append(out, res)
	}
	for _, dep := range rec.Dependencies {
		res := ResolvedResult{
			Subject:    rec.Metadata.Name,
			Dependency: dep.TargetName,
			Required:   dep.Required,
		}

		if cyclic[idx] {
			res.Status = StatusCircular
			record(res)
			continue
		}

		candidates := g.candidatesFor(dep.TargetName)
		if len(candidates) == 0 {
			res.Status = StatusMissing
			record(res)
			continue
		}

		chosen, ok := g.bestMatch(dep)
		if !ok {
			res.Status = StatusIncompatible
			record(res)
			continue
		}

		res.Status = StatusResolved
		res.Chosen = g.nodes[chosen].rec.Metadata.Version
		res.HasChosen = true
		record(res)
	}
	return out
}

// ResolveAll runs Resolve across every live node, sorted by subject name for
// deterministic reporting.
func (g *Graph) ResolveAll() []ResolvedResult {
	order := make([]int, len(g.nodes))
	for i := range g.nodes {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return g.nodes[order[i]].rec.Metadata.Name < g.nodes[order[j]].rec.Metadata.Name
	})

	out := make([]ResolvedResult, 0, len(g.nodes))
	for _, idx := range order {
		out = append(out, g.Resolve(idx)...)
	}
	return out
}

// CheckCircular reports whether any required-dependency cycle exists among
// the graph's live nodes.
func (g *Graph) CheckCircular() bool {
	_, cyclic := g.computeOrder()
	return len(cyclic) > 0
}

// LoadOrder returns node indices in a dependency-respecting load order
// (dependencies before dependents), excluding any node that participates in
// a cycle.
func (g *Graph) LoadOrder() []int {
	order, _ := g.computeOrder()
	return order
}

// computeOrder runs a three-color DFS over required edges, returning a
// postorder load sequence and the set of node indices that participate in a
// cycle. On finding a back edge to a node still on the active stack, every
// node from that node's stack position to the top is marked cyclic, not
// just the two edge endpoints, so longer cycles are fully captured.
func (g *Graph) computeOrder() (order []int, cyclic map[int]bool) {
	n := len(g.nodes)
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, n)
	cyclic = make(map[int]bool)
	order = make([]int, 0, n)

	var stack []int
	stackPos := make(map[int]int)

	roots := make([]int, n)
	for i := range roots {
		roots[i] = i
	}
	sort.Slice(roots, func(i, j int) bool {
		return g.nodes[roots[i]].rec.Metadata.Name < g.nodes[roots[j]].rec.Metadata.Name
	})

	var dfs func(u int)
	dfs = func(u int) {
		color[u] = gray
		stack = append(stack, u)
		stackPos[u] = len(stack) - 1

		deps := append([]Dependency(nil), g.nodes[u].rec.Dependencies...)
		sort.Slice(deps, func(i, j int) bool { return deps[i].TargetName < deps[j].TargetName })

		for _, dep := range deps {
			if !dep.Required {
				continue
			}
			target, ok := g.bestMatch(dep)
			if !ok {
				continue
			}
			switch color[target] {
			case white:
				dfs(target)
			case gray:
				pos := stackPos[target]
				for _, idx := range stack[pos:] {
					cyclic[idx] = true
				}
			}
		}

		color[u] = black
		stack = stack[:len(stack)-1]
		delete(stackPos, u)
		if !cyclic[u] {
			order = append(order, u)
		}
	}

	for _, idx := range roots {
		if color[idx] == white {
			dfs(idx)
		}
	}
	return order, cyclic
}
