package toolconfig

import "strings"

// ResolvedPath is the outcome of resolving a flat tool-call name (e.g.
// "cargo_build_release") against a ToolConfig's recursive subcommand tree.
type ResolvedPath struct {
	// Segments is the subcommand path from root to leaf, e.g.
	// ["cargo", "build", "release"] once joined with the tool's base command.
	Segments []string
	// Node is the matched leaf Subcommand, or nil if the tool has no
	// subcommand tree at all (a bare base-command tool).
	Node *Subcommand
}

// ResolveSubcommand finds the longest-prefix match of a flat, underscore-
// joined tool invocation name against tc's subcommand tree: a flat tool
// name like cargo_build_release routes to nested subcommands
// cargo/build/release, and the deepest matching node wins.
//
// flatName is matched against the full tool name plus each subcommand
// segment joined by "_"; the deepest matching node wins. If tc has no
// subcommand tree, ResolveSubcommand returns an empty path and a nil node.
func ResolveSubcommand(tc *ToolConfig, flatName string) ResolvedPath {
	best := ResolvedPath{}
	var walk func(prefix string, segs []string, nodes []Subcommand)
	walk = func(prefix string, segs []string, nodes []Subcommand) {
		for i := range nodes {
			n := &nodes[i]
			candidate := prefix + "_" + n.Name
			candidateSegs := append(append([]string{}, segs...), n.Name)
			if strings.HasPrefix(flatName, candidate) {
				if len(candidateSegs) > len(best.Segments) {
					best = ResolvedPath{Segments: candidateSegs, Node: n}
				}
				walk(candidate, candidateSegs, n.Subcommand)
			}
		}
	}
	walk(tc.Name, nil, tc.Subcommand)
	return best
}

// FindSubcommand looks up a whitespace-separated subcommand path (as
// supplied directly in a "subcommand" call argument, e.g. "build release")
// within tc's tree, returning the matched node and its full segment path.
func FindSubcommand(tc *ToolConfig, path string) ResolvedPath {
	if path == "" {
		return ResolvedPath{}
	}
	parts := strings.Fields(path)
	nodes := tc.Subcommand
	var segs []string
	var node *Subcommand
	for _, part := range parts {
		found := false
		for i := range nodes {
			if nodes[i].Name == part {
				node = &nodes[i]
				segs = append(segs, part)
				nodes = nodes[i].Subcommand
				found = true
				break
			}
		}
		if !found {
			return ResolvedPath{}
		}
	}
	return ResolvedPath{Segments: segs, Node: node}
}
