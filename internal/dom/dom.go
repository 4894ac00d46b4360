// Package dom computes dominator trees and dominance frontiers over
// a cfg.Graph, using the iterative Cooper/Harvey/Kennedy
// reverse-postorder intersection algorithm.
package dom

import "brilopt/internal/cfg"

// Info is the per-function dominator side-table: immediate dominators,
// dominator-tree children, and dominance frontiers, indexed by block
// id. It is scoped to the pass invocation that produced it.
type Info struct {
	g *cfg.Graph

	// Idom[b] is the block id of b's immediate dominator, or -1 for
	// the entry and for unreachable blocks.
	Idom []int

	// Children[b] are b's children in the dominator tree.
	Children [][]int

	// Frontier[b] is DF(b): the set of blocks x such that b dominates
	// a predecessor of x but does not strictly dominate x.
	Frontier []map[int]bool

	rpo       []int // reverse postorder, entry first
	rpoNumber []int // block id -> its index in rpo, or -1 if unreachable
}

// Compute builds dominator info for g.
func Compute(g *cfg.Graph) *Info {
	n := len(g.Blocks)
	info := &Info{
		g:        g,
		Idom:     make([]int, n),
		Children: make([][]int, n),
		Frontier: make([]map[int]bool, n),
	}
	for i := range info.Idom {
		info.Idom[i] = -1
		info.Frontier[i] = make(map[int]bool)
	}

	info.rpo = reversePostorder(g)
	info.rpoNumber = make([]int, n)
	for i := range info.rpoNumber {
		info.rpoNumber[i] = -1
	}
	for i, b := range info.rpo {
		info.rpoNumber[b] = i
	}

	info.computeIdom()
	info.buildTree()
	info.computeFrontiers()
	return info
}

// reversePostorder returns reachable block ids from g.Entry in reverse
// postorder, entry first.
func reversePostorder(g *cfg.Graph) []int {
	visited := make([]bool, len(g.Blocks))
	var post []int

	var visit func(id int)
	visit = func(id int) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, s := range g.Blocks[id].Succs {
			visit(s)
		}
		post = append(post, id)
	}
	visit(g.Entry)

	rpo := make([]int, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}

// computeIdom runs the fixed-point intersection over reverse postorder.
func (info *Info) computeIdom() {
	entry := info.g.Entry
	info.Idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range info.rpo {
			if b == entry {
				continue
			}
			newIdom := -1
			for _, p := range info.g.Blocks[b].Preds {
				if info.Idom[p] == -1 {
					continue // predecessor not yet processed / unreachable
				}
				if newIdom == -1 {
					newIdom = p
					continue
				}
				newIdom = info.intersect(newIdom, p)
			}
			if newIdom != -1 && newIdom != info.Idom[b] {
				info.Idom[b] = newIdom
				changed = true
			}
		}
	}

	// The entry has no dominator of its own; the
	// self-reference above was only a seed for the fixed point.
	info.Idom[entry] = -1
}

func (info *Info) intersect(a, b int) int {
	for a != b {
		for info.rpoNumber[a] > info.rpoNumber[b] {
			a = info.dominatorOrSelf(a)
		}
		for info.rpoNumber[b] > info.rpoNumber[a] {
			b = info.dominatorOrSelf(b)
		}
	}
	return a
}

// dominatorOrSelf walks one step up the (still-being-built) dominator
// chain; the entry's Idom is temporarily itself during the fixed point.
func (info *Info) dominatorOrSelf(b int) int {
	if b == info.g.Entry {
		return b
	}
	return info.Idom[b]
}

func (info *Info) buildTree() {
	for b, idom := range info.Idom {
		if idom == -1 || b == info.g.Entry {
			continue
		}
		info.Children[idom] = append(info.Children[idom], b)
	}
}

// Dominates reports whether a dominates b (non-strictly): every path
// from entry to b passes through a.
func (info *Info) Dominates(a, b int) bool {
	if a == b {
		return true
	}
	return info.StrictlyDominates(a, b)
}

// StrictlyDominates reports whether a strictly dominates b.
func (info *Info) StrictlyDominates(a, b int) bool {
	if info.rpoNumber[b] == -1 {
		return false // b unreachable
	}
	for cur := info.Idom[b]; cur != -1; cur = info.Idom[cur] {
		if cur == a {
			return true
		}
	}
	return false
}

// Reachable reports whether b was reached from the entry.
func (info *Info) Reachable(b int) bool { return info.rpoNumber[b] != -1 }

// computeFrontiers implements the standard definition directly: for
// every block b with >=2 predecessors, walk each predecessor up its
// dominator chain, adding b to every frontier set visited, stopping
// when the walk reaches idom(b).
func (info *Info) computeFrontiers() {
	for _, b := range info.rpo {
		preds := info.g.Blocks[b].Preds
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			if info.Idom[p] == -1 && p != info.g.Entry {
				continue
			}
			runner := p
			for runner != info.Idom[b] && runner != -1 {
				info.Frontier[runner][b] = true
				runner = info.Idom[runner]
			}
		}
	}
}

// ReversePostorder exposes the reverse-postorder block sequence used
// internally, for callers (e.g. loop discovery) that want a deterministic
// dom-tree preorder-compatible traversal order.
func (info *Info) ReversePostorder() []int { return info.rpo }
