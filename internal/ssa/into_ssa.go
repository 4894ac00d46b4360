// Package ssa converts a cfg.Graph into and out of static single
// assignment form.
package ssa

import (
	"fmt"
	"sort"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/dom"
)

// UndefMarker is the operand name phi placement/renaming uses on an
// edge whose predecessor has no definition reaching it. FromSSA emits
// no copy for a phi operand carrying it.
const UndefMarker = "__undef__"

// ToSSA rewrites g in place into SSA form: phis are placed at the
// iterated dominance frontier of each variable's definitions, then
// every variable is renamed via a single dom-tree preorder walk with
// explicit per-variable stacks.
func ToSSA(g *cfg.Graph) error {
	info := dom.Compute(g)

	defs := collectDefs(g)
	placePhis(g, info, defs)
	renameVariables(g, info)

	return nil
}

// collectDefs returns, for each variable, the set of block ids
// containing a definition of it (its dest appears in some instruction).
// Function parameters are not recorded.
func collectDefs(g *cfg.Graph) map[string]map[int]bool {
	defs := make(map[string]map[int]bool)
	record := func(name string, block int) {
		if defs[name] == nil {
			defs[name] = make(map[int]bool)
		}
		defs[name][block] = true
	}

	for _, b := range g.Blocks {
		for _, instr := range b.Instrs {
			if instr.Dest != "" {
				record(instr.Dest, b.ID)
			}
		}
		if b.Term != nil && b.Term.Dest != "" {
			record(b.Term.Dest, b.ID)
		}
	}
	return defs
}

// placePhis inserts an (initially operand-less) phi for v at every
// block in the iterated dominance frontier of Defs(v), for every
// variable except function parameters defined only at entry with no
// further redefinition (phis for those would be trivially single-input
// and are elided).
func placePhis(g *cfg.Graph, info *dom.Info, defs map[string]map[int]bool) {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic block/instr ordering for tests and diffs

	for _, name := range names {
		defBlocks := defs[name]
		hasPhi := make(map[int]bool)

		worklist := make([]int, 0, len(defBlocks))
		for b := range defBlocks {
			worklist = append(worklist, b)
		}

		for len(worklist) > 0 {
			b := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			if !info.Reachable(b) {
				continue
			}
			for frontierBlock := range info.Frontier[b] {
				if hasPhi[frontierBlock] {
					continue
				}
				hasPhi[frontierBlock] = true
				insertPhi(g.Blocks[frontierBlock], name, varType(g, defBlocks, name))
				if !defBlocks[frontierBlock] {
					worklist = append(worklist, frontierBlock)
				}
			}
		}
	}
}

// varType recovers the declared type of a variable from any one of its
// definitions, so the inserted phi can carry a type (needed for
// re-emission and for the dataflow/LVN passes that key on it).
func varType(g *cfg.Graph, defBlocks map[int]bool, name string) bril.Type {
	for b := range defBlocks {
		for _, instr := range g.Blocks[b].Instrs {
			if instr.Dest == name {
				return instr.Type
			}
		}
		if t := g.Blocks[b].Term; t != nil && t.Dest == name {
			return t.Type
		}
	}
	for _, a := range g.Args {
		if a.Name == name {
			return a.Type
		}
	}
	return nil
}

// insertPhi prepends a fresh, argument-less phi for name at the front
// of b's instruction list; renameVariables fills in its destination
// and operand/label pairs. Phis always sit at the start of a block.
func insertPhi(b *cfg.Block, name string, t bril.Type) {
	phi := &bril.Instr{Op: bril.OpPhi, Dest: name, Type: t}
	b.Instrs = append([]*bril.Instr{phi}, b.Instrs...)
}

// countPhis returns how many leading instructions of b are phis.
func countPhis(b *cfg.Block) int {
	n := 0
	for _, instr := range b.Instrs {
		if instr.Op != bril.OpPhi {
			break
		}
		n++
	}
	return n
}

// renamer holds the per-variable stacks used across the whole
// dom-tree walk, plus a counter to mint fresh SSA names.
type renamer struct {
	g       *cfg.Graph
	info    *dom.Info
	stacks  map[string][]string
	counter map[string]int
}

func renameVariables(g *cfg.Graph, info *dom.Info) {
	r := &renamer{
		g:       g,
		info:    info,
		stacks:  make(map[string][]string),
		counter: make(map[string]int),
	}
	for _, a := range g.Args {
		r.stacks[a.Name] = append(r.stacks[a.Name], a.Name)
	}
	r.visit(g.Entry)
}

func (r *renamer) fresh(base string) string {
	n := r.counter[base]
	r.counter[base]++
	return fmt.Sprintf("%s.%d", base, n)
}

func (r *renamer) top(name string) string {
	s := r.stacks[name]
	if len(s) == 0 {
		return UndefMarker
	}
	return s[len(s)-1]
}

func (r *renamer) push(name, ssaName string) {
	r.stacks[name] = append(r.stacks[name], ssaName)
}

// visit renames block id, using an explicit push log (rather than
// relying on Go's call stack to scope pops) so the pop-on-exit step
// reads as data and the traversal stays easy to make iterative for
// deep dominator trees.
func (r *renamer) visit(id int) {
	b := r.g.Blocks[id]
	var pushed []string // variable base names pushed while processing this block

	nPhis := countPhis(b)
	for i := 0; i < nPhis; i++ {
		phi := b.Instrs[i]
		base := phi.Dest
		ssaName := r.fresh(base)
		phi.Dest = ssaName
		r.push(base, ssaName)
		pushed = append(pushed, base)
	}

	for i := nPhis; i < len(b.Instrs); i++ {
		instr := b.Instrs[i]
		for argIdx, arg := range instr.Args {
			instr.Args[argIdx] = r.top(arg)
		}
		if instr.Dest != "" {
			base := instr.Dest
			ssaName := r.fresh(base)
			instr.Dest = ssaName
			r.push(base, ssaName)
			pushed = append(pushed, base)
		}
	}

	if b.Term != nil {
		for argIdx, arg := range b.Term.Args {
			b.Term.Args[argIdx] = r.top(arg)
		}
	}

	for _, succID := range b.Succs {
		succ := r.g.Blocks[succID]
		for i := 0; i < countPhis(succ); i++ {
			phi := succ.Instrs[i]
			base := phiBase(phi)
			succ.Instrs[i].Args = append(phi.Args, r.top(base))
			succ.Instrs[i].Labels = append(phi.Labels, b.Label)
		}
	}

	for _, child := range r.info.Children[id] {
		r.visit(child)
	}

	for _, base := range pushed {
		r.stacks[base] = r.stacks[base][:len(r.stacks[base])-1]
	}
}

// phiBase recovers the original variable name a (possibly already
// renamed) phi defines. Renaming gives every phi destination the
// "base.N" shape, and a phi's base is a property of the position it
// was inserted at, so we track it via the original Dest before
// renaming overwrites it -- callers (here, predecessor fixups) only
// ever see already-renamed phis whose Dest is the SSA name, so we
// instead derive the base from the *first* operand-free occurrence by
// stripping the last ".N" suffix renaming appended.
func phiBase(phi *bril.Instr) string {
	for i := len(phi.Dest) - 1; i >= 0; i-- {
		if phi.Dest[i] == '.' {
			return phi.Dest[:i]
		}
	}
	return phi.Dest
}
