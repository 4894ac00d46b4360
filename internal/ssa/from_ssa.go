package ssa

import (
	"fmt"
	"sort"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/diagnostics"
)

// phiCopy is one `dest = id value` copy a predecessor must perform to
// supply a successor's phi with its value along that edge.
type phiCopy struct {
	dest, value string
	typ         bril.Type
}

// FromSSA lowers every phi in g to `id` copies appended to each
// predecessor, just before that predecessor's terminator. Phi operands
// whose value is UndefMarker are simply omitted: that predecessor path
// never defined the variable, and ToSSA never materializes an explicit
// undef instruction either.
//
// If a predecessor needs to push different copies toward two distinct
// phi-bearing successors, the affected critical edge is split by
// inserting a fresh block so the copies meant for one successor never
// leak onto the other's path.
func FromSSA(g *cfg.Graph) error {
	perEdgeCopies := make(map[[2]int][]phiCopy) // [pred, succ] -> copies

	for _, b := range g.Blocks {
		nPhis := countPhis(b)
		if nPhis == 0 {
			continue
		}
		for i := 0; i < nPhis; i++ {
			phi := b.Instrs[i]
			if len(phi.Args) != len(phi.Labels) {
				return diagnostics.Internal(g.FuncName, "phi %s has %d args but %d labels", phi.Dest, len(phi.Args), len(phi.Labels))
			}
			for idx, label := range phi.Labels {
				value := phi.Args[idx]
				if value == UndefMarker {
					continue
				}
				predBlk, ok := g.BlockNamed(label)
				if !ok {
					return diagnostics.Internal(g.FuncName, "phi %s operand label %q does not name a block", phi.Dest, label)
				}
				key := [2]int{predBlk.ID, b.ID}
				perEdgeCopies[key] = append(perEdgeCopies[key], phiCopy{dest: phi.Dest, value: value, typ: phi.Type})
			}
		}
		// Remove the phis now that their operands are recorded.
		b.Instrs = b.Instrs[nPhis:]
	}

	keys := make([][2]int, 0, len(perEdgeCopies))
	phiSuccs := make(map[int]int) // pred -> distinct successors needing copies
	for key := range perEdgeCopies {
		keys = append(keys, key)
		phiSuccs[key[0]]++
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	// A predecessor with more than one successor that needs copies must
	// have those copies live only on the edge they're for: split every
	// such edge with a fresh block carrying just the copies and a jmp.
	for _, key := range keys {
		copies := perEdgeCopies[key]
		pred, succ := key[0], key[1]

		target := g.Blocks[pred]
		if phiSuccs[pred] > 1 {
			target = splitEdge(g, pred, succ)
		}
		for _, c := range copies {
			target.Instrs = append(target.Instrs, &bril.Instr{
				Op: bril.OpID, Dest: c.dest, Type: c.typ, Args: []string{c.value},
			})
		}
	}

	return nil
}

// splitEdge inserts a fresh block on the pred->succ edge, redirecting
// pred's terminator to target it instead of succ directly, and gives
// it a jmp to succ.
func splitEdge(g *cfg.Graph, pred, succ int) *cfg.Block {
	predBlk := g.Blocks[pred]
	succBlk := g.Blocks[succ]

	label := fmt.Sprintf("%s.%s.split", predBlk.Label, succBlk.Label)
	newBlk := g.NewBlock(label)
	newBlk.Term = &bril.Instr{Op: bril.OpJmp, Labels: []string{succBlk.Label}}

	// Redirect pred's terminator operand(s) that targeted succ.
	for i, l := range predBlk.Term.Labels {
		if l == succBlk.Label {
			predBlk.Term.Labels[i] = label
		}
	}

	// Rewire adjacency: pred -> new -> succ, replacing pred -> succ.
	for i, s := range predBlk.Succs {
		if s == succ {
			predBlk.Succs[i] = newBlk.ID
		}
	}
	newBlk.Preds = append(newBlk.Preds, pred)
	newBlk.Succs = append(newBlk.Succs, succ)
	for i, p := range succBlk.Preds {
		if p == pred {
			succBlk.Preds[i] = newBlk.ID
		}
	}

	return newBlk
}
