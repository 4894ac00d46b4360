package cfg

import (
	"fmt"

	"brilopt/internal/bril"
	"brilopt/internal/diagnostics"
)

// Build lowers a function's linear body into a CFG.
//
// Unlabeled leading blocks are given synthesized labels b0, b1, ...
// in order of appearance. A jmp/br to an unresolved label, or two
// blocks sharing a label, is malformed input and reported as such,
// never an internal error: both are problems with the input, not a
// bug in brilopt.
func Build(fn *bril.Function) (*Graph, error) {
	g := &Graph{
		FuncName:   fn.Name,
		Args:       fn.Args,
		ReturnType: fn.ReturnType,
		labels:     make(map[string]int),
	}

	if err := splitBlocks(g, fn); err != nil {
		return nil, err
	}
	if err := wireEdges(g); err != nil {
		return nil, err
	}
	normalizeEntry(g)

	return g, nil
}

// splitBlocks performs step 1: start a new block at every label and
// after every terminator.
func splitBlocks(g *Graph, fn *bril.Function) error {
	anon := 0
	var cur *Block

	freshAnonBlock := func() *Block {
		label := fmt.Sprintf("b%d", anon)
		anon++
		return g.NewBlock(label)
	}

	for _, item := range fn.Items {
		if item.IsLabel() {
			if _, dup := g.labels[item.Label.Name]; dup {
				return diagnostics.MalformedIn(fn.Name, "duplicate label %q", item.Label.Name)
			}
			cur = g.NewBlock(item.Label.Name)
			continue
		}

		instr := item.Instr
		if cur == nil {
			cur = freshAnonBlock()
		}

		if bril.IsTerminator(instr.Op) {
			cur.Term = instr
			cur = nil
			continue
		}
		cur.Instrs = append(cur.Instrs, instr)
	}

	return nil
}

// wireEdges performs step 2+3: successors from terminators and
// fall-through, then predecessors as the inverse.
func wireEdges(g *Graph) error {
	for i, b := range g.Blocks {
		switch {
		case b.Term == nil:
			// Fall-through to the next block (or an implicit return if
			// this is the function's last block).
			if i+1 < len(g.Blocks) {
				g.addEdge(i, i+1)
			}

		case b.Term.Op == bril.OpJmp:
			target, ok := g.labels[singleLabel(b.Term)]
			if !ok {
				return diagnostics.MalformedIn(g.FuncName, "jmp to unresolved label %q", singleLabel(b.Term))
			}
			g.addEdge(i, target)

		case b.Term.Op == bril.OpBr:
			if len(b.Term.Labels) != 2 {
				return diagnostics.MalformedIn(g.FuncName, "br must have exactly two labels, got %d", len(b.Term.Labels))
			}
			for _, label := range b.Term.Labels {
				target, ok := g.labels[label]
				if !ok {
					return diagnostics.MalformedIn(g.FuncName, "br to unresolved label %q", label)
				}
				g.addEdge(i, target)
			}

		case b.Term.Op == bril.OpRet:
			// no successors

		default:
			return diagnostics.MalformedIn(g.FuncName, "unknown terminator opcode %q", b.Term.Op)
		}
	}
	return nil
}

func singleLabel(instr *bril.Instr) string {
	if len(instr.Labels) != 1 {
		return ""
	}
	return instr.Labels[0]
}

// normalizeEntry performs step 4: if the entry block has any
// predecessor, insert a synthetic entry block jumping to it, so SSA
// renaming's precondition (entry has no predecessors) always holds.
func normalizeEntry(g *Graph) {
	if len(g.Blocks) == 0 {
		return
	}
	if len(g.Blocks[0].Preds) == 0 {
		g.Entry = 0
		return
	}

	oldEntryLabel := g.Blocks[0].Label
	synth := fmt.Sprintf("entry.%s", oldEntryLabel)
	for {
		if _, exists := g.labels[synth]; !exists {
			break
		}
		synth += ".0"
	}

	// Prepend the new block. Every existing block shifts up by one
	// slot, so every id recorded in Succs/Preds must shift too before
	// we renumber and rebuild the label index.
	newBlock := &Block{Label: synth, Term: &bril.Instr{Op: bril.OpJmp, Labels: []string{oldEntryLabel}}}
	for _, b := range g.Blocks {
		for i := range b.Succs {
			b.Succs[i]++
		}
		for i := range b.Preds {
			b.Preds[i]++
		}
	}
	g.Blocks = append([]*Block{newBlock}, g.Blocks...)
	g.renumber()
	// newBlock is now id 0, old entry shifted to id 1.
	g.addEdge(0, 1)
	g.Entry = 0
}
