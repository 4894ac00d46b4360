package cfg

import "brilopt/internal/bril"

// Linearize converts a graph back to a function's linear form. Blocks
// are emitted in their current order; a label item is emitted for
// every block (even ones with no incoming edge, to keep output
// deterministic and debuggable), and an explicit jmp is synthesized
// for any block whose fall-through successor is no longer the next
// block in this order.
func Linearize(g *Graph) *bril.Function {
	fn := &bril.Function{
		Name:       g.FuncName,
		Args:       g.Args,
		ReturnType: g.ReturnType,
	}

	for i, b := range g.Blocks {
		fn.Items = append(fn.Items, bril.Item{Label: &bril.Label{Name: b.Label}})
		for _, instr := range b.Instrs {
			fn.Items = append(fn.Items, bril.Item{Instr: instr})
		}

		switch {
		case b.Term != nil:
			fn.Items = append(fn.Items, bril.Item{Instr: b.Term})
		case len(b.Succs) == 1:
			// Implicit fall-through: only emit an explicit jmp if the
			// successor isn't physically next, keeping the CFG<->linear
			// round trip faithful.
			if b.Succs[0] != i+1 {
				fn.Items = append(fn.Items, bril.Item{Instr: &bril.Instr{
					Op:     bril.OpJmp,
					Labels: []string{g.Blocks[b.Succs[0]].Label},
				}})
			}
		}
	}

	return fn
}
