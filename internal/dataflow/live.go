package dataflow

import "brilopt/internal/cfg"

// LiveVariables runs the backward, union, `(out \ defs) ∪ uses`
// analysis and returns the live-in/live-out set for
// every block.
func LiveVariables(g *cfg.Graph) Result[StringSet] {
	transfer := func(out StringSet, b *cfg.Block) StringSet {
		live := out.Clone()
		// Walk instructions (and the terminator) in reverse so a def
		// kills the variable before its uses earlier in the block make
		// it live again.
		process := func(args []string, dest string) {
			if dest != "" {
				delete(live, dest)
			}
			for _, a := range args {
				live[a] = true
			}
		}

		if b.Term != nil {
			process(b.Term.Args, b.Term.Dest)
		}
		for i := len(b.Instrs) - 1; i >= 0; i-- {
			instr := b.Instrs[i]
			process(instr.Args, instr.Dest)
		}
		return live
	}

	return Solve(g, Config[StringSet]{
		Direction: Backward,
		Lattice:   stringSetLattice{},
		Transfer:  transfer,
	})
}
