package dataflow

import "brilopt/internal/cfg"

// ReachingDefinitions runs the forward, union, `(in \ kills) ∪ gens`
// analysis. In this toolkit's variant (reaching / initialized
// variables) a defined variable is never un-initialized again, so
// kills is always empty and the fact simply accumulates: each block's
// IN is the set of variable names assigned on at least one path
// reaching it. The entry's initial value is the function's parameter
// set.
func ReachingDefinitions(g *cfg.Graph) Result[StringSet] {
	transfer := func(in StringSet, b *cfg.Block) StringSet {
		out := in.Clone()
		for _, instr := range b.Instrs {
			if instr.Dest != "" {
				out[instr.Dest] = true
			}
		}
		if b.Term != nil && b.Term.Dest != "" {
			out[b.Term.Dest] = true
		}
		return out
	}

	params := NewStringSet()
	for _, a := range g.Args {
		params[a.Name] = true
	}

	return Solve(g, Config[StringSet]{
		Direction: Forward,
		Lattice:   stringSetLattice{},
		Transfer:  transfer,
		Init:      map[int]StringSet{g.Entry: params},
	})
}
