// Package dce implements dead-code elimination: a global
// fixed-point pass that drops definitions never used anywhere in the
// function, interleaved with a local pass that drops a block-local
// definition immediately overwritten with no intervening use. Phi
// instructions count as uses of their operands, and a phi itself is
// eligible for removal when its own destination is unused.
package dce

import (
	"brilopt/internal/bril"
	"brilopt/internal/cfg"
)

// Run removes dead instructions from g until a fixed point, returning
// whether anything changed.
func Run(g *cfg.Graph) bool {
	changed := g.RemoveUnreachable()
	for {
		g2 := globalPass(g)
		local := localPass(g)
		if !g2 && !local {
			break
		}
		changed = true
	}
	return changed
}

// globalPass drops any definition whose destination is never used as
// an operand anywhere in the function, provided the defining
// instruction has no side effects. Repeats until no more definitions
// are exposed as dead, since removing one use can make another
// definition dead in turn.
func globalPass(g *cfg.Graph) bool {
	changed := false
	for {
		used := collectUses(g)
		removedThisRound := false

		for _, b := range g.Blocks {
			kept := b.Instrs[:0]
			for _, instr := range b.Instrs {
				if instr.Dest != "" && !used[instr.Dest] && !bril.HasSideEffects(instr.Op) {
					removedThisRound = true
					continue
				}
				kept = append(kept, instr)
			}
			b.Instrs = kept
		}

		if !removedThisRound {
			break
		}
		changed = true
	}
	return changed
}

func collectUses(g *cfg.Graph) map[string]bool {
	used := map[string]bool{}
	for _, b := range g.Blocks {
		for _, instr := range b.Instrs {
			for _, u := range instr.Uses() {
				used[u] = true
			}
		}
		if b.Term != nil {
			for _, u := range b.Term.Uses() {
				used[u] = true
			}
		}
	}
	return used
}

// localPass drops a block-local definition at position i when it is
// reassigned at position j > i with no use of the variable in
// between, within the same block.
func localPass(g *cfg.Graph) bool {
	changed := false
	for _, b := range g.Blocks {
		if localPassBlock(b) {
			changed = true
		}
	}
	return changed
}

func localPassBlock(b *cfg.Block) bool {
	changed := false
	dead := make([]bool, len(b.Instrs))

	lastDef := map[string]int{} // var -> index of its most recent live definition
	for i, instr := range b.Instrs {
		for _, u := range instr.Uses() {
			delete(lastDef, u)
		}
		if instr.Dest != "" {
			if prev, ok := lastDef[instr.Dest]; ok && !bril.HasSideEffects(b.Instrs[prev].Op) {
				dead[prev] = true
				changed = true
			}
			lastDef[instr.Dest] = i
		}
	}

	if b.Term != nil {
		for _, u := range b.Term.Uses() {
			delete(lastDef, u)
		}
	}

	if !changed {
		return false
	}

	kept := b.Instrs[:0]
	for i, instr := range b.Instrs {
		if !dead[i] {
			kept = append(kept, instr)
		}
	}
	b.Instrs = kept
	return true
}
