// Package loop implements natural-loop discovery and loop-invariant
// code motion: back edges identified via dominance, the natural loop
// of a back edge as the set of blocks that can reach the latch
// without passing through the header, preheader insertion with
// phi-operand consolidation, and a fixed-point invariance analysis
// driving conservative hoisting.
package loop

import (
	"fmt"
	"sort"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/dom"
)

// Loop is the natural loop of one or more back edges sharing a header;
// back edges to the same header are merged into a single Loop, since
// they share one preheader.
type Loop struct {
	Header int
	Blocks map[int]bool // includes Header
}

// Find discovers every natural loop in g.
func Find(g *cfg.Graph, info *dom.Info) []*Loop {
	byHeader := map[int]*Loop{}
	var order []int

	for _, u := range info.ReversePostorder() {
		for _, v := range g.Blocks[u].Succs {
			if !info.Dominates(v, u) {
				continue
			}
			blocks := naturalLoopBlocks(g, u, v)
			if existing, ok := byHeader[v]; ok {
				for b := range blocks {
					existing.Blocks[b] = true
				}
				continue
			}
			l := &Loop{Header: v, Blocks: blocks}
			byHeader[v] = l
			order = append(order, v)
		}
	}

	loops := make([]*Loop, 0, len(order))
	for _, h := range order {
		loops = append(loops, byHeader[h])
	}
	return loops
}

// naturalLoopBlocks computes {header} ∪ {blocks that reach latch
// without going through header}.
func naturalLoopBlocks(g *cfg.Graph, latch, header int) map[int]bool {
	blocks := map[int]bool{header: true, latch: true}
	if header == latch {
		return blocks
	}
	stack := []int{latch}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range g.Blocks[b].Preds {
			if !blocks[p] {
				blocks[p] = true
				stack = append(stack, p)
			}
		}
	}
	return blocks
}

// Exits returns the loop's exit blocks: loop members with a successor
// outside the loop.
func (l *Loop) Exits(g *cfg.Graph) []int {
	var exits []int
	for b := range l.Blocks {
		for _, s := range g.Blocks[b].Succs {
			if !l.Blocks[s] {
				exits = append(exits, b)
				break
			}
		}
	}
	return exits
}

// InsertPreheader inserts a new block between the loop's header and
// every predecessor outside the loop, redirecting those edges; back
// edges from inside the loop still target the header directly. Phi
// operands originating from the consolidated predecessors are
// rewritten into a single operand sourced from the preheader.
func InsertPreheader(g *cfg.Graph, l *Loop) *cfg.Block {
	header := l.Header
	headerLabel := g.Blocks[header].Label
	var entryPreds []int
	for _, p := range g.Blocks[header].Preds {
		if !l.Blocks[p] {
			entryPreds = append(entryPreds, p)
		}
	}

	ph := g.NewBlock(preheaderLabel(g, headerLabel))
	ph.Succs = []int{header}

	for _, p := range entryPreds {
		pb := g.Blocks[p]
		for i, s := range pb.Succs {
			if s == header {
				pb.Succs[i] = ph.ID
			}
		}
		// The terminator still names the header; retarget it so the
		// linear form routes through the preheader too.
		if pb.Term != nil {
			for i, label := range pb.Term.Labels {
				if label == headerLabel {
					pb.Term.Labels[i] = ph.Label
				}
			}
		}
		ph.Preds = append(ph.Preds, p)
	}

	entrySet := make(map[int]bool, len(entryPreds))
	for _, p := range entryPreds {
		entrySet[p] = true
	}
	newHeaderPreds := make([]int, 0, len(g.Blocks[header].Preds))
	for _, p := range g.Blocks[header].Preds {
		if !entrySet[p] {
			newHeaderPreds = append(newHeaderPreds, p)
		}
	}
	newHeaderPreds = append(newHeaderPreds, ph.ID)
	g.Blocks[header].Preds = newHeaderPreds

	if header == g.Entry {
		g.Entry = ph.ID
	}

	consolidatePhis(g, header, ph, entryPreds)
	return ph
}

// preheaderLabel derives a fresh label from the header's, so preheader
// names stay stable per function and never collide.
func preheaderLabel(g *cfg.Graph, headerLabel string) string {
	label := headerLabel + ".preheader"
	for i := 0; ; i++ {
		if _, taken := g.BlockNamed(label); !taken {
			return label
		}
		label = fmt.Sprintf("%s.preheader%d", headerLabel, i)
	}
}

// consolidatePhis rewrites every phi in the header that has operands
// from the now-indirect predecessors into a single operand sourced
// from the preheader. With one entry predecessor its operand is used
// directly; with several, a sub-phi over them is appended to the
// preheader. No copy instruction is inserted.
func consolidatePhis(g *cfg.Graph, header int, ph *cfg.Block, entryPreds []int) {
	if len(entryPreds) == 0 {
		return
	}
	entryLabels := make(map[string]bool, len(entryPreds))
	for _, p := range entryPreds {
		entryLabels[g.Blocks[p].Label] = true
	}

	for _, instr := range g.Blocks[header].Instrs {
		if instr.Op != bril.OpPhi {
			continue
		}

		var keepArgs, keepLabels []string
		var fromArgs, fromLabels []string
		for i, a := range instr.Args {
			label := ""
			if i < len(instr.Labels) {
				label = instr.Labels[i]
			}
			if entryLabels[label] {
				fromArgs = append(fromArgs, a)
				fromLabels = append(fromLabels, label)
			} else {
				keepArgs = append(keepArgs, a)
				keepLabels = append(keepLabels, label)
			}
		}
		if len(fromArgs) == 0 {
			continue
		}

		var consolidated string
		if len(fromArgs) == 1 {
			consolidated = fromArgs[0]
		} else {
			consolidated = instr.Dest + ".ph"
			ph.Instrs = append(ph.Instrs, &bril.Instr{
				Op: bril.OpPhi, Dest: consolidated, Type: instr.Type,
				Args: fromArgs, Labels: fromLabels,
			})
		}

		instr.Args = append(keepArgs, consolidated)
		instr.Labels = append(keepLabels, ph.Label)
	}
}

// Invariant runs the fixed-point invariance analysis:
// an instruction is loop-invariant if every operand is defined outside
// the loop, is a function parameter, or is defined by an
// already-invariant instruction in this loop.
func Invariant(g *cfg.Graph, l *Loop) map[*bril.Instr]bool {
	defSite := map[string]int{}
	loopDefs := map[string]int{}
	for _, b := range g.Blocks {
		for _, instr := range b.Instrs {
			if instr.Dest != "" {
				defSite[instr.Dest] = b.ID
				if l.Blocks[b.ID] {
					loopDefs[instr.Dest]++
				}
			}
		}
	}
	params := map[string]bool{}
	for _, p := range g.Args {
		params[p.Name] = true
	}

	invariantVar := map[string]bool{}
	invariantInstr := map[*bril.Instr]bool{}

	changed := true
	for changed {
		changed = false
		for b := range l.Blocks {
			for _, instr := range g.Blocks[b].Instrs {
				if instr.Dest == "" || invariantInstr[instr] {
					continue
				}
				if bril.HasSideEffects(instr.Op) || instr.Op == bril.OpPhi {
					continue
				}
				ok := true
				for _, a := range instr.Args {
					if params[a] && loopDefs[a] == 0 {
						continue
					}
					if _, known := defSite[a]; !known {
						ok = false
						break
					}
					if loopDefs[a] == 0 {
						continue // defined only outside the loop
					}
					if invariantVar[a] {
						continue
					}
					ok = false
					break
				}
				if ok && loopDefs[instr.Dest] == 1 {
					invariantVar[instr.Dest] = true
					invariantInstr[instr] = true
					changed = true
				}
			}
		}
	}
	return invariantInstr
}

// SafeToHoist decides whether a pure, invariant instruction may move
// to the preheader: either its defining block dominates every loop
// exit, or its destination is never read outside the loop (so paths
// that leave without executing it cannot observe the difference).
func SafeToHoist(g *cfg.Graph, info *dom.Info, l *Loop, defBlock int, dest string) bool {
	dominatesExits := true
	for _, exit := range l.Exits(g) {
		if !info.Dominates(defBlock, exit) {
			dominatesExits = false
			break
		}
	}
	if dominatesExits {
		return true
	}
	return !usedOutsideLoop(g, l, dest)
}

func usedOutsideLoop(g *cfg.Graph, l *Loop, name string) bool {
	for _, b := range g.Blocks {
		if l.Blocks[b.ID] {
			continue
		}
		for _, instr := range b.Instrs {
			for _, u := range instr.Uses() {
				if u == name {
					return true
				}
			}
		}
		if b.Term != nil {
			for _, u := range b.Term.Uses() {
				if u == name {
					return true
				}
			}
		}
	}
	return false
}

// RunLICM hoists every safe-to-hoist loop-invariant instruction in l
// to the end of its preheader, restarting invariance detection after
// each round since hoisting can expose further invariants. Returns
// whether anything was hoisted.
func RunLICM(g *cfg.Graph, info *dom.Info, l *Loop, ph *cfg.Block) bool {
	changed := false
	for {
		invariant := Invariant(g, l)
		roundChanged := false

		// A destination written more than once inside the loop cannot
		// move: hoisting would reorder its writes. Under SSA this never
		// triggers.
		defCount := map[string]int{}
		for b := range l.Blocks {
			for _, instr := range g.Blocks[b].Instrs {
				if instr.Dest != "" {
					defCount[instr.Dest]++
				}
			}
		}

		// Collect this round's hoists in original relative order, then
		// move them as a group: an instruction may only leave the loop
		// if every operand still defined inside it leaves ahead of it.
		hoistedVar := map[string]bool{}
		moving := map[*bril.Instr]bool{}
		for _, bid := range sortedBlocks(l) {
			for _, instr := range g.Blocks[bid].Instrs {
				if !invariant[instr] || defCount[instr.Dest] != 1 ||
					!SafeToHoist(g, info, l, bid, instr.Dest) {
					continue
				}
				depsMoved := true
				for _, a := range instr.Args {
					if defCount[a] > 0 && !hoistedVar[a] {
						depsMoved = false
						break
					}
				}
				if !depsMoved {
					continue
				}
				hoistedVar[instr.Dest] = true
				moving[instr] = true
			}
		}

		for _, bid := range sortedBlocks(l) {
			b := g.Blocks[bid]
			var kept []*bril.Instr
			for _, instr := range b.Instrs {
				if moving[instr] {
					ph.Instrs = append(ph.Instrs, instr)
					roundChanged = true
					continue
				}
				kept = append(kept, instr)
			}
			b.Instrs = kept
		}

		if !roundChanged {
			break
		}
		changed = true
	}
	return changed
}

func sortedBlocks(l *Loop) []int {
	ids := make([]int, 0, len(l.Blocks))
	for b := range l.Blocks {
		ids = append(ids, b)
	}
	sort.Ints(ids)
	return ids
}

// Run discovers every loop in g, inserts a preheader for each, and
// runs LICM to a fixed point. Returns whether LICM hoisted anything;
// inserting a preheader alone is not reported as a change.
func Run(g *cfg.Graph) bool {
	info := dom.Compute(g)
	loops := Find(g, info)

	changed := false
	for _, l := range loops {
		ph := InsertPreheader(g, l)
		if RunLICM(g, info, l, ph) {
			changed = true
		}
	}
	return changed
}
