package pass

import (
	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/dce"
	"brilopt/internal/loop"
	"brilopt/internal/lvn"
	"brilopt/internal/ssa"
)

// eachFunction rebuilds a CFG for every function in prog, applies fn,
// and writes the linearized result back into each function's Items.
// This is the bridge between the per-function-graph passes and the
// Program-level Pass contract: from the pipeline's point of view a
// pass built this way walks program.Functions like any other.
func eachFunction(prog *bril.Program, apply func(g *cfg.Graph) (bool, error)) (bool, error) {
	changed := false
	for _, fn := range prog.Functions {
		g, err := cfg.Build(fn)
		if err != nil {
			return changed, err
		}
		ok, err := apply(g)
		if err != nil {
			return changed, err
		}
		if ok {
			changed = true
		}
		fn.Items = cfg.Linearize(g).Items
	}
	return changed, nil
}

// ConstructCFGPass builds and immediately linearizes every function's
// CFG, a no-op transformation that still exercises (and so validates)
// cfg.Build's invariants and synthesizes labels for anonymous blocks.
type ConstructCFGPass struct{}

func (ConstructCFGPass) Name() string        { return "construct-cfg" }
func (ConstructCFGPass) Description() string { return "builds and linearizes the control-flow graph" }
func (ConstructCFGPass) Apply(prog *bril.Program) (bool, error) {
	return eachFunction(prog, func(g *cfg.Graph) (bool, error) {
		return false, nil
	})
}

// ToSSAPass converts every function into SSA form, placing phis
// without liveness pruning.
type ToSSAPass struct{}

func (ToSSAPass) Name() string        { return "to-ssa" }
func (ToSSAPass) Description() string { return "places phi instructions and renames into SSA form" }
func (ToSSAPass) Apply(prog *bril.Program) (bool, error) {
	return eachFunction(prog, func(g *cfg.Graph) (bool, error) {
		if err := ssa.ToSSA(g); err != nil {
			return false, err
		}
		return true, nil
	})
}

// FromSSAPass lowers every function's phi instructions back to copies.
// Apply always reports a change, even for functions with no phis.
type FromSSAPass struct{}

func (FromSSAPass) Name() string        { return "from-ssa" }
func (FromSSAPass) Description() string { return "lowers phi instructions into predecessor copies" }
func (FromSSAPass) Apply(prog *bril.Program) (bool, error) {
	return eachFunction(prog, func(g *cfg.Graph) (bool, error) {
		if err := ssa.FromSSA(g); err != nil {
			return false, err
		}
		return true, nil
	})
}

// LVNPass runs local value numbering over every function. Apply always
// reports a change, whether or not LVN rewrote anything.
type LVNPass struct{}

func (LVNPass) Name() string        { return "lvn" }
func (LVNPass) Description() string { return "local value numbering with algebraic simplification" }
func (LVNPass) Apply(prog *bril.Program) (bool, error) {
	return eachFunction(prog, func(g *cfg.Graph) (bool, error) {
		lvn.Run(g)
		return true, nil
	})
}

// DCEPass runs dead-code elimination to a fixed point over every
// function.
type DCEPass struct{}

func (DCEPass) Name() string        { return "dce" }
func (DCEPass) Description() string { return "removes dead definitions and unreachable blocks" }
func (DCEPass) Apply(prog *bril.Program) (bool, error) {
	return eachFunction(prog, func(g *cfg.Graph) (bool, error) {
		return dce.Run(g), nil
	})
}

// LoopPass discovers natural loops, inserts preheaders, and runs LICM
// over every function.
type LoopPass struct{}

func (LoopPass) Name() string        { return "loops" }
func (LoopPass) Description() string { return "natural-loop discovery and loop-invariant code motion" }
func (LoopPass) Apply(prog *bril.Program) (bool, error) {
	return eachFunction(prog, func(g *cfg.Graph) (bool, error) {
		return loop.Run(g), nil
	})
}
