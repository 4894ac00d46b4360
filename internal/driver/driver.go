// Package driver wires internal/cfg, internal/ssa, and the registered
// internal/pass passes into the fixed contract:
// linear -> cfg -> (optional into-SSA) -> (optional passes, in
// declared order) -> (optional out-of-SSA) -> linear.
package driver

import (
	"brilopt/internal/bril"
	"brilopt/internal/logging"
	"brilopt/internal/pass"
)

// Options selects which stages the driver runs, one bool per CLI pass
// flag.
type Options struct {
	ConstructCFG   bool
	ToSSA          bool
	LVN            bool
	DCE            bool
	Loops          bool
	FromSSA        bool
	TransformPrint bool
}

// All is the canonical "--all" order: into-SSA -> LICM -> LVN
// -> DCE -> out-of-SSA.
func All() Options {
	return Options{
		ConstructCFG: true,
		ToSSA:        true,
		Loops:        true,
		LVN:          true,
		DCE:          true,
		FromSSA:      true,
	}
}

// Run applies opts to every function in prog in place, in the
// fixed stage order, and returns the resulting program. Errors
// returned here are already *diagnostics.Error values (malformed input
// from cfg.Build, or an internal invariant violation from ssa); the
// CLI maps them to an exit code via diagnostics.ExitCode.
func Run(prog *bril.Program, opts Options) (*bril.Program, error) {
	return RunObserved(prog, opts, nil)
}

// RunObserved is Run, additionally invoking observe (if non-nil) with
// every stage's name and changed flag, including the into-SSA and
// out-of-SSA stages that buildPipeline's Pass list doesn't cover --
// the hook internal/stats' -s/--stats report is built from.
func RunObserved(prog *bril.Program, opts Options, observe func(name string, changed bool)) (*bril.Program, error) {
	pipeline := buildPipeline(opts)

	if opts.ConstructCFG || opts.ToSSA || opts.FromSSA || len(pipeline.Passes()) > 0 {
		logging.Debugf("driver: running %d function(s)", len(prog.Functions))
	}

	if opts.ToSSA {
		if err := runStage(pass.ToSSAPass{}, prog, observe); err != nil {
			return nil, err
		}
	}

	if err := pipeline.RunObserved(prog, observe); err != nil {
		return nil, err
	}

	if opts.FromSSA {
		if err := runStage(pass.FromSSAPass{}, prog, observe); err != nil {
			return nil, err
		}
	}

	return prog, nil
}

// buildPipeline assembles the optimization passes opts selects, in
// a fixed relative order (loops, then lvn, then dce)
// regardless of flag declaration order, matching the "--all" sugar.
func buildPipeline(opts Options) *pass.Pipeline {
	p := pass.NewPipeline()
	if opts.ConstructCFG {
		p.Add(pass.ConstructCFGPass{})
	}
	if opts.Loops {
		p.Add(pass.LoopPass{})
	}
	if opts.LVN {
		p.Add(pass.LVNPass{})
	}
	if opts.DCE {
		p.Add(pass.DCEPass{})
	}
	if opts.TransformPrint {
		p.Add(pass.TransformPrintPass{})
	}
	return p
}

func runStage(p pass.Pass, prog *bril.Program, observe func(name string, changed bool)) error {
	changed, err := p.Apply(prog)
	if err != nil {
		return err
	}
	if changed {
		logging.Debugf("%s: applied", p.Name())
	}
	if observe != nil {
		observe(p.Name(), changed)
	}
	return nil
}
