// Package pass defines the Pass interface and Pipeline that the
// driver runs over a parsed program.
package pass

import (
	"brilopt/internal/bril"
	"brilopt/internal/logging"
)

// Pass is a single named transformation over a program. Apply reports
// whether it changed anything, so a pipeline can iterate passes to a
// fixed point.
type Pass interface {
	Name() string
	Description() string
	Apply(prog *bril.Program) (bool, error)
}

// Pipeline runs an ordered list of passes over a program, logging
// each pass's name and whether it changed anything at debug level:
// stdout carries only the BRIL-JSON result.
type Pipeline struct {
	passes []Pass
}

// NewPipeline builds an empty pipeline; callers add passes with Add in
// the order they should run.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Add appends a pass to the end of the pipeline.
func (p *Pipeline) Add(pass Pass) {
	p.passes = append(p.passes, pass)
}

// Passes returns the pipeline's passes in run order.
func (p *Pipeline) Passes() []Pass {
	return p.passes
}

// Run executes every pass in order once, returning the first error
// encountered. It does not iterate a pass to a fixed point itself;
// a pass that needs internal fixed-point iteration (dce, loop's LICM)
// does so in its own Apply.
func (p *Pipeline) Run(prog *bril.Program) error {
	return p.RunObserved(prog, nil)
}

// RunObserved is Run, additionally invoking observe (if non-nil) with
// each pass's name and changed flag as it completes -- the hook
// internal/stats uses to build its -s/--stats report without Pipeline
// needing to know stats exists.
func (p *Pipeline) RunObserved(prog *bril.Program, observe func(name string, changed bool)) error {
	logging.Debugf("running %d pass(es)", len(p.passes))
	for _, pass := range p.passes {
		changed, err := pass.Apply(prog)
		if err != nil {
			logging.Errorf("%s: %v", pass.Name(), err)
			return err
		}
		if changed {
			logging.Debugf("%s: %s (applied)", pass.Name(), pass.Description())
		} else {
			logging.Debugf("%s: %s (no changes)", pass.Name(), pass.Description())
		}
		if observe != nil {
			observe(pass.Name(), changed)
		}
	}
	return nil
}
