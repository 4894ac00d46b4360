// Package stats counts instructions, blocks, and pass outcomes for
// the CLI's -s/--stats flag. Reports are stamped with a ksuid run id
// so repeated invocations are distinguishable in logs.
package stats

import (
	"fmt"
	"io"

	"github.com/segmentio/ksuid"

	"brilopt/internal/bril"
)

// PassOutcome records one pass's name and whether it changed anything.
type PassOutcome struct {
	Name    string
	Applied bool
}

// Report is the per-run summary printed to stderr.
type Report struct {
	RunID     ksuid.KSUID
	Functions int
	Blocks    int
	Instrs    int
	Passes    []PassOutcome
}

// NewReport builds a Report stamped with a fresh run id.
func NewReport() *Report {
	return &Report{RunID: ksuid.New()}
}

// RecordPass appends one pass's outcome to the report.
func (r *Report) RecordPass(name string, applied bool) {
	r.Passes = append(r.Passes, PassOutcome{Name: name, Applied: applied})
}

// CountProgram tallies a program's function and instruction counts.
// Block counts require each function's CFG, so Blocks is left at 0;
// AddBlockCount adds blocks to it once a graph exists.
func CountProgram(prog *bril.Program) *Report {
	r := NewReport()
	r.Functions = len(prog.Functions)
	for _, fn := range prog.Functions {
		for _, item := range fn.Items {
			if !item.IsLabel() {
				r.Instrs++
			}
		}
	}
	return r
}

// AddBlockCount adds n blocks to the report's running block total.
func (r *Report) AddBlockCount(n int) {
	r.Blocks += n
}

// Write renders the report to w, one line per counter and pass
// outcome.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "run %s: %d function(s), %d block(s), %d instruction(s)\n",
		r.RunID, r.Functions, r.Blocks, r.Instrs)
	for _, p := range r.Passes {
		status := "no changes"
		if p.Applied {
			status = "applied"
		}
		fmt.Fprintf(w, "  - %s: %s\n", p.Name, status)
	}
}
