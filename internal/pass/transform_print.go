package pass

import (
	"strings"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/logging"
)

// TransformPrintPass logs each function's current block structure at
// info level (one line per block, one per instruction, successors
// after a "->"). It never mutates the program; it exists purely so
// the driver's per-pass logging can show intermediate state between
// other passes.
type TransformPrintPass struct{}

func (TransformPrintPass) Name() string { return "transform-print" }
func (TransformPrintPass) Description() string {
	return "logs the current CFG structure without changing it"
}

func (TransformPrintPass) Apply(prog *bril.Program) (bool, error) {
	for _, fn := range prog.Functions {
		g, err := cfg.Build(fn)
		if err != nil {
			return false, err
		}
		logging.Infof("function %s:\n%s", fn.Name, render(g))
	}
	return false, nil
}

func render(g *cfg.Graph) string {
	var b strings.Builder
	for _, blk := range g.Blocks {
		b.WriteString(blk.Label)
		b.WriteString(":\n")
		for _, instr := range blk.Instrs {
			b.WriteString("  ")
			b.WriteString(instr.String())
			b.WriteString("\n")
		}
		if blk.Term != nil {
			b.WriteString("  ")
			b.WriteString(blk.Term.String())
			b.WriteString("\n")
		}
		succLabels := make([]string, len(blk.Succs))
		for i, s := range blk.Succs {
			succLabels[i] = g.Blocks[s].Label
		}
		if len(succLabels) > 0 {
			b.WriteString("  -> ")
			b.WriteString(strings.Join(succLabels, ", "))
			b.WriteString("\n")
		}
	}
	return b.String()
}
