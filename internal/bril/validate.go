package bril

import "fmt"

// Validate checks the structural well-formedness rules that the JSON
// codec alone cannot: unknown opcodes, and consts without a literal,
// type or destination. Other value ops are not checked for a missing
// destination. Label resolution is cfg.Build's job, since only the CFG
// knows the label table.
func (p *Program) Validate() error {
	for _, fn := range p.Functions {
		for idx, item := range fn.Items {
			if item.IsLabel() {
				continue
			}
			if err := validateInstr(item.Instr); err != nil {
				return fmt.Errorf("function %q, instruction %d: %w", fn.Name, idx, err)
			}
		}
	}
	return nil
}

func validateInstr(i *Instr) error {
	if !KnownOp(i.Op) {
		return fmt.Errorf("unknown opcode %q", i.Op)
	}
	if i.Op == OpConst {
		if i.Value == nil {
			return fmt.Errorf("const without a value")
		}
		if i.Type == nil {
			return fmt.Errorf("const without a type")
		}
		if i.Dest == "" {
			return fmt.Errorf("const without a destination")
		}
	}
	return nil
}
