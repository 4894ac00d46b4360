package bril

// Uses returns the variable names an instruction reads. For phi,
// every operand counts as a use.
func (i *Instr) Uses() []string {
	return i.Args
}

// Def returns the variable an instruction defines and whether it
// defines one at all (effect ops do not).
func (i *Instr) Def() (string, bool) {
	if i.Dest == "" {
		return "", false
	}
	return i.Dest, true
}
