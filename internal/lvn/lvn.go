// Package lvn implements local value numbering: within each basic
// block, redundant computations collapse to `id` copies of an earlier
// result, and simple algebraic identities and constant expressions
// fold away, driven by one shared value table rather than separate
// folding and common-subexpression passes.
package lvn

import (
	"fmt"
	"sort"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
)

// Run applies LVN to every block of the graph independently. The unit
// of analysis is a single basic block; the value table, variable map,
// and home map are all reset at each block boundary.
func Run(g *cfg.Graph) {
	for _, b := range g.Blocks {
		runBlock(b)
	}
}

// resolution is what canonicalizing one instruction's expression
// yields: a redirect to an already-live value number, a folded
// compile-time constant, or a generic expression key to look up.
type resolution struct {
	kind     string // "redirect" | "const" | "generic"
	vn       int
	constVal any
	key      string
}

func runBlock(b *cfg.Block) {
	varMap := map[string]int{} // variable name -> current value number
	home := map[int]string{}   // value number -> variable currently holding it
	constVal := map[int]any{}  // value number -> known constant, if any
	table := map[string]int{}  // canonical expression key -> value number

	lastWrite := lastWrites(b.Instrs)

	nextVN := 0
	fresh := func() int {
		vn := nextVN
		nextVN++
		return vn
	}

	// lookupArgVN maps an operand to its value number, allocating an
	// input value number for names defined before this block.
	lookupArgVN := func(name string) int {
		if vn, ok := varMap[name]; ok {
			return vn
		}
		vn := fresh()
		varMap[name] = vn
		home[vn] = name
		return vn
	}

	// retireHome is called just before dest is rebound: if dest was the
	// home of its old value number, that value needs a new home. Any
	// other variable still mapping to it will do; if none exists the
	// value is unreachable from here on, so its table and constant
	// entries are dropped to keep later lookups from resurrecting it.
	retireHome := func(dest string) {
		oldVN, ok := varMap[dest]
		if !ok || home[oldVN] != dest {
			return
		}
		var candidates []string
		for v, vn := range varMap {
			if vn == oldVN && v != dest {
				candidates = append(candidates, v)
			}
		}
		if len(candidates) > 0 {
			sort.Strings(candidates)
			home[oldVN] = candidates[0]
			return
		}
		delete(home, oldVN)
		delete(constVal, oldVN)
		for k, vn := range table {
			if vn == oldVN {
				delete(table, k)
			}
		}
	}

	renameCounter := 0
	// bindFresh gives dest a brand-new value number. A definition that
	// is overwritten later in the block is renamed on the spot, so the
	// home map stays valid for the rest of the pass.
	bindFresh := func(instr *bril.Instr, i int) int {
		dest := instr.Dest
		retireHome(dest)
		vn := fresh()
		if !lastWrite[i] {
			renameCounter++
			instr.Dest = fmt.Sprintf("%s.lvn%d", dest, renameCounter)
		}
		varMap[dest] = vn
		home[vn] = instr.Dest
		return vn
	}

	// bindExisting rewrites instr into an id copy of the value's
	// current home and points dest at that value number.
	bindExisting := func(instr *bril.Instr, vn int) {
		retireHome(instr.Dest)
		varMap[instr.Dest] = vn
		instr.Op = bril.OpID
		instr.Args = []string{home[vn]}
		instr.Funcs = nil
		instr.Labels = nil
		instr.Value = nil
	}

	for i, instr := range b.Instrs {
		if instr.Op == bril.OpPhi {
			// Phi operands name values flowing in from other blocks;
			// they are never rewritten here.
			if instr.Dest != "" {
				bindFresh(instr, i)
			}
			continue
		}

		vns := make([]int, len(instr.Args))
		for j, a := range instr.Args {
			vns[j] = lookupArgVN(a)
			instr.Args[j] = home[vns[j]]
		}

		if instr.Dest == "" {
			continue
		}

		if bril.HasSideEffects(instr.Op) || bril.IsSpeculativeBarrier(instr.Op) {
			// Effectful results get a value number (so copies of them
			// propagate) but never enter the expression table: two
			// calls to the same function are distinct values.
			bindFresh(instr, i)
			continue
		}

		var res resolution
		if instr.Op == bril.OpConst {
			res = resolution{kind: "const", constVal: instr.Value}
		} else {
			res = resolve(instr.Op, instr.Type, vns, constVal)
		}

		switch res.kind {
		case "redirect":
			bindExisting(instr, res.vn)
		case "const":
			key := constKey(instr.Type, res.constVal)
			if existing, ok := table[key]; ok {
				bindExisting(instr, existing)
				continue
			}
			instr.Op = bril.OpConst
			instr.Args = nil
			instr.Funcs = nil
			instr.Labels = nil
			instr.Value = res.constVal
			vn := bindFresh(instr, i)
			table[key] = vn
			constVal[vn] = res.constVal
		default:
			if existing, ok := table[res.key]; ok {
				bindExisting(instr, existing)
				continue
			}
			vn := bindFresh(instr, i)
			table[res.key] = vn
		}
	}

	if b.Term != nil {
		for j, a := range b.Term.Args {
			b.Term.Args[j] = home[lookupArgVN(a)]
		}
	}
}

// lastWrites reports, per instruction, whether its destination is not
// written again later in the same block.
func lastWrites(instrs []*bril.Instr) []bool {
	last := make([]bool, len(instrs))
	seen := map[string]bool{}
	for i := len(instrs) - 1; i >= 0; i-- {
		d := instrs[i].Dest
		if d == "" {
			continue
		}
		if !seen[d] {
			last[i] = true
			seen[d] = true
		}
	}
	return last
}

// resolve canonicalizes one value-producing instruction's expression,
// applying the algebraic identities and constant folding before
// falling back to a generic opcode+operands key.
func resolve(op bril.Op, typ bril.Type, vns []int, constVal map[int]any) resolution {
	isZero := func(vn int) bool {
		v, ok := constVal[vn]
		return ok && isZeroLiteral(v)
	}
	isOne := func(vn int) bool {
		v, ok := constVal[vn]
		return ok && isOneLiteral(v)
	}

	if len(vns) == 2 {
		switch op {
		case bril.OpAdd, bril.OpFAdd:
			if isZero(vns[1]) {
				return resolution{kind: "redirect", vn: vns[0]}
			}
			if isZero(vns[0]) {
				return resolution{kind: "redirect", vn: vns[1]}
			}
		case bril.OpMul, bril.OpFMul:
			if isOne(vns[1]) {
				return resolution{kind: "redirect", vn: vns[0]}
			}
			if isOne(vns[0]) {
				return resolution{kind: "redirect", vn: vns[1]}
			}
			if isZero(vns[0]) || isZero(vns[1]) {
				return resolution{kind: "const", constVal: zeroLiteral(typ)}
			}
		case bril.OpSub, bril.OpFSub:
			if vns[0] == vns[1] {
				return resolution{kind: "const", constVal: zeroLiteral(typ)}
			}
			if isZero(vns[1]) {
				return resolution{kind: "redirect", vn: vns[0]}
			}
		}

		if l, lok := constVal[vns[0]]; lok {
			if r, rok := constVal[vns[1]]; rok {
				if folded, ok := foldBinary(op, l, r); ok {
					return resolution{kind: "const", constVal: folded}
				}
			}
		}
	}

	if op == bril.OpID && len(vns) == 1 {
		return resolution{kind: "redirect", vn: vns[0]}
	}
	if op == bril.OpNot && len(vns) == 1 {
		if v, ok := constVal[vns[0]]; ok {
			if b, ok := v.(bool); ok {
				return resolution{kind: "const", constVal: !b}
			}
		}
	}

	ops := append([]int(nil), vns...)
	if bril.IsCommutative(op) {
		sort.Ints(ops)
	}
	return resolution{kind: "generic", key: fmt.Sprintf("%s:%v", op, ops)}
}

func constKey(typ bril.Type, v any) string {
	tn := ""
	if typ != nil {
		tn = typ.String()
	}
	return fmt.Sprintf("const:%s:%v", tn, v)
}

func isZeroLiteral(v any) bool {
	switch n := v.(type) {
	case int64:
		return n == 0
	case float64:
		return n == 0
	}
	return false
}

func isOneLiteral(v any) bool {
	switch n := v.(type) {
	case int64:
		return n == 1
	case float64:
		return n == 1
	}
	return false
}

func zeroLiteral(typ bril.Type) any {
	if _, ok := typ.(bril.FloatType); ok {
		return float64(0)
	}
	return int64(0)
}

// foldBinary evaluates a binary opcode over two known-constant
// operands, returning ok=false for anything it does not recognize
// (calls, memory ops, and anything with side effects never reach
// here since they are filtered out before resolve is called).
func foldBinary(op bril.Op, l, r any) (any, bool) {
	switch op {
	case bril.OpAdd, bril.OpSub, bril.OpMul, bril.OpDiv,
		bril.OpEq, bril.OpLt, bril.OpGt, bril.OpLe, bril.OpGe:
		li, lok := l.(int64)
		ri, rok := r.(int64)
		if !lok || !rok {
			return nil, false
		}
		switch op {
		case bril.OpAdd:
			return li + ri, true
		case bril.OpSub:
			return li - ri, true
		case bril.OpMul:
			return li * ri, true
		case bril.OpDiv:
			if ri == 0 {
				return nil, false
			}
			return li / ri, true
		case bril.OpEq:
			return li == ri, true
		case bril.OpLt:
			return li < ri, true
		case bril.OpGt:
			return li > ri, true
		case bril.OpLe:
			return li <= ri, true
		case bril.OpGe:
			return li >= ri, true
		}
	case bril.OpFAdd, bril.OpFSub, bril.OpFMul, bril.OpFDiv,
		bril.OpFEq, bril.OpFLt, bril.OpFGt, bril.OpFLe, bril.OpFGe:
		lf, lok := l.(float64)
		rf, rok := r.(float64)
		if !lok || !rok {
			return nil, false
		}
		switch op {
		case bril.OpFAdd:
			return lf + rf, true
		case bril.OpFSub:
			return lf - rf, true
		case bril.OpFMul:
			return lf * rf, true
		case bril.OpFDiv:
			if rf == 0 {
				return nil, false
			}
			return lf / rf, true
		case bril.OpFEq:
			return lf == rf, true
		case bril.OpFLt:
			return lf < rf, true
		case bril.OpFGt:
			return lf > rf, true
		case bril.OpFLe:
			return lf <= rf, true
		case bril.OpFGe:
			return lf >= rf, true
		}
	case bril.OpAnd, bril.OpOr:
		lb, lok := l.(bool)
		rb, rok := r.(bool)
		if !lok || !rok {
			return nil, false
		}
		if op == bril.OpAnd {
			return lb && rb, true
		}
		return lb || rb, true
	}
	return nil, false
}
