package bril

import "sort"

// Op is a BRIL opcode. It is kept as a plain string (rather than an
// enum) because it round-trips directly through JSON and new opcodes
// show up often in BRIL extensions; the classification helpers below
// are what the rest of the toolkit actually branches on.
type Op string

const (
	OpConst Op = "const"

	// Arithmetic
	OpAdd  Op = "add"
	OpSub  Op = "sub"
	OpMul  Op = "mul"
	OpDiv  Op = "div"
	OpFAdd Op = "fadd"
	OpFSub Op = "fsub"
	OpFMul Op = "fmul"
	OpFDiv Op = "fdiv"

	// Comparison
	OpEq  Op = "eq"
	OpLt  Op = "lt"
	OpGt  Op = "gt"
	OpLe  Op = "le"
	OpGe  Op = "ge"
	OpFEq Op = "feq"
	OpFLt Op = "flt"
	OpFGt Op = "fgt"
	OpFLe Op = "fle"
	OpFGe Op = "fge"

	// Logical
	OpNot Op = "not"
	OpAnd Op = "and"
	OpOr  Op = "or"

	// Control / misc value ops
	OpID   Op = "id"
	OpCall Op = "call"
	OpPhi  Op = "phi"

	// Memory
	OpAlloc  Op = "alloc"
	OpLoad   Op = "load"
	OpStore  Op = "store"
	OpFree   Op = "free"
	OpPtrAdd Op = "ptradd"

	// Effect-only control flow
	OpJmp Op = "jmp"
	OpBr  Op = "br"
	OpRet Op = "ret"

	// Other effects
	OpPrint Op = "print"
	OpNop   Op = "nop"

	// Speculative execution (treated as opaque effect barriers)
	OpSpeculate Op = "speculate"
	OpCommit    Op = "commit"
	OpGuard     Op = "guard"
)

var commutativeOps = map[Op]bool{
	OpAdd: true, OpMul: true, OpEq: true, OpAnd: true, OpOr: true,
	OpFAdd: true, OpFMul: true, OpFEq: true,
}

// IsCommutative reports whether op's two operands may be reordered for
// canonicalization purposes (LVN value-table keys).
func IsCommutative(op Op) bool { return commutativeOps[op] }

var terminatorOps = map[Op]bool{OpJmp: true, OpBr: true, OpRet: true}

// IsTerminator reports whether op ends a basic block.
func IsTerminator(op Op) bool { return terminatorOps[op] }

var sideEffectOps = map[Op]bool{
	OpCall: true, OpPrint: true, OpStore: true, OpFree: true, OpAlloc: true,
	OpJmp: true, OpBr: true, OpRet: true,
	OpSpeculate: true, OpCommit: true, OpGuard: true,
}

// HasSideEffects reports whether an instruction with this opcode must
// never be eliminated or merged with an equivalent instance, even when
// it produces a value (e.g. `call`, `load` are read as pure-ish but
// carry externally-visible or aliasing effects in this toolkit's
// conservative model).
func HasSideEffects(op Op) bool {
	if sideEffectOps[op] {
		return true
	}
	switch op {
	case OpLoad, OpAlloc:
		return true
	}
	return false
}

// IsValueOp reports whether op produces a destination value (as
// opposed to a pure effect op).
func IsValueOp(i *Instr) bool { return i.Dest != "" }

// IsSpeculativeBarrier reports whether op is one of the opaque
// speculative-execution opcodes. LVN keeps them out of its value
// table, and as effect ops DCE never removes them. Values numbered
// before a barrier are still reused after it, and DCE does not treat
// a barrier as a boundary.
func IsSpeculativeBarrier(op Op) bool {
	switch op {
	case OpSpeculate, OpCommit, OpGuard:
		return true
	default:
		return false
	}
}

var knownOps = map[Op]bool{
	OpConst: true,
	OpAdd:   true, OpSub: true, OpMul: true, OpDiv: true,
	OpFAdd: true, OpFSub: true, OpFMul: true, OpFDiv: true,
	OpEq: true, OpLt: true, OpGt: true, OpLe: true, OpGe: true,
	OpFEq: true, OpFLt: true, OpFGt: true, OpFLe: true, OpFGe: true,
	OpNot: true, OpAnd: true, OpOr: true,
	OpID: true, OpCall: true, OpPhi: true,
	OpAlloc: true, OpLoad: true, OpStore: true, OpFree: true, OpPtrAdd: true,
	OpJmp: true, OpBr: true, OpRet: true,
	OpPrint: true, OpNop: true,
	OpSpeculate: true, OpCommit: true, OpGuard: true,
}

// KnownOp reports whether op is one this toolkit understands. The
// passes themselves branch only on the classification helpers above,
// so an unknown opcode flows through them untouched; KnownOp exists
// for front-end validation (the CLI's malformed-input check and the
// language server's diagnostics).
func KnownOp(op Op) bool { return knownOps[op] }

// KnownOps returns the opcode vocabulary in sorted order.
func KnownOps() []Op {
	ops := make([]Op, 0, len(knownOps))
	for op := range knownOps {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
