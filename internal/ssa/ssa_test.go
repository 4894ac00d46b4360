package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
)

func build(t *testing.T, src string) *cfg.Graph {
	t.Helper()
	p, err := bril.ParseProgram([]byte(src))
	require.NoError(t, err)
	g, err := cfg.Build(p.Functions[0])
	require.NoError(t, err)
	return g
}

func TestToSSABranchPhi(t *testing.T) {
	g := build(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"cond","type":"bool","value":true},
		{"op":"br","args":["cond"],"labels":["then","else"]},
		{"label":"then"},
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"jmp","labels":["join"]},
		{"label":"else"},
		{"op":"const","dest":"a","type":"int","value":2},
		{"op":"jmp","labels":["join"]},
		{"label":"join"},
		{"op":"print","args":["a"]},
		{"op":"ret"}
	]}]}`)

	require.NoError(t, ToSSA(g))

	joinBlk, ok := g.BlockNamed("join")
	require.True(t, ok)
	require.Len(t, joinBlk.Instrs, 2) // phi + print
	phi := joinBlk.Instrs[0]
	require.Equal(t, bril.OpPhi, phi.Op)
	require.Len(t, phi.Args, 2)
	require.Len(t, phi.Labels, 2)

	labelToArg := map[string]string{}
	for i, l := range phi.Labels {
		labelToArg[l] = phi.Args[i]
	}
	thenBlk, _ := g.BlockNamed("then")
	elseBlk, _ := g.BlockNamed("else")
	require.Equal(t, thenBlk.Instrs[0].Dest, labelToArg["then"])
	require.Equal(t, elseBlk.Instrs[0].Dest, labelToArg["else"])

	print := joinBlk.Instrs[1]
	require.Equal(t, phi.Dest, print.Args[0])

	// Single assignment: every destination in the function is unique.
	seen := map[string]bool{}
	for _, b := range g.Blocks {
		for _, instr := range b.Instrs {
			if instr.Dest == "" {
				continue
			}
			require.False(t, seen[instr.Dest], "duplicate SSA def of %s", instr.Dest)
			seen[instr.Dest] = true
		}
	}
}

func TestFromSSALowersPhi(t *testing.T) {
	g := build(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"cond","type":"bool","value":true},
		{"op":"br","args":["cond"],"labels":["then","else"]},
		{"label":"then"},
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"jmp","labels":["join"]},
		{"label":"else"},
		{"op":"const","dest":"a","type":"int","value":2},
		{"op":"jmp","labels":["join"]},
		{"label":"join"},
		{"op":"print","args":["a"]},
		{"op":"ret"}
	]}]}`)

	require.NoError(t, ToSSA(g))
	require.NoError(t, FromSSA(g))

	joinBlk, _ := g.BlockNamed("join")
	for _, instr := range joinBlk.Instrs {
		require.NotEqual(t, bril.OpPhi, instr.Op)
	}

	thenBlk, _ := g.BlockNamed("then")
	elseBlk, _ := g.BlockNamed("else")
	requireHasCopyToJoinVar(t, thenBlk)
	requireHasCopyToJoinVar(t, elseBlk)
}

func requireHasCopyToJoinVar(t *testing.T, b *cfg.Block) {
	t.Helper()
	for _, instr := range b.Instrs {
		if instr.Op == bril.OpID {
			return
		}
	}
	t.Fatalf("block %s has no id copy appended for phi lowering", b.Label)
}

func TestFromSSASplitsCriticalEdges(t *testing.T) {
	g := build(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"c","type":"bool","value":true},
		{"op":"br","args":["c"],"labels":["then","else"]},
		{"label":"then"},
		{"op":"jmp","labels":["join"]},
		{"label":"else"},
		{"op":"jmp","labels":["join"]},
		{"label":"join"},
		{"op":"ret"}
	]}]}`)

	// Both branch targets carry a phi fed from the entry block, so the
	// entry needs different copies on each outgoing edge.
	entryLabel := g.Blocks[g.Entry].Label
	thenBlk, _ := g.BlockNamed("then")
	elseBlk, _ := g.BlockNamed("else")
	thenBlk.Instrs = append([]*bril.Instr{{
		Op: bril.OpPhi, Dest: "x.1", Type: bril.IntType{},
		Args: []string{"a.0"}, Labels: []string{entryLabel},
	}}, thenBlk.Instrs...)
	elseBlk.Instrs = append([]*bril.Instr{{
		Op: bril.OpPhi, Dest: "y.1", Type: bril.IntType{},
		Args: []string{"b.0"}, Labels: []string{entryLabel},
	}}, elseBlk.Instrs...)

	require.NoError(t, FromSSA(g))

	for _, b := range g.Blocks {
		for _, instr := range b.Instrs {
			require.NotEqual(t, bril.OpPhi, instr.Op)
		}
	}

	// The entry's branch now targets fresh split blocks, each carrying
	// exactly one copy and a jmp to the original successor.
	entry := g.Blocks[g.Entry]
	require.Len(t, entry.Succs, 2)
	for _, s := range entry.Succs {
		split := g.Blocks[s]
		require.NotEqual(t, thenBlk.ID, split.ID)
		require.NotEqual(t, elseBlk.ID, split.ID)
		require.Len(t, split.Instrs, 1)
		require.Equal(t, bril.OpID, split.Instrs[0].Op)
		require.Equal(t, bril.OpJmp, split.Term.Op)
	}
	require.ElementsMatch(t, entry.Term.Labels,
		[]string{g.Blocks[entry.Succs[0]].Label, g.Blocks[entry.Succs[1]].Label})
}

func TestLoopPhiRoundTrip(t *testing.T) {
	g := build(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"i","type":"int","value":0},
		{"label":"h"},
		{"op":"const","dest":"one","type":"int","value":1},
		{"op":"add","dest":"i","type":"int","args":["i","one"]},
		{"op":"const","dest":"cond","type":"bool","value":true},
		{"op":"br","args":["cond"],"labels":["h","exit"]},
		{"label":"exit"},
		{"op":"print","args":["i"]},
		{"op":"ret"}
	]}]}`)

	require.NoError(t, ToSSA(g))
	require.NoError(t, FromSSA(g))

	// After round-trip, no phis remain and the graph is still well formed.
	for _, b := range g.Blocks {
		for _, instr := range b.Instrs {
			require.NotEqual(t, bril.OpPhi, instr.Op)
		}
	}
}
