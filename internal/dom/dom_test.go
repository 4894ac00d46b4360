package dom

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

func TestDiamond(t *testing.T) {
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

	info := Compute(g)

	entry := g.Entry
	thenBlk, _ := g.BlockNamed("then")
	elseBlk, _ := g.BlockNamed("else")
	joinBlk, _ := g.BlockNamed("join")

	require.Equal(t, -1, info.Idom[entry])
	require.Equal(t, entry, info.Idom[thenBlk.ID])
	require.Equal(t, entry, info.Idom[elseBlk.ID])
	require.Equal(t, entry, info.Idom[joinBlk.ID]) // join's only idom is entry, not then/else

	require.True(t, info.Dominates(entry, joinBlk.ID))
	require.False(t, info.StrictlyDominates(thenBlk.ID, joinBlk.ID))

	require.True(t, info.Frontier[thenBlk.ID][joinBlk.ID])
	require.True(t, info.Frontier[elseBlk.ID][joinBlk.ID])
	require.False(t, info.Frontier[entry][joinBlk.ID])
}

func TestLoopBackEdgeDominance(t *testing.T) {
	g := build(t, `{"functions":[{"name":"main","instrs":[
		{"label":"h"},
		{"op":"const","dest":"c","type":"bool","value":true},
		{"op":"br","args":["c"],"labels":["body","exit"]},
		{"label":"body"},
		{"op":"jmp","labels":["h"]},
		{"label":"exit"},
		{"op":"ret"}
	]}]}`)

	info := Compute(g)
	headerBlk, _ := g.BlockNamed("h")
	bodyBlk, _ := g.BlockNamed("body")

	// The back edge body -> h means h dominates body.
	require.True(t, info.Dominates(headerBlk.ID, bodyBlk.ID))
}

func TestUnreachableBlockExcluded(t *testing.T) {
	g := build(t, `{"functions":[{"name":"main","instrs":[
		{"op":"ret"},
		{"label":"dead"},
		{"op":"print","args":["x"]},
		{"op":"ret"}
	]}]}`)

	info := Compute(g)
	deadBlk, _ := g.BlockNamed("dead")
	require.False(t, info.Reachable(deadBlk.ID))
	require.Equal(t, -1, info.Idom[deadBlk.ID])
}
