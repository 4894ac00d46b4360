package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"brilopt/internal/bril"
)

func parseFunc(t *testing.T, src string) *bril.Function {
	t.Helper()
	p, err := bril.ParseProgram([]byte(src))
	require.NoError(t, err)
	require.Len(t, p.Functions, 1)
	return p.Functions[0]
}

func TestBuildStraightLine(t *testing.T) {
	fn := parseFunc(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"print","args":["a"]},
		{"op":"ret"}
	]}]}`)

	g, err := Build(fn)
	require.NoError(t, err)
	require.Len(t, g.Blocks, 1)
	require.Equal(t, 0, g.Entry)
	require.Empty(t, g.Blocks[0].Succs)
	require.Empty(t, g.Blocks[0].Preds)
}

func TestBuildBranchWiring(t *testing.T) {
	fn := parseFunc(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"c","type":"bool","value":true},
		{"op":"br","args":["c"],"labels":["then","else"]},
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

	g, err := Build(fn)
	require.NoError(t, err)
	require.Len(t, g.Blocks, 4)

	entry := g.Blocks[g.Entry]
	require.Len(t, entry.Succs, 2)
	thenBlk, ok := g.BlockNamed("then")
	require.True(t, ok)
	elseBlk, ok := g.BlockNamed("else")
	require.True(t, ok)
	require.Equal(t, []int{thenBlk.ID, elseBlk.ID}, entry.Succs)

	joinBlk, ok := g.BlockNamed("join")
	require.True(t, ok)
	require.ElementsMatch(t, []int{thenBlk.ID, elseBlk.ID}, joinBlk.Preds)

	// Predecessor relation is the inverse of the successor relation.
	for _, b := range g.Blocks {
		for _, s := range b.Succs {
			require.Contains(t, g.Blocks[s].Preds, b.ID)
		}
		for _, p := range b.Preds {
			require.Contains(t, g.Blocks[p].Succs, b.ID)
		}
	}
}

func TestBuildUnresolvedLabelIsMalformed(t *testing.T) {
	fn := parseFunc(t, `{"functions":[{"name":"main","instrs":[
		{"op":"jmp","labels":["nowhere"]}
	]}]}`)

	_, err := Build(fn)
	require.Error(t, err)
}

func TestBuildDuplicateLabelIsMalformed(t *testing.T) {
	fn := parseFunc(t, `{"functions":[{"name":"main","instrs":[
		{"label":"l"},
		{"op":"ret"},
		{"label":"l"},
		{"op":"ret"}
	]}]}`)

	_, err := Build(fn)
	require.Error(t, err)
}

func TestBuildEntryWithPredecessorGetsSyntheticEntry(t *testing.T) {
	// A loop back to the first block means the entry has a predecessor,
	// so the builder must insert a synthetic entry before it.
	fn := parseFunc(t, `{"functions":[{"name":"main","instrs":[
		{"label":"loop"},
		{"op":"const","dest":"c","type":"bool","value":true},
		{"op":"br","args":["c"],"labels":["loop","exit"]},
		{"label":"exit"},
		{"op":"ret"}
	]}]}`)

	g, err := Build(fn)
	require.NoError(t, err)
	require.Empty(t, g.Blocks[g.Entry].Preds)
	require.Equal(t, 0, g.Entry)

	loopBlk, ok := g.BlockNamed("loop")
	require.True(t, ok)
	require.NotEqual(t, g.Entry, loopBlk.ID)
	require.Contains(t, loopBlk.Preds, g.Entry)
}

func TestLinearizeRoundTrip(t *testing.T) {
	fn := parseFunc(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"print","args":["a"]},
		{"op":"ret"}
	]}]}`)

	g, err := Build(fn)
	require.NoError(t, err)
	out := Linearize(g)
	require.Equal(t, fn.Name, out.Name)

	g2, err := Build(out)
	require.NoError(t, err)
	require.Equal(t, len(g.Blocks), len(g2.Blocks))
}
