package lvn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
)

func parseFunc(t *testing.T, src string) *bril.Function {
	t.Helper()
	p, err := bril.ParseProgram([]byte(src))
	require.NoError(t, err)
	require.Len(t, p.Functions, 1)
	return p.Functions[0]
}

func TestStraightLineLVN(t *testing.T) {
	fn := parseFunc(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"a","type":"int","value":4},
		{"op":"const","dest":"b","type":"int","value":4},
		{"op":"add","dest":"sum1","type":"int","args":["a","b"]},
		{"op":"add","dest":"sum2","type":"int","args":["a","b"]},
		{"op":"print","args":["sum1","sum2"]}
	]}]}`)

	g, err := cfg.Build(fn)
	require.NoError(t, err)
	require.Len(t, g.Blocks, 1)

	Run(g)

	b := g.Blocks[0]
	require.Equal(t, bril.OpConst, b.Instrs[0].Op)
	require.Equal(t, "a", b.Instrs[0].Dest)

	require.Equal(t, bril.OpID, b.Instrs[1].Op)
	require.Equal(t, "b", b.Instrs[1].Dest)
	require.Equal(t, []string{"a"}, b.Instrs[1].Args)

	// a and b both resolve to the known constant 4, so the add folds
	// away entirely.
	require.Equal(t, bril.OpConst, b.Instrs[2].Op)
	require.Equal(t, "sum1", b.Instrs[2].Dest)
	require.Equal(t, int64(8), b.Instrs[2].Value)

	require.Equal(t, bril.OpID, b.Instrs[3].Op)
	require.Equal(t, "sum2", b.Instrs[3].Dest)
	require.Equal(t, []string{"sum1"}, b.Instrs[3].Args)

	require.Equal(t, []string{"sum1", "sum1"}, b.Instrs[4].Args)
}

func TestAlgebraicIdentities(t *testing.T) {
	fn := parseFunc(t, `{"functions":[{"name":"main","args":[{"name":"x","type":"int"}],"instrs":[
		{"op":"const","dest":"zero","type":"int","value":0},
		{"op":"const","dest":"one","type":"int","value":1},
		{"op":"add","dest":"a","type":"int","args":["x","zero"]},
		{"op":"mul","dest":"b","type":"int","args":["x","one"]},
		{"op":"sub","dest":"c","type":"int","args":["x","x"]},
		{"op":"mul","dest":"d","type":"int","args":["x","zero"]},
		{"op":"print","args":["a","b","c","d"]}
	]}]}`)

	g, err := cfg.Build(fn)
	require.NoError(t, err)
	Run(g)

	b := g.Blocks[0]
	require.Equal(t, bril.OpID, b.Instrs[2].Op)
	require.Equal(t, []string{"x"}, b.Instrs[2].Args)

	require.Equal(t, bril.OpID, b.Instrs[3].Op)
	require.Equal(t, []string{"x"}, b.Instrs[3].Args)

	// x - x and x * zero both fold to the already-live "zero" constant,
	// so they become id copies of it rather than fresh const instructions.
	require.Equal(t, bril.OpID, b.Instrs[4].Op)
	require.Equal(t, []string{"zero"}, b.Instrs[4].Args)

	require.Equal(t, bril.OpID, b.Instrs[5].Op)
	require.Equal(t, []string{"zero"}, b.Instrs[5].Args)

	// The print's operands are rewritten to each value's home variable.
	require.Equal(t, bril.OpPrint, b.Instrs[6].Op)
	require.Equal(t, []string{"x", "x", "zero", "zero"}, b.Instrs[6].Args)
}

func TestConstantFolding(t *testing.T) {
	fn := parseFunc(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"a","type":"int","value":2},
		{"op":"const","dest":"b","type":"int","value":3},
		{"op":"add","dest":"c","type":"int","args":["a","b"]},
		{"op":"print","args":["c"]}
	]}]}`)

	g, err := cfg.Build(fn)
	require.NoError(t, err)
	Run(g)

	b := g.Blocks[0]
	require.Equal(t, bril.OpConst, b.Instrs[2].Op)
	require.Equal(t, int64(5), b.Instrs[2].Value)
}

func TestSideEffectsNeverShareValueNumbers(t *testing.T) {
	fn := parseFunc(t, `{"functions":[{"name":"main","instrs":[
		{"op":"call","dest":"a","type":"int","funcs":["f"]},
		{"op":"call","dest":"b","type":"int","funcs":["f"]},
		{"op":"print","args":["a","b"]}
	]}]}`)

	g, err := cfg.Build(fn)
	require.NoError(t, err)
	Run(g)

	b := g.Blocks[0]
	require.Equal(t, bril.OpCall, b.Instrs[0].Op)
	require.Equal(t, bril.OpCall, b.Instrs[1].Op)
	require.Equal(t, []string{"a", "b"}, b.Instrs[2].Args)
}
