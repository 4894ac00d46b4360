package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"brilopt/internal/bril"
)

func parseProgram(t *testing.T, src string) *bril.Program {
	t.Helper()
	p, err := bril.ParseProgram([]byte(src))
	require.NoError(t, err)
	return p
}

func TestPipelineRunsPassesInOrder(t *testing.T) {
	prog := parseProgram(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"x","type":"int","value":1},
		{"op":"const","dest":"y","type":"int","value":2},
		{"op":"print","args":["x"]}
	]}]}`)

	pipeline := NewPipeline()
	pipeline.Add(LVNPass{})
	pipeline.Add(DCEPass{})
	require.Len(t, pipeline.Passes(), 2)

	require.NoError(t, pipeline.Run(prog))

	fn := prog.FunctionNamed("main")
	require.NotNil(t, fn)

	var destOrder []string
	for _, it := range fn.Items {
		if it.Instr != nil && it.Instr.Dest != "" {
			destOrder = append(destOrder, it.Instr.Dest)
		}
	}
	require.Equal(t, []string{"x"}, destOrder, "y should have been eliminated as dead by DCEPass")
}

func TestTransformPrintPassNeverChangesProgram(t *testing.T) {
	prog := parseProgram(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"x","type":"int","value":1},
		{"op":"print","args":["x"]}
	]}]}`)

	before, err := prog.Encode()
	require.NoError(t, err)

	changed, err := TransformPrintPass{}.Apply(prog)
	require.NoError(t, err)
	require.False(t, changed)

	after, err := prog.Encode()
	require.NoError(t, err)
	require.JSONEq(t, string(before), string(after))
}

func TestConstructCFGPassRoundTripsLabels(t *testing.T) {
	prog := parseProgram(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"x","type":"int","value":1},
		{"op":"br","args":["x"],"labels":["then","else"]},
		{"label":"then"},
		{"op":"ret"},
		{"label":"else"},
		{"op":"ret"}
	]}]}`)

	changed, err := ConstructCFGPass{}.Apply(prog)
	require.NoError(t, err)
	require.False(t, changed)

	fn := prog.FunctionNamed("main")
	require.NotNil(t, fn)
	require.NotEmpty(t, fn.Items)
}
