package stats

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"brilopt/internal/bril"
)

func TestCountProgramCountsInstructionsNotLabels(t *testing.T) {
	p, err := bril.ParseProgram([]byte(`{"functions":[{"name":"main","instrs":[
		{"label":"entry"},
		{"op":"const","dest":"x","type":"int","value":1},
		{"op":"print","args":["x"]}
	]}]}`))
	require.NoError(t, err)

	r := CountProgram(p)
	require.Equal(t, 1, r.Functions)
	require.Equal(t, 2, r.Instrs)
}

func TestReportWriteIncludesPassOutcomes(t *testing.T) {
	r := NewReport()
	r.RecordPass("lvn", true)
	r.RecordPass("dce", false)

	var buf bytes.Buffer
	r.Write(&buf)

	out := buf.String()
	require.Contains(t, out, "lvn: applied")
	require.Contains(t, out, "dce: no changes")
}
