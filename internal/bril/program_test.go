package bril

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleProgram = `{
  "functions": [
    {
      "name": "main",
      "instrs": [
        {"op": "const", "dest": "a", "type": "int", "value": 4},
        {"op": "const", "dest": "b", "type": "int", "value": 4},
        {"op": "add", "dest": "sum", "type": "int", "args": ["a", "b"]},
        {"op": "print", "args": ["sum"]},
        {"op": "ret"}
      ]
    }
  ]
}`

func TestParseProgramRoundTrip(t *testing.T) {
	p, err := ParseProgram([]byte(sampleProgram))
	require.NoError(t, err)
	require.Len(t, p.Functions, 1)

	fn := p.Functions[0]
	require.Equal(t, "main", fn.Name)
	require.Len(t, fn.Items, 5)

	constA := fn.Items[0].Instr
	require.Equal(t, OpConst, constA.Op)
	require.Equal(t, "a", constA.Dest)
	require.IsType(t, IntType{}, constA.Type)
	require.Equal(t, int64(4), constA.Value)

	add := fn.Items[2].Instr
	require.Equal(t, OpAdd, add.Op)
	require.Equal(t, []string{"a", "b"}, add.Args)

	out, err := p.Encode()
	require.NoError(t, err)

	p2, err := ParseProgram(out)
	require.NoError(t, err)
	require.Equal(t, p.Functions[0].Name, p2.Functions[0].Name)
	require.Len(t, p2.Functions[0].Items, 5)
}

func TestParsePtrType(t *testing.T) {
	prog := `{"functions":[{"name":"f","args":[{"name":"p","type":{"ptr":"int"}}],"instrs":[{"op":"ret"}]}]}`
	p, err := ParseProgram([]byte(prog))
	require.NoError(t, err)

	fn := p.Functions[0]
	require.Len(t, fn.Args, 1)
	pt, ok := fn.Args[0].Type.(PtrType)
	require.True(t, ok)
	require.IsType(t, IntType{}, pt.Elem)
}

func TestParseLabelItem(t *testing.T) {
	prog := `{"functions":[{"name":"f","instrs":[{"label":"loop"},{"op":"jmp","labels":["loop"]}]}]}`
	p, err := ParseProgram([]byte(prog))
	require.NoError(t, err)

	fn := p.Functions[0]
	require.True(t, fn.Items[0].IsLabel())
	require.Equal(t, "loop", fn.Items[0].Label.Name)
	require.False(t, fn.Items[1].IsLabel())
	require.Equal(t, OpJmp, fn.Items[1].Instr.Op)
}

func TestCharLiteral(t *testing.T) {
	prog := `{"functions":[{"name":"f","instrs":[{"op":"const","dest":"c","type":"char","value":"x"}]}]}`
	p, err := ParseProgram([]byte(prog))
	require.NoError(t, err)
	require.Equal(t, 'x', p.Functions[0].Items[0].Instr.Value)
}

func TestMalformedTypeRejected(t *testing.T) {
	prog := `{"functions":[{"name":"f","instrs":[{"op":"const","dest":"c","type":"bogus","value":1}]}]}`
	_, err := ParseProgram([]byte(prog))
	require.Error(t, err)
}
