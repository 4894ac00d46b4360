package diagnostics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCodes(t *testing.T) {
	require.Equal(t, 1, ExitCode(Malformed("bad input")))
	require.Equal(t, 1, ExitCode(MalformedIn("main", "duplicate label %q", "l")))
	require.Equal(t, 3, ExitCode(Internal("main", "pred/succ mismatch")))
	require.Equal(t, 3, ExitCode(fmt.Errorf("some unclassified error")))
}

func TestExitCodeUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("while building cfg: %w", MalformedIn("main", "jmp to unresolved label %q", "x"))
	require.Equal(t, 1, ExitCode(wrapped))
}

func TestErrorStringIncludesLocation(t *testing.T) {
	err := &Error{Kind: KindMalformed, Function: "main", Instr: 3, Msg: "unknown opcode"}
	require.Equal(t, "main@3: unknown opcode", err.Error())

	err = &Error{Kind: KindMalformed, Function: "main", Instr: -1, Msg: "duplicate label"}
	require.Equal(t, "main: duplicate label", err.Error())
}

func TestFromErrorClassifies(t *testing.T) {
	rep := FromError(MalformedIn("main", "unknown opcode %q", "frob"))
	require.Equal(t, "E1000", rep.Code)
	require.Equal(t, "main", rep.Function)

	rep = FromError(Internal("main", "broken invariant"))
	require.Equal(t, "E2000", rep.Code)
}

func TestFormatRendersHeaderAndLocation(t *testing.T) {
	rep := Report{
		Level:    LevelError,
		Code:     "E1000",
		Message:  "jmp to unresolved label \"nowhere\"",
		Function: "main",
		Instr:    2,
	}
	out := NewReporter().Format(rep)
	require.Contains(t, out, "E1000")
	require.Contains(t, out, "jmp to unresolved label")
	require.Contains(t, out, "main@2")
}
