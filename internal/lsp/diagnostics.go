package lsp

import (
	"encoding/json"
	"errors"
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/diagnostics"
)

const diagnosticSource = "brilopt"

// Diagnose parses text as BRIL-JSON and returns the diagnostics an
// editor should display plus the parsed program (nil when the JSON
// itself is broken). The checks mirror the CLI's malformed-input
// taxonomy: JSON syntax, unknown opcodes, ill-formed consts, and the
// label errors cfg.Build raises. It never reports BRIL type errors;
// type-checking stays out of scope here as everywhere else.
func Diagnose(text string) ([]protocol.Diagnostic, *bril.Program) {
	return diagnose(text, indexDocument(text))
}

func diagnose(text string, idx *docIndex) ([]protocol.Diagnostic, *bril.Program) {
	prog, err := bril.ParseProgram([]byte(text))
	if err != nil {
		return []protocol.Diagnostic{syntaxDiagnostic(text, err)}, nil
	}

	var diags []protocol.Diagnostic
	for _, fn := range prog.Functions {
		for i, item := range fn.Items {
			if item.IsLabel() {
				continue
			}
			instr := item.Instr
			if !bril.KnownOp(instr.Op) {
				diags = append(diags, diag(idx.instrSpan(fn.Name, i),
					fmt.Sprintf("unknown opcode %q", instr.Op)))
				continue
			}
			if instr.Op == bril.OpConst {
				switch {
				case instr.Value == nil:
					diags = append(diags, diag(idx.instrSpan(fn.Name, i), "const without a value"))
				case instr.Type == nil:
					diags = append(diags, diag(idx.instrSpan(fn.Name, i), "const without a type"))
				case instr.Dest == "":
					diags = append(diags, diag(idx.instrSpan(fn.Name, i), "const without a destination"))
				}
			}
		}

		if _, err := cfg.Build(fn); err != nil {
			var de *diagnostics.Error
			s := idx.instrSpan(fn.Name, -1)
			msg := err.Error()
			if errors.As(err, &de) {
				msg = de.Msg
				if de.Instr >= 0 {
					s = idx.instrSpan(fn.Name, de.Instr)
				}
			}
			diags = append(diags, diag(s, msg))
		}
	}
	return diags, prog
}

func diag(s span, msg string) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := diagnosticSource
	return protocol.Diagnostic{
		Range:    s.Range(),
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// syntaxDiagnostic anchors a JSON decode failure at its byte offset
// when the underlying error carries one.
func syntaxDiagnostic(text string, err error) protocol.Diagnostic {
	var s span
	var syntax *json.SyntaxError
	var unmarshal *json.UnmarshalTypeError
	var offset int64 = -1
	if errors.As(err, &syntax) {
		offset = syntax.Offset
	} else if errors.As(err, &unmarshal) {
		offset = unmarshal.Offset
	}
	if offset >= 0 {
		lines := lineStarts(text)
		line := 0
		for line+1 < len(lines) && int64(lines[line+1]) <= offset {
			line++
		}
		char := uint32(offset - int64(lines[line]))
		s = span{StartLine: uint32(line), StartChar: char, EndLine: uint32(line), EndChar: char + 1}
	}
	return diag(s, err.Error())
}
