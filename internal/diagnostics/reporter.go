package diagnostics

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Level is a rendered report's severity (error/warning/note/help), kept
// distinct from Kind: Kind drives the process exit code, Level drives
// only how a message is colored when printed.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
	LevelHelp    Level = "help"
)

// Report is a single formatted diagnostic: instead of a source
// line/column it anchors on
// a function name and instruction index, since BRIL-JSON carries no
// column information of its own.
type Report struct {
	Level    Level
	Code     string // "E1000" malformed input, "E2000" internal or unclassified
	Message  string
	Function string
	Instr    int    // -1 if not instruction-specific
	Snippet  string // rendered instruction text, if available
	Notes    []string
	Help     string
}

// FromError adapts a classified *Error into a Report ready for display.
func FromError(err error) Report {
	var de *Error
	code := "E2000"
	level := LevelError
	if asError(err, &de) {
		if de.Kind == KindMalformed {
			code = "E1000"
		}
		return Report{Level: level, Code: code, Message: de.Msg, Function: de.Function, Instr: de.Instr}
	}
	return Report{Level: level, Code: code, Message: err.Error(), Instr: -1}
}

// Reporter renders Reports in the rustc style: a bold
// `level[code]: message` header, a `-->`
// location line, and a boxed snippet, in color.
type Reporter struct{}

func NewReporter() *Reporter { return &Reporter{} }

// Format renders one report as a multi-line string suitable for stderr.
func (r *Reporter) Format(rep Report) string {
	var b strings.Builder

	levelColor := r.levelColor(rep.Level)
	dim := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if rep.Code != "" {
		b.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(rep.Level)), rep.Code, bold(rep.Message)))
	} else {
		b.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(rep.Level)), bold(rep.Message)))
	}

	if rep.Function != "" {
		loc := rep.Function
		if rep.Instr >= 0 {
			loc = fmt.Sprintf("%s@%d", rep.Function, rep.Instr)
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", dim("-->"), loc))
	}

	if rep.Snippet != "" {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim("│"), rep.Snippet))
	}

	for _, n := range rep.Notes {
		b.WriteString(fmt.Sprintf("   %s %s %s\n", dim("│"), color.New(color.FgBlue).Sprint("note:"), n))
	}
	if rep.Help != "" {
		b.WriteString(fmt.Sprintf("   %s %s %s\n", dim("│"), color.New(color.FgGreen).Sprint("help:"), rep.Help))
	}

	return b.String()
}

func (r *Reporter) levelColor(level Level) func(...any) string {
	switch level {
	case LevelError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case LevelWarning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case LevelNote:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	case LevelHelp:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}
