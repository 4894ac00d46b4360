package lsp

// The supported semantic token types, in legend order (indices below
// must match).
var SemanticTokenTypes = []string{
	"namespace",
	"type",
	"typeParameter",
	"function",
	"variable",
	"parameter",
	"property",
	"keyword",
	"number",
	"operator",
	"modifier",
}

// The supported semantic token modifiers (bitmask positions).
var SemanticTokenModifiers = []string{
	"declaration",
	"definition",
	"readonly",
	"static",
	"deprecated",
	"abstract",
}

const (
	tokenTypeNamespace = 0
	tokenTypeType      = 1
	tokenTypeFunction  = 3
	tokenTypeVariable  = 4
	tokenTypeParameter = 5
	tokenTypeKeyword   = 7
	tokenTypeNumber    = 8

	modifierDeclaration = 1 << 0
)

// SemanticToken represents a single LSP semantic token entry.
// Line and StartChar are 0-based positions; TokenType is an index into
// SemanticTokenTypes and TokenModifiers a bitmask over
// SemanticTokenModifiers.
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

// collectSemanticTokens maps a document index's tokens onto the LSP
// legend. Opcodes read as keywords, labels as namespaces, and variable
// definitions carry the declaration modifier, so a BRIL-JSON document
// highlights like the program it encodes rather than like plain JSON.
func collectSemanticTokens(idx *docIndex) []SemanticToken {
	var out []SemanticToken
	for _, t := range idx.tokens {
		typ, mods, ok := legendFor(t.Kind)
		if !ok {
			continue
		}
		out = append(out, SemanticToken{
			Line:           t.Line,
			StartChar:      t.Char,
			Length:         t.Length,
			TokenType:      typ,
			TokenModifiers: mods,
		})
	}
	return out
}

func legendFor(kind tokenKind) (int, int, bool) {
	switch kind {
	case tokOpcode:
		return tokenTypeKeyword, 0, true
	case tokDest:
		return tokenTypeVariable, modifierDeclaration, true
	case tokArg:
		return tokenTypeVariable, 0, true
	case tokLabelDef:
		return tokenTypeNamespace, modifierDeclaration, true
	case tokLabelRef:
		return tokenTypeNamespace, 0, true
	case tokFuncName:
		return tokenTypeFunction, modifierDeclaration, true
	case tokFuncRef:
		return tokenTypeFunction, 0, true
	case tokParam:
		return tokenTypeParameter, modifierDeclaration, true
	case tokType:
		return tokenTypeType, 0, true
	case tokNumber:
		return tokenTypeNumber, 0, true
	default:
		return 0, 0, false
	}
}
