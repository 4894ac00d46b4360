package lsp

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// tokenKind classifies one highlightable region of a BRIL-JSON
// document. The mapping to LSP semantic token types lives in
// semantic.go.
type tokenKind int

const (
	tokOpcode tokenKind = iota
	tokDest
	tokArg
	tokLabelDef
	tokLabelRef
	tokFuncName
	tokFuncRef
	tokParam
	tokType
	tokNumber
)

// token is one scalar worth highlighting: an opcode, a variable name,
// a label, a function name, a type, or a numeric literal. Func and
// Instr locate it within the program for hover lookups.
type token struct {
	Line   uint32
	Char   uint32
	Length uint32
	Kind   tokenKind
	Text   string
	Func   string // enclosing function name, "" outside any function
	Instr  int    // enclosing instruction index, -1 outside instrs
}

// span is a possibly multi-line document region, used to anchor
// diagnostics on whole instruction objects.
type span struct {
	StartLine, StartChar uint32
	EndLine, EndChar     uint32
}

func (s span) Range() protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: s.StartLine, Character: s.StartChar},
		End:   protocol.Position{Line: s.EndLine, Character: s.EndChar},
	}
}

// docIndex is the byte geometry of one BRIL-JSON document: every token
// worth highlighting plus, per function, the span of each instruction
// object and of the function's name string, for anchoring diagnostics.
type docIndex struct {
	tokens []token
	funcs  map[string]span         // function name -> name-string span
	instrs map[string]map[int]span // function name -> instr index -> object span
}

// tokenAt returns the token covering the given 0-based position, if any.
func (ix *docIndex) tokenAt(line, char uint32) (token, bool) {
	for _, t := range ix.tokens {
		if t.Line == line && char >= t.Char && char < t.Char+t.Length {
			return t, true
		}
	}
	return token{}, false
}

// instrSpan returns the span of instruction idx in function fn, falling
// back to the function's name span and then to a zero span.
func (ix *docIndex) instrSpan(fn string, idx int) span {
	if m, ok := ix.instrs[fn]; ok {
		if s, ok := m[idx]; ok {
			return s
		}
	}
	if s, ok := ix.funcs[fn]; ok {
		return s
	}
	return span{}
}

// indexDocument scans text as BRIL-JSON and builds a docIndex. A JSON
// syntax error ends the scan early; the partial index built so far is
// still returned, so a document broken mid-edit keeps most of its
// highlighting.
func indexDocument(text string) *docIndex {
	ix := &indexer{
		dec:   json.NewDecoder(strings.NewReader(text)),
		lines: lineStarts(text),
		idx: &docIndex{
			funcs:  make(map[string]span),
			instrs: make(map[string]map[int]span),
		},
	}
	ix.dec.UseNumber()
	ix.program()
	return ix.idx
}

type indexer struct {
	dec   *json.Decoder
	lines []int
	idx   *docIndex

	curFunc  string
	curInstr int
	failed   bool
}

// pos converts a byte offset to a 0-based (line, character) pair.
func (ix *indexer) pos(offset int64) (uint32, uint32) {
	line := sort.Search(len(ix.lines), func(i int) bool {
		return int64(ix.lines[i]) > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	return uint32(line), uint32(offset - int64(ix.lines[line]))
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// next reads one JSON token, recording failure instead of propagating
// errors: indexing is best-effort and a truncated document simply
// yields a truncated index.
func (ix *indexer) next() (json.Token, bool) {
	if ix.failed {
		return nil, false
	}
	t, err := ix.dec.Token()
	if err != nil {
		if err != io.EOF {
			ix.failed = true
		}
		return nil, false
	}
	return t, true
}

// emit records a scalar token whose raw text ended at the decoder's
// current offset.
func (ix *indexer) emit(kind tokenKind, text string, rawLen int) {
	end := ix.dec.InputOffset()
	line, char := ix.pos(end - int64(rawLen))
	ix.idx.tokens = append(ix.idx.tokens, token{
		Line: line, Char: char, Length: uint32(rawLen),
		Kind: kind, Text: text,
		Func: ix.curFunc, Instr: ix.curInstr,
	})
}

func rawStringLen(s string) int {
	b, err := json.Marshal(s)
	if err != nil {
		return len(s) + 2
	}
	return len(b)
}

// str consumes one token and, if it is a string, emits it with the
// given kind and returns its value.
func (ix *indexer) str(kind tokenKind) (string, bool) {
	t, ok := ix.next()
	if !ok {
		return "", false
	}
	s, isStr := t.(string)
	if !isStr {
		ix.skipAfter(t)
		return "", false
	}
	ix.emit(kind, s, rawStringLen(s))
	return s, true
}

// skip consumes and discards one complete JSON value.
func (ix *indexer) skip() {
	t, ok := ix.next()
	if !ok {
		return
	}
	ix.skipAfter(t)
}

// skipAfter discards the remainder of a value whose first token was
// already consumed.
func (ix *indexer) skipAfter(t json.Token) {
	d, isDelim := t.(json.Delim)
	if !isDelim || d == '}' || d == ']' {
		return
	}
	depth := 1
	for depth > 0 {
		t, ok := ix.next()
		if !ok {
			return
		}
		if d, isDelim := t.(json.Delim); isDelim {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
}

func (ix *indexer) expectDelim(want json.Delim) bool {
	t, ok := ix.next()
	if !ok {
		return false
	}
	d, isDelim := t.(json.Delim)
	if !isDelim || d != want {
		ix.skipAfter(t)
		return false
	}
	return true
}

// program walks the top-level {"functions": [...], ...} object.
func (ix *indexer) program() {
	ix.curInstr = -1
	if !ix.expectDelim('{') {
		return
	}
	for ix.dec.More() {
		key, ok := ix.next()
		if !ok {
			return
		}
		if key == "functions" {
			if !ix.expectDelim('[') {
				return
			}
			for ix.dec.More() {
				ix.function()
			}
			ix.next() // ']'
		} else {
			ix.skip()
		}
	}
	ix.next() // '}'
}

func (ix *indexer) function() {
	ix.curFunc, ix.curInstr = "", -1
	if !ix.expectDelim('{') {
		return
	}
	// Instruction spans are collected in pending and stored under the
	// function's name once the object closes, so "instrs" may precede
	// "name"; BRIL emitters put "name" first, but nothing requires it.
	pending := make(map[int]span)
	for ix.dec.More() {
		key, ok := ix.next()
		if !ok {
			return
		}
		switch key {
		case "name":
			name, ok := ix.str(tokFuncName)
			if ok {
				ix.curFunc = name
				end := ix.dec.InputOffset()
				l, c := ix.pos(end - int64(rawStringLen(name)))
				ix.idx.funcs[name] = span{StartLine: l, StartChar: c, EndLine: l, EndChar: c + uint32(rawStringLen(name))}
			}
		case "args":
			ix.params()
		case "type":
			ix.typeValue()
		case "instrs":
			ix.instrList(pending)
		default:
			ix.skip()
		}
	}
	ix.next() // '}'
	if ix.curFunc != "" && len(pending) > 0 {
		ix.idx.instrs[ix.curFunc] = pending
	}
}

func (ix *indexer) params() {
	if !ix.expectDelim('[') {
		return
	}
	for ix.dec.More() {
		if !ix.expectDelim('{') {
			return
		}
		for ix.dec.More() {
			key, ok := ix.next()
			if !ok {
				return
			}
			switch key {
			case "name":
				ix.str(tokParam)
			case "type":
				ix.typeValue()
			default:
				ix.skip()
			}
		}
		ix.next() // '}'
	}
	ix.next() // ']'
}

// typeValue handles both the string form ("int") and the single-key
// object form ({"ptr": <type>}).
func (ix *indexer) typeValue() {
	t, ok := ix.next()
	if !ok {
		return
	}
	switch v := t.(type) {
	case string:
		ix.emit(tokType, v, rawStringLen(v))
	case json.Delim:
		if v != '{' {
			ix.skipAfter(t)
			return
		}
		for ix.dec.More() {
			if _, ok := ix.next(); !ok { // "ptr"
				return
			}
			ix.typeValue()
		}
		ix.next() // '}'
	}
}

func (ix *indexer) instrList(pending map[int]span) {
	if !ix.expectDelim('[') {
		return
	}
	for i := 0; ix.dec.More(); i++ {
		ix.curInstr = i
		start := ix.dec.InputOffset()
		sl, sc := ix.pos(start)
		ix.instr()
		end := ix.dec.InputOffset()
		el, ec := ix.pos(end)
		pending[i] = span{StartLine: sl, StartChar: sc, EndLine: el, EndChar: ec}
	}
	ix.curInstr = -1
	ix.next() // ']'
}

func (ix *indexer) instr() {
	if !ix.expectDelim('{') {
		return
	}
	for ix.dec.More() {
		key, ok := ix.next()
		if !ok {
			return
		}
		switch key {
		case "op":
			ix.str(tokOpcode)
		case "dest":
			ix.str(tokDest)
		case "label":
			ix.str(tokLabelDef)
		case "type":
			ix.typeValue()
		case "args":
			ix.stringList(tokArg)
		case "labels":
			ix.stringList(tokLabelRef)
		case "funcs":
			ix.stringList(tokFuncRef)
		case "value":
			ix.literal()
		default:
			ix.skip()
		}
	}
	ix.next() // '}'
}

func (ix *indexer) stringList(kind tokenKind) {
	if !ix.expectDelim('[') {
		return
	}
	for ix.dec.More() {
		ix.str(kind)
	}
	ix.next() // ']'
}

func (ix *indexer) literal() {
	t, ok := ix.next()
	if !ok {
		return
	}
	switch v := t.(type) {
	case json.Number:
		ix.emit(tokNumber, v.String(), len(v.String()))
	case bool, string:
		// Bool and char literals are left unhighlighted; the editor's
		// JSON grammar already colors them.
	default:
		ix.skipAfter(t)
	}
}
