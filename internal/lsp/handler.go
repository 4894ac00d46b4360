// Package lsp implements the language-server handlers for BRIL-JSON
// documents: live malformed-IR diagnostics, semantic highlighting, and
// hover information for value names.
package lsp

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sasha-s/go-deadlock"
	"github.com/segmentio/ksuid"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/dataflow"
	"brilopt/internal/logging"
)

// document is the per-file state the handler keeps: the raw text, the
// parsed program (nil while the JSON is broken), and the token index
// semantic highlighting and hover run against.
type document struct {
	content string
	program *bril.Program
	index   *docIndex
}

// BrilHandler implements the LSP server handlers for BRIL-JSON files.
// The mutex is a deadlock-instrumented RWMutex rather than a plain
// sync.RWMutex: the open/change handlers re-analyze the document and
// hover runs liveness over it, so lock
// misuse under concurrent editor requests would otherwise be easy to
// ship and hard to reproduce.
type BrilHandler struct {
	mu   deadlock.RWMutex
	docs map[string]*document
}

// NewBrilHandler creates and returns a new BrilHandler instance.
func NewBrilHandler() *BrilHandler {
	return &BrilHandler{docs: make(map[string]*document)}
}

// Initialize responds to the LSP client's initialize request and
// advertises the server's capabilities.
func (h *BrilHandler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	logging.Debugf("lsp: initialize")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			CompletionProvider: &protocol.CompletionOptions{
				ResolveProvider: ptrBool(false),
			},
			HoverProvider: true,
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
	}, nil
}

// Initialized is called after the client completes initialization.
func (h *BrilHandler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	logging.Infof("lsp: initialized")
	return nil
}

// Shutdown handles the LSP shutdown request.
func (h *BrilHandler) Shutdown(ctx *glsp.Context) error {
	logging.Infof("lsp: shutdown")
	return nil
}

// SetTrace handles trace-level notifications from the client.
func (h *BrilHandler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	logging.Debugf("lsp: trace set to %v", params.Value)
	return nil
}

// TextDocumentDidOpen analyzes a freshly opened file and pushes its
// diagnostics.
func (h *BrilHandler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	logging.Debugf("lsp: opened %s", params.TextDocument.URI)

	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	diags := h.updateDocument(path, params.TextDocument.Text)
	sendDiagnosticNotification(ctx, params.TextDocument.URI, diags)
	return nil
}

// TextDocumentDidClose drops the per-file state.
func (h *BrilHandler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	logging.Debugf("lsp: closed %s", params.TextDocument.URI)

	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.docs, path)
	return nil
}

// TextDocumentDidChange re-analyzes on every (full-sync) edit and
// pushes fresh diagnostics.
func (h *BrilHandler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}

	for _, change := range params.ContentChanges {
		var text string
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEvent:
			text = c.Text
		case *protocol.TextDocumentContentChangeEvent:
			text = c.Text
		case protocol.TextDocumentContentChangeEventWhole:
			text = c.Text
		case *protocol.TextDocumentContentChangeEventWhole:
			text = c.Text
		default:
			continue
		}
		diags := h.updateDocument(path, text)
		sendDiagnosticNotification(ctx, params.TextDocument.URI, diags)
	}
	return nil
}

// TextDocumentCompletion offers the BRIL opcode vocabulary.
func (h *BrilHandler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	kind := protocol.CompletionItemKindKeyword
	ops := bril.KnownOps()
	items := make([]protocol.CompletionItem, 0, len(ops))
	for _, op := range ops {
		items = append(items, protocol.CompletionItem{
			Label: string(op),
			Kind:  &kind,
		})
	}
	return &protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

// TextDocumentSemanticTokensFull returns semantic tokens for the whole
// document, delta-encoded per the LSP wire format.
func (h *BrilHandler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	doc, err := h.getOrUpdateDocument(ctx, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	tokens := collectSemanticTokens(doc.index)

	var data []uint32
	var prevLine, prevStart uint32
	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		var deltaStart uint32
		if deltaLine == 0 {
			deltaStart = token.StartChar - prevStart
		} else {
			deltaStart = token.StartChar
		}
		data = append(data, deltaLine, deltaStart, token.Length, uint32(token.TokenType), uint32(token.TokenModifiers))
		prevLine = token.Line
		prevStart = token.StartChar
	}

	return &protocol.SemanticTokens{Data: data}, nil
}

// TextDocumentHover describes the value name under the cursor: its
// defining instruction and the blocks it is live into.
func (h *BrilHandler) TextDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, err := h.getOrUpdateDocument(ctx, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	if doc.program == nil {
		return nil, nil
	}

	tok, ok := doc.index.tokenAt(params.Position.Line, params.Position.Character)
	if !ok {
		return nil, nil
	}

	var value string
	switch tok.Kind {
	case tokDest, tokArg, tokParam:
		value = hoverForVariable(doc.program, tok)
	default:
		return nil, nil
	}
	if value == "" {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}, nil
}

// hoverForVariable renders the defining instruction(s) of a variable
// and, when the function's CFG builds cleanly, the blocks the variable
// is live into.
func hoverForVariable(prog *bril.Program, tok token) string {
	fn := prog.FunctionNamed(tok.Func)
	if fn == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", tok.Text)

	var defs []string
	for _, p := range fn.Args {
		if p.Name == tok.Text {
			defs = append(defs, fmt.Sprintf("parameter of `@%s`", fn.Name))
		}
	}
	for _, item := range fn.Items {
		if !item.IsLabel() && item.Instr.Dest == tok.Text {
			defs = append(defs, fmt.Sprintf("`%s`", item.Instr.String()))
		}
	}
	if len(defs) == 0 {
		b.WriteString("\n\nnever defined in this function")
		return b.String()
	}
	b.WriteString("\n\ndefined by:")
	for _, d := range defs {
		b.WriteString("\n- " + d)
	}

	if g, err := cfg.Build(fn); err == nil {
		live := dataflow.LiveVariables(g)
		var blocks []string
		for _, blk := range g.Blocks {
			if live.In[blk.ID][tok.Text] {
				blocks = append(blocks, "`."+blk.Label+"`")
			}
		}
		if len(blocks) > 0 {
			fmt.Fprintf(&b, "\n\nlive into: %s", strings.Join(blocks, ", "))
		}
	}
	return b.String()
}

// updateDocument re-indexes and re-diagnoses one file's content,
// storing the result under the handler's lock.
func (h *BrilHandler) updateDocument(path, content string) []protocol.Diagnostic {
	idx := indexDocument(content)
	diags, prog := diagnose(content, idx)

	h.mu.Lock()
	h.docs[path] = &document{content: content, program: prog, index: idx}
	h.mu.Unlock()

	return diags
}

// getOrUpdateDocument returns the cached state for a file, reading it
// from disk on first touch (a request can arrive before didOpen when
// an editor restores a session).
func (h *BrilHandler) getOrUpdateDocument(ctx *glsp.Context, rawURI protocol.DocumentUri) (*document, error) {
	path, err := uriToPath(rawURI)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	doc, ok := h.docs[path]
	h.mu.RUnlock()
	if ok {
		return doc, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	diags := h.updateDocument(path, string(content))
	sendDiagnosticNotification(ctx, rawURI, diags)

	h.mu.RLock()
	doc = h.docs[path]
	h.mu.RUnlock()
	return doc, nil
}

// uriToPath converts a file URI to a platform-local path.
func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}

	path := u.Path

	// On Windows, strip the leading slash of /C:/... forms.
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path), nil
}

// sendDiagnosticNotification publishes one batch of diagnostics,
// stamped with a ksuid so batches from rapid successive edits can be
// told apart in the log.
func sendDiagnosticNotification(ctx *glsp.Context, uri protocol.URI, diagnostics []protocol.Diagnostic) {
	if ctx == nil || ctx.Notify == nil {
		// Headless contexts (tests) carry no transport.
		return
	}

	batch := ksuid.New()
	logging.Debugf("lsp: publishing diagnostics batch %s (%d item(s)) for %s", batch, len(diagnostics), uri)

	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool { return &b }

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
