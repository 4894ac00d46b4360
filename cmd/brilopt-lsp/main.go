// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"log"
	"os"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"brilopt/internal/logging"
	"brilopt/internal/lsp"
)

const lsName = "brilopt"

var (
	version = "0.0.1"
	handler protocol.Handler
)

func main() {
	var ws, logLevel string
	flag.StringVar(&ws, "ws", "", "serve LSP over a websocket listener at this address instead of stdio")
	flag.StringVar(&logLevel, "log-level", "info", "error|warn|info|debug")
	flag.Parse()

	logging.Configure(logLevel)

	brilHandler := lsp.NewBrilHandler()

	handler = protocol.Handler{
		Initialize:                     brilHandler.Initialize,
		Initialized:                    brilHandler.Initialized,
		Shutdown:                       brilHandler.Shutdown,
		SetTrace:                       brilHandler.SetTrace,
		TextDocumentDidOpen:            brilHandler.TextDocumentDidOpen,
		TextDocumentDidClose:           brilHandler.TextDocumentDidClose,
		TextDocumentDidChange:          brilHandler.TextDocumentDidChange,
		TextDocumentCompletion:         brilHandler.TextDocumentCompletion,
		TextDocumentHover:              brilHandler.TextDocumentHover,
		TextDocumentSemanticTokensFull: brilHandler.TextDocumentSemanticTokensFull,
	}

	s := server.NewServer(&handler, lsName, false)

	var err error
	if ws != "" {
		log.Printf("Starting brilopt LSP server (%s) on websocket %s...", version, ws)
		err = s.RunWebSocket(ws)
	} else {
		log.Printf("Starting brilopt LSP server (%s) on stdio...", version)
		err = s.RunStdio()
	}
	if err != nil {
		log.Println("Error starting brilopt LSP server:", err)
		os.Exit(1)
	}
}
