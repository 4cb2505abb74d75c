// Package main is the entry point for the kbmcp CLI.
//
// kbmcp serves a question/answer knowledge base over the Model Context
// Protocol and answers questions with an LLM that retrieves from it:
//
//	kbmcp serve                    run the MCP server (stdio, sse or http)
//	kbmcp ask "question"           one answer, spawning the server over stdio
//	kbmcp chat                     interactive chat in the terminal
//	kbmcp match "question"         matcher diagnostics, no model involved
//	kbmcp bench                    tool-call latency per transport
//	kbmcp kb sync|show             manage the knowledge base source
//	kbmcp auth set|delete|status   API keys in the OS keyring
//	kbmcp config init|show|path    configuration file
//
// SIGINT and SIGTERM cancel the root context, which stops a running server
// and kills a spawned server subprocess.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kbmcp/internal/adapter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, adapter.ErrRateLimited) {
			fmt.Fprintln(os.Stderr, adapter.BillingHint)
		}
		os.Exit(1)
	}
}
