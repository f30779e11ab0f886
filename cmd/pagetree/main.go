// Command pagetree edits and serves workspaces of nested pages, databases
// and content blocks.
//
// Every command works on the backend selected by --backend: memory, file
// (JSONL tables and markdown in a git repository), sqlite or http (a remote
// `pagetree serve`). Configuration is read from pagetree.yaml and overridden
// by flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "pagetree: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}
