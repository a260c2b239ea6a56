// spawnpipe runs files through an external command.
//
// Usage:
//
//	spawnpipe --cmd tr --args a-z --args A-Z --out dist src/*.txt
//	spawnpipe --mode each --cmd gzip --args -k --args '{{ .Item.Path }}' *.log
//	spawnpipe --mode once --cmd make --args build src/*
//	spawnpipe --mode run --cmd make --args test
//	echo hello | spawnpipe --cmd tr --args a-z --args A-Z
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already ran
	}
}
