package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/diagnostics"
	"github.com/goliatone/go-processor/host"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := host.New(host.WithName("diagnostics"))
	err := host.Register(h, diagnostics.Type,
		"Generates numbered items and fails or categorizes them on demand.",
		diagnostics.DefaultConfig,
		func(cfg diagnostics.Config) (processor.Processor[int], error) {
			return diagnostics.New(cfg), nil
		},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "register: %v\n", err)
		os.Exit(1)
	}

	if err := h.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
