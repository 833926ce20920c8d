// Package main is the entry point for the rita CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"rita/internal/backend/webapi"
	"rita/internal/cli"
	"rita/internal/commands"
	"rita/internal/config"
	apperrors "rita/internal/errors"
	"rita/internal/service"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Create service factory
	factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		if !cfg.Authenticated() {
			return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "not logged in (run: rita login)", nil)
		}
		return webapi.New(ctx, cfg)
	}

	// Create dispatcher
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	// Run and exit with code
	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
