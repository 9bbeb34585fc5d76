package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Maggerino21/ai-component-extractor/internal/config"
	"github.com/Maggerino21/ai-component-extractor/internal/logging"
	"github.com/Maggerino21/ai-component-extractor/internal/pipeline"
	"github.com/Maggerino21/ai-component-extractor/internal/resolve"
	"github.com/Maggerino21/ai-component-extractor/internal/storage"
	"github.com/Maggerino21/ai-component-extractor/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	var resolver resolve.Resolver
	if cfg.ResolveEnabled && strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		resolver = resolve.NewOpenAIResolver(cfg, log)
	}
	processor, err := pipeline.NewProcessingService(db, cfg, resolver, log)
	must(err)

	svc := watcher.NewService(db, cfg, processor, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
