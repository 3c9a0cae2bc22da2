package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"

	"casebrief-backend/config"
	"casebrief-backend/llm"
	"casebrief-backend/repository"
	"casebrief-backend/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	root := newRootCmd(openApp)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// openApp wires the configured store and completion backend
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := repository.Open(ctx, cfg.StoreType, cfg.DatabaseURL, cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	client, err := llm.New(ctx, cfg.LLM())
	if err != nil {
		store.Close()
		return nil, err
	}

	p := cfg.Pipeline
	settings := service.CompletionSettings{
		Temperature:       p.Temperature,
		BriefMaxTokens:    p.BriefMaxTokens,
		DetailedMaxTokens: p.DetailedMaxTokens,
		VerifyMaxTokens:   p.VerifyMaxTokens,
		Timeout:           p.CompletionTimeout,
	}

	a := newApp(store, client, settings,
		service.BriefWithMaxAttempts(p.MaxAttempts),
		service.BriefWithWriteTimeout(p.WriteTimeout),
		service.BriefWithCorrections(p.ApplyCorrections),
	)
	a.batch = p.SweepBatch
	a.closers = append(a.closers, func() {
		if c, ok := client.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Printf("Warning: Failed to close completion client: %v", err)
			}
		}
	})
	return a, nil
}
