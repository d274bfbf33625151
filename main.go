package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"maimaibot/bot"
	"maimaibot/cache"
	"maimaibot/config"
	"maimaibot/dispatch"
	"maimaibot/localtime"
	"maimaibot/mcp"
	"maimaibot/scheduler"
	"maimaibot/storage"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	dataDir := cfg.DataDir()
	config.InitDebugLog(dataDir)

	cipher, err := storage.LoadTokenCipher(dataDir, cfg.PassphraseFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize token encryption: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewCredentialStore(dataDir, cipher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open credential store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	newClient := func(token string) dispatch.ToolCaller {
		return mcp.New(cfg.ServerURL, token, cfg.ProtocolVersion, cfg.CallTimeout)
	}

	facade := dispatch.New(store, cache.New(cfg.CacheTTL), newClient, cfg.CacheableTools)

	transport := bot.NewConsoleTransport(os.Stdout)
	handler := bot.NewHandler(store, facade, transport)

	sched := scheduler.New(scheduler.Config{
		ClaimTool:     cfg.ClaimTool,
		ThresholdHour: cfg.ThresholdHour,
		Timezone:      cfg.Timezone,
		SweepSpec:     "@every " + cfg.SweepInterval.String(),
	}, facade, store, transport, localtime.NewWallClock())

	if err := sched.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start claim scheduler: %v\n", err)
		os.Exit(1)
	}
	defer sched.Stop()

	fmt.Printf("maimaibot %s (%s) connected to %s\n", Version, License, cfg.ServerURL)
	fmt.Println("Enter commands as: <userID> <command...>  (Ctrl-D to exit)")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := transport.Run(ctx, os.Stdin, handler); err != nil {
			fmt.Fprintf(os.Stderr, "Input loop failed: %v\n", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
	case <-done:
	}
}
