package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coffersTech/jsonsink/internal/logstore"
	"github.com/coffersTech/jsonsink/internal/server"
	"github.com/coffersTech/jsonsink/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup happens before os.Exit.
func run() int {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	if cfg.hashToken != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.hashToken), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("Failed to hash token: %v", err)
			return 1
		}
		fmt.Println(string(hash))
		return 0
	}

	log.Println("jsonsink started...")

	// 1. Compress what earlier runs left behind
	if cfg.archive {
		archivePrevious(cfg.dir)
	}

	// 2. Open this run's log file
	store, err := logstore.Open(cfg.dir, logstore.WithSync(cfg.sync))
	if err != nil {
		log.Printf("Failed to open log store: %v", err)
		return 1
	}
	log.Printf("Writing to %s", store.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Retention cleaner
	if cfg.retention > 0 {
		go logstore.RunCleaner(ctx, cfg.dir, cfg.retention, cfg.cleanInterval, store.Path())
	}

	// 4. Start HTTP Server in a goroutine
	srv := server.NewIngestServer(store, server.Options{
		Strict:    cfg.strict,
		TokenHash: cfg.tokenHash,
	})
	addr := cfg.addr()

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", addr)
		serveErr <- srv.Start(addr)
	}()

	// 5. Graceful Shutdown Hook
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case err := <-serveErr:
		if err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Only finalize once no handler can still be appending.
	log.Println("Finalizing log file...")
	if err := store.Finalize(); err != nil {
		log.Printf("Finalize failed: %v", err)
		return 1
	}

	stats := store.Stats()
	log.Printf("Wrote %d entries to %s. Exited gracefully.", stats.Entries, stats.Path)
	return 0
}

func archivePrevious(dir string) {
	archiver, err := storage.NewArchiver()
	if err != nil {
		log.Printf("Archive disabled: %v", err)
		return
	}
	defer archiver.Close()

	archived, err := archiver.ArchiveDir(dir, "")
	if err != nil {
		log.Printf("Archive error: %v", err)
	}
	for _, path := range archived {
		log.Printf("Archived %s", path)
	}
}
