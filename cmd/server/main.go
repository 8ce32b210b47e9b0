package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maxepunk/aln-orchestrator/internal/config"
	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/scoring"
	"github.com/maxepunk/aln-orchestrator/internal/server"
	"github.com/maxepunk/aln-orchestrator/internal/session"
	"github.com/maxepunk/aln-orchestrator/internal/storage"
	"github.com/maxepunk/aln-orchestrator/internal/token"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Storage ---
	backend, err := storage.Open(ctx, cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer backend.Cleanup()
	gateway := storage.NewGateway(backend, logger)
	logger.Info("storage ready", "backend", cfg.StorageBackend, "dir", cfg.DataDir)

	// --- Token catalog ---
	catalog, err := loadCatalog(ctx, cfg, gateway, logger)
	if err != nil {
		return fmt.Errorf("loading token catalog: %w", err)
	}
	logger.Info("token catalog loaded",
		"tokens", catalog.Len(), "groups", len(catalog.Inventory().Names()))

	// --- Scoring config ---
	scoreCfg, err := gateway.LoadAdminConfig(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		scoreCfg = scoring.DefaultConfig()
		if err := gateway.SaveAdminConfig(ctx, scoreCfg); err != nil {
			return fmt.Errorf("seeding scoring config: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("loading scoring config: %w", err)
	}
	if err := scoreCfg.Validate(catalog.All()); err != nil {
		return fmt.Errorf("scoring config does not cover catalog: %w", err)
	}

	// --- Session state ---
	manager := session.NewManager(gateway, logger)
	if err := manager.Restore(ctx); err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	processor := session.NewProcessor(manager, catalog, scoreCfg, logger)

	// --- HTTP server ---
	srv := server.New(cfg.HTTPAddr, server.Deps{
		Logger:    logger,
		Manager:   manager,
		Processor: processor,
		Gateway:   gateway,
		Catalog:   catalog,
		Registry:  server.NewRegistry(),
		Broker:    server.NewBroker(),
		Video:     server.NewVideoController(cfg.VideoControlURL, logger),
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		return backupLoop(gctx, cfg, manager, gateway, logger)
	})

	return g.Wait()
}

// backupLoop periodically snapshots the active session and ages out old
// backups.
func backupLoop(ctx context.Context, cfg *config.Config, manager *session.Manager, gateway *storage.Gateway, logger *slog.Logger) error {
	if cfg.BackupInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(cfg.BackupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			key, err := manager.Backup(ctx)
			switch {
			case errors.Is(err, game.ErrNoSession):
				// Nothing to snapshot.
			case err != nil:
				logger.Error("session backup failed", "error", err)
			default:
				logger.Debug("session backed up", "key", key)
			}

			n, err := gateway.CleanOldBackups(ctx, cfg.BackupMaxAge)
			if err != nil {
				logger.Error("backup cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info("old backups removed", "count", n)
			}
		}
	}
}

// loadCatalog prefers the catalog file exported by the authoring tool and
// falls back to the copy cached in storage. Whichever loads is re-cached.
func loadCatalog(ctx context.Context, cfg *config.Config, gateway *storage.Gateway, logger *slog.Logger) (*token.Catalog, error) {
	if cfg.TokensPath != "" {
		if _, err := os.Stat(cfg.TokensPath); err == nil {
			catalog, err := token.LoadFile(cfg.TokensPath, logger)
			if err != nil {
				return nil, err
			}
			if err := gateway.SaveTokens(ctx, catalog.All()); err != nil {
				return nil, err
			}
			return catalog, nil
		}
	}

	tokens, err := gateway.LoadTokens(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Warn("no token catalog found, starting empty", "path", cfg.TokensPath)
		return token.New(nil, logger), nil
	}
	if err != nil {
		return nil, err
	}
	return token.New(tokens, logger), nil
}
