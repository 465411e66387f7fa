package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vilaverde/imovelhub/app/api"
	"github.com/vilaverde/imovelhub/app/cfg"
	"github.com/vilaverde/imovelhub/app/codes"
	"github.com/vilaverde/imovelhub/app/database"
	"github.com/vilaverde/imovelhub/app/ingest"
	"github.com/vilaverde/imovelhub/app/maintenance"
	"github.com/vilaverde/imovelhub/app/portals"
	"github.com/vilaverde/imovelhub/app/scheduler"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if c == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(c.Debug)

	slog.Info("Starting ImovelHub server", "version", c.Version, "environment", c.Environment)

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", c.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", c.DBPath, "schema_version", version, "dirty", dirty)

	portalCache := portals.NewCache(c.PortalsDir)
	if err := portalCache.Run(); err != nil {
		slog.Error("Failed to load portal templates", "dir", c.PortalsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Portal templates loaded", "count", portalCache.GetConfigCount())

	linkRepo := database.NewLinkRepository(db)
	captureRepo := database.NewCaptureRepository(db)
	propertyRepo := database.NewPropertyRepository(db)
	leadRepo := database.NewLeadRepository(db)

	codeGen := codes.NewGenerator()
	maint := maintenance.NewService(linkRepo, captureRepo, propertyRepo, portalCache)

	// An empty link registry is seeded from the portal templates so the
	// first pipeline run has work to do.
	if total, err := linkRepo.Count(); err != nil {
		slog.Error("Failed to count links", "error", err)
		os.Exit(1)
	} else if total == 0 {
		report, err := maint.ResetLinks()
		if err != nil {
			slog.Error("Failed to seed link registry", "error", err)
			os.Exit(1)
		}
		slog.Info("Link registry seeded", "seeded", report.Seeded)
	}

	fetcher := ingest.NewFetcher(linkRepo, captureRepo, portalCache, &http.Client{})
	processor := ingest.NewProcessor(captureRepo, propertyRepo, codeGen)

	apiHandler := api.NewHandler(linkRepo, captureRepo, propertyRepo, leadRepo,
		fetcher, processor, maint, codeGen, portalCache)
	server := api.NewServer(apiHandler)

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(c.TriggerTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var sched *scheduler.Scheduler
	if c.SchedulerEnabled {
		sched, err = scheduler.New()
		if err != nil {
			slog.Error("Failed to initialize scheduler", "error", err)
			os.Exit(1)
		}
		if err := sched.Start(); err != nil {
			slog.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("Scheduler disabled (SCHEDULER_ENABLED not set)")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("ImovelHub server started")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
