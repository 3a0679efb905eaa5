package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-finsync/internal/api"
	"github.com/celerix-dev/celerix-finsync/internal/config"
	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

// flushInterval is how often dirty tables are dumped to the data file.
const flushInterval = 2 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger(os.Stderr)
	log.Info("Starting finsync table daemon...")

	// 1. Load existing data and start the table service
	initialData, err := tables.ReadDump(cfg.Server.DataFile)
	if err != nil {
		log.Warn("Could not load existing data, starting empty", "file", cfg.Server.DataFile, "err", err)
		initialData = map[string][]tables.Row{}
	}
	store := tables.NewMemTable(initialData)
	log.Info("Table service started", "tables", len(initialData))

	// 2. Persist writes in the background
	d := &dumper{store: store, path: cfg.Server.DataFile, log: log}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.loop(ctx)
	}()

	// 3. Initialize HTTP API
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(&api.Handler{
		Store:    store,
		APIKey:   cfg.Server.APIKey,
		OnChange: d.markDirty,
	})
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. Start server
	go func() {
		log.Info("HTTP table API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "err", err)
			stop()
		}
	}()

	// 5. Handle graceful shutdown
	<-ctx.Done()
	log.Info("Shutdown signal received. Finalizing disk writes...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "err", err)
	}
	wg.Wait()
	if err := d.flush(); err != nil {
		log.Error("Final dump failed", "err", err)
		os.Exit(1)
	}
	log.Info("Persistence complete. Exiting.")
}

// dumper writes the whole table service to the data file after changes.
type dumper struct {
	store *tables.MemTable
	path  string
	log   *slog.Logger
	dirty atomic.Bool
}

func (d *dumper) markDirty(table string) {
	d.dirty.Store(true)
}

func (d *dumper) loop(ctx context.Context) {
	t := time.NewTicker(flushInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := d.flush(); err != nil {
				d.log.Error("Failed to dump tables", "file", d.path, "err", err)
			}
		}
	}
}

func (d *dumper) flush() error {
	if !d.dirty.Swap(false) {
		return nil
	}
	if err := tables.WriteDump(d.path, d.store.Dump()); err != nil {
		d.dirty.Store(true)
		return err
	}
	return nil
}
