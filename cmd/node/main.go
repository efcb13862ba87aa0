package main

import (
	"encoding/hex"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/solumdex/solum/params"
	"github.com/solumdex/solum/pkg/api"
	"github.com/solumdex/solum/pkg/dex/state"
	"github.com/solumdex/solum/pkg/storage"
	"github.com/solumdex/solum/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Storage ----
	store, err := storage.NewStore(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("storage_init_failed", "path", cfg.Node.DataDir, "err", err)
	}
	defer store.Close()
	sugar.Infow("storage_opened", "path", cfg.Node.DataDir)

	// ---- State machine ----
	machine := state.NewMachine(state.Config{
		Committer: store,
		Logger:    sugar,
	})

	markets, err := store.LoadMarkets()
	if err != nil {
		sugar.Fatalw("load_markets_failed", "err", err)
	}
	books, err := store.LoadBooks()
	if err != nil {
		sugar.Fatalw("load_books_failed", "err", err)
	}
	nextOrderID, nextSeq, err := store.LoadCounters()
	if err != nil {
		sugar.Fatalw("load_counters_failed", "err", err)
	}
	if err := machine.Restore(markets, books, nextOrderID, nextSeq); err != nil {
		sugar.Fatalw("restore_failed", "err", err)
	}
	if err := store.LoadVaults(machine.Ledger()); err != nil {
		sugar.Fatalw("load_vaults_failed", "err", err)
	}

	hash := machine.StateHash()
	sugar.Infow("state_restored",
		"markets", machine.Markets().Count(),
		"next_order_id", nextOrderID,
		"state_hash", hex.EncodeToString(hash[:]),
	)

	// ---- API server ----
	apiServer := api.NewServer(machine, cfg.API.CORSOrigins)
	go func() {
		if err := apiServer.Start(cfg.API.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()
	sugar.Infow("api_server_started", "addr", cfg.API.ListenAddr)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	sugar.Info("shutting down")
}
