package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/quantor-labs/mintround/params"
	"github.com/quantor-labs/mintround/pkg/api"
	"github.com/quantor-labs/mintround/pkg/ledger"
	"github.com/quantor-labs/mintround/pkg/platform"
	"github.com/quantor-labs/mintround/pkg/storage"
	"github.com/quantor-labs/mintround/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	if !common.IsHexAddress(cfg.Node.PlatformAddr) {
		sugar.Fatalw("invalid_platform_address", "addr", cfg.Node.PlatformAddr)
	}
	platformAddr := common.HexToAddress(cfg.Node.PlatformAddr)

	// ---- Ledgers ----
	bank := ledger.NewBank()
	token := ledger.NewToken("Mintround Token", "MRT", platformAddr)

	// ---- Persistence ----
	store, err := storage.NewStore(filepath.Join(cfg.Node.DataDir, "platform.db"))
	if err != nil {
		sugar.Fatalw("store_open_failed", "err", err)
	}
	defer store.Close()

	// ---- Platform + API ----
	// The WebSocket hub doubles as the platform's event sink.
	hub := api.NewHub()
	p := platform.New(cfg.Economics, platformAddr, bank, token, platform.Options{
		Logger: sugar,
		Store:  store,
		Events: hub,
	})
	srv := api.NewServer(p, bank, token, hub, cfg.Node.DevFaucet)

	restore(sugar, store, p)

	go func() {
		if err := srv.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()
	sugar.Infow("node_started",
		"api", cfg.Node.APIAddr,
		"platform", platformAddr.Hex(),
		"round_duration", cfg.Economics.RoundDuration,
		"dev_faucet", cfg.Node.DevFaucet)

	// Block until interrupted.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	sugar.Infow("shutting_down")
}

// restore reloads persisted registrations, orders, and rounds. Ledger
// balances are in-memory and start empty; durable balance recovery belongs
// to the external ledgers this engine consumes.
func restore(sugar *zap.SugaredLogger, store *storage.Store, p *platform.Platform) {
	regs, err := store.LoadRegistrations()
	if err != nil {
		sugar.Fatalw("load_registrations_failed", "err", err)
	}
	orders, err := store.LoadOrders()
	if err != nil {
		sugar.Fatalw("load_orders_failed", "err", err)
	}
	rounds, err := store.LoadRounds()
	if err != nil {
		sugar.Fatalw("load_rounds_failed", "err", err)
	}
	p.Restore(rounds, orders, regs)
	sugar.Infow("state_restored",
		"registrations", len(regs), "orders", len(orders), "rounds", len(rounds))
}
