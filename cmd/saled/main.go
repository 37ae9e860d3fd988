package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"saleledger/config"
	"saleledger/native/sale"
	"saleledger/native/token"
	"saleledger/observability"
	"saleledger/observability/logging"
	"saleledger/rpc"
	"saleledger/storage"
)

// devSupply is the whole-token supply minted to the owner in dev mode so the
// sale can be initialized without an external token deployment.
const devSupply = 10_000_000

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	dev := flag.Bool("dev", false, "DEV ONLY: in-memory storage, seeded token ledgers")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SALED_ENV"))
	logger := logging.Setup("saled", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var db storage.Database
	if *dev {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("Failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		db = ldb
	}
	defer db.Close()

	owner := common.HexToAddress(cfg.Sale.Owner)
	escrow := escrowAddress()

	// Ledgers persist into the same database as the sale state, so restored
	// committed inventory and pending bonuses keep their escrow balances.
	saleToken, err := token.NewPersistentLedger(db, cfg.Sale.SaleTokenSymbol, cfg.Sale.SaleTokenDecimals)
	if err != nil {
		logger.Error("Failed to open sale-token ledger", slog.Any("error", err))
		os.Exit(1)
	}
	assetLedgers := make(map[sale.Asset]*token.PersistentLedger, len(cfg.Sale.Assets))
	for _, asset := range cfg.Sale.Assets {
		ledger, err := token.NewPersistentLedger(db, asset.Symbol, asset.Decimals)
		if err != nil {
			logger.Error("Failed to open asset ledger",
				slog.String("asset", asset.Symbol), slog.Any("error", err))
			os.Exit(1)
		}
		assetLedgers[sale.Asset(asset.Symbol)] = ledger
	}
	if *dev {
		supply := new(big.Int).Mul(big.NewInt(devSupply), pow10(cfg.Sale.SaleTokenDecimals))
		if err := saleToken.Mint(owner, supply); err != nil {
			logger.Error("Failed to seed dev supply", slog.Any("error", err))
			os.Exit(1)
		}
		if err := saleToken.Approve(owner, escrow, supply); err != nil {
			logger.Error("Failed to seed dev approvals", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Dev mode: minted sale-token supply to owner",
			slog.String("owner", owner.Hex()), slog.String("supply", supply.String()))
	}

	engine := sale.NewEngine(saleParams(cfg, owner), saleToken, escrow)
	for symbol, ledger := range assetLedgers {
		engine.RegisterAsset(symbol, ledger)
	}
	engine.SetEmitter(observability.NewLogEmitter(logger))

	store := sale.NewStore(db)
	snapshot, found, err := store.Load()
	if err != nil {
		logger.Error("Failed to load persisted sale state", slog.Any("error", err))
		os.Exit(1)
	}
	if found {
		if err := engine.Restore(snapshot); err != nil {
			logger.Error("Failed to restore sale state", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Restored persisted sale state")
	} else if err := seed(engine, cfg, owner); err != nil {
		logger.Error("Failed to seed sale state", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetStore(store)

	server := rpc.NewServer(engine, rpc.Config{
		Auth: rpc.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
	})
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting JSON-RPC server", slog.String("addr", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
	}
	logger.Info("Shutdown complete")
}

// escrowAddress derives the fixed address under which the ledger holds
// escrowed tokens on the external ledgers.
func escrowAddress() common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("saleledger/escrow/v1"))[12:])
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

func saleParams(cfg *config.Config, owner common.Address) sale.Params {
	prices := map[sale.Asset]*big.Int{
		sale.AssetNative: new(big.Int).SetUint64(cfg.Sale.NativePriceCents),
	}
	for _, asset := range cfg.Sale.Assets {
		prices[sale.Asset(asset.Symbol)] = new(big.Int).SetUint64(asset.PriceCents)
	}
	return sale.Params{
		Owner:                owner,
		OpeningTime:          cfg.Sale.OpeningTime,
		ClosingTime:          cfg.Sale.ClosingTime,
		TokenPriceCents:      new(big.Int).SetUint64(cfg.Sale.TokenPriceCents),
		AssetPricesCents:     prices,
		MinContributionCents: new(big.Int).SetUint64(cfg.Sale.MinContributionCents),
		BonusLockSeconds:     cfg.Sale.BonusLockSeconds,
	}
}

// seed applies the configured role and admission entries to a fresh ledger.
func seed(engine *sale.Engine, cfg *config.Config, owner common.Address) error {
	for _, admin := range cfg.Sale.Admins {
		if err := engine.AddAdmin(owner, common.HexToAddress(admin)); err != nil {
			return fmt.Errorf("seed admin %s: %w", admin, err)
		}
	}
	if len(cfg.Sale.Whitelist) > 0 {
		entries := make([]common.Address, 0, len(cfg.Sale.Whitelist))
		for _, entry := range cfg.Sale.Whitelist {
			entries = append(entries, common.HexToAddress(entry))
		}
		if err := engine.AddBatchToWhitelist(owner, entries); err != nil {
			return fmt.Errorf("seed whitelist: %w", err)
		}
	}
	return nil
}
