package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"minerledger/internal/config"
	"minerledger/internal/logger"
	"minerledger/internal/pricefeed"
)

const priceSnapshotFile = "coinbasepro.csv"

func main() {
	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	ctx := context.Background()
	defer logger.Shutdown(ctx)

	overrides, action, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		logger.ErrorWithErr(ctx, "Bad arguments", err)
		os.Exit(1)
	}

	switch action {
	case config.ActionExit:
		return
	case config.ActionInitPrices:
		if err := initPrices(ctx); err != nil {
			logger.ErrorWithErr(ctx, "Price snapshot init failed", err)
			os.Exit(1)
		}
		return
	}

	oracle := loadPrices(ctx)

	accounts, err := config.DiscoverAccounts(overrides)
	if err != nil {
		logger.ErrorWithErr(ctx, "Config error", err)
		os.Exit(1)
	}

	// Accounts share nothing but the price oracle; each runs start to
	// finish before the next to keep session and cookie state isolated.
	failures := 0
	for _, cfg := range accounts {
		if !cfg.Silent {
			fmt.Println("Config file", cfg.ConfigFile, "loaded...")
		}
		if err := processAccount(ctx, cfg, oracle); err != nil {
			logger.ErrorWithErr(ctx, "Account failed", err, "config_file", cfg.ConfigFile)
			failures++
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

// initPrices handles -init-cbp: seed the snapshot file, then page the
// provider forward from the genesis row.
func initPrices(ctx context.Context) error {
	fmt.Printf("Initializing '%s'...\n", priceSnapshotFile)
	if err := pricefeed.Bootstrap(priceSnapshotFile); err != nil {
		return err
	}
	oracle := pricefeed.NewOracle()
	if err := oracle.LoadSnapshot(priceSnapshotFile, "$"); err != nil {
		return err
	}
	appended, err := oracle.Extend(ctx, pricefeed.NewCoinbaseClient(), priceSnapshotFile)
	if err != nil {
		return err
	}
	fmt.Println("Loaded", appended, "records.")
	return nil
}

// loadPrices discovers a price source: the provider snapshot first (which
// also gets extended with fresh candles), then Bitstamp yearly minute
// exports, USD before EUR. Valuation is optional; a missing source just
// leaves records unvalued.
func loadPrices(ctx context.Context) *pricefeed.Oracle {
	oracle := pricefeed.NewOracle()

	if _, err := os.Stat(priceSnapshotFile); err == nil {
		fmt.Printf("Loading '%s'...\n", priceSnapshotFile)
		if err := oracle.LoadSnapshot(priceSnapshotFile, "$"); err != nil {
			logger.ErrorWithErr(ctx, "Price snapshot unusable", err, "file", priceSnapshotFile)
		} else {
			fmt.Printf("Updating '%s'...\n", priceSnapshotFile)
			appended, err := oracle.Extend(ctx, pricefeed.NewCoinbaseClient(), priceSnapshotFile)
			if err != nil {
				logger.Warn(ctx, "Price snapshot not extended", "error", err)
			} else if appended > 0 {
				fmt.Println("Loaded", appended, "records.")
			}
		}
	}

	for _, source := range []struct {
		pair   string
		symbol string
	}{{"BTCUSD", "$"}, {"BTCEUR", "€"}} {
		if oracle.Loaded() {
			break
		}
		for _, year := range []string{"2021", "2022", "2023"} {
			file := "Bitstamp_" + source.pair + "_" + year + "_minute.csv"
			if _, err := os.Stat(file); err != nil {
				continue
			}
			fmt.Printf("Loading '%s'...\n", file)
			if err := oracle.LoadMinuteCSV(file, source.symbol); err != nil {
				logger.ErrorWithErr(ctx, "Price file unusable", err, "file", file)
			}
		}
	}

	return oracle
}
