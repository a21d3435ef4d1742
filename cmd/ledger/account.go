package main

import (
	"context"
	"fmt"
	"os"

	"minerledger/internal/config"
	"minerledger/internal/ledger"
	"minerledger/internal/logger"
	"minerledger/internal/parser"
	"minerledger/internal/portal"
	"minerledger/internal/pricefeed"
	"minerledger/internal/report"
	"minerledger/internal/sheets"
	"minerledger/internal/types"
)

// processAccount runs the whole pipeline for one account: authenticate,
// fetch, parse, value, report.
func processAccount(ctx context.Context, cfg *config.Config, oracle *pricefeed.Oracle) error {
	op := logger.StartOperation(ctx, "process_account", "config_file", cfg.ConfigFile)
	ctx = op.GetContext()

	if cfg.ConfigModified && !cfg.Silent {
		fmt.Println("Notice: Config file modified, cookie file removed.")
	}

	site, err := portal.SiteFor(cfg.Site, cfg.SiteFile)
	if err != nil {
		op.EndWithError(err)
		return err
	}

	session := portal.NewCollySession(cfg.UserAgent, site.BaseURL)
	auth := portal.NewAuthenticator(cfg, site, session)
	if err := auth.Login(ctx); err != nil {
		op.EndWithError(err)
		return err
	}
	logger.Account(ctx, cfg.ConfigFile, "authenticated")

	html, err := auth.FetchTransactions(ctx)
	if err != nil {
		op.EndWithError(err)
		return err
	}

	p, err := parser.New(cfg.Timezone, cfg.Year)
	if err != nil {
		op.EndWithError(err)
		return err
	}
	if !cfg.Silent {
		fmt.Println("Processing Transactions...")
	}
	records, err := p.Parse(ctx, html)
	if err != nil {
		op.EndWithError(err)
		return err
	}

	totals := ledger.Value(records, oracle)
	logger.Account(ctx, cfg.ConfigFile, "parsed", "transactions", totals.Transactions)

	if totals.Transactions > 0 {
		if cfg.SaveCSV {
			if !cfg.Silent {
				fmt.Printf("Saving '%s'\n", cfg.CSVFile)
			}
			if err := report.WriteCSV(cfg.CSVFile, records, oracle.CurrencySymbol(), oracle.Loaded()); err != nil {
				op.EndWithError(err)
				return err
			}
		}
		if cfg.PopulateSheet {
			if err := populateSheet(ctx, cfg, records, oracle); err != nil {
				op.EndWithError(err)
				return err
			}
		}
	}

	if !cfg.Silent {
		report.PrintSummary(os.Stdout, totals, oracle.CurrencySymbol(), oracle.Loaded())
	}

	op.End("transactions", totals.Transactions)
	return nil
}

func populateSheet(ctx context.Context, cfg *config.Config, records []types.Transaction, oracle *pricefeed.Oracle) error {
	if !cfg.Silent {
		fmt.Println("Populating Google Sheet")
	}
	exporter, err := sheets.NewExporter(ctx, cfg.GoogleCreds)
	if err != nil {
		return err
	}
	return exporter.Export(ctx, cfg.SheetID, cfg.Worksheet, cfg.DateTime,
		records, oracle.CurrencySymbol(), oracle.Loaded())
}
