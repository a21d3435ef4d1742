// Package sheets exports a run's transaction records to a Google
// spreadsheet through a service account.
package sheets

import (
	"context"
	"fmt"
	"os"
	"strconv"

	gsheets "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"

	"minerledger/internal/types"
)

// Exporter writes transaction rows into a named worksheet. The spreadsheet
// is addressed by its ID; the Sheets API has no open-by-title lookup.
type Exporter struct {
	service *gsheets.Service
}

// NewExporter authenticates with a service-account credentials file. A
// missing file is a configuration error, reported before any network use.
func NewExporter(ctx context.Context, credsFile string) (*Exporter, error) {
	if _, err := os.Stat(credsFile); err != nil {
		return nil, fmt.Errorf("google service account credentials not found (%s)", credsFile)
	}
	service, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credsFile),
		option.WithScopes(gsheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Exporter{service: service}, nil
}

// Export writes the run stamp, a header row, and one row per record
// starting at A1 of the worksheet.
func (e *Exporter) Export(ctx context.Context, spreadsheetID, worksheet, stamp string,
	records []types.Transaction, symbol string, priced bool) error {

	values := [][]interface{}{{stamp}}

	header := []interface{}{"Miner ID", "Epoch", "Transaction", "Amount", "Date", "Type", "Currency"}
	if priced {
		header = append(header, "FMV", "Bitcoin")
	}
	values = append(values, header)

	for _, record := range records {
		row := []interface{}{
			record.MinerID,
			record.Epoch,
			record.DisplayID,
			record.AmountText,
			record.Timestamp,
			record.Type,
			record.Unit,
		}
		if priced {
			row = append(row, symbol+fiatCell(record.FiatValue), symbol+fiatCell(record.FiatPrice))
		}
		values = append(values, row)
	}

	_, err := e.service.Spreadsheets.Values.
		Update(spreadsheetID, worksheet+"!A1", &gsheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update worksheet %s: %w", worksheet, err)
	}
	return nil
}

func fiatCell(v *float64) string {
	if v == nil {
		return "0.0"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
