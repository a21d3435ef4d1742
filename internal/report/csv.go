package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"minerledger/internal/types"
)

var baseHeader = []string{"Epoch", "Transaction", "Date", "Type", "Miner ID", "Amount", "Currency"}

// WriteCSV writes one row per record, oldest first. When priced is set the
// FMV and Bitcoin columns are appended with the oracle's currency symbol.
func WriteCSV(path string, records []types.Transaction, symbol string, priced bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeRows(f, records, symbol, priced)
}

func writeRows(w io.Writer, records []types.Transaction, symbol string, priced bool) error {
	header := baseHeader
	if priced {
		header = append(append([]string{}, baseHeader...), "FMV", "Bitcoin")
	}
	if _, err := fmt.Fprintln(w, strings.Join(header, ", ")); err != nil {
		return err
	}

	for _, record := range records {
		fields := []string{
			strconv.FormatInt(record.Epoch, 10),
			strconv.Itoa(record.DisplayID),
			record.Timestamp,
			record.Type,
			strconv.Itoa(record.MinerID),
			record.AmountText,
			record.Unit,
		}
		if priced {
			fields = append(fields,
				symbol+formatFiat(record.FiatValue),
				symbol+formatFiat(record.FiatPrice))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func formatFiat(v *float64) string {
	if v == nil {
		return "0.0"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ReadCSV reads a transaction CSV back into records, for verification and
// downstream tooling. Currency symbols on the fiat columns are stripped.
func ReadCSV(path string) ([]types.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRows(f)
}

func readRows(r io.Reader) ([]types.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var records []types.Transaction
	for _, row := range rows[1:] {
		if len(row) < 7 {
			return nil, fmt.Errorf("transaction row has %d fields", len(row))
		}
		epoch, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("epoch %q: %w", row[0], err)
		}
		displayID, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("transaction id %q: %w", row[1], err)
		}
		minerID, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, fmt.Errorf("miner id %q: %w", row[4], err)
		}
		amount, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("amount %q: %w", row[5], err)
		}

		record := types.Transaction{
			SequenceID: types.SequenceID(epoch, minerID),
			DisplayID:  displayID,
			Epoch:      epoch,
			Timestamp:  row[2],
			Type:       row[3],
			MinerID:    minerID,
			Amount:     amount,
			AmountText: row[5],
			Unit:       row[6],
		}
		if len(row) >= 9 {
			if fiat, err := strconv.ParseFloat(stripSymbol(row[7]), 64); err == nil {
				record.FiatValue = &fiat
			}
			if price, err := strconv.ParseFloat(stripSymbol(row[8]), 64); err == nil {
				record.FiatPrice = &price
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func stripSymbol(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '-' && r != '.'
	})
}
