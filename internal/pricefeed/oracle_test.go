package pricefeed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var _ CandleProvider = (*CoinbaseClient)(nil)

const snapshotRows = "1609372800,2020-12-31 00:00:00,BTC/USD,28897.42,28934.56,28891.76,28934.56,10.46338356\n" +
	"1609372860,2020-12-31 00:01:00,BTC/USD,28934.56,28950.0,28920.0,28940.1,3.5\n"

func writeSnapshot(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coinbasepro.csv")
	if err := os.WriteFile(path, []byte(rows), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSnapshot(t *testing.T) {
	oracle := NewOracle()
	if err := oracle.LoadSnapshot(writeSnapshot(t, snapshotRows), "$"); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if !oracle.Loaded() {
		t.Error("Expected oracle to report loaded")
	}
	if oracle.CurrencySymbol() != "$" {
		t.Errorf("Expected $ symbol, got %q", oracle.CurrencySymbol())
	}

	point, ok := oracle.PriceAt(1609372860)
	if !ok {
		t.Fatal("Expected exact-key hit")
	}
	if point.Close != 28940.1 || point.Pair != "BTC/USD" {
		t.Errorf("Unexpected point %+v", point)
	}

	if _, ok := oracle.PriceAt(1609372830); ok {
		t.Error("Expected a miss between candles, no interpolation")
	}

	last, ok := oracle.Last()
	if !ok || last.Epoch != 1609372860 {
		t.Errorf("Expected last epoch 1609372860, got %+v", last)
	}
}

func TestLoadSnapshotMalformed(t *testing.T) {
	oracle := NewOracle()
	err := oracle.LoadSnapshot(writeSnapshot(t, "not,enough,fields\n"), "$")
	if !errors.Is(err, ErrMalformedPriceData) {
		t.Errorf("Expected ErrMalformedPriceData, got %v", err)
	}

	err = NewOracle().LoadSnapshot(writeSnapshot(t, "1609372800,ts,BTC/USD,a,b,c,d,e\n"), "$")
	if !errors.Is(err, ErrMalformedPriceData) {
		t.Errorf("Expected ErrMalformedPriceData for bad floats, got %v", err)
	}
}

func TestFailedLoadDiscardsPartialRows(t *testing.T) {
	oracle := NewOracle()
	err := oracle.LoadSnapshot(writeSnapshot(t, snapshotRows+"garbage row\n"), "$")
	if !errors.Is(err, ErrMalformedPriceData) {
		t.Fatalf("Expected ErrMalformedPriceData, got %v", err)
	}
	if oracle.Loaded() {
		t.Error("Failed load must not mark the oracle loaded")
	}
	if _, ok := oracle.PriceAt(1609372800); ok {
		t.Error("Failed load must not leave partial rows in the mapping")
	}

	// A fallback source after the failure must stay pure.
	eurRows := "1612137600,2021-02-01 00:00:00,BTC/EUR,27000.0,27100.0,26900.0,27050.0,2.1\n"
	if err := oracle.LoadSnapshot(writeSnapshot(t, eurRows), "€"); err != nil {
		t.Fatalf("LoadSnapshot fallback: %v", err)
	}
	if oracle.CurrencySymbol() != "€" {
		t.Errorf("Expected € symbol, got %q", oracle.CurrencySymbol())
	}
	if _, ok := oracle.PriceAt(1609372860); ok {
		t.Error("Rows from the failed source must not survive into the fallback")
	}
	if _, ok := oracle.PriceAt(1612137600); !ok {
		t.Error("Expected the fallback source to load")
	}
}

func TestLoadMinuteCSVSkipsPreamble(t *testing.T) {
	rows := "https://www.CryptoDataDownload.com\n" +
		"unix,date,symbol,open,high,low,close,Volume BTC\n" +
		"1609372800,2020-12-31 00:00:00,BTC/USD,28897.42,28934.56,28891.76,28934.56,10.46\n"
	oracle := NewOracle()
	if err := oracle.LoadMinuteCSV(writeSnapshot(t, rows), "€"); err != nil {
		t.Fatalf("LoadMinuteCSV: %v", err)
	}
	if _, ok := oracle.PriceAt(1609372800); !ok {
		t.Error("Expected data row to load after the preamble")
	}
	if oracle.CurrencySymbol() != "€" {
		t.Errorf("Expected € symbol, got %q", oracle.CurrencySymbol())
	}
}

// fakeProvider serves queued candle batches, then empties out.
type fakeProvider struct {
	batches [][]Candle
	err     error
	calls   int
}

func (f *fakeProvider) Candles(ctx context.Context, start, end time.Time) ([]Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func TestExtendAppends(t *testing.T) {
	path := writeSnapshot(t, snapshotRows)
	oracle := NewOracle()
	if err := oracle.LoadSnapshot(path, "$"); err != nil {
		t.Fatal(err)
	}

	next := time.Unix(1609372860, 0).UTC().Add(time.Minute)
	provider := &fakeProvider{batches: [][]Candle{{
		{Time: next, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 9},
		{Time: next.Add(time.Minute), Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 8},
	}}}

	appended, err := oracle.Extend(context.Background(), provider, path)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if appended != 2 {
		t.Errorf("Expected 2 appended candles, got %d", appended)
	}

	point, ok := oracle.PriceAt(next.Unix())
	if !ok || point.Close != 1.5 {
		t.Errorf("Appended candle not in mapping: %+v ok=%v", point, ok)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 file rows after append, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "1609372800,") {
		t.Error("Existing rows must never be rewritten")
	}
	if !strings.HasPrefix(lines[2], "1609372920,") {
		t.Errorf("Unexpected appended row %q", lines[2])
	}
}

func TestExtendKeepsPartialOnProviderFailure(t *testing.T) {
	path := writeSnapshot(t, snapshotRows)
	oracle := NewOracle()
	if err := oracle.LoadSnapshot(path, "$"); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{err: errors.New("connection reset")}
	appended, err := oracle.Extend(context.Background(), provider, path)
	if err != nil {
		t.Fatalf("Provider failure must not abort the run, got %v", err)
	}
	if appended != 0 {
		t.Errorf("Expected 0 appended, got %d", appended)
	}
	if provider.calls != 1 {
		t.Errorf("Expected paging to stop after the failure, got %d calls", provider.calls)
	}
}

func TestExtendRequiresSnapshot(t *testing.T) {
	path := writeSnapshot(t, snapshotRows)
	if _, err := NewOracle().Extend(context.Background(), &fakeProvider{}, path); err == nil {
		t.Error("Expected an error without a loaded snapshot")
	}
}

func TestBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coinbasepro.csv")
	if err := Bootstrap(path); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	oracle := NewOracle()
	if err := oracle.LoadSnapshot(path, "$"); err != nil {
		t.Fatalf("LoadSnapshot after bootstrap: %v", err)
	}
	if _, ok := oracle.PriceAt(1609372800); !ok {
		t.Error("Expected the genesis candle to load")
	}
}
