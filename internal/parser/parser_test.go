package parser

import (
	"context"
	"reflect"
	"testing"
	"time"

	"minerledger/internal/types"
)

// The portal lists newest entries first; anchors below mirror that.
const samplePage = `<html><body>
<nav><a href="/wallet">Wallet</a><a href="/logout">Logout</a></nav>
<a href="#">
Deposit  Miner 7.
Jan 15, 2022 3:45 PM
 0.10000000 BTC
</a>
<a href="#">
Withdraw
Jan 10, 2022 9:05 AM
 0.50000000 BTC
</a>
<a href="#">
Deposit
Jan 01, 2022 12:00 AM
 0.20000000 BTC
</a>
</body></html>`

func mustParse(t *testing.T, timezone, year, html string) []types.Transaction {
	t.Helper()
	p, err := New(timezone, year)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	records, err := p.Parse(context.Background(), html)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return records
}

func TestParseOrdersOldestFirst(t *testing.T) {
	records := mustParse(t, "UTC", "", samplePage)

	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	if records[0].Type != "Deposit" || records[0].MinerID != 0 {
		t.Errorf("Expected plain deposit first, got %+v", records[0])
	}
	if records[1].Type != "Withdraw" {
		t.Errorf("Expected withdrawal second, got %+v", records[1])
	}
	if records[2].MinerID != 7 {
		t.Errorf("Expected miner 7 deposit last, got %+v", records[2])
	}

	for i, record := range records {
		if record.DisplayID != i+1 {
			t.Errorf("Record %d: expected display id %d, got %d", i, i+1, record.DisplayID)
		}
		if i > 0 && records[i-1].Epoch > record.Epoch {
			t.Errorf("Records out of chronological order at %d", i)
		}
	}
}

func TestParseFields(t *testing.T) {
	records := mustParse(t, "UTC", "", samplePage)
	mined := records[2]

	want := time.Date(2022, time.January, 15, 15, 45, 0, 0, time.UTC)
	if mined.Epoch != want.Unix() {
		t.Errorf("Expected epoch %d, got %d", want.Unix(), mined.Epoch)
	}
	if mined.Timestamp != "2022-01-15 15:45" {
		t.Errorf("Expected normalized timestamp, got %q", mined.Timestamp)
	}
	if mined.SequenceID != want.Unix()*types.SequenceIDScale+7 {
		t.Errorf("Sequence id inconsistent: %d", mined.SequenceID)
	}
	if mined.Amount != 0.1 || mined.AmountText != "0.10000000" {
		t.Errorf("Expected amount 0.1, got %v (%q)", mined.Amount, mined.AmountText)
	}
	if mined.Unit != "BTC" {
		t.Errorf("Expected unit BTC, got %q", mined.Unit)
	}
	if mined.LineShape != 3 || !mined.IsMinerDeposit() {
		t.Errorf("Expected miner deposit shape, got %+v", mined)
	}
}

func TestParseIdempotent(t *testing.T) {
	first := mustParse(t, "UTC", "", samplePage)
	second := mustParse(t, "UTC", "", samplePage)

	if !reflect.DeepEqual(first, second) {
		t.Error("Parsing the same markup twice produced different records")
	}
}

func TestYearFilter(t *testing.T) {
	page := `<html><body>
<a href="#">
Deposit
Jan 01, 2022 12:00 AM
 0.30000000 BTC
</a>
<a href="#">
Deposit
Dec 31, 2021 11:59 PM
 0.40000000 BTC
</a>
</body></html>`

	records := mustParse(t, "UTC", "2022", page)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record after year filter, got %d", len(records))
	}
	if records[0].Timestamp != "2022-01-01 00:00" {
		t.Errorf("Wrong record survived the filter: %q", records[0].Timestamp)
	}
	if records[0].DisplayID != 1 {
		t.Errorf("Filtered-out record consumed a display id: %d", records[0].DisplayID)
	}
}

func TestMalformedEntriesSkipped(t *testing.T) {
	page := `<html><body>
<a href="#">
Deposit
Jan 01, 2022 12:00 AM
 0.20000000 BTC
</a>
<a href="#">
Deposit
Feb 30, 2022 12:00 AM
 0.10000000 BTC
</a>
<a href="#">
Deposit
Jan 02, 2022 12:00 AM
not-a-number BTC
</a>
</body></html>`

	records := mustParse(t, "UTC", "", page)
	if len(records) != 1 {
		t.Fatalf("Expected malformed entries to be skipped, got %d records", len(records))
	}
	if records[0].Amount != 0.2 {
		t.Errorf("Wrong surviving record: %+v", records[0])
	}
}

func TestEmptyPage(t *testing.T) {
	records := mustParse(t, "UTC", "", `<html><body><a href="/x">Nothing here</a></body></html>`)
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestBadTimezone(t *testing.T) {
	if _, err := New("Not/AZone", ""); err == nil {
		t.Error("Expected an error for an unknown timezone")
	}
}
