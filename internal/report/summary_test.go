package report

import (
	"bytes"
	"strings"
	"testing"

	"minerledger/internal/ledger"
)

func TestPrintSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, ledger.Totals{}, "$", true)
	if buf.String() != "No Transactions!\n" {
		t.Errorf("Unexpected empty summary: %q", buf.String())
	}
}

func TestPrintSummaryTotals(t *testing.T) {
	totals := ledger.Totals{
		Transactions: 4,
		Deposited:    0.2,
		Withdrawn:    0.5,
		Mined:        0.30000001,
		MinedFiat:    12345.678,
		ByMiner:      map[int]float64{9: 0.2, 7: 0.10000001},
	}

	var buf bytes.Buffer
	PrintSummary(&buf, totals, "$", true)
	out := buf.String()

	for _, want := range []string{
		"Total Transactions   = 4",
		"Total BTC Deposited  = 0.2",
		"Total BTC Withdrawn  = 0.5",
		"Total BTC Mined      = 0.30000001",
		"Total BTC Mined Fiat = $12345.68",
		"Miner 7 = 0.10000001 BTC",
		"Miner 9 = 0.20000000 BTC",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q in:\n%s", want, out)
		}
	}

	if strings.Index(out, "Miner 7") > strings.Index(out, "Miner 9") {
		t.Error("Miners must be listed in ascending order")
	}
}

func TestPrintSummaryUnpriced(t *testing.T) {
	totals := ledger.Totals{Transactions: 1, Mined: 0.1, ByMiner: map[int]float64{1: 0.1}}

	var buf bytes.Buffer
	PrintSummary(&buf, totals, "$", false)
	if strings.Contains(buf.String(), "Fiat") {
		t.Errorf("Fiat line printed without prices: %q", buf.String())
	}
}
