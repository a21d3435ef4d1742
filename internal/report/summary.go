package report

import (
	"fmt"
	"io"
	"strconv"

	"minerledger/internal/ledger"
)

// PrintSummary renders the run totals the way the console report always
// has: crypto quantities to 8 digits, fiat to 2, miners ascending.
func PrintSummary(w io.Writer, totals ledger.Totals, symbol string, priced bool) {
	if totals.Transactions == 0 {
		fmt.Fprintln(w, "No Transactions!")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Total Transactions   =", totals.Transactions)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Total BTC Deposited  =", formatCrypto(totals.Deposited))
	fmt.Fprintln(w, "Total BTC Withdrawn  =", formatCrypto(totals.Withdrawn))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Total BTC Mined      =", formatCrypto(totals.Mined))
	if priced {
		fmt.Fprintf(w, "Total BTC Mined Fiat = %s%.2f\n", symbol, ledger.RoundFiat(totals.MinedFiat))
	}
	fmt.Fprintln(w)
	for _, id := range totals.MinerIDs() {
		fmt.Fprintf(w, "Miner %d = %.8f BTC\n", id, totals.ByMiner[id])
	}
	fmt.Fprintln(w)
}

func formatCrypto(v float64) string {
	return strconv.FormatFloat(ledger.RoundCrypto(v), 'f', -1, 64)
}
