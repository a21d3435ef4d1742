package ledger

import (
	"math"
	"sort"

	"minerledger/internal/pricefeed"
	"minerledger/internal/types"
)

// Totals accumulates the run's aggregates while records are valued.
type Totals struct {
	Transactions int
	Deposited    float64
	Withdrawn    float64
	Mined        float64
	MinedFiat    float64
	ByMiner      map[int]float64
}

// MinerIDs returns the miners seen, ascending, for display.
func (t *Totals) MinerIDs() []int {
	ids := make([]int, 0, len(t.ByMiner))
	for id := range t.ByMiner {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Value walks records in their final (oldest-first) order, attaching a fiat
// valuation wherever the oracle holds an exact candle for the record's
// epoch, and accumulating the running totals. A price miss leaves the
// record unvalued; it is never an error.
//
// Fiat value uses the candle close. Historical revisions of this tool
// disagreed between open, close, and a high/low midpoint; close is the
// standardized choice.
func Value(records []types.Transaction, oracle *pricefeed.Oracle) Totals {
	totals := Totals{ByMiner: map[int]float64{}}

	for i := range records {
		record := &records[i]
		totals.Transactions++

		fiatPrice := 0.0
		if point, ok := oracle.PriceAt(record.Epoch); ok {
			fiatPrice = point.Close
			fiatValue := record.Amount * fiatPrice
			record.FiatPrice = &fiatPrice
			record.FiatValue = &fiatValue
		}

		switch {
		case record.Type == "Withdraw":
			totals.Withdrawn += record.Amount
		case record.IsMinerDeposit():
			totals.Mined += record.Amount
			totals.MinedFiat += record.Amount * fiatPrice
			totals.ByMiner[record.MinerID] += record.Amount
		case record.IsPlainDeposit():
			totals.Deposited += record.Amount
		}
	}

	return totals
}

// RoundCrypto rounds a coin quantity to 8 fractional digits for display.
func RoundCrypto(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

// RoundFiat rounds a fiat amount to 2 fractional digits for display.
func RoundFiat(v float64) float64 {
	return math.Round(v*100) / 100
}
