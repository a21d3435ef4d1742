package types

// SequenceIDScale spreads the event epoch so a miner id can be folded into
// the low digits without colliding with neighbouring timestamps.
const SequenceIDScale = 10_000_000

// Transaction is one parsed ledger entry from the wallet transaction page.
type Transaction struct {
	// SequenceID is a synthetic sortable key: Epoch*SequenceIDScale + MinerID.
	// The source markup carries no native identifier.
	SequenceID int64
	// DisplayID is the 1-based ordinal in final (oldest-first) output order.
	DisplayID int
	// Timestamp is the event time rendered as "2006-01-02 15:04".
	Timestamp string
	// Epoch is the event time in seconds, derived from local calendar time
	// in the configured portal timezone.
	Epoch int64
	// Type is the first token of the entry's first line, e.g. "Deposit" or
	// "Withdraw".
	Type string
	// MinerID identifies the mining worker that produced a miner deposit.
	// Zero for every other transaction shape.
	MinerID int
	// LineShape is the token count of the entry's first line. Classification
	// for aggregation keys off it: 3 tokens = miner deposit, 2 = plain
	// deposit, anything else is recorded but not aggregated.
	LineShape int
	// Amount is the parsed quantity; AmountText preserves the source string.
	Amount     float64
	AmountText string
	// Unit is the currency label as shown, e.g. "BTC".
	Unit string
	// FiatValue and FiatPrice are set only when the price oracle has an
	// exact candle for Epoch. FiatValue = Amount * FiatPrice.
	FiatValue *float64
	FiatPrice *float64
}

// SequenceID computes the synthetic ordering key for an event.
func SequenceID(epoch int64, minerID int) int64 {
	return epoch*SequenceIDScale + int64(minerID)
}

// IsMinerDeposit reports whether the record credits mined coin to a worker.
func (t *Transaction) IsMinerDeposit() bool {
	return t.Type != "Withdraw" && t.LineShape == 3
}

// IsPlainDeposit reports whether the record is a wallet deposit with no
// originating miner.
func (t *Transaction) IsPlainDeposit() bool {
	return t.Type != "Withdraw" && t.LineShape == 2
}

// PricePoint is one OHLCV candle keyed by its epoch (UTC seconds).
type PricePoint struct {
	Epoch     int64
	Timestamp string
	Pair      string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
