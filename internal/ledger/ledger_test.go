package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"minerledger/internal/pricefeed"
	"minerledger/internal/types"
)

func record(txType string, shape, minerID int, amount float64, epoch int64) types.Transaction {
	return types.Transaction{
		SequenceID: types.SequenceID(epoch, minerID),
		Epoch:      epoch,
		Type:       txType,
		MinerID:    minerID,
		LineShape:  shape,
		Amount:     amount,
	}
}

func TestValueAggregates(t *testing.T) {
	records := []types.Transaction{
		record("Withdraw", 1, 0, 0.5, 1001),
		record("Deposit", 3, 7, 0.1, 1002),
		record("Deposit", 2, 0, 0.2, 1003),
	}

	totals := Value(records, pricefeed.NewOracle())

	if totals.Transactions != 3 {
		t.Errorf("Expected 3 transactions, got %d", totals.Transactions)
	}
	if totals.Withdrawn != 0.5 {
		t.Errorf("Expected 0.5 withdrawn, got %v", totals.Withdrawn)
	}
	if totals.Mined != 0.1 {
		t.Errorf("Expected 0.1 mined, got %v", totals.Mined)
	}
	if totals.Deposited != 0.2 {
		t.Errorf("Expected 0.2 deposited, got %v", totals.Deposited)
	}
	if totals.ByMiner[7] != 0.1 {
		t.Errorf("Expected miner 7 = 0.1, got %v", totals.ByMiner[7])
	}
}

func TestValueAttachesPrices(t *testing.T) {
	oracle := loadOracle(t, "1002,2021-10-25 19:00:00,BTC/USD,100,110,90,105,1.5\n")

	records := []types.Transaction{
		record("Deposit", 3, 7, 0.1, 1002),
		record("Deposit", 2, 0, 0.2, 9999), // no candle for this epoch
	}

	totals := Value(records, oracle)

	if records[0].FiatPrice == nil || *records[0].FiatPrice != 105 {
		t.Fatalf("Expected close price 105 attached, got %v", records[0].FiatPrice)
	}
	if *records[0].FiatValue != 0.1*105 {
		t.Errorf("Expected fiat value %v, got %v", 0.1*105, *records[0].FiatValue)
	}
	if records[1].FiatValue != nil || records[1].FiatPrice != nil {
		t.Error("Record without a candle must stay unvalued")
	}
	if totals.MinedFiat != 0.1*105 {
		t.Errorf("Expected mined fiat %v, got %v", 0.1*105, totals.MinedFiat)
	}
}

func TestMinerIDsAscending(t *testing.T) {
	totals := Totals{ByMiner: map[int]float64{9: 1, 2: 1, 101: 1}}
	ids := totals.MinerIDs()
	want := []int{2, 9, 101}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("Expected %v, got %v", want, ids)
		}
	}
}

func TestRounding(t *testing.T) {
	if got := RoundCrypto(0.123456786); got != 0.12345679 {
		t.Errorf("RoundCrypto: got %v", got)
	}
	if got := RoundFiat(1.239); got != 1.24 {
		t.Errorf("RoundFiat: got %v", got)
	}
}

func loadOracle(t *testing.T, rows string) *pricefeed.Oracle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte(rows), 0644); err != nil {
		t.Fatal(err)
	}
	oracle := pricefeed.NewOracle()
	if err := oracle.LoadSnapshot(path, "$"); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	return oracle
}
