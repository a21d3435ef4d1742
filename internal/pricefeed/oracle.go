package pricefeed

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"minerledger/internal/types"
)

// ErrMalformedPriceData is returned when a snapshot row cannot be parsed as
// (epoch, timestamp, pair, open, high, low, close, volume).
var ErrMalformedPriceData = errors.New("malformed price data")

// Oracle answers point-in-time price lookups from a sparse epoch-keyed
// candle mapping. One source per run: the first successful load wins and
// fixes the currency symbol used for display.
type Oracle struct {
	points map[int64]types.PricePoint
	symbol string
	loaded bool
	last   types.PricePoint
}

// NewOracle returns an empty oracle.
func NewOracle() *Oracle {
	return &Oracle{points: make(map[int64]types.PricePoint)}
}

// Loaded reports whether any price source has been loaded.
func (o *Oracle) Loaded() bool { return o.loaded }

// CurrencySymbol returns the display symbol of the loaded source, e.g. "$".
func (o *Oracle) CurrencySymbol() string { return o.symbol }

// PriceAt looks up the candle keyed exactly by epoch. There is no
// interpolation across gaps; a miss simply leaves a transaction unvalued.
func (o *Oracle) PriceAt(epoch int64) (types.PricePoint, bool) {
	p, ok := o.points[epoch]
	return p, ok
}

// Last returns the most recently keyed candle seen by load or extend.
func (o *Oracle) Last() (types.PricePoint, bool) {
	if !o.loaded {
		return types.PricePoint{}, false
	}
	return o.last, true
}

// LoadSnapshot bulk-populates the mapping from a snapshot CSV (no header)
// and records its currency symbol. Rows are epoch-first:
// epoch,timestamp,pair,open,high,low,close,volume.
func (o *Oracle) LoadSnapshot(path, symbol string) error {
	return o.loadCSV(path, symbol, 0)
}

// LoadMinuteCSV loads a Bitstamp minute-candle export. These files carry a
// source URL line and a header line before the data, both skipped.
func (o *Oracle) LoadMinuteCSV(path, symbol string) error {
	return o.loadCSV(path, symbol, 2)
}

func (o *Oracle) loadCSV(path, symbol string, skipRows int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReader(f))
	reader.FieldsPerRecord = -1

	// Rows are staged and committed only once the whole file parses, so a
	// corrupt file leaves the oracle untouched for the next source.
	staged := make([]types.PricePoint, 0, 1024)
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedPriceData, path, err)
		}
		row++
		if row <= skipRows {
			continue
		}
		point, err := parsePoint(record)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", path, row, err)
		}
		staged = append(staged, point)
	}

	for _, point := range staged {
		o.add(point)
	}
	o.loaded = true
	o.symbol = symbol
	return nil
}

func (o *Oracle) add(p types.PricePoint) {
	o.points[p.Epoch] = p
	if p.Epoch > o.last.Epoch {
		o.last = p
	}
}

func parsePoint(record []string) (types.PricePoint, error) {
	if len(record) < 8 {
		return types.PricePoint{}, fmt.Errorf("%w: %d fields", ErrMalformedPriceData, len(record))
	}
	epoch, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return types.PricePoint{}, fmt.Errorf("%w: epoch %q", ErrMalformedPriceData, record[0])
	}
	values := make([]float64, 5)
	for i, field := range record[3:8] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return types.PricePoint{}, fmt.Errorf("%w: field %q", ErrMalformedPriceData, field)
		}
		values[i] = v
	}
	return types.PricePoint{
		Epoch:     epoch,
		Timestamp: record[1],
		Pair:      record[2],
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}
