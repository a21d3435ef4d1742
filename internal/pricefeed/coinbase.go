package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"minerledger/internal/logger"
	"minerledger/internal/types"
)

// The Coinbase exchange API serves at most 300 candles per request, so at
// one-minute granularity each page covers a 300-minute window.
const (
	candleGranularity = time.Minute
	candleWindow      = 300 * time.Minute
	snapshotPair      = "BTC/USD"
	snapshotTimeFmt   = "2006-01-02 15:04:05"
)

// genesisRow seeds a fresh snapshot file so Extend has a starting point.
const genesisRow = "1609372800,2020-12-31 00:00:00,BTC/USD,28897.42,28934.56,28891.76,28934.56,10.46338356\n"

// Candle is one OHLCV interval returned by a price-history provider.
type Candle struct {
	Time   time.Time
	Low    float64
	High   float64
	Open   float64
	Close  float64
	Volume float64
}

// CandleProvider pages historical candles out of an exchange API.
type CandleProvider interface {
	Candles(ctx context.Context, start, end time.Time) ([]Candle, error)
}

// CoinbaseClient fetches BTC-USD minute candles from the public Coinbase
// exchange API, throttled to stay under the unauthenticated rate limit.
type CoinbaseClient struct {
	baseURL    string
	product    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewCoinbaseClient returns a client for the public candle endpoint.
func NewCoinbaseClient() *CoinbaseClient {
	return &CoinbaseClient{
		baseURL: "https://api.exchange.coinbase.com",
		product: "BTC-USD",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(340*time.Millisecond), 1),
	}
}

// Candles requests one window of minute candles, oldest first.
func (c *CoinbaseClient) Candles(ctx context.Context, start, end time.Time) ([]Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/products/%s/candles?granularity=%d&start=%s&end=%s",
		c.baseURL, c.product, int(candleGranularity.Seconds()),
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinbase candles returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// The endpoint answers arrays of [time, low, high, open, close, volume],
	// newest first.
	var raw [][]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("coinbase candles: %w", err)
	}

	candles := make([]Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, Candle{
			Time:   time.Unix(int64(row[0]), 0).UTC(),
			Low:    row[1],
			High:   row[2],
			Open:   row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

// Extend reads the last stored candle and pages newer ones from the
// provider, appending each batch to both the in-memory mapping and the
// snapshot file. Existing rows are never rewritten. A provider failure
// mid-pagination stops paging but keeps everything fetched so far.
func (o *Oracle) Extend(ctx context.Context, provider CandleProvider, path string) (int, error) {
	last, ok := o.Last()
	if !ok {
		return 0, fmt.Errorf("extend %s: no snapshot loaded", path)
	}

	start := time.Unix(last.Epoch, 0).UTC()
	if ts, err := time.Parse(snapshotTimeFmt, last.Timestamp); err == nil {
		start = ts.UTC()
	}
	start = start.Add(candleGranularity)
	end := start.Add(candleWindow - candleGranularity)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	appended := 0
	for {
		candles, err := provider.Candles(ctx, start, end)
		if err != nil {
			logger.Warn(ctx, "Price provider unavailable, keeping partial data",
				"error", err, "fetched", appended)
			return appended, nil
		}
		if len(candles) == 0 {
			return appended, nil
		}

		for _, candle := range candles {
			point := types.PricePoint{
				Epoch:     candle.Time.Unix(),
				Timestamp: candle.Time.Format(snapshotTimeFmt),
				Pair:      snapshotPair,
				Open:      candle.Open,
				High:      candle.High,
				Low:       candle.Low,
				Close:     candle.Close,
				Volume:    candle.Volume,
			}
			if _, err := f.WriteString(formatSnapshotRow(point)); err != nil {
				return appended, err
			}
			o.add(point)
			appended++
		}

		start = start.Add(candleWindow)
		end = end.Add(candleWindow)
	}
}

func formatSnapshotRow(p types.PricePoint) string {
	return strconv.FormatInt(p.Epoch, 10) + "," + p.Timestamp + "," + p.Pair + "," +
		formatPrice(p.Open) + "," + formatPrice(p.High) + "," + formatPrice(p.Low) + "," +
		formatPrice(p.Close) + "," + formatPrice(p.Volume) + "\n"
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Bootstrap seeds a fresh snapshot file with the genesis row so a
// subsequent Extend can page forward from it.
func Bootstrap(path string) error {
	return os.WriteFile(path, []byte(genesisRow), 0644)
}
