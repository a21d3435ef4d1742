package parser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"minerledger/internal/logger"
	"minerledger/internal/types"
)

// ErrMalformedEntry marks a candidate whose numeric or date fields do not
// parse. The entry is skipped with a warning; the parse continues.
var ErrMalformedEntry = errors.New("malformed transaction entry")

// pageTimeLayout matches the portal's "Mon DD, YYYY HH:MM AM/PM" rendering.
const pageTimeLayout = "Jan 2, 2006 3:04 PM"

// renderLayout is the normalized timestamp carried on records.
const renderLayout = "2006-01-02 15:04"

var (
	spaceRuns   = regexp.MustCompile(`[\t ]+`)
	newlineRuns = regexp.MustCompile(`\n+`)
)

// Parser extracts typed transaction records from the transaction history
// page markup.
type Parser struct {
	loc  *time.Location
	year string
}

// New builds a parser. Timestamps are interpreted as local calendar time in
// the given zone; year, when non-empty, drops entries outside it.
func New(timezone, year string) (*Parser, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", timezone, err)
	}
	return &Parser{loc: loc, year: year}, nil
}

// Parse walks every hyperlink on the page in reverse document order (the
// page lists newest first) and emits one record per qualifying entry,
// oldest first. Non-transaction anchors are skipped; an empty result is not
// an error.
func (p *Parser) Parse(ctx context.Context, html string) ([]types.Transaction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse transaction page: %w", err)
	}

	var texts []string
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		texts = append(texts, sel.Text())
	})

	var records []types.Transaction
	for i := len(texts) - 1; i >= 0; i-- {
		record, ok := p.parseEntry(ctx, texts[i])
		if !ok {
			continue
		}
		record.DisplayID = len(records) + 1
		records = append(records, record)
	}
	return records, nil
}

// parseEntry normalizes one anchor's text and extracts a record from it.
// The second return is false for anchors that are not transactions at all
// and for malformed or year-filtered entries.
func (p *Parser) parseEntry(ctx context.Context, text string) (types.Transaction, bool) {
	normalized := spaceRuns.ReplaceAllString(text, " ")
	normalized = newlineRuns.ReplaceAllString(normalized, "\n")
	// The markup renders amounts with a stray space before the leading zero.
	normalized = strings.ReplaceAll(normalized, " 0.", "0.")
	normalized = strings.TrimSpace(normalized)

	lines := strings.Split(normalized, "\n")
	if len(lines) != 3 {
		return types.Transaction{}, false
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	if len(strings.Split(lines[1], " ")) != 5 {
		return types.Transaction{}, false
	}

	head := strings.Split(lines[0], " ")
	txType := head[0]

	minerID := 0
	if len(head) == 3 {
		// The worker reference ends with a punctuation character.
		token := head[2]
		if len(token) < 2 {
			logger.Warn(ctx, "Skipping entry", "error", ErrMalformedEntry, "field", token)
			return types.Transaction{}, false
		}
		id, err := strconv.Atoi(token[:len(token)-1])
		if err != nil {
			logger.Warn(ctx, "Skipping entry", "error", ErrMalformedEntry, "field", token)
			return types.Transaction{}, false
		}
		minerID = id
	}

	when, err := time.ParseInLocation(pageTimeLayout, lines[1], p.loc)
	if err != nil {
		logger.Warn(ctx, "Skipping entry", "error", ErrMalformedEntry, "field", lines[1])
		return types.Transaction{}, false
	}
	epoch := when.Unix()
	rendered := when.Format(renderLayout)

	if p.year != "" && !strings.HasPrefix(rendered, p.year) {
		return types.Transaction{}, false
	}

	tail := strings.Split(lines[2], " ")
	if len(tail) < 2 {
		logger.Warn(ctx, "Skipping entry", "error", ErrMalformedEntry, "field", lines[2])
		return types.Transaction{}, false
	}
	amount, err := strconv.ParseFloat(tail[0], 64)
	if err != nil {
		logger.Warn(ctx, "Skipping entry", "error", ErrMalformedEntry, "field", tail[0])
		return types.Transaction{}, false
	}

	return types.Transaction{
		SequenceID: types.SequenceID(epoch, minerID),
		Timestamp:  rendered,
		Epoch:      epoch,
		Type:       txType,
		MinerID:    minerID,
		LineShape:  len(head),
		Amount:     amount,
		AmountText: tail[0],
		Unit:       tail[1],
	}, true
}
