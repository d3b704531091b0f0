package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/regard-engine/internal/models"
)

// RawRow is one uncooked row of a brokerage export, keyed by column header.
// The upload transport (JSON body, CSV parsing) lives in the handler layer;
// by the time a row reaches the normalizer it is already a string map.
type RawRow map[string]string

// Column aliases per canonical field, matched case-insensitively and resolved
// in listed priority order. A row carrying two aliases of the same field (both
// "date" and "timestamp", say) always resolves to the higher-priority one, so
// identical input yields identical actions.
var fieldAliases = []struct {
	canonical string
	aliases   []string
}{
	{"ticker", []string{"ticker", "symbol"}},
	{"side", []string{"side", "action"}},
	{"quantity", []string{"quantity", "qty", "shares"}},
	{"entry_time", []string{"entry_time", "timestamp", "date"}},
	{"exit_time", []string{"exit_time"}},
	{"entry_price", []string{"entry_price", "price"}},
	{"exit_price", []string{"exit_price"}},
	{"realized_pnl", []string{"realized_pnl"}},
	{"fees", []string{"fees", "fee", "commission"}},
}

var knownAliases = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range fieldAliases {
		for _, alias := range f.aliases {
			set[alias] = struct{}{}
		}
	}
	return set
}()

// Side text to canonical verb. The plain BUY/SELL verbs map to OPEN verbs;
// the matcher treats an OPEN against a non-empty opposite queue as a close
// first, which is how BUY-as-cover and SELL-as-close fall out. The options
// verbs carry no such ambiguity.
var verbAliases = map[string]models.ActionVerb{
	"BUY":           models.ActionOpenLong,
	"LONG":          models.ActionOpenLong,
	"SELL":          models.ActionOpenShort,
	"SHORT":         models.ActionOpenShort,
	"BUY TO OPEN":   models.ActionOpenLong,
	"SELL TO CLOSE": models.ActionCloseLong,
	"SELL TO OPEN":  models.ActionOpenShort,
	"BUY TO CLOSE":  models.ActionCloseShort,
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer converts raw export rows into the canonical action sequence.
// It never mutates shared state; a bad row bumps the skip counter and is
// dropped, it does not fail the batch.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize parses a batch of raw rows into trade actions. Round-trip rows
// (both entry and exit columns present) expand into an open action followed
// by its matching close so the matcher sees one uniform shape.
func (n *Normalizer) Normalize(rows []RawRow) ([]models.TradeAction, int) {
	actions := make([]models.TradeAction, 0, len(rows))
	skipped := 0

	for i, row := range rows {
		parsed, ok := n.parseRow(row)
		if !ok {
			skipped++
			n.logger.Debug("row skipped", zap.Int("row", i))
			continue
		}
		actions = append(actions, parsed...)
	}

	return actions, skipped
}

// canonicalize lowercases headers and resolves aliases; unrecognized columns
// are kept aside as passthrough metadata. Headers are visited in sorted order
// and fields resolved through the priority lists, never by map iteration, so
// the result is the same on every run.
func canonicalize(row RawRow) (map[string]string, map[string]string) {
	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lowered := make(map[string]string, len(row))
	meta := make(map[string]string)
	for _, key := range keys {
		lower := strings.ToLower(strings.TrimSpace(key))
		if _, known := knownAliases[lower]; !known {
			meta[key] = row[key]
			continue
		}
		if _, exists := lowered[lower]; !exists {
			lowered[lower] = strings.TrimSpace(row[key])
		}
	}

	fields := make(map[string]string, len(fieldAliases))
	for _, f := range fieldAliases {
		for _, alias := range f.aliases {
			if value, ok := lowered[alias]; ok {
				fields[f.canonical] = value
				break
			}
		}
	}
	if len(meta) == 0 {
		meta = nil
	}
	return fields, meta
}

func (n *Normalizer) parseRow(row RawRow) ([]models.TradeAction, bool) {
	fields, meta := canonicalize(row)

	ticker := strings.ToUpper(fields["ticker"])
	if ticker == "" {
		return nil, false
	}

	verb, ok := parseVerb(fields["side"])
	if !ok {
		return nil, false
	}

	quantity, err := decimal.NewFromString(fields["quantity"])
	if err != nil || !quantity.IsPositive() {
		return nil, false
	}

	entryPrice, err := decimal.NewFromString(fields["entry_price"])
	if err != nil || entryPrice.IsNegative() {
		return nil, false
	}

	entryTime, ok := parseTimestamp(fields["entry_time"])
	if !ok {
		return nil, false
	}

	fees := decimal.Zero
	if raw := fields["fees"]; raw != "" {
		fees, err = decimal.NewFromString(raw)
		if err != nil || fees.IsNegative() {
			return nil, false
		}
	}

	open := models.TradeAction{
		Ticker:      ticker,
		Verb:        verb,
		Quantity:    quantity,
		Price:       entryPrice,
		Timestamp:   entryTime,
		Fees:        fees,
		RawMetadata: meta,
	}

	// Round-trip row: the export already paired entry and exit, so emit the
	// close leg too. Realized PnL columns are ignored; the matcher is the
	// only source of truth for PnL.
	if fields["exit_time"] == "" && fields["exit_price"] == "" {
		return []models.TradeAction{open}, true
	}

	exitTime, ok := parseTimestamp(fields["exit_time"])
	if !ok {
		return nil, false
	}
	exitPrice, err := decimal.NewFromString(fields["exit_price"])
	if err != nil || exitPrice.IsNegative() {
		return nil, false
	}

	closeVerb := models.ActionCloseLong
	if verb == models.ActionOpenShort || verb == models.ActionCloseShort {
		open.Verb = models.ActionOpenShort
		closeVerb = models.ActionCloseShort
	} else {
		open.Verb = models.ActionOpenLong
	}

	closeAction := models.TradeAction{
		Ticker:      ticker,
		Verb:        closeVerb,
		Quantity:    quantity,
		Price:       exitPrice,
		Timestamp:   exitTime,
		Fees:        decimal.Zero,
		RawMetadata: meta,
	}

	return []models.TradeAction{open, closeAction}, true
}

func parseVerb(raw string) (models.ActionVerb, bool) {
	key := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	verb, ok := verbAliases[key]
	return verb, ok
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
