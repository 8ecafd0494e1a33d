package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

const (
	// recurrenceGroupPrefix prefixes ids derived from a similarity hash.
	recurrenceGroupPrefix = "rec_"
	// maxGapRatio rejects two-gap groups whose longest gap is at least this multiple of the shortest.
	maxGapRatio = 2.0
	// maxGapRSD rejects groups of three or more gaps whose relative standard deviation exceeds this.
	maxGapRSD = 0.5
	// similarityAmountBucket is the amount granularity of the similarity hash.
	// Amount consistency inside a group is left to CheckRecurrence.
	similarityAmountBucket = 1000
)

// Enricher derives transaction metadata and detects recurrence groups.
type Enricher struct {
	txns TransactionStore
	cfg  config.Thresholds
}

// NewEnricher creates an enricher persisting through txns.
func NewEnricher(txns TransactionStore, cfg config.Thresholds) *Enricher {
	return &Enricher{txns: txns, cfg: cfg}
}

// EnrichResult summarizes one enrichment pass.
type EnrichResult struct {
	Enriched         int
	RecurringGroups  int
	RecurringMembers int
}

// Enrich refreshes the metadata of every transaction, persists its calendar
// features and similarity hash, then tests each group of equal hashes for
// recurrence. Transactions are updated in place.
func (e *Enricher) Enrich(ctx context.Context, txns []*model.Transaction) (EnrichResult, error) {
	var result EnrichResult

	for _, txn := range txns {
		txn.RefreshMetadata()
		hash := SimilarityHash(txn.Description, txn.Category, txn.Amount)
		txn.Metadata.SimilarityHash = &hash

		md := txn.Metadata
		if _, err := e.txns.UpdateMetadata(ctx, txn.ID, map[string]any{
			"dayOfWeek":        md.DayOfWeek,
			"weekOfMonth":      md.WeekOfMonth,
			"monthOfYear":      md.MonthOfYear,
			"timeOfDay":        md.TimeOfDay,
			"hourOfDay":        md.HourOfDay,
			"normalizedAmount": md.NormalizedAmount,
			"similarityHash":   hash,
		}); err != nil {
			return result, fmt.Errorf("failed to persist metadata for transaction %s: %w", txn.ID, err)
		}
		result.Enriched++
	}

	groups := groupBy(txns, func(t *model.Transaction) (string, bool) {
		return *t.Metadata.SimilarityHash, true
	})
	for _, g := range groups {
		if len(g.members) < e.cfg.RecurringMinFrequency {
			continue
		}
		sortByDate(g.members)
		if !CheckRecurrence(g.members, e.cfg.RecurringMaxVariance) {
			continue
		}
		if err := e.markRecurring(ctx, g.key, g.members); err != nil {
			return result, err
		}
		result.RecurringGroups++
		result.RecurringMembers += len(g.members)
	}

	slog.Debug("enriched transactions",
		"count", result.Enriched,
		"recurring_groups", result.RecurringGroups)
	return result, nil
}

func (e *Enricher) markRecurring(ctx context.Context, hash string, members []*model.Transaction) error {
	groupID := RecurrenceGroupID(hash)
	for _, txn := range members {
		txn.Metadata.IsRecurring = true
		txn.Metadata.RecurrenceGroupID = &groupID
		if _, err := e.txns.UpdateMetadata(ctx, txn.ID, map[string]any{
			"isRecurring":       true,
			"recurrenceGroupId": groupID,
		}); err != nil {
			return fmt.Errorf("failed to mark transaction %s recurring: %w", txn.ID, err)
		}

		if txn.Amount < e.cfg.OptimizableRecurringMinAmount {
			continue
		}
		txn.AnalysisFlags.Set(model.FlagOptimizableRecurring)
		if _, err := e.txns.RaiseFlags(ctx, txn.ID, model.FlagOptimizableRecurring); err != nil {
			return fmt.Errorf("failed to flag transaction %s optimizable: %w", txn.ID, err)
		}
	}
	return nil
}

// SimilarityHash fingerprints a transaction by its normalized description,
// category and amount rounded to the nearest 1000.
func SimilarityHash(description, category string, amount float64) string {
	bucket := decimal.NewFromInt(similarityAmountBucket)
	rounded := decimal.NewFromFloat(amount).Div(bucket).RoundBank(0).Mul(bucket)
	key := normalizeDescription(description) + "|" + category + "|" + rounded.String()
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// RecurrenceGroupID derives the stable group id for a similarity hash.
func RecurrenceGroupID(hash string) string {
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return recurrenceGroupPrefix + hash
}

// normalizeDescription lower-cases, folds accents and keeps only letters and spaces.
func normalizeDescription(description string) string {
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, description)
	if err != nil {
		folded = description
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// CheckRecurrence reports whether date-sorted transactions recur at a
// consistent interval with consistent amounts. Groups of two always pass the
// interval test; groups of three compare the two gaps; larger groups bound
// the relative standard deviation of the gaps. The amounts' coefficient of
// variation must not exceed maxVariance.
func CheckRecurrence(sorted []*model.Transaction, maxVariance float64) bool {
	if len(sorted) < 2 {
		return false
	}

	gaps := dayGaps(sorted)
	switch {
	case len(gaps) == 2:
		lo, hi := math.Min(gaps[0], gaps[1]), math.Max(gaps[0], gaps[1])
		if hi/lo >= maxGapRatio {
			return false
		}
	case len(gaps) >= 3:
		mean, sd := meanStdDev(gaps)
		if sd/mean > maxGapRSD {
			return false
		}
	}

	amounts := make([]float64, len(sorted))
	for i, t := range sorted {
		amounts[i] = t.Amount
	}
	mean, sd := meanStdDev(amounts)
	if mean <= 0 {
		return false
	}
	return sd/mean <= maxVariance
}

// dayGaps returns whole-day gaps between consecutive transactions, with a
// zero gap counted as one day.
func dayGaps(sorted []*model.Transaction) []float64 {
	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gap := float64(daysBetween(sorted[i-1].Date, sorted[i].Date))
		if gap < 1 {
			gap = 1
		}
		gaps = append(gaps, gap)
	}
	return gaps
}

// daysBetween counts whole days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// spanDays returns the whole days between the earliest and latest transaction.
func spanDays(txns []*model.Transaction) int {
	if len(txns) == 0 {
		return 0
	}
	lo, hi := txns[0].Date, txns[0].Date
	for _, t := range txns[1:] {
		if t.Date.Before(lo) {
			lo = t.Date
		}
		if t.Date.After(hi) {
			hi = t.Date
		}
	}
	return daysBetween(lo, hi)
}

// meanStdDev returns the mean and sample standard deviation.
func meanStdDev(values []float64) (mean, sd float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}

func sortByDate(txns []*model.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Date.Before(txns[j].Date)
	})
}
