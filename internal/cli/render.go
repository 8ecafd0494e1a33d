package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-savings-must-flow/internal/analysis"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/recommendation"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

var patternTypeOrder = []model.PatternType{
	model.PatternMicroExpense,
	model.PatternRecurring,
	model.PatternTemporal,
	model.PatternCategoryDeviation,
}

// FormatAmount renders a currency amount rounded to whole units with
// thousands separators, e.g. "$1,680,000".
func FormatAmount(v float64) string {
	s := decimal.NewFromFloat(v).Round(0).StringFixed(0)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}

// FormatStatus renders a result status with an icon matching its outcome.
func FormatStatus(status service.Status, message string) string {
	text := string(status)
	if message != "" {
		text += ": " + message
	}
	switch status {
	case service.StatusSuccess:
		return FormatSuccess(text)
	case service.StatusError:
		return FormatError(text)
	default:
		return FormatInfo(text)
	}
}

// AnalysisSummary renders an analysis pass.
func AnalysisSummary(result analysis.AnalysisResult) string {
	if result.Status != service.StatusSuccess {
		return FormatStatus(result.Status, result.Message)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  • Transactions analyzed: %d\n", result.TransactionsAnalyzed)
	fmt.Fprintf(&b, "  • Patterns found: %d\n", result.PatternsFound)
	for _, typ := range patternTypeOrder {
		fmt.Fprintf(&b, "      %s: %d\n", typ, result.PatternTypes[typ])
	}
	for typ, msg := range result.DetectorErrors {
		b.WriteString(FormatWarning(fmt.Sprintf("%s detector failed: %s", typ, msg)) + "\n")
	}
	if result.LimitedAnalysis {
		b.WriteString(SubtleStyle.Render("Limited history: temporal and deviation detectors skipped") + "\n")
	}
	return RenderBox(ChartIcon+" Analysis Complete", strings.TrimRight(b.String(), "\n"))
}

// GenerationSummary renders a recommendation generation pass.
func GenerationSummary(result recommendation.GenerationResult) string {
	if result.Status != service.StatusSuccess {
		return FormatStatus(result.Status, result.Message)
	}

	content := fmt.Sprintf("  • Patterns considered: %d\n", result.PatternsAnalyzed) +
		fmt.Sprintf("  • Recommendations generated: %d\n", result.RecommendationsGenerated) +
		fmt.Sprintf("  • Recommendations expired: %d", result.RecommendationsExpired)
	return RenderBox(BulbIcon+" Recommendations", content)
}

// WritePatternTable writes patterns as an aligned table.
func WritePatternTable(w io.Writer, patterns []*model.Pattern) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTYPE\tCATEGORY\tSTATUS\tMONTHLY\tYEARLY\tCONFIDENCE")
	_, _ = fmt.Fprintln(tw, "──\t────\t────────\t──────\t───────\t──────\t──────────")
	for _, p := range patterns {
		category := p.Category
		if p.Subcategory != "" {
			category += " / " + p.Subcategory
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.0f%%\n",
			p.ID,
			p.Type,
			category,
			p.Status,
			FormatAmount(p.SavingsPotential.EstimatedMonthly),
			FormatAmount(p.SavingsPotential.EstimatedYearly),
			p.Metrics.Confidence*100,
		)
	}
	return tw.Flush()
}

// WriteRecommendationTable writes recommendations as an aligned table.
func WriteRecommendationTable(w io.Writer, recs []*model.Recommendation) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tPRIORITY\tSTATUS\tSAVINGS/MO\tEXPIRES\tTITLE")
	_, _ = fmt.Fprintln(tw, "──\t────────\t──────\t──────────\t───────\t─────")
	for _, rec := range recs {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.Priority,
			rec.Status,
			FormatAmount(rec.Content.SavingsEstimate),
			rec.ExpiresAt.Format("2006-01-02"),
			rec.Content.Title,
		)
	}
	return tw.Flush()
}

// RecommendationDetail renders one recommendation as a box.
func RecommendationDetail(rec *model.Recommendation) string {
	content := rec.Content.Message + "\n\n" +
		BoldStyle.Render("What to do: ") + rec.Content.ActionDescription + "\n" +
		BoldStyle.Render("Estimated savings: ") + FormatAmount(rec.Content.SavingsEstimate) + " " + rec.Content.Timeframe + "\n" +
		SubtleStyle.Render(fmt.Sprintf("priority %d · %s · expires %s", rec.Priority, rec.Status, rec.ExpiresAt.Format("2006-01-02")))
	return RenderBox(rec.Content.Title, content)
}
