package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/testutil"
)

func detectInput(now time.Time, current, historical []*model.Transaction) Input {
	return Input{Now: now, UserID: "u1", Current: current, Historical: historical}
}

func TestMicroExpenseDetector(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultThresholds()

	t.Run("frequent snacks", func(t *testing.T) {
		repos, _ := testutil.SetupMemoryRepos(t)
		txns := testutil.NewTransactionBuilder("u1", monday).
			Series(16, testutil.Days(2), 2000, "snacks", "Kiosk").
			Add(0, 80000, "rent", "Landlord").
			Save(t, repos.Transactions)

		d := NewMicroExpenseDetector(repos.Transactions, repos.Patterns, cfg)
		patterns, err := d.Detect(ctx, detectInput(monday.Add(testutil.Days(31)), txns, txns))
		require.NoError(t, err)
		require.Len(t, patterns, 1)

		p := patterns[0]
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, model.PatternMicroExpense, p.Type)
		assert.Equal(t, "snacks", p.Category)
		assert.Equal(t, model.PatternActive, p.Status)
		assert.InDelta(t, 32000, p.Metrics.TotalAmount, 0.001)
		assert.InDelta(t, 2000, p.Metrics.AverageAmount, 0.001)
		assert.InDelta(t, 16, p.Metrics.Frequency, 0.001)
		assert.InDelta(t, 100, p.Metrics.PercentageOfCategory, 0.001)
		assert.InDelta(t, 28.5714, p.Metrics.PercentageOfTotal, 0.001)
		assert.InDelta(t, 0.85, p.Metrics.Confidence, 0.001)
		assert.InDelta(t, 16000, p.SavingsPotential.EstimatedMonthly, 0.001)
		assert.InDelta(t, 192000, p.SavingsPotential.EstimatedYearly, 0.001)
		assert.Equal(t, 50, p.SavingsPotential.OptimizationPercentage)
		assert.Equal(t, model.MethodHistorical, p.SavingsPotential.CalculationMethod)
		assert.Len(t, p.RelatedTransactions, 16)

		stored, err := repos.Patterns.GetByUserID(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, p.ID, stored[0].ID)

		rent, err := repos.Transactions.GetByID(ctx, txns[16].ID)
		require.NoError(t, err)
		assert.False(t, rent.AnalysisFlags.IsMicroExpense)
	})

	t.Run("too little to matter", func(t *testing.T) {
		repos, _ := testutil.SetupMemoryRepos(t)
		txns := testutil.NewTransactionBuilder("u1", monday).
			Series(5, testutil.Days(7), 2000, "snacks", "Kiosk").
			Save(t, repos.Transactions)

		d := NewMicroExpenseDetector(repos.Transactions, repos.Patterns, cfg)
		patterns, err := d.Detect(ctx, detectInput(monday.Add(testutil.Days(30)), txns, txns))
		require.NoError(t, err)
		assert.Empty(t, patterns)

		// Micro expenses are flagged even without a pattern.
		for _, txn := range txns {
			stored, err := repos.Transactions.GetByID(ctx, txn.ID)
			require.NoError(t, err)
			assert.True(t, stored.AnalysisFlags.IsMicroExpense)
		}
	})

	t.Run("threshold amount counts as micro", func(t *testing.T) {
		repos, _ := testutil.SetupMemoryRepos(t)
		txns := testutil.NewTransactionBuilder("u1", monday).
			Series(3, testutil.Days(7), cfg.MicroExpenseThreshold, "lunch", "Menu del dia").
			Save(t, repos.Transactions)

		d := NewMicroExpenseDetector(repos.Transactions, repos.Patterns, cfg)
		patterns, err := d.Detect(ctx, detectInput(monday.Add(testutil.Days(20)), txns, txns))
		require.NoError(t, err)
		assert.Len(t, patterns, 1)
	})

	t.Run("income is ignored", func(t *testing.T) {
		repos, _ := testutil.SetupMemoryRepos(t)
		b := testutil.NewTransactionBuilder("u1", monday)
		for i := 0; i < 5; i++ {
			b.Add(testutil.Days(i), 9000, "refunds", "Refund").Income()
		}
		txns := b.Save(t, repos.Transactions)

		d := NewMicroExpenseDetector(repos.Transactions, repos.Patterns, cfg)
		patterns, err := d.Detect(ctx, detectInput(monday.Add(testutil.Days(10)), txns, txns))
		require.NoError(t, err)
		assert.Empty(t, patterns)
		assert.False(t, txns[0].AnalysisFlags.IsMicroExpense)
	})
}

func TestRecurringDetector(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultThresholds()
	repos, _ := testutil.SetupMemoryRepos(t)

	txns := testutil.NewTransactionBuilder("u1", monday).
		Series(3, testutil.Days(30), 60000, "fitness", "Gym Plus Membresía Mensual Premium Con Acceso Ilimitado").
		Save(t, repos.Transactions)
	coffee := testutil.NewTransactionBuilder("u2", monday).
		Series(3, testutil.Days(7), 3000, "coffee", "Cafe Central").
		Save(t, repos.Transactions)

	enricher := NewEnricher(repos.Transactions, cfg)
	_, err := enricher.Enrich(ctx, txns)
	require.NoError(t, err)
	_, err = enricher.Enrich(ctx, coffee)
	require.NoError(t, err)

	d := NewRecurringDetector(repos.Transactions, repos.Patterns, cfg)
	now := monday.Add(testutil.Days(61))

	patterns, err := d.Detect(ctx, detectInput(now, txns, txns))
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, model.PatternRecurring, p.Type)
	assert.Equal(t, "fitness", p.Category)
	assert.Equal(t, "Gym Plus Membresía Mensual Premium Con Acceso Ilim", p.Subcategory)
	assert.Len(t, []rune(p.Subcategory), 50)
	assert.Equal(t, PeriodMonthly, p.TemporalData.String("periodicity"))
	assert.InDelta(t, 30, p.TemporalData.Float("averageInterval"), 0.001)
	assert.Equal(t, *txns[0].Metadata.RecurrenceGroupID, p.TemporalData.String("recurrenceGroupId"))
	assert.InDelta(t, 1.5, p.Metrics.Frequency, 0.001)
	assert.InDelta(t, 60000, p.Metrics.AverageAmount, 0.001)
	assert.InDelta(t, 0.9, p.Metrics.Confidence, 0.001)
	assert.InDelta(t, 27000, p.SavingsPotential.EstimatedMonthly, 0.001)
	assert.Equal(t, 30, p.SavingsPotential.OptimizationPercentage)
	assert.Equal(t, model.MethodSubscription, p.SavingsPotential.CalculationMethod)

	patterns, err = d.Detect(ctx, Input{Now: now, UserID: "u2", Current: coffee, Historical: coffee})
	require.NoError(t, err)
	assert.Empty(t, patterns, "recurring but below the optimizable amount")
}

func TestTemporalDetector_DayOfWeek(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultThresholds()
	repos, _ := testutil.SetupMemoryRepos(t)

	// Two weeks of Monday, Tuesday and Wednesday spending at the same hour.
	txns := testutil.NewTransactionBuilder("u1", monday).
		Add(testutil.Days(0), 50000, "dining", "Restaurante").
		Add(testutil.Days(1), 5000, "groceries", "Mercado").
		Add(testutil.Days(2), 5000, "groceries", "Mercado").
		Add(testutil.Days(7), 50000, "dining", "Restaurante").
		Add(testutil.Days(8), 5000, "groceries", "Mercado").
		Add(testutil.Days(9), 5000, "groceries", "Mercado").
		Save(t, repos.Transactions)
	current, historical := txns[:3], txns

	d := NewTemporalDetector(repos.Transactions, repos.Patterns, cfg)
	patterns, err := d.Detect(ctx, detectInput(monday.Add(testutil.Days(10)), current, historical))
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, model.PatternTemporal, p.Type)
	assert.Equal(t, "multiple", p.Category)
	assert.Equal(t, TimeUnitDayOfWeek, p.TemporalData.String("timeUnit"))
	assert.Equal(t, "Lunes", p.TemporalData.String("dayName"))
	assert.InDelta(t, 1, p.TemporalData.Float("timeValue"), 0)
	assert.InDelta(t, 50000, p.TemporalData.Float("averageExpense"), 0.001)
	assert.InDelta(t, 20000, p.TemporalData.Float("overallAverage"), 0.001)
	assert.Equal(t, "2.5x el promedio", p.TemporalData.String("comparisonMetric"))
	assert.InDelta(t, 0.75, p.Metrics.Confidence, 0.001)
	assert.InDelta(t, 120000, p.SavingsPotential.EstimatedMonthly, 0.001)
	assert.Equal(t, 60, p.SavingsPotential.OptimizationPercentage)
	assert.Equal(t, model.MethodDayOfWeek, p.SavingsPotential.CalculationMethod)
	assert.Len(t, p.RelatedTransactions, 2)

	first, err := repos.Transactions.GetByID(ctx, txns[0].ID)
	require.NoError(t, err)
	assert.True(t, first.AnalysisFlags.IsTemporalPattern)

	// Only the current batch is flagged.
	second, err := repos.Transactions.GetByID(ctx, txns[3].ID)
	require.NoError(t, err)
	assert.False(t, second.AnalysisFlags.IsTemporalPattern)

	tuesday, err := repos.Transactions.GetByID(ctx, txns[1].ID)
	require.NoError(t, err)
	assert.False(t, tuesday.AnalysisFlags.IsTemporalPattern)
}

func TestTemporalDetector_TimeOfDay(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultThresholds()
	repos, _ := testutil.SetupMemoryRepos(t)

	// Every purchase falls on a Monday so only the time-of-day buckets differ.
	evening := monday.Add(9 * time.Hour)
	b := testutil.NewTransactionBuilder("u1", monday)
	for i := 0; i < 4; i++ {
		b.Add(testutil.Days(7*i), 1000, "coffee", "Cafe")
	}
	b.At(evening, 10000, "bars", "Bar").At(evening.Add(testutil.Days(7)), 10000, "bars", "Bar")
	txns := b.Save(t, repos.Transactions)

	d := NewTemporalDetector(repos.Transactions, repos.Patterns, cfg)
	patterns, err := d.Detect(ctx, detectInput(monday.Add(testutil.Days(30)), txns, txns))
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, TimeUnitTimeOfDay, p.TemporalData.String("timeUnit"))
	assert.Equal(t, string(model.Evening), p.TemporalData.String("timeValue"))
	assert.Equal(t, "las noches", p.TemporalData.String("periodName"))
	assert.InDelta(t, 0.7, p.Metrics.Confidence, 0.001)
	assert.InDelta(t, 30, p.Metrics.Frequency, 0.001)
	assert.InDelta(t, 67500, p.SavingsPotential.EstimatedMonthly, 0.001)
	assert.Equal(t, model.MethodTimeOfDay, p.SavingsPotential.CalculationMethod)
}

func TestTemporalDetector_NeedsEnoughExpenses(t *testing.T) {
	repos, _ := testutil.SetupMemoryRepos(t)
	txns := testutil.NewTransactionBuilder("u1", monday).
		Add(0, 50000, "dining", "Restaurante").
		Add(testutil.Days(1), 5000, "groceries", "Mercado").
		Add(testutil.Days(2), 5000, "groceries", "Mercado").
		Save(t, repos.Transactions)

	d := NewTemporalDetector(repos.Transactions, repos.Patterns, config.DefaultThresholds())
	patterns, err := d.Detect(context.Background(), detectInput(monday.Add(testutil.Days(3)), txns, txns))
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestCategoryDeviationDetector(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultThresholds()
	repos, _ := testutil.SetupMemoryRepos(t)

	b := testutil.NewTransactionBuilder("u1", monday)
	b.At(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), 70000, "travel", "Aerolinea").
		At(time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC), 60000, "travel", "Hotel").
		At(time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC), 70000, "travel", "Aerolinea").
		At(time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC), 40000, "travel", "Hotel").
		At(time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC), 40000, "travel", "Aerolinea").
		At(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), 5000, "books", "Libreria").
		At(time.Date(2024, 6, 16, 10, 0, 0, 0, time.UTC), 5000, "books", "Libreria")
	txns := b.Save(t, repos.Transactions)
	current := txns[3:]
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	d := NewCategoryDeviationDetector(repos.Transactions, repos.Patterns, cfg)
	patterns, err := d.Detect(ctx, detectInput(now, current, txns))
	require.NoError(t, err)
	require.Len(t, patterns, 1, "books has no baseline")

	p := patterns[0]
	assert.Equal(t, model.PatternCategoryDeviation, p.Type)
	assert.Equal(t, "travel", p.Category)
	assert.Equal(t, "Junio 2024", p.TemporalData.String("month"))
	assert.InDelta(t, 80000, p.TemporalData.Float("currentTotal"), 0.001)
	assert.InDelta(t, 240000, p.TemporalData.Float("currentProjected"), 0.001)
	assert.InDelta(t, 100000, p.TemporalData.Float("standardAverage"), 0.001)
	assert.InDelta(t, 140, p.TemporalData.Float("percentageIncrease"), 0.001)
	assert.InDelta(t, 2.4, p.Metrics.Deviation, 0.001)
	assert.InDelta(t, 100, p.Metrics.PercentageOfCategory, 0.001)
	assert.InDelta(t, 140000, p.SavingsPotential.EstimatedMonthly, 0.001)
	assert.InDelta(t, 1680000, p.SavingsPotential.EstimatedYearly, 0.001)
	assert.Equal(t, 58, p.SavingsPotential.OptimizationPercentage)
	assert.Equal(t, model.MethodHistoricalComparison, p.SavingsPotential.CalculationMethod)

	for _, txn := range txns[3:5] {
		stored, err := repos.Transactions.GetByID(ctx, txn.ID)
		require.NoError(t, err)
		assert.True(t, stored.AnalysisFlags.IsHighDeviation)
	}
	past, err := repos.Transactions.GetByID(ctx, txns[0].ID)
	require.NoError(t, err)
	assert.False(t, past.AnalysisFlags.IsHighDeviation)
}

func TestCategoryDeviationDetector_ShortBaseline(t *testing.T) {
	repos, _ := testutil.SetupMemoryRepos(t)
	txns := testutil.NewTransactionBuilder("u1", monday).
		Add(0, 1000, "travel", "Bus").
		Add(testutil.Days(3), 1000, "travel", "Bus").
		Add(testutil.Days(20), 50000, "travel", "Hotel").
		Add(testutil.Days(21), 50000, "travel", "Hotel").
		Save(t, repos.Transactions)

	d := NewCategoryDeviationDetector(repos.Transactions, repos.Patterns, config.DefaultThresholds())
	patterns, err := d.Detect(context.Background(), detectInput(monday.Add(testutil.Days(22)), txns[2:], txns))
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestSavingsScaleWithAmounts(t *testing.T) {
	ctx := context.Background()

	// Amounts and the monetary threshold scale together.
	monthly := func(factor float64) float64 {
		cfg := config.DefaultThresholds()
		cfg.MicroExpenseThreshold *= factor
		repos, _ := testutil.SetupMemoryRepos(t)
		txns := testutil.NewTransactionBuilder("u1", monday).
			Series(16, testutil.Days(2), 2000*factor, "snacks", "Kiosk").
			Save(t, repos.Transactions)
		patterns, err := NewMicroExpenseDetector(repos.Transactions, repos.Patterns, cfg).
			Detect(ctx, detectInput(monday.Add(testutil.Days(31)), txns, txns))
		require.NoError(t, err)
		require.Len(t, patterns, 1)
		return patterns[0].SavingsPotential.EstimatedMonthly
	}

	base := monthly(1)
	for _, factor := range []float64{2, 10, 250} {
		assert.InDelta(t, base*factor, monthly(factor), 0.01, "factor %v", factor)
	}
}

func TestInPeriodOrder(t *testing.T) {
	groups := []*group{
		{key: string(model.Night)},
		{key: string(model.Morning)},
		{key: string(model.Evening)},
		{key: string(model.Afternoon)},
	}

	var keys []string
	for _, g := range inPeriodOrder(groups) {
		keys = append(keys, g.key)
	}
	assert.Equal(t, []string{"morning", "afternoon", "evening", "night"}, keys)
}
