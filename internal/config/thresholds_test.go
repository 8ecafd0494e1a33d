package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
)

func TestLoadThresholds_Defaults(t *testing.T) {
	got, err := LoadThresholds(viper.New())
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholds(), got)
}

func TestLoadThresholds_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `analysis:
  micro_expense_threshold: 5000
  high_deviation_factor: 2
  max_age: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	got, err := LoadThresholds(v)
	require.NoError(t, err)
	assert.InDelta(t, 5000, got.MicroExpenseThreshold, 1e-9)
	assert.InDelta(t, 2, got.HighDeviationFactor, 1e-9)
	assert.Equal(t, 48*time.Hour, got.MaxAge)
	assert.Equal(t, 2, got.RecurringMinFrequency)
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		mutate func(*Thresholds)
		name   string
	}{
		{name: "zero micro threshold", mutate: func(th *Thresholds) { th.MicroExpenseThreshold = 0 }},
		{name: "single recurrence", mutate: func(th *Thresholds) { th.RecurringMinFrequency = 1 }},
		{name: "no variance allowed", mutate: func(th *Thresholds) { th.RecurringMaxVariance = 0 }},
		{name: "deviation factor of one", mutate: func(th *Thresholds) { th.HighDeviationFactor = 1 }},
		{name: "short history", mutate: func(th *Thresholds) { th.HistoricalWindowDays = 3 }},
		{name: "no transactions", mutate: func(th *Thresholds) { th.MinTransactionsForPattern = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mutate(&th)
			assert.ErrorIs(t, th.Validate(), common.ErrInvalidConfig)
		})
	}
}

func TestLoadRecommendationSettings(t *testing.T) {
	v := viper.New()
	v.Set("recommendations.locale", "en")

	got, err := LoadRecommendationSettings(v)
	require.NoError(t, err)
	assert.Equal(t, "en", got.Locale)
	assert.Equal(t, 30*24*time.Hour, got.Expiry)
	assert.Equal(t, 5, got.DefaultLimit)

	v.Set("recommendations.default_limit", 0)
	_, err = LoadRecommendationSettings(v)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("SAVINGS_TEST_DIR", "/tmp/savings")
	assert.Equal(t, filepath.Join(home, "db.sqlite"), ExpandPath("~/db.sqlite"))
	assert.Equal(t, "/tmp/savings/db", ExpandPath("$SAVINGS_TEST_DIR/db"))
	assert.Equal(t, "", ExpandPath(""))
}
