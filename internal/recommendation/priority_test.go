package recommendation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

func TestPriority(t *testing.T) {
	tests := []struct {
		name       string
		typ        model.PatternType
		monthly    float64
		confidence float64
		want       int
	}{
		{name: "large confident recurring", typ: model.PatternRecurring, monthly: 60000, confidence: 0.95, want: 10},
		{name: "large deviation", typ: model.PatternCategoryDeviation, monthly: 140000, confidence: 0.8, want: 9},
		{name: "medium temporal", typ: model.PatternTemporal, monthly: 30000, confidence: 0.75, want: 7},
		{name: "boundary 20000 is small tier", typ: model.PatternMicroExpense, monthly: 20000, confidence: 0.85, want: 6},
		{name: "boundary 5000 adds nothing", typ: model.PatternTemporal, monthly: 5000, confidence: 0.6, want: 5},
		{name: "low confidence", typ: model.PatternMicroExpense, monthly: 5001, confidence: 0.59, want: 5},
		{name: "confidence 0.9 is not high", typ: model.PatternRecurring, monthly: 27000, confidence: 0.9, want: 8},
		{name: "nothing to save", typ: model.PatternMicroExpense, monthly: 0, confidence: 0.1, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &model.Pattern{Type: tt.typ}
			p.SavingsPotential.EstimatedMonthly = tt.monthly
			p.Metrics.Confidence = tt.confidence

			got := Priority(p)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, MinPriority)
			assert.LessOrEqual(t, got, MaxPriority)
		})
	}
}
