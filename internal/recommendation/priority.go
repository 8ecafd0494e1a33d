// Package recommendation turns detected patterns into prioritized, localized
// recommendations and drives their visibility lifecycle.
package recommendation

import "github.com/Veraticus/the-savings-must-flow/internal/model"

// Priority bounds.
const (
	MinPriority  = 1
	MaxPriority  = 10
	basePriority = 5
)

// Priority scores a pattern from 1 to 10. Larger savings, higher confidence
// and the deviation and recurring types rank higher.
func Priority(p *model.Pattern) int {
	priority := basePriority

	switch monthly := p.SavingsPotential.EstimatedMonthly; {
	case monthly > 50000:
		priority += 3
	case monthly > 20000:
		priority += 2
	case monthly > 5000:
		priority++
	}

	switch confidence := p.Metrics.Confidence; {
	case confidence > 0.9:
		priority++
	case confidence < 0.6:
		priority--
	}

	if p.Type == model.PatternCategoryDeviation || p.Type == model.PatternRecurring {
		priority++
	}

	return max(MinPriority, min(MaxPriority, priority))
}
