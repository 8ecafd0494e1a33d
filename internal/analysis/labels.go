package analysis

import (
	"slices"

	"github.com/Veraticus/the-savings-must-flow/internal/locale"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

// labels renders the names stored in pattern temporal data.
var labels = locale.MustNew(locale.Stored)

// inPeriodOrder sorts time-of-day groups chronologically, morning first.
func inPeriodOrder(groups []*group) []*group {
	slices.SortStableFunc(groups, func(a, b *group) int {
		return slices.Index(model.TimesOfDay, model.TimeOfDay(a.key)) - slices.Index(model.TimesOfDay, model.TimeOfDay(b.key))
	})
	return groups
}
