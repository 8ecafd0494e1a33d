package recommendation

import (
	"github.com/Veraticus/the-savings-must-flow/internal/locale"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

// Message keys are the English copy; other locales are registered in the catalog.
const (
	msgMicroTitle   = "Small purchases in %s add up to %.0f"
	msgMicroBody    = "You made %d small purchases in %s totaling %.0f. Each one averages only %.0f, but together they add up.\n\nCutting these purchases in half could save you about %.0f a month, or %.0f a year."
	msgMicroAction  = "Try consolidating your %s purchases to buy less often and get better bulk prices."
	msgDayTitle     = "You spend more on %s"
	msgDayBody      = "Your spending is significantly higher on %s. On average you spend %.0f on those days, compared with %.0f on other days of the week.\n\nBalancing your spending across the week could save you about %.0f a month."
	msgDayAction    = "Plan your activities to spread your spending across the week instead of concentrating it on %s."
	msgPeriodTitle  = "Your spending rises during %s"
	msgPeriodBody   = "Your spending is significantly higher during %s. On average you spend %.0f at those times, compared with %.0f at other times of day.\n\nBalancing your spending through the day could save you about %.0f a month."
	msgPeriodAction = "Plan your activities to spread your spending through the day instead of concentrating it during %s."
	msgTimeTitle    = "Timing pattern detected"
	msgTimeBody     = "We found a timing pattern in your spending that could be optimized. Balancing your spending better could save you about %.0f a month."
	msgTimeAction   = "Plan your activities to spread your spending more evenly."
	msgRecurTitle   = "Optimize your recurring spending on %s"
	msgRecurBody    = "You have been paying %.0f for %s regularly, with %s frequency.\n\nLooking at alternatives or negotiating better terms could save you about %.0f a month, or %.0f a year."
	msgRecurAction  = "Look for alternative %s providers or negotiate better terms with your current one."
	msgDevTitle     = "Significant increase in %s spending"
	msgDevBody      = "Your %s spending during %s rose %.1f%% above your usual average. You spent %.0f when you normally spend around %.0f.\n\nReturning to your usual spending could save you about %.0f next month."
	msgDevAction    = "Review your recent %s spending to find what caused the increase and how to get back to your usual level."
)

var spanish = map[string]string{
	msgMicroTitle:   "Pequeños gastos en %s suman %.0f",
	msgMicroBody:    "Has realizado %d pequeños gastos en %s por un total de %.0f. Aunque cada uno promedia solo %.0f, en conjunto representan una suma importante.\n\nSi reduces estos micro-gastos a la mitad, podrías ahorrar aproximadamente %.0f al mes, o %.0f al año.",
	msgMicroAction:  "Intenta consolidar tus compras de %s para reducir la frecuencia y aprovechar mejores precios por volumen.",
	msgDayTitle:     "Gastas más los días %s",
	msgDayBody:      "Hemos detectado que tus gastos son significativamente mayores los días %s. En promedio, gastas %.0f estos días, comparado con %.0f en otros días de la semana.\n\nSi equilibras tus gastos durante la semana, podrías ahorrar aproximadamente %.0f al mes.",
	msgDayAction:    "Planifica tus actividades para distribuir mejor tus gastos durante la semana y evitar concentrarlos los %s.",
	msgPeriodTitle:  "Tus gastos aumentan durante %s",
	msgPeriodBody:   "Hemos detectado que tus gastos son significativamente mayores durante %s. En promedio, gastas %.0f en estos horarios, comparado con %.0f en otros momentos del día.\n\nSi equilibras tus gastos durante el día, podrías ahorrar aproximadamente %.0f al mes.",
	msgPeriodAction: "Planifica tus actividades para distribuir mejor tus gastos durante el día y evitar concentrarlos durante %s.",
	msgTimeTitle:    "Patrón temporal detectado",
	msgTimeBody:     "Hemos detectado un patrón temporal en tus gastos que podría optimizarse. Si equilibras mejor tus gastos, podrías ahorrar aproximadamente %.0f al mes.",
	msgTimeAction:   "Planifica tus actividades para distribuir mejor tus gastos.",
	msgRecurTitle:   "Optimiza tu gasto recurrente en %s",
	msgRecurBody:    "Has estado pagando regularmente %.0f en %s con frecuencia %s.\n\nRevisando opciones alternativas o negociando mejores términos, podrías ahorrar aproximadamente %.0f al mes, o %.0f al año.",
	msgRecurAction:  "Investiga proveedores alternativos para %s o considera negociar mejores condiciones con tu proveedor actual.",
	msgDevTitle:     "Aumento significativo en gastos de %s",
	msgDevBody:      "Tus gastos en %s durante %s aumentaron un %.1f%% respecto a tu promedio habitual. Gastaste %.0f cuando normalmente gastas alrededor de %.0f.\n\nSi vuelves a tu patrón normal de gastos, podrías ahorrar aproximadamente %.0f el próximo mes.",
	msgDevAction:    "Revisa tus gastos recientes en %s para identificar qué causó este aumento y cómo puedes volver a tu nivel habitual.",
}

func init() {
	if err := locale.Register(spanish); err != nil {
		panic(err)
	}
}

// Messages renders recommendation copy in one locale.
type Messages struct {
	*locale.Printer
}

// NewMessages returns a renderer for locale, e.g. "es" or "en-US".
func NewMessages(l string) (*Messages, error) {
	p, err := locale.New(l)
	if err != nil {
		return nil, err
	}
	return &Messages{Printer: p}, nil
}

func (m *Messages) sprintf(key string, args ...any) string {
	return m.Sprintf(key, args...)
}

// builder renders the content and context of a recommendation for one pattern type.
type builder func(m *Messages, p *model.Pattern) (model.Content, model.RecommendationContext)

var builders = map[model.PatternType]builder{
	model.PatternMicroExpense:      buildMicroExpense,
	model.PatternTemporal:          buildTemporal,
	model.PatternRecurring:         buildRecurring,
	model.PatternCategoryDeviation: buildDeviation,
}

func monthlyContent(p *model.Pattern, title, body, actionType, action string) model.Content {
	return model.Content{
		Title:             title,
		Message:           body,
		SavingsEstimate:   p.SavingsPotential.EstimatedMonthly,
		Timeframe:         "monthly",
		ActionType:        actionType,
		ActionDescription: action,
	}
}

func maxRelatedAmount(p *model.Pattern) float64 {
	var highest float64
	for _, r := range p.RelatedTransactions {
		highest = max(highest, r.Amount)
	}
	return highest
}

func temporalInfo(p *model.Pattern) map[string]any {
	info := make(map[string]any, len(p.TemporalData))
	for k, v := range p.TemporalData {
		info[k] = v
	}
	return info
}

func buildMicroExpense(m *Messages, p *model.Pattern) (model.Content, model.RecommendationContext) {
	sp := p.SavingsPotential
	count := len(p.RelatedTransactions)

	content := monthlyContent(p,
		m.sprintf(msgMicroTitle, p.Category, p.Metrics.TotalAmount),
		m.sprintf(msgMicroBody, count, p.Category, p.Metrics.TotalAmount, p.Metrics.AverageAmount, sp.EstimatedMonthly, sp.EstimatedYearly),
		model.ActionReduce,
		m.sprintf(msgMicroAction, p.Category),
	)
	return content, model.RecommendationContext{
		RelevantCategories: []string{p.Category},
		RelevantAmounts: map[string]float64{
			"total":   p.Metrics.TotalAmount,
			"average": p.Metrics.AverageAmount,
			"max":     maxRelatedAmount(p),
		},
		TemporalInfo: map[string]any{
			"transactionsCount": count,
			"periodDays":        spanDays(p),
		},
	}
}

func buildTemporal(m *Messages, p *model.Pattern) (model.Content, model.RecommendationContext) {
	avg := p.TemporalData.Float("averageExpense")
	overall := p.TemporalData.Float("overallAverage")
	monthly := p.SavingsPotential.EstimatedMonthly

	var content model.Content
	switch p.TemporalData.String("timeUnit") {
	case "day_of_week":
		day := m.DayName(int(p.TemporalData.Float("timeValue")))
		content = monthlyContent(p,
			m.sprintf(msgDayTitle, day),
			m.sprintf(msgDayBody, day, avg, overall, monthly),
			model.ActionRedistribute,
			m.sprintf(msgDayAction, day),
		)
	case "time_of_day":
		period := m.PeriodName(model.TimeOfDay(p.TemporalData.String("timeValue")))
		content = monthlyContent(p,
			m.sprintf(msgPeriodTitle, period),
			m.sprintf(msgPeriodBody, period, avg, overall, monthly),
			model.ActionRedistribute,
			m.sprintf(msgPeriodAction, period),
		)
	default:
		content = monthlyContent(p,
			m.sprintf(msgTimeTitle),
			m.sprintf(msgTimeBody, monthly),
			model.ActionRedistribute,
			m.sprintf(msgTimeAction),
		)
	}

	return content, model.RecommendationContext{
		RelevantCategories: []string{"multiple"},
		RelevantAmounts: map[string]float64{
			"total":           p.Metrics.TotalAmount,
			"average":         avg,
			"overall_average": overall,
		},
		TemporalInfo: temporalInfo(p),
	}
}

func buildRecurring(m *Messages, p *model.Pattern) (model.Content, model.RecommendationContext) {
	sp := p.SavingsPotential
	label := p.Category
	if p.Subcategory != "" {
		label = p.Subcategory
	}

	content := monthlyContent(p,
		m.sprintf(msgRecurTitle, p.Category),
		m.sprintf(msgRecurBody, p.Metrics.AverageAmount, label, m.Periodicity(p.TemporalData.String("periodicity")), sp.EstimatedMonthly, sp.EstimatedYearly),
		model.ActionOptimize,
		m.sprintf(msgRecurAction, p.Category),
	)
	return content, model.RecommendationContext{
		RelevantCategories: []string{p.Category},
		RelevantAmounts: map[string]float64{
			"total":   p.Metrics.TotalAmount,
			"average": p.Metrics.AverageAmount,
			"max":     maxRelatedAmount(p),
		},
		TemporalInfo: temporalInfo(p),
	}
}

func buildDeviation(m *Messages, p *model.Pattern) (model.Content, model.RecommendationContext) {
	month := p.TemporalData.String("month")
	current := p.TemporalData.Float("currentTotal")
	standard := p.TemporalData.Float("standardAverage")
	increase := p.TemporalData.Float("percentageIncrease")

	content := monthlyContent(p,
		m.sprintf(msgDevTitle, p.Category),
		m.sprintf(msgDevBody, p.Category, month, increase, current, standard, p.SavingsPotential.EstimatedMonthly),
		model.ActionReduce,
		m.sprintf(msgDevAction, p.Category),
	)
	return content, model.RecommendationContext{
		RelevantCategories: []string{p.Category},
		RelevantAmounts: map[string]float64{
			"total":                current,
			"average":              standard,
			"deviation_percentage": increase,
		},
		TemporalInfo: map[string]any{"month": month},
	}
}

// spanDays is the number of whole days covered by a pattern's transactions.
func spanDays(p *model.Pattern) int {
	if len(p.RelatedTransactions) == 0 {
		return 0
	}
	lo, hi := p.RelatedTransactions[0].Date, p.RelatedTransactions[0].Date
	for _, r := range p.RelatedTransactions[1:] {
		if r.Date.Before(lo) {
			lo = r.Date
		}
		if r.Date.After(hi) {
			hi = r.Date
		}
	}
	return int(hi.Sub(lo).Hours() / 24)
}
