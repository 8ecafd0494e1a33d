// Package locale renders user-facing labels and copy through one x/text
// message catalog. Keys are the English text; translations are registered
// per package with Register.
package locale

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

// Stored is the locale of labels persisted in pattern temporal data.
const Stored = "es"

// supported lists the catalog locales; the first is the fallback.
var supported = []language.Tag{language.English, language.Spanish}

var messageCatalog = catalog.NewBuilder(catalog.Fallback(language.English))

var labels = map[string]string{
	"Sunday":    "Domingo",
	"Monday":    "Lunes",
	"Tuesday":   "Martes",
	"Wednesday": "Miércoles",
	"Thursday":  "Jueves",
	"Friday":    "Viernes",
	"Saturday":  "Sábado",

	"January":   "Enero",
	"February":  "Febrero",
	"March":     "Marzo",
	"April":     "Abril",
	"May":       "Mayo",
	"June":      "Junio",
	"July":      "Julio",
	"August":    "Agosto",
	"September": "Septiembre",
	"October":   "Octubre",
	"November":  "Noviembre",
	"December":  "Diciembre",

	"mornings":    "las mañanas",
	"afternoons":  "las tardes",
	"evenings":    "las noches",
	"late nights": "las madrugadas",

	"daily":     "diaria",
	"weekly":    "semanal",
	"biweekly":  "quincenal",
	"monthly":   "mensual",
	"quarterly": "trimestral",
	"yearly":    "anual",
	"unknown":   "irregular",
}

var periodKeys = map[model.TimeOfDay]string{
	model.Morning:   "mornings",
	model.Afternoon: "afternoons",
	model.Evening:   "evenings",
	model.Night:     "late nights",
}

func init() {
	if err := Register(labels); err != nil {
		panic(err)
	}
}

// Register adds English keys and their Spanish translations to the catalog.
func Register(spanish map[string]string) error {
	for key, msg := range spanish {
		if err := messageCatalog.SetString(language.English, key, key); err != nil {
			return fmt.Errorf("invalid catalog key %q: %w", key, err)
		}
		if err := messageCatalog.SetString(language.Spanish, key, msg); err != nil {
			return fmt.Errorf("invalid catalog entry %q: %w", key, err)
		}
	}
	return nil
}

// Printer renders catalog entries in one locale.
type Printer struct {
	printer *message.Printer
	tag     language.Tag
}

// New returns a printer for locale, e.g. "es" or "en-US". Locales outside
// the catalog fall back to English.
func New(locale string) (*Printer, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("%w: locale %q: %v", common.ErrInvalidConfig, locale, err)
	}
	_, index, _ := language.NewMatcher(supported).Match(tag)
	matched := supported[index]

	return &Printer{
		tag:     matched,
		printer: message.NewPrinter(matched, message.Catalog(messageCatalog)),
	}, nil
}

// MustNew is New for locales known at compile time.
func MustNew(locale string) *Printer {
	p, err := New(locale)
	if err != nil {
		panic(err)
	}
	return p
}

// Language returns the locale the printer renders in.
func (p *Printer) Language() language.Tag {
	return p.tag
}

// Sprintf renders the catalog entry for key with args.
func (p *Printer) Sprintf(key string, args ...any) string {
	return p.printer.Sprintf(key, args...)
}

// DayName returns the weekday for 0=Sunday..6=Saturday.
func (p *Printer) DayName(day int) string {
	if day < 0 || day > 6 {
		return fmt.Sprint(day)
	}
	return p.Sprintf(time.Weekday(day).String())
}

// PeriodName returns the phrase for a time-of-day bucket.
func (p *Printer) PeriodName(period model.TimeOfDay) string {
	key, ok := periodKeys[period]
	if !ok {
		return string(period)
	}
	return p.Sprintf(key)
}

// MonthLabel formats t as "Mayo 2024".
func (p *Printer) MonthLabel(t time.Time) string {
	// The year goes through fmt to stay free of locale digit grouping.
	return fmt.Sprintf("%s %d", p.Sprintf(t.Month().String()), t.Year())
}

// Periodicity returns the periodicity label, "unknown" when empty.
func (p *Printer) Periodicity(label string) string {
	if label == "" {
		label = "unknown"
	}
	return p.Sprintf(label)
}
