package locale

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

func TestNew(t *testing.T) {
	tests := []struct {
		locale string
		want   language.Tag
	}{
		{locale: "es", want: language.Spanish},
		{locale: "es-CL", want: language.Spanish},
		{locale: "en-US", want: language.English},
		{locale: "fr", want: language.English},
	}

	for _, tt := range tests {
		p, err := New(tt.locale)
		require.NoError(t, err, tt.locale)
		assert.Equal(t, tt.want, p.Language(), tt.locale)
	}

	_, err := New("not a locale!")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
	assert.Panics(t, func() { MustNew("not a locale!") })
}

func TestPrinter_Labels(t *testing.T) {
	es := MustNew(Stored)
	en := MustNew("en")

	assert.Equal(t, "Domingo", es.DayName(0))
	assert.Equal(t, "Sábado", es.DayName(6))
	assert.Equal(t, "Wednesday", en.DayName(3))
	assert.Equal(t, "9", es.DayName(9))

	for _, period := range model.TimesOfDay {
		assert.NotEqual(t, string(period), es.PeriodName(period), "%s has a translation", period)
	}
	assert.Equal(t, "las madrugadas", es.PeriodName(model.Night))
	assert.Equal(t, "mornings", en.PeriodName(model.Morning))
	assert.Equal(t, "brunch", es.PeriodName(model.TimeOfDay("brunch")))

	june := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Junio 2024", es.MonthLabel(june))
	assert.Equal(t, "June 2024", en.MonthLabel(june))

	assert.Equal(t, "mensual", es.Periodicity("monthly"))
	assert.Equal(t, "irregular", es.Periodicity(""))
	assert.Equal(t, "unknown", en.Periodicity(""))
}

func TestRegister(t *testing.T) {
	require.NoError(t, Register(map[string]string{"Saved %d times": "Guardado %d veces"}))

	assert.Equal(t, "Guardado 3 veces", MustNew("es").Sprintf("Saved %d times", 3))
	assert.Equal(t, "Saved 3 times", MustNew("en").Sprintf("Saved %d times", 3))
}
