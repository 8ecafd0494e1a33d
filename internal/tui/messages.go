package tui

import (
	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/recommendation"
)

type recommendationsLoadedMsg struct {
	err  error
	recs []*model.Recommendation
}

type shownMsg struct {
	err error
	id  string
}

type interactionDoneMsg struct {
	err  error
	id   string
	kind recommendation.InteractionType
	ok   bool
}
