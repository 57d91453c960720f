// Package wager builds and validates wager candidates. A candidate is
// built from exactly one of three mutually exclusive bet kinds for a
// single match; the kinds are modeled as a tagged union so that invalid
// combinations are unrepresentable.
package wager

import (
	"fmt"
	"strconv"
)

// Kind is the bet kind of a selection.
type Kind string

const (
	KindMatchOutcome   Kind = "match_outcome"
	KindPlayerScoring  Kind = "player_scoring"
	KindCardsThreshold Kind = "cards_threshold"
)

// Outcome is a match-result pick. The values double as the wire bet_type.
type Outcome string

const (
	OutcomeHome Outcome = "team_1"
	OutcomeDraw Outcome = "draw"
	OutcomeAway Outcome = "team_2"
)

// Direction is the side of a cards threshold line.
type Direction string

const (
	Over  Direction = "over"
	Under Direction = "under"
)

// Selection is one chosen bet. Exactly three types implement it.
type Selection interface {
	// Kind identifies the bet kind.
	Kind() Kind
	// BetType is the synthesized wire encoding of kind and parameters.
	BetType() string
	// Odds is the resolved fixed odds for the selection.
	Odds() float64

	sealed()
}

// OutcomeSelection is a match-outcome pick at the match's published odds.
type OutcomeSelection struct {
	Outcome Outcome
	Price   float64
}

func (s OutcomeSelection) Kind() Kind      { return KindMatchOutcome }
func (s OutcomeSelection) BetType() string { return string(s.Outcome) }
func (s OutcomeSelection) Odds() float64   { return s.Price }
func (s OutcomeSelection) sealed()         {}

// PlayerSelection is a bet on a rostered player scoring, at that player's
// fixed scoring odds.
type PlayerSelection struct {
	Player Player
}

func (s PlayerSelection) Kind() Kind      { return KindPlayerScoring }
func (s PlayerSelection) BetType() string { return fmt.Sprintf("player_%d", s.Player.ID) }
func (s PlayerSelection) Odds() float64   { return s.Player.ScoringOdds }
func (s PlayerSelection) sealed()         {}

// CardsSelection is an over/under bet on a total-cards line, at the
// direction-specific odds for that line.
type CardsSelection struct {
	Line      CardsLine
	Direction Direction
}

func (s CardsSelection) Kind() Kind { return KindCardsThreshold }

func (s CardsSelection) BetType() string {
	return "cards_" + formatLine(s.Line.Line) + "_" + string(s.Direction)
}

func (s CardsSelection) Odds() float64 {
	if s.Direction == Under {
		return s.Line.UnderOdds
	}
	return s.Line.OverOdds
}

func (s CardsSelection) sealed() {}

func formatLine(line float64) string {
	return strconv.FormatFloat(line, 'f', -1, 64)
}
