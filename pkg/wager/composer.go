package wager

import (
	"fmt"

	"github.com/betsdash/betsdash-go/pkg/sportsbook/api"

	"github.com/shopspring/decimal"
)

// Candidate is a composed wager, transient between composition and
// submission.
type Candidate struct {
	MatchID   string
	Selection Selection
	Amount    decimal.Decimal
}

// BetType returns the synthesized wire bet type, or "" without a
// selection.
func (c *Candidate) BetType() string {
	if c == nil || c.Selection == nil {
		return ""
	}
	return c.Selection.BetType()
}

// Odds returns the resolved odds, or 0 without a selection.
func (c *Candidate) Odds() float64 {
	if c == nil || c.Selection == nil {
		return 0
	}
	return c.Selection.Odds()
}

// Request builds the submission body for a validated candidate. The
// candidate is submitted verbatim; the backend remains the authority for
// final acceptance.
func (c *Candidate) Request(userID string) *api.PlaceBetRequest {
	return &api.PlaceBetRequest{
		UserID:    userID,
		MatchID:   c.MatchID,
		BetType:   c.BetType(),
		BetAmount: c.Amount,
		Odds:      c.Odds(),
	}
}

// Composer builds a candidate for a single match. Selecting any kind
// replaces whatever was selected before, so at most one kind is ever
// held.
type Composer struct {
	match     *api.Match
	rosters   Rosters
	lines     []CardsLine
	selection Selection
	amount    decimal.Decimal
}

// ComposerOption configures the composer.
type ComposerOption func(*Composer)

// WithRosters sets the match's roster reference data.
func WithRosters(r Rosters) ComposerOption {
	return func(c *Composer) {
		c.rosters = r
	}
}

// WithCardsLines sets the match's total-cards lines.
func WithCardsLines(lines []CardsLine) ComposerOption {
	return func(c *Composer) {
		c.lines = lines
	}
}

// NewComposer creates a composer for a match.
func NewComposer(match *api.Match, opts ...ComposerOption) *Composer {
	c := &Composer{
		match:   match,
		rosters: DefaultRosters(),
		lines:   DefaultCardsLines(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SelectOutcome picks a match outcome at the match's published odds.
func (c *Composer) SelectOutcome(outcome Outcome) error {
	var odds float64
	switch outcome {
	case OutcomeHome:
		odds = c.match.OddsTeam1.Float64()
	case OutcomeDraw:
		odds = c.match.OddsDraw.Float64()
	case OutcomeAway:
		odds = c.match.OddsTeam2.Float64()
	default:
		return fmt.Errorf("wager: unknown outcome %q", outcome)
	}

	c.selection = OutcomeSelection{Outcome: outcome, Price: odds}
	return nil
}

// SelectPlayer picks a rostered player by id.
func (c *Composer) SelectPlayer(playerID int) error {
	p, ok := c.rosters.Find(playerID)
	if !ok {
		return fmt.Errorf("wager: player %d not on either roster", playerID)
	}

	c.selection = PlayerSelection{Player: p}
	return nil
}

// SelectPlayerByName picks a rostered player by normalized name.
func (c *Composer) SelectPlayerByName(name string) error {
	p, ok := c.rosters.FindByName(name)
	if !ok {
		return fmt.Errorf("wager: player %q not on either roster", name)
	}

	c.selection = PlayerSelection{Player: p}
	return nil
}

// SelectCards picks a total-cards line and direction.
func (c *Composer) SelectCards(line float64, direction Direction) error {
	if direction != Over && direction != Under {
		return fmt.Errorf("wager: unknown direction %q", direction)
	}

	for _, l := range c.lines {
		if l.Line == line {
			c.selection = CardsSelection{Line: l, Direction: direction}
			return nil
		}
	}
	return fmt.Errorf("wager: no cards line %s offered", formatLine(line))
}

// SetAmount sets the stake.
func (c *Composer) SetAmount(amount decimal.Decimal) {
	c.amount = amount
}

// Clear drops the current selection and amount.
func (c *Composer) Clear() {
	c.selection = nil
	c.amount = decimal.Zero
}

// Selection returns the currently held selection, or nil.
func (c *Composer) Selection() Selection {
	return c.selection
}

// Candidate snapshots the composer into a candidate. A candidate without
// a selection is still returned; validation rejects it.
func (c *Composer) Candidate() *Candidate {
	return &Candidate{
		MatchID:   c.match.ID,
		Selection: c.selection,
		Amount:    c.amount,
	}
}
