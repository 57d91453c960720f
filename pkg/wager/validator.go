package wager

import (
	"errors"
	"fmt"

	"github.com/betsdash/betsdash-go/pkg/sportsbook/api"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoSelection means no bet kind was chosen.
	ErrNoSelection = errors.New("wager: no selection chosen")
	// ErrInvalidAmount means the stake is not a positive number.
	ErrInvalidAmount = errors.New("wager: amount must be positive")
)

// InsufficientBalanceError means the stake exceeds the user's balance.
type InsufficientBalanceError struct {
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("wager: amount %s exceeds balance %s", e.Amount, e.Balance)
}

// Validate checks a candidate against the session user. It is pure and
// makes no network calls; the backend still has the final word on
// acceptance. An amount equal to the balance is accepted.
func Validate(c *Candidate, user *api.User) error {
	if c == nil || c.Selection == nil {
		return ErrNoSelection
	}
	if c.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if c.Amount.GreaterThan(user.Balance) {
		return &InsufficientBalanceError{Amount: c.Amount, Balance: user.Balance}
	}
	return nil
}
