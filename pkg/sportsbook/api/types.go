// Package api provides a client for the bets dashboard backend REST API.
// The backend owns users, matches, bets and the leaderboard; this client
// only speaks its request/response contract.
package api

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchUpcoming   MatchStatus = "upcoming"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

// BetResult is the settlement state of a bet.
type BetResult string

const (
	BetPending BetResult = "pending"
	BetWon     BetResult = "won"
	BetLost    BetResult = "lost"
)

// User is the backend's user record: profile plus balance.
type User struct {
	UserID      string          `json:"user_id"`
	Email       string          `json:"email"`
	DisplayName string          `json:"display_name"`
	Username    string          `json:"username,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	PhotoURL    string          `json:"photo_url,omitempty"`
}

// Active reports whether the account has completed onboarding.
// A user is active only once a username has been chosen.
func (u *User) Active() bool {
	return u != nil && u.Username != ""
}

// Match is a bettable fixture. Read-only from the client's perspective.
type Match struct {
	ID        string      `json:"match_id"`
	Team1     string      `json:"team_1"`
	Team2     string      `json:"team_2"`
	MatchDate time.Time   `json:"match_date"`
	Status    MatchStatus `json:"match_status"`
	OddsTeam1 JSONFloat   `json:"odds_team_1"`
	OddsDraw  JSONFloat   `json:"odds_draw"`
	OddsTeam2 JSONFloat   `json:"odds_team_2"`
}

// Bet is a placed wager as returned by the backend. The backend mutates
// Result asynchronously on settlement; everything else is immutable here.
type Bet struct {
	BetID     string          `json:"bet_id"`
	UserID    string          `json:"user_id"`
	MatchID   string          `json:"match_id"`
	Team1     string          `json:"team_1"`
	Team2     string          `json:"team_2"`
	MatchDate time.Time       `json:"match_date"`
	BetType   string          `json:"bet_type"`
	BetAmount decimal.Decimal `json:"bet_amount"`
	Odds      JSONFloat       `json:"odds"`
	Result    BetResult       `json:"result"`
}

// LeaderboardEntry is one row of the global leaderboard.
type LeaderboardEntry struct {
	UserID   string          `json:"user_id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}

// LoginRequest is the body for POST /api/login. The backend upserts the
// user keyed on the identity provider's uid.
type LoginRequest struct {
	FirebaseUID string `json:"firebase_uid"`
	Email       string `json:"email"`
	IDToken     string `json:"id_token"`
	DisplayName string `json:"display_name"`
}

// SetUsernameRequest is the body for POST /api/set_username.
type SetUsernameRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// PlaceBetRequest is the body for POST /bets. It is submitted verbatim
// from a validated wager candidate; the backend remains the authority for
// final acceptance (odds may have moved).
type PlaceBetRequest struct {
	UserID    string          `json:"user_id"`
	MatchID   string          `json:"match_id"`
	BetType   string          `json:"bet_type"`
	BetAmount decimal.Decimal `json:"bet_amount"`
	Odds      float64         `json:"odds"`
}

// PlaceBetResponse is the backend's acknowledgement of a placed bet.
type PlaceBetResponse struct {
	BetID   string `json:"bet_id"`
	Message string `json:"message,omitempty"`
}

// Profile is a user profile page payload: the user plus their bet history.
type Profile struct {
	User *User `json:"user"`
	Bets []Bet `json:"bets"`
}

// Wire envelopes. The backend wraps collections in an object.
type matchesResponse struct {
	Matches []Match `json:"matches"`
}

type matchResponse struct {
	Match *Match `json:"match"`
}

type betsResponse struct {
	Bets []Bet `json:"bets"`
}

type leaderboardResponse struct {
	Users []LeaderboardEntry `json:"users"`
}

// errorResponse carries a backend-provided rejection reason. Some
// endpoints return it with a 200 status, so it is checked everywhere.
type errorResponse struct {
	Error string `json:"error"`
}

// userEnvelope decodes login/set_username responses, which are a user
// object with an optional error field alongside it.
type userEnvelope struct {
	User
	Error string `json:"error"`
}

// JSONFloat handles both numeric and string JSON values. The backend is
// not consistent about how it encodes odds.
type JSONFloat float64

func (j *JSONFloat) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*j = JSONFloat(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		*j = 0
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*j = JSONFloat(f)
	return nil
}

func (j JSONFloat) Float64() float64 {
	return float64(j)
}
