package wager

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Player is match-scoped roster reference data: immutable lookup entries
// keyed by player id.
type Player struct {
	ID          int
	Name        string
	Position    string
	ScoringOdds float64
}

// Rosters holds both teams' players for a match.
type Rosters struct {
	Team1 []Player
	Team2 []Player
}

// Find returns a player by id from either roster.
func (r Rosters) Find(id int) (Player, bool) {
	for _, p := range r.Team1 {
		if p.ID == id {
			return p, true
		}
	}
	for _, p := range r.Team2 {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// FindByName returns a player by normalized name from either roster, so
// "JOÃO Silva" matches "joao silva".
func (r Rosters) FindByName(name string) (Player, bool) {
	want := normalizeName(name)
	for _, p := range r.Team1 {
		if normalizeName(p.Name) == want {
			return p, true
		}
	}
	for _, p := range r.Team2 {
		if normalizeName(p.Name) == want {
			return p, true
		}
	}
	return Player{}, false
}

// CardsLine is one total-cards line with its direction-specific odds.
type CardsLine struct {
	Line      float64
	OverOdds  float64
	UnderOdds float64
}

// DefaultCardsLines are the lines offered when the match carries none.
func DefaultCardsLines() []CardsLine {
	return []CardsLine{
		{Line: 2.5, OverOdds: 1.85, UnderOdds: 1.95},
		{Line: 3.5, OverOdds: 2.10, UnderOdds: 1.75},
		{Line: 4.5, OverOdds: 2.40, UnderOdds: 1.60},
	}
}

// DefaultRosters are the placeholder rosters used until a roster feed
// exists.
func DefaultRosters() Rosters {
	return Rosters{
		Team1: []Player{
			{ID: 1, Name: "John Smith", Position: "Forward", ScoringOdds: 2.5},
			{ID: 2, Name: "Mike Johnson", Position: "Midfielder", ScoringOdds: 3.0},
			{ID: 3, Name: "David Brown", Position: "Forward", ScoringOdds: 2.8},
			{ID: 4, Name: "James Wilson", Position: "Defender", ScoringOdds: 4.2},
			{ID: 5, Name: "Robert Taylor", Position: "Midfielder", ScoringOdds: 3.5},
			{ID: 6, Name: "William Davis", Position: "Forward", ScoringOdds: 2.9},
			{ID: 7, Name: "Thomas Anderson", Position: "Midfielder", ScoringOdds: 3.2},
			{ID: 8, Name: "Daniel White", Position: "Forward", ScoringOdds: 2.7},
			{ID: 9, Name: "Joseph Martin", Position: "Defender", ScoringOdds: 4.5},
		},
		Team2: []Player{
			{ID: 10, Name: "Christopher Lee", Position: "Forward", ScoringOdds: 2.7},
			{ID: 11, Name: "Andrew Clark", Position: "Midfielder", ScoringOdds: 3.2},
			{ID: 12, Name: "Edward Lewis", Position: "Forward", ScoringOdds: 2.9},
			{ID: 13, Name: "George Walker", Position: "Defender", ScoringOdds: 4.0},
			{ID: 14, Name: "Henry Hall", Position: "Midfielder", ScoringOdds: 3.4},
			{ID: 15, Name: "Charles Young", Position: "Forward", ScoringOdds: 2.8},
			{ID: 16, Name: "Frank King", Position: "Midfielder", ScoringOdds: 3.3},
			{ID: 17, Name: "Peter Scott", Position: "Forward", ScoringOdds: 2.6},
			{ID: 18, Name: "Richard Green", Position: "Defender", ScoringOdds: 4.3},
		},
	}
}

// normalizeName normalizes a player name for matching.
func normalizeName(name string) string {
	name = strings.ToLower(name)

	// Remove accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)

	// Normalize spaces
	return strings.Join(strings.Fields(name), " ")
}
