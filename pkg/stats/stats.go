// Package stats derives aggregate metrics, time partitions and rankings
// from raw bet lists. Everything here is pure and deterministic: the same
// input always yields the same output, and nothing is persisted.
package stats

import (
	"sort"
	"time"

	"github.com/betsdash/betsdash-go/pkg/sportsbook/api"

	"github.com/shopspring/decimal"
)

// Stats are the derived statistics for one bet list.
type Stats struct {
	TotalBets    int             `json:"total_bets"`
	WonBets      int             `json:"won_bets"`
	LostBets     int             `json:"lost_bets"`
	PendingBets  int             `json:"pending_bets"`
	TotalWagered decimal.Decimal `json:"total_wagered"`
	TotalWon     decimal.Decimal `json:"total_won"`
	// WinRate is won/(won+lost) as a percentage; 0 when nothing settled.
	WinRate float64 `json:"win_rate"`
}

// Aggregate reduces a bet list into stats in a single pass. An empty list
// yields all-zero stats; the win rate never divides by zero.
func Aggregate(bets []api.Bet) Stats {
	s := Stats{
		TotalWagered: decimal.Zero,
		TotalWon:     decimal.Zero,
	}

	for _, b := range bets {
		s.TotalBets++
		s.TotalWagered = s.TotalWagered.Add(b.BetAmount)

		switch b.Result {
		case api.BetWon:
			s.WonBets++
			s.TotalWon = s.TotalWon.Add(b.BetAmount.Mul(decimal.NewFromFloat(b.Odds.Float64())))
		case api.BetLost:
			s.LostBets++
		default:
			s.PendingBets++
		}
	}

	if settled := s.WonBets + s.LostBets; settled > 0 {
		s.WinRate = float64(s.WonBets) / float64(settled) * 100
	}

	return s
}

// Partition splits bets into an upcoming and a past bucket: a bet is
// upcoming iff its match date is after now. The partition is total and
// preserves the input order within each bucket.
func Partition(bets []api.Bet, now time.Time) (upcoming, past []api.Bet) {
	upcoming = make([]api.Bet, 0, len(bets))
	past = make([]api.Bet, 0, len(bets))

	for _, b := range bets {
		if b.MatchDate.After(now) {
			upcoming = append(upcoming, b)
		} else {
			past = append(past, b)
		}
	}
	return upcoming, past
}

// PendingSplit splits bets by settlement instead of match date: pending
// bets in one bucket, settled bets in the other. Same totality and
// stability guarantees as Partition.
func PendingSplit(bets []api.Bet) (pending, settled []api.Bet) {
	pending = make([]api.Bet, 0, len(bets))
	settled = make([]api.Bet, 0, len(bets))

	for _, b := range bets {
		if b.Result == api.BetPending || b.Result == "" {
			pending = append(pending, b)
		} else {
			settled = append(settled, b)
		}
	}
	return pending, settled
}

// SortByDate returns bets ordered by match date. Upcoming lists are shown
// ascending, past lists descending. The input slice is not modified and
// the sort is stable.
func SortByDate(bets []api.Bet, ascending bool) []api.Bet {
	sorted := make([]api.Bet, len(bets))
	copy(sorted, bets)

	sort.SliceStable(sorted, func(i, j int) bool {
		if ascending {
			return sorted[i].MatchDate.Before(sorted[j].MatchDate)
		}
		return sorted[i].MatchDate.After(sorted[j].MatchDate)
	})
	return sorted
}

// RankLeaderboard returns users ordered by balance, descending. The sort
// is stable: equal balances keep their order from the source list, since
// no secondary key is defined.
func RankLeaderboard(users []api.LeaderboardEntry) []api.LeaderboardEntry {
	ranked := make([]api.LeaderboardEntry, len(users))
	copy(ranked, users)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Balance.GreaterThan(ranked[j].Balance)
	})
	return ranked
}
