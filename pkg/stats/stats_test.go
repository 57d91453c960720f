package stats

import (
	"testing"
	"time"

	"github.com/betsdash/betsdash-go/pkg/sportsbook/api"

	"github.com/shopspring/decimal"
)

func bet(id string, result api.BetResult, amount float64, odds float64, matchDate time.Time) api.Bet {
	return api.Bet{
		BetID:     id,
		MatchID:   "m-" + id,
		BetAmount: decimal.NewFromFloat(amount),
		Odds:      api.JSONFloat(odds),
		Result:    result,
		MatchDate: matchDate,
	}
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(nil)

	if s.TotalBets != 0 || s.WonBets != 0 || s.LostBets != 0 || s.PendingBets != 0 {
		t.Errorf("Expected zero counts, got %+v", s)
	}
	if !s.TotalWagered.IsZero() || !s.TotalWon.IsZero() {
		t.Errorf("Expected zero sums, got wagered=%s won=%s", s.TotalWagered, s.TotalWon)
	}
	if s.WinRate != 0 {
		t.Errorf("Expected win rate 0, got %f", s.WinRate)
	}
}

func TestAggregateScenario(t *testing.T) {
	now := time.Now()
	bets := []api.Bet{
		bet("1", api.BetWon, 10, 2.0, now),
		bet("2", api.BetLost, 5, 1.5, now),
		bet("3", api.BetPending, 20, 3.0, now),
	}

	s := Aggregate(bets)

	if s.TotalBets != 3 || s.WonBets != 1 || s.LostBets != 1 || s.PendingBets != 1 {
		t.Errorf("Wrong counts: %+v", s)
	}
	if !s.TotalWagered.Equal(decimal.NewFromInt(35)) {
		t.Errorf("Expected total wagered 35, got %s", s.TotalWagered)
	}
	if !s.TotalWon.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected total won 20, got %s", s.TotalWon)
	}
	if s.WinRate != 50 {
		t.Errorf("Expected win rate 50, got %f", s.WinRate)
	}
}

func TestAggregateAllPendingNoDivisionByZero(t *testing.T) {
	now := time.Now()
	bets := []api.Bet{
		bet("1", api.BetPending, 10, 2.0, now),
		bet("2", api.BetPending, 20, 3.0, now),
	}

	s := Aggregate(bets)

	if s.WinRate != 0 {
		t.Errorf("Expected win rate 0 with no settled bets, got %f", s.WinRate)
	}
	if s.TotalBets != 2 || s.PendingBets != 2 {
		t.Errorf("Wrong counts: %+v", s)
	}
}

func TestAggregateCountInvariant(t *testing.T) {
	now := time.Now()
	cases := [][]api.Bet{
		nil,
		{bet("1", api.BetWon, 1, 2, now)},
		{bet("1", api.BetWon, 1, 2, now), bet("2", api.BetLost, 2, 2, now)},
		{
			bet("1", api.BetWon, 1, 2, now),
			bet("2", api.BetLost, 2, 2, now),
			bet("3", api.BetPending, 3, 2, now),
			bet("4", "", 4, 2, now), // unknown result counts as pending
		},
	}

	for i, bets := range cases {
		s := Aggregate(bets)
		if s.WonBets+s.LostBets+s.PendingBets != s.TotalBets {
			t.Errorf("Case %d: won+lost+pending=%d, total=%d",
				i, s.WonBets+s.LostBets+s.PendingBets, s.TotalBets)
		}
	}
}

func TestAggregateWinRateAllWon(t *testing.T) {
	now := time.Now()
	bets := []api.Bet{
		bet("1", api.BetWon, 10, 2.0, now),
		bet("2", api.BetPending, 20, 3.0, now),
	}

	s := Aggregate(bets)

	if s.WinRate != 100 {
		t.Errorf("Expected win rate 100, got %f", s.WinRate)
	}
}

func TestPartition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bets := []api.Bet{
		bet("1", api.BetPending, 10, 2, now.Add(24*time.Hour)),
		bet("2", api.BetWon, 10, 2, now.Add(-24*time.Hour)),
		bet("3", api.BetPending, 10, 2, now.Add(48*time.Hour)),
		bet("4", api.BetLost, 10, 2, now.Add(-48*time.Hour)),
		bet("5", api.BetPending, 10, 2, now), // exactly now is past
	}

	upcoming, past := Partition(bets, now)

	if len(upcoming)+len(past) != len(bets) {
		t.Fatalf("Partition not total: %d + %d != %d", len(upcoming), len(past), len(bets))
	}
	if len(upcoming) != 2 {
		t.Fatalf("Expected 2 upcoming, got %d", len(upcoming))
	}
	// Relative input order preserved within each bucket
	if upcoming[0].BetID != "1" || upcoming[1].BetID != "3" {
		t.Errorf("Upcoming order wrong: %s, %s", upcoming[0].BetID, upcoming[1].BetID)
	}
	if past[0].BetID != "2" || past[1].BetID != "4" || past[2].BetID != "5" {
		t.Errorf("Past order wrong: %s, %s, %s", past[0].BetID, past[1].BetID, past[2].BetID)
	}
}

func TestPendingSplit(t *testing.T) {
	now := time.Now()
	bets := []api.Bet{
		bet("1", api.BetWon, 10, 2, now),
		bet("2", api.BetPending, 10, 2, now),
		bet("3", api.BetLost, 10, 2, now),
	}

	pending, settled := PendingSplit(bets)

	if len(pending) != 1 || pending[0].BetID != "2" {
		t.Errorf("Wrong pending bucket: %v", pending)
	}
	if len(settled) != 2 || settled[0].BetID != "1" || settled[1].BetID != "3" {
		t.Errorf("Wrong settled bucket: %v", settled)
	}
}

func TestSortByDate(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	bets := []api.Bet{
		bet("b", api.BetPending, 10, 2, base.Add(48*time.Hour)),
		bet("a", api.BetPending, 10, 2, base.Add(24*time.Hour)),
		bet("c", api.BetPending, 10, 2, base.Add(72*time.Hour)),
	}

	asc := SortByDate(bets, true)
	if asc[0].BetID != "a" || asc[1].BetID != "b" || asc[2].BetID != "c" {
		t.Errorf("Ascending order wrong: %s %s %s", asc[0].BetID, asc[1].BetID, asc[2].BetID)
	}

	desc := SortByDate(bets, false)
	if desc[0].BetID != "c" || desc[1].BetID != "b" || desc[2].BetID != "a" {
		t.Errorf("Descending order wrong: %s %s %s", desc[0].BetID, desc[1].BetID, desc[2].BetID)
	}

	// Input untouched
	if bets[0].BetID != "b" {
		t.Errorf("Input slice was modified")
	}
}

func TestRankLeaderboard(t *testing.T) {
	users := []api.LeaderboardEntry{
		{UserID: "u1", Username: "alice", Balance: decimal.NewFromInt(50)},
		{UserID: "u2", Username: "bob", Balance: decimal.NewFromInt(200)},
		{UserID: "u3", Username: "carol", Balance: decimal.NewFromInt(200)},
		{UserID: "u4", Username: "dan", Balance: decimal.NewFromInt(10)},
	}

	ranked := RankLeaderboard(users)

	want := []string{"u2", "u3", "u1", "u4"}
	for i, id := range want {
		if ranked[i].UserID != id {
			t.Errorf("Rank %d: expected %s, got %s", i+1, id, ranked[i].UserID)
		}
	}

	// u2 before u3: equal balances keep source order
	if ranked[0].UserID != "u2" || ranked[1].UserID != "u3" {
		t.Errorf("Tie not stable: %s, %s", ranked[0].UserID, ranked[1].UserID)
	}

	// Input untouched
	if users[0].UserID != "u1" {
		t.Errorf("Input slice was modified")
	}
}
