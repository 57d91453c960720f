// betstats is a CLI tool for offline bet reporting. It reads a bets JSON
// export (a file or the backend's GET /bets/{user_id} endpoint) and
// prints aggregate statistics plus the upcoming/past partition.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/betsdash/betsdash-go/pkg/sportsbook/api"
	"github.com/betsdash/betsdash-go/pkg/stats"
)

var (
	dataFile   = flag.String("data", "", "Path to a bets JSON export")
	backendURL = flag.String("backend", os.Getenv("BETS_BACKEND_URL"), "Betting backend base URL (used with -user)")
	userID     = flag.String("user", "", "Fetch bets for this user id from the backend")
	asOf       = flag.String("as-of", "", "Partition reference time (RFC3339, default now)")
	jsonOut    = flag.Bool("json", false, "Emit the report as JSON")
)

func main() {
	flag.Parse()

	bets, err := loadBets()
	if err != nil {
		log.Fatalf("Failed to load bets: %v", err)
	}

	now := time.Now()
	if *asOf != "" {
		now, err = time.Parse(time.RFC3339, *asOf)
		if err != nil {
			log.Fatalf("Bad -as-of time: %v", err)
		}
	}

	aggregate := stats.Aggregate(bets)
	upcoming, past := stats.Partition(bets, now)
	upcoming = stats.SortByDate(upcoming, true)
	past = stats.SortByDate(past, false)

	if *jsonOut {
		report := map[string]interface{}{
			"stats":    aggregate,
			"upcoming": upcoming,
			"past":     past,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
		return
	}

	printReport(aggregate, upcoming, past)
}

func loadBets() ([]api.Bet, error) {
	switch {
	case *dataFile != "":
		data, err := os.ReadFile(*dataFile)
		if err != nil {
			return nil, err
		}

		// Accept both a bare array and the backend's {"bets": [...]} shape.
		var wrapped struct {
			Bets []api.Bet `json:"bets"`
		}
		if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Bets != nil {
			return wrapped.Bets, nil
		}
		var bets []api.Bet
		if err := json.Unmarshal(data, &bets); err != nil {
			return nil, fmt.Errorf("parse %s: %w", *dataFile, err)
		}
		return bets, nil

	case *userID != "":
		opts := []api.ClientOption{}
		if *backendURL != "" {
			opts = append(opts, api.WithBaseURL(*backendURL))
		}
		client := api.NewClient(opts...)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return client.ListUserBets(ctx, *userID)

	default:
		return nil, fmt.Errorf("either -data or -user is required")
	}
}

func printReport(s stats.Stats, upcoming, past []api.Bet) {
	fmt.Println("=== Bet Report ===")
	fmt.Printf("Total bets:    %d (won %d / lost %d / pending %d)\n",
		s.TotalBets, s.WonBets, s.LostBets, s.PendingBets)
	fmt.Printf("Total wagered: $%s\n", s.TotalWagered)
	fmt.Printf("Total won:     $%s\n", s.TotalWon)
	fmt.Printf("Win rate:      %.1f%%\n", s.WinRate)

	if len(upcoming) > 0 {
		fmt.Printf("\nUpcoming (%d):\n", len(upcoming))
		for _, b := range upcoming {
			printBet(b)
		}
	}
	if len(past) > 0 {
		fmt.Printf("\nPast (%d):\n", len(past))
		for _, b := range past {
			printBet(b)
		}
	}
}

func printBet(b api.Bet) {
	result := b.Result
	if result == "" {
		result = api.BetPending
	}
	fmt.Printf("  %s  %s vs %s  %s  $%s @ %.2f  [%s]\n",
		b.MatchDate.Format("2006-01-02 15:04"),
		b.Team1, b.Team2, b.BetType, b.BetAmount, b.Odds.Float64(), result)
}
