// betsdashd is the bets dashboard client daemon. It holds the
// authenticated session against the identity provider and the betting
// backend, exposes a local status/bet API, and streams session and bet
// events over WebSocket.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betsdash/betsdash-go/pkg/betmetrics"
	"github.com/betsdash/betsdash-go/pkg/session"
	"github.com/betsdash/betsdash-go/pkg/sportsbook/api"
	"github.com/betsdash/betsdash-go/pkg/sportsbook/identity"
	"github.com/betsdash/betsdash-go/pkg/stats"
	"github.com/betsdash/betsdash-go/pkg/streaming"
	"github.com/betsdash/betsdash-go/pkg/wager"

	"github.com/shopspring/decimal"
)

var (
	// Flags
	backendURL      = flag.String("backend", envOr("BETS_BACKEND_URL", api.DefaultBaseURL), "Betting backend base URL")
	httpAddr        = flag.String("http", ":8080", "HTTP server address for status API")
	refreshInterval = flag.Duration("refresh", time.Minute, "Session refresh interval")
	autoSignIn      = flag.Bool("sign-in", true, "Sign in on startup")
	verbose         = flag.Bool("verbose", false, "Verbose logging")
)

var sessionStates = []string{
	string(session.StateUnauthenticated),
	string(session.StateAuthenticating),
	string(session.StateNoUsername),
	string(session.StateActive),
}

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("Starting bets dashboard daemon")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d, err := newDaemon()
	if err != nil {
		log.Fatalf("Failed to initialize daemon: %v", err)
	}

	d.sess.OnTransition(func(from, to session.State, user *api.User) {
		username := ""
		if user != nil {
			username = user.Username
		}
		if *verbose || to != from {
			log.Printf("[SESSION] %s -> %s", from, to)
		}
		d.metrics.SetSessionState(string(to), sessionStates)
		d.hub.BroadcastSession(string(from), string(to), username)
	})

	go d.hub.Run()
	go d.startHTTP()

	if *autoSignIn {
		if _, err := d.sess.SignIn(ctx); err != nil {
			// Not fatal; sign-in stays user-retriable via POST /signin.
			log.Printf("[AUTH] Sign-in failed: %v", err)
			d.metrics.RecordSignIn("error")
		} else {
			d.metrics.RecordSignIn("ok")
			d.publishBalance()
		}
	}

	go d.refreshLoop(ctx)

	log.Printf("Daemon running (backend=%s, http=%s)", *backendURL, *httpAddr)
	log.Printf("WebSocket streaming available at ws://%s/ws", *httpAddr)

	<-sigCh
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := d.sess.SignOut(shutdownCtx); err != nil && !errors.Is(err, session.ErrNotSignedIn) {
		log.Printf("[AUTH] Sign-out failed: %v", err)
	}
	log.Println("Stopped")
}

// daemon wires the session, clients, hub and metrics together.
type daemon struct {
	client  *api.Client
	sess    *session.Manager
	hub     *streaming.Hub
	metrics *betmetrics.Metrics
}

func newDaemon() (*daemon, error) {
	apiKey := os.Getenv("IDP_API_KEY")
	refreshToken := os.Getenv("IDP_REFRESH_TOKEN")
	if apiKey == "" || refreshToken == "" {
		return nil, fmt.Errorf("IDP_API_KEY and IDP_REFRESH_TOKEN must be set")
	}

	provider := identity.NewClient(apiKey, refreshToken)
	client := api.NewClient(api.WithBaseURL(*backendURL))

	return &daemon{
		client:  client,
		sess:    session.New(provider, client),
		hub:     streaming.NewHub(),
		metrics: betmetrics.New(),
	}, nil
}

// refreshLoop periodically re-fetches profile and balance; settlement of
// a bet changes the balance server-side.
func (d *daemon) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(*refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.sess.Refresh(ctx); err != nil {
				if !errors.Is(err, session.ErrNotSignedIn) {
					log.Printf("[REFRESH] %v", err)
					d.metrics.RefreshTotal.WithLabelValues("error").Inc()
				}
				continue
			}
			d.metrics.RefreshTotal.WithLabelValues("ok").Inc()
			d.publishBalance()
		}
	}
}

func (d *daemon) observeAPI(endpoint string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	d.metrics.RecordAPIRequest(endpoint, outcome, time.Since(start))
}

func (d *daemon) publishBalance() {
	user := d.sess.User()
	if user == nil {
		return
	}
	d.metrics.SetBalance(user.Balance)
	d.hub.BroadcastBalance(user.UserID, user.Balance.String())
}

// --- HTTP API ---

func (d *daemon) startHTTP() {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", d.handleStatus)
	mux.HandleFunc("/signin", d.handleSignIn)
	mux.HandleFunc("/signout", d.handleSignOut)
	mux.HandleFunc("/username", d.handleUsername)
	mux.HandleFunc("/bet", d.handleBet)
	mux.HandleFunc("/stats", d.handleStats)
	mux.HandleFunc("/leaderboard", d.handleLeaderboard)
	mux.Handle("/metrics", d.metrics.Handler())
	mux.HandleFunc("/ws", d.hub.ServeWS)

	if err := http.ListenAndServe(*httpAddr, mux); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}

func (d *daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"session_id": d.sess.ID(),
		"state":      d.sess.State(),
		"user":       d.sess.User(),
		"ws_clients": d.hub.ClientCount(),
	})
}

func (d *daemon) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := d.sess.SignIn(r.Context())
	if err != nil {
		d.metrics.RecordSignIn("error")
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	d.metrics.RecordSignIn("ok")
	d.publishBalance()
	writeJSON(w, user)
}

func (d *daemon) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := d.sess.SignOut(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	d.metrics.SignOutsTotal.Inc()
	writeJSON(w, map[string]string{"state": string(d.sess.State())})
}

func (d *daemon) handleUsername(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad json: %w", err))
		return
	}

	if err := d.sess.SetUsername(r.Context(), req.Username); err != nil {
		status := http.StatusConflict
		if errors.Is(err, session.ErrUsernameTooShort) || errors.Is(err, session.ErrUsernameRequired) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, d.sess.User())
}

// betRequest selects exactly one bet kind for a match.
type betRequest struct {
	MatchID string `json:"match_id"`
	Amount  string `json:"amount"`

	Outcome string `json:"outcome,omitempty"` // team_1 | draw | team_2

	PlayerID   int    `json:"player_id,omitempty"`
	PlayerName string `json:"player_name,omitempty"`

	CardsLine float64 `json:"cards_line,omitempty"`
	Direction string  `json:"direction,omitempty"` // over | under
}

func (d *daemon) handleBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req betRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad json: %w", err))
		return
	}

	user := d.sess.User()
	if user == nil {
		writeError(w, http.StatusUnauthorized, session.ErrNotSignedIn)
		return
	}

	start := time.Now()
	match, err := d.client.GetMatch(r.Context(), req.MatchID)
	d.observeAPI("get_match", start, err)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}

	composer := wager.NewComposer(match)
	switch {
	case req.Outcome != "":
		err = composer.SelectOutcome(wager.Outcome(req.Outcome))
	case req.PlayerID != 0:
		err = composer.SelectPlayer(req.PlayerID)
	case req.PlayerName != "":
		err = composer.SelectPlayerByName(req.PlayerName)
	case req.Direction != "":
		err = composer.SelectCards(req.CardsLine, wager.Direction(req.Direction))
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, wager.ErrInvalidAmount)
		return
	}
	composer.SetAmount(amount)

	candidate := composer.Candidate()
	if err := wager.Validate(candidate, user); err != nil {
		d.metrics.ValidationFailsTotal.WithLabelValues(validationReason(err)).Inc()
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	kind := string(candidate.Selection.Kind())
	start = time.Now()
	resp, err := d.client.PlaceBet(r.Context(), candidate.Request(user.UserID))
	d.observeAPI("place_bet", start, err)
	if err != nil {
		d.metrics.RecordBet(kind, "error", amount)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	d.metrics.RecordBet(kind, "ok", amount)

	log.Printf("[BET] %s on %s vs %s: %s @ %.2f (bet_id=%s)",
		candidate.BetType(), match.Team1, match.Team2, amount, candidate.Odds(), resp.BetID)
	d.hub.BroadcastBetPlaced(map[string]interface{}{
		"bet_id":   resp.BetID,
		"match_id": match.ID,
		"bet_type": candidate.BetType(),
		"amount":   amount.String(),
		"odds":     candidate.Odds(),
	})

	// Balance changed server-side; pull a fresh snapshot.
	if err := d.sess.Refresh(r.Context()); err == nil {
		d.publishBalance()
	}

	writeJSON(w, resp)
}

func (d *daemon) handleStats(w http.ResponseWriter, r *http.Request) {
	user := d.sess.User()
	if user == nil {
		writeError(w, http.StatusUnauthorized, session.ErrNotSignedIn)
		return
	}

	start := time.Now()
	bets, err := d.client.ListUserBets(r.Context(), user.UserID)
	d.observeAPI("list_user_bets", start, err)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	upcoming, past := stats.Partition(bets, time.Now())
	writeJSON(w, map[string]interface{}{
		"stats":    stats.Aggregate(bets),
		"upcoming": stats.SortByDate(upcoming, true),
		"past":     stats.SortByDate(past, false),
	})
}

func (d *daemon) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	users, err := d.client.Leaderboard(r.Context())
	d.observeAPI("leaderboard", start, err)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	ranked := stats.RankLeaderboard(users)
	d.hub.BroadcastLeaderboard(ranked)
	writeJSON(w, map[string]interface{}{"users": ranked})
}

func validationReason(err error) string {
	var insufficient *wager.InsufficientBalanceError
	switch {
	case errors.Is(err, wager.ErrNoSelection):
		return "no_selection"
	case errors.Is(err, wager.ErrInvalidAmount):
		return "invalid_amount"
	case errors.As(err, &insufficient):
		return "insufficient_balance"
	default:
		return "other"
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
