package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the backend used during local development.
	DefaultBaseURL = "http://127.0.0.1:5000"

	defaultRateLimit = 10.0 // requests per second
	defaultBurst     = 5
)

// Client is a betting backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new backend API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Login upserts the user record for a verified identity assertion and
// returns the current profile plus balance.
func (c *Client) Login(ctx context.Context, req *LoginRequest) (*User, error) {
	var env userEnvelope
	if err := c.post(ctx, "/api/login", req, &env); err != nil {
		return nil, err
	}
	if env.Error != "" {
		return nil, &APIError{Endpoint: "/api/login", StatusCode: http.StatusOK, Message: env.Error}
	}
	if env.UserID == "" {
		return nil, fmt.Errorf("login: response missing user_id")
	}
	user := env.User
	return &user, nil
}

// SetUsername assigns a username to a freshly created account. A backend
// rejection (duplicate name etc.) is returned as an *APIError carrying
// the backend's reason.
func (c *Client) SetUsername(ctx context.Context, userID, username string) (*User, error) {
	req := &SetUsernameRequest{UserID: userID, Username: username}

	var env userEnvelope
	if err := c.post(ctx, "/api/set_username", req, &env); err != nil {
		return nil, err
	}
	if env.Error != "" {
		return nil, &APIError{Endpoint: "/api/set_username", StatusCode: http.StatusOK, Message: env.Error}
	}
	user := env.User
	return &user, nil
}

// ListMatches fetches all matches.
func (c *Client) ListMatches(ctx context.Context) ([]Match, error) {
	var resp matchesResponse
	if err := c.get(ctx, "/matches", &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// ListUpcomingMatches fetches matches that have not started yet.
func (c *Client) ListUpcomingMatches(ctx context.Context) ([]Match, error) {
	var resp matchesResponse
	if err := c.get(ctx, "/upcoming_matches", &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// GetMatch fetches a single match by ID. Returns ErrNotFound when the
// match does not exist.
func (c *Client) GetMatch(ctx context.Context, id string) (*Match, error) {
	var resp matchResponse
	if err := c.get(ctx, "/matches/"+id, &resp); err != nil {
		return nil, err
	}
	if resp.Match == nil {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	return resp.Match, nil
}

// PlaceBet submits a validated wager candidate. The response must carry a
// bet_id; anything else is treated as a rejection.
func (c *Client) PlaceBet(ctx context.Context, req *PlaceBetRequest) (*PlaceBetResponse, error) {
	var resp struct {
		PlaceBetResponse
		Error string `json:"error"`
	}
	if err := c.post(ctx, "/bets", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &APIError{Endpoint: "/bets", StatusCode: http.StatusOK, Message: resp.Error}
	}
	if resp.BetID == "" {
		return nil, fmt.Errorf("place bet: response missing bet_id")
	}
	return &resp.PlaceBetResponse, nil
}

// ListUserBets fetches all bets placed by a user.
func (c *Client) ListUserBets(ctx context.Context, userID string) ([]Bet, error) {
	var resp betsResponse
	if err := c.get(ctx, "/bets/"+userID, &resp); err != nil {
		return nil, err
	}
	return resp.Bets, nil
}

// Leaderboard fetches all users for ranking. Order is whatever the
// backend returns; ranking happens client-side.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var resp leaderboardResponse
	if err := c.get(ctx, "/leaderboard", &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// GetUserProfile fetches a user's public profile with their bet history.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*Profile, error) {
	var resp Profile
	if err := c.get(ctx, "/users/"+userID, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return &resp, nil
}

// get performs a GET request with rate limiting.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// post performs a POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := ""
		var payload errorResponse
		if json.Unmarshal(raw, &payload) == nil {
			msg = payload.Error
		}
		if msg == "" {
			msg = string(bytes.TrimSpace(raw))
		}
		return &APIError{Endpoint: path, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
