// Package identity wraps the external identity provider. It produces a
// verified identity assertion (uid, email, display name, short-lived ID
// token) and keeps the token fresh for the lifetime of the provider
// session. Token signatures are not verified here; the backend is the
// verifying party.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// ErrNoSession is returned when a token is requested without a live
// provider session.
var ErrNoSession = errors.New("identity: no active session")

// Identity is a verified identity assertion. Immutable per sign-in apart
// from the cached token material, which the provider refreshes in place.
type Identity struct {
	ProviderUID string
	Email       string
	DisplayName string
	PhotoURL    string

	mu           sync.Mutex
	idToken      string
	refreshToken string
	expiresAt    time.Time
}

// Provider is the identity provider surface the session layer depends on.
type Provider interface {
	// SignIn establishes a provider session and returns the assertion.
	SignIn(ctx context.Context) (*Identity, error)
	// Token returns a currently valid ID token for the identity,
	// re-exchanging the refresh token if the cached one is stale.
	Token(ctx context.Context, id *Identity) (string, error)
	// SignOut ends the provider session.
	SignOut(ctx context.Context, id *Identity) error
}

const (
	// DefaultTokenURL is the secure-token exchange endpoint.
	DefaultTokenURL = "https://securetoken.googleapis.com"
	// DefaultAccountsURL is the account lookup endpoint.
	DefaultAccountsURL = "https://identitytoolkit.googleapis.com"

	defaultRateLimit = 5.0
	defaultBurst     = 2

	// tokens are refreshed this long before their exp claim
	expirySlack = time.Minute
)

// Client is an identity-toolkit REST client. It holds the long-lived
// refresh token obtained out of band (device sign-in) and mints
// short-lived ID tokens from it.
type Client struct {
	apiKey       string
	refreshToken string
	tokenURL     string
	accountsURL  string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithTokenURL sets a custom token exchange base URL.
func WithTokenURL(url string) ClientOption {
	return func(c *Client) {
		c.tokenURL = url
	}
}

// WithAccountsURL sets a custom account lookup base URL.
func WithAccountsURL(url string) ClientOption {
	return func(c *Client) {
		c.accountsURL = url
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

// NewClient creates an identity provider client.
func NewClient(apiKey, refreshToken string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:       apiKey,
		refreshToken: refreshToken,
		tokenURL:     DefaultTokenURL,
		accountsURL:  DefaultAccountsURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type tokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoUrl"`
	} `json:"users"`
}

// SignIn exchanges the refresh token for an ID token and looks up the
// account profile. May fail on provider rejection or network failure.
func (c *Client) SignIn(ctx context.Context) (*Identity, error) {
	tok, err := c.exchange(ctx, c.refreshToken)
	if err != nil {
		return nil, err
	}

	id := &Identity{
		ProviderUID:  tok.UserID,
		idToken:      tok.IDToken,
		refreshToken: tok.RefreshToken,
		expiresAt:    tokenExpiry(tok),
	}

	lookup, err := c.lookup(ctx, tok.IDToken)
	if err != nil {
		return nil, err
	}
	if len(lookup.Users) == 0 {
		return nil, fmt.Errorf("identity: lookup returned no account")
	}

	acct := lookup.Users[0]
	if id.ProviderUID == "" {
		id.ProviderUID = acct.LocalID
	}
	id.Email = acct.Email
	id.DisplayName = acct.DisplayName
	id.PhotoURL = acct.PhotoURL
	if id.DisplayName == "" {
		id.DisplayName = acct.Email
	}

	return id, nil
}

// Token returns a valid ID token for the identity, refreshing when the
// cached token is within the expiry slack.
func (c *Client) Token(ctx context.Context, id *Identity) (string, error) {
	if id == nil {
		return "", ErrNoSession
	}

	id.mu.Lock()
	defer id.mu.Unlock()

	if id.refreshToken == "" {
		return "", ErrNoSession
	}
	if id.idToken != "" && time.Until(id.expiresAt) > expirySlack {
		return id.idToken, nil
	}

	tok, err := c.exchange(ctx, id.refreshToken)
	if err != nil {
		return "", err
	}

	id.idToken = tok.IDToken
	if tok.RefreshToken != "" {
		id.refreshToken = tok.RefreshToken
	}
	id.expiresAt = tokenExpiry(tok)
	return id.idToken, nil
}

// SignOut invalidates the cached session. The provider session is
// client-held token material, so discarding it ends the session.
func (c *Client) SignOut(ctx context.Context, id *Identity) error {
	if id == nil {
		return nil
	}
	id.mu.Lock()
	defer id.mu.Unlock()
	id.idToken = ""
	id.refreshToken = ""
	id.expiresAt = time.Time{}
	return nil
}

func (c *Client) exchange(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	if refreshToken == "" {
		return nil, ErrNoSession
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	endpoint := c.tokenURL + "/v1/token?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token exchange: provider rejected: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("token exchange: decode: %w", err)
	}
	if tok.IDToken == "" {
		return nil, fmt.Errorf("token exchange: response missing id_token")
	}
	return &tok, nil
}

func (c *Client) lookup(ctx context.Context, idToken string) (*lookupResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, _ := json.Marshal(map[string]string{"idToken": idToken})
	endpoint := c.accountsURL + "/v1/accounts:lookup?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("account lookup: provider rejected: %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var lookup lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return nil, fmt.Errorf("account lookup: decode: %w", err)
	}
	return &lookup, nil
}

// tokenExpiry derives the token lifetime, preferring the JWT exp claim
// over the provider's expires_in hint.
func tokenExpiry(tok *tokenResponse) time.Time {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tok.IDToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}

	if secs, err := strconv.Atoi(tok.ExpiresIn); err == nil && secs > 0 {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}
	return time.Now().Add(55 * time.Minute)
}
