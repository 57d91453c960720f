package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/betsdash/betsdash-go/pkg/sportsbook/api"
	"github.com/betsdash/betsdash-go/pkg/sportsbook/identity"
)

// fakeProvider implements identity.Provider for testing.
type fakeProvider struct {
	identity  *identity.Identity
	signInErr error
	tokenErr  error
	signOuts  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		identity: &identity.Identity{
			ProviderUID: "uid-1",
			Email:       "alice@example.com",
			DisplayName: "Alice",
		},
	}
}

func (f *fakeProvider) SignIn(ctx context.Context) (*identity.Identity, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.identity, nil
}

func (f *fakeProvider) Token(ctx context.Context, id *identity.Identity) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "id-token-1", nil
}

func (f *fakeProvider) SignOut(ctx context.Context, id *identity.Identity) error {
	f.signOuts++
	return nil
}

// fakeBackend is an httptest backend recording requests per endpoint.
type fakeBackend struct {
	mu       sync.Mutex
	requests map[string]int

	loginUser       map[string]interface{}
	usernameError   string
	usernameSuccess map[string]interface{}

	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{
		requests: make(map[string]int),
		loginUser: map[string]interface{}{
			"user_id": "u1",
			"email":   "alice@example.com",
			"balance": 100,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		b.record("/api/login")
		json.NewEncoder(w).Encode(b.loginUser)
	})
	mux.HandleFunc("/api/set_username", func(w http.ResponseWriter, r *http.Request) {
		b.record("/api/set_username")
		if b.usernameError != "" {
			json.NewEncoder(w).Encode(map[string]string{"error": b.usernameError})
			return
		}
		resp := b.usernameSuccess
		if resp == nil {
			var req api.SetUsernameRequest
			json.NewDecoder(r.Body).Decode(&req)
			resp = map[string]interface{}{
				"user_id":  req.UserID,
				"username": req.Username,
				"balance":  100,
			}
		}
		json.NewEncoder(w).Encode(resp)
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) record(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests[path]++
}

func (b *fakeBackend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[path]
}

func newTestManager(t *testing.T) (*Manager, *fakeProvider, *fakeBackend) {
	backend := newFakeBackend(t)
	provider := newFakeProvider()
	client := api.NewClient(api.WithBaseURL(backend.server.URL))
	return New(provider, client), provider, backend
}

func TestSignInWithoutUsername(t *testing.T) {
	m, _, _ := newTestManager(t)

	var transitions []State
	m.OnTransition(func(from, to State, user *api.User) {
		transitions = append(transitions, to)
	})

	user, err := m.SignIn(context.Background())
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	if m.State() != StateNoUsername {
		t.Errorf("Expected %s, got %s", StateNoUsername, m.State())
	}
	if user.UserID != "u1" {
		t.Errorf("Wrong user: %+v", user)
	}
	if len(transitions) != 2 || transitions[0] != StateAuthenticating || transitions[1] != StateNoUsername {
		t.Errorf("Wrong transition sequence: %v", transitions)
	}
}

func TestSignInWithUsername(t *testing.T) {
	m, _, backend := newTestManager(t)
	backend.loginUser["username"] = "alice"

	if _, err := m.SignIn(context.Background()); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	if m.State() != StateActive {
		t.Errorf("Expected %s, got %s", StateActive, m.State())
	}
}

func TestSignInProviderFailure(t *testing.T) {
	m, provider, backend := newTestManager(t)
	provider.signInErr = errors.New("popup closed")

	_, err := m.SignIn(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if m.State() != StateUnauthenticated {
		t.Errorf("State should remain unauthenticated, got %s", m.State())
	}
	if backend.count("/api/login") != 0 {
		t.Errorf("Backend should not be called on provider failure")
	}
}

func TestSignInBackendFailure(t *testing.T) {
	backend := newFakeBackend(t)
	backend.server.Close() // simulate network failure

	provider := newFakeProvider()
	client := api.NewClient(api.WithBaseURL(backend.server.URL))
	m := New(provider, client)

	_, err := m.SignIn(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if m.State() != StateUnauthenticated {
		t.Errorf("State should remain unauthenticated, got %s", m.State())
	}
}

func TestSignInTwice(t *testing.T) {
	m, _, _ := newTestManager(t)

	if _, err := m.SignIn(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SignIn(context.Background()); !errors.Is(err, ErrAlreadySignedIn) {
		t.Errorf("Expected ErrAlreadySignedIn, got %v", err)
	}
}

func TestSetUsernameTooShort(t *testing.T) {
	m, _, backend := newTestManager(t)
	if _, err := m.SignIn(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := m.SetUsername(context.Background(), "ab")
	if !errors.Is(err, ErrUsernameTooShort) {
		t.Fatalf("Expected ErrUsernameTooShort, got %v", err)
	}

	// Rejected locally: no backend call, state unchanged
	if backend.count("/api/set_username") != 0 {
		t.Errorf("Short username must be rejected without a network call")
	}
	if m.State() != StateNoUsername {
		t.Errorf("State should remain %s, got %s", StateNoUsername, m.State())
	}

	// Whitespace doesn't count toward the minimum
	if err := m.SetUsername(context.Background(), "  a  "); !errors.Is(err, ErrUsernameTooShort) {
		t.Errorf("Expected ErrUsernameTooShort for padded name, got %v", err)
	}
	if backend.count("/api/set_username") != 0 {
		t.Errorf("Padded short username must be rejected without a network call")
	}
}

func TestSetUsernameSuccess(t *testing.T) {
	m, _, backend := newTestManager(t)
	if _, err := m.SignIn(context.Background()); err != nil {
		t.Fatal(err)
	}

	var active bool
	m.OnTransition(func(from, to State, user *api.User) {
		if from == StateNoUsername && to == StateActive {
			active = true
		}
	})

	if err := m.SetUsername(context.Background(), "abc"); err != nil {
		t.Fatalf("SetUsername failed: %v", err)
	}

	if m.State() != StateActive {
		t.Errorf("Expected %s, got %s", StateActive, m.State())
	}
	if !active {
		t.Error("Expected a no-username -> active transition")
	}
	if got := m.User().Username; got != "abc" {
		t.Errorf("Expected username abc, got %s", got)
	}
	if backend.count("/api/set_username") != 1 {
		t.Errorf("Expected 1 backend call, got %d", backend.count("/api/set_username"))
	}
}

func TestSetUsernameBackendRejection(t *testing.T) {
	m, _, backend := newTestManager(t)
	backend.usernameError = "username already taken"
	if _, err := m.SignIn(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := m.SetUsername(context.Background(), "alice")
	if err == nil {
		t.Fatal("Expected backend rejection")
	}
	if !api.IsBackendRejection(err) {
		t.Errorf("Expected backend-provided reason, got %v", err)
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "username already taken" {
		t.Errorf("Backend reason not surfaced: %q", apiErr.Message)
	}
	if m.State() != StateNoUsername {
		t.Errorf("State should remain %s after rejection, got %s", StateNoUsername, m.State())
	}
}

func TestSetUsernameWrongState(t *testing.T) {
	m, _, _ := newTestManager(t)

	if err := m.SetUsername(context.Background(), "abc"); !errors.Is(err, ErrUsernameRequired) {
		t.Errorf("Expected ErrUsernameRequired while unauthenticated, got %v", err)
	}
}

func TestRefreshUpdatesBalance(t *testing.T) {
	m, _, backend := newTestManager(t)
	if _, err := m.SignIn(context.Background()); err != nil {
		t.Fatal(err)
	}

	backend.loginUser["balance"] = 250

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	user := m.User()
	if user.Balance.String() != "250" {
		t.Errorf("Expected balance 250, got %s", user.Balance)
	}
	// Authentication state never changes on refresh
	if m.State() != StateNoUsername {
		t.Errorf("Refresh changed state to %s", m.State())
	}
}

func TestRefreshNotSignedIn(t *testing.T) {
	m, _, _ := newTestManager(t)

	if err := m.Refresh(context.Background()); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("Expected ErrNotSignedIn, got %v", err)
	}
}

func TestSignOut(t *testing.T) {
	m, provider, _ := newTestManager(t)
	if _, err := m.SignIn(context.Background()); err != nil {
		t.Fatal(err)
	}

	var landed bool
	m.OnTransition(func(from, to State, user *api.User) {
		if to == StateUnauthenticated {
			landed = true
		}
	})

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	if m.State() != StateUnauthenticated {
		t.Errorf("Expected %s, got %s", StateUnauthenticated, m.State())
	}
	if m.User() != nil {
		t.Error("User should be cleared on sign-out")
	}
	if provider.signOuts != 1 {
		t.Errorf("Expected 1 provider sign-out, got %d", provider.signOuts)
	}
	if !landed {
		t.Error("Expected a transition to unauthenticated")
	}

	// Stale refresh after sign-out is discarded, not an error that
	// resurrects the session
	if err := m.Refresh(context.Background()); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("Expected ErrNotSignedIn after sign-out, got %v", err)
	}
}

func TestSignInAgainAfterSignOut(t *testing.T) {
	m, _, _ := newTestManager(t)

	if _, err := m.SignIn(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.SignOut(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SignIn(context.Background()); err != nil {
		t.Fatalf("Second SignIn failed: %v", err)
	}
	if m.State() != StateNoUsername {
		t.Errorf("Expected %s, got %s", StateNoUsername, m.State())
	}
}
