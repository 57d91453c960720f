// Package session owns the authenticated user record and the
// authentication state machine. It is the only component that mutates
// session state; everything else observes it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/betsdash/betsdash-go/pkg/sportsbook/api"
	"github.com/betsdash/betsdash-go/pkg/sportsbook/identity"

	"github.com/google/uuid"
)

// State is the authentication state of the session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateNoUsername      State = "authenticated_no_username"
	StateActive          State = "authenticated_active"
)

// MinUsernameLen is the shortest username accepted locally. Shorter names
// are rejected before any backend call.
const MinUsernameLen = 3

var (
	// ErrAlreadySignedIn is returned by SignIn on a live session.
	ErrAlreadySignedIn = errors.New("session: already signed in")
	// ErrNotSignedIn is returned by operations requiring authentication.
	ErrNotSignedIn = errors.New("session: not signed in")
	// ErrUsernameRequired is returned by SetUsername outside the
	// username-capture state.
	ErrUsernameRequired = errors.New("session: no username assignment pending")
	// ErrUsernameTooShort is the local username rejection.
	ErrUsernameTooShort = fmt.Errorf("session: username must be at least %d characters", MinUsernameLen)
)

// AuthError is an identity provider or login failure. The session remains
// unauthenticated when it is returned from SignIn.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransitionFunc observes state transitions. Observers re-route on every
// transition: unauthenticated -> landing, no-username -> username capture,
// active -> application. The callback runs outside the session lock.
type TransitionFunc func(from, to State, user *api.User)

// Manager is the session service object. It is constructed once at
// application start and injected into consumers; there is no package
// global.
type Manager struct {
	id       string
	provider identity.Provider
	client   *api.Client

	mu       sync.RWMutex
	state    State
	user     *api.User
	identity *identity.Identity
	// generation discards snapshots that began before the latest
	// sign-in/sign-out, so a stale refresh can never resurrect a session.
	generation uint64

	cbMu         sync.Mutex
	onTransition TransitionFunc
}

// New creates a session manager over an identity provider and backend
// client. The session starts unauthenticated.
func New(provider identity.Provider, client *api.Client) *Manager {
	return &Manager{
		id:       uuid.NewString(),
		provider: provider,
		client:   client,
		state:    StateUnauthenticated,
	}
}

// ID returns the session instance id.
func (m *Manager) ID() string {
	return m.id
}

// OnTransition sets the transition observer.
func (m *Manager) OnTransition(fn TransitionFunc) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onTransition = fn
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns a copy of the authenticated user, or nil.
func (m *Manager) User() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Identity returns the current identity assertion, or nil.
func (m *Manager) Identity() *identity.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

// SignIn drives the full login flow: provider sign-in, then the backend
// user upsert. On any failure the state remains unauthenticated and an
// *AuthError is returned.
func (m *Manager) SignIn(ctx context.Context) (*api.User, error) {
	m.mu.Lock()
	if m.state != StateUnauthenticated {
		m.mu.Unlock()
		return nil, ErrAlreadySignedIn
	}
	m.state = StateAuthenticating
	gen := m.generation
	m.mu.Unlock()
	m.notify(StateUnauthenticated, StateAuthenticating, nil)

	user, id, err := m.login(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = StateUnauthenticated
		m.mu.Unlock()
		m.notify(StateAuthenticating, StateUnauthenticated, nil)
		return nil, &AuthError{Op: "sign_in", Err: err}
	}

	to := stateFor(user)

	m.mu.Lock()
	if m.generation != gen || m.state != StateAuthenticating {
		// A sign-out raced the login; discard the result.
		m.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	m.identity = id
	m.user = user
	m.state = to
	m.mu.Unlock()
	m.notify(StateAuthenticating, to, user)

	u := *user
	return &u, nil
}

// SetUsername assigns the username required to activate the account.
// Names shorter than MinUsernameLen are rejected without a network call.
// A backend rejection (duplicate name etc.) leaves the state in place and
// surfaces the backend-provided reason.
func (m *Manager) SetUsername(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < MinUsernameLen {
		return ErrUsernameTooShort
	}

	m.mu.RLock()
	state := m.state
	var userID string
	if m.user != nil {
		userID = m.user.UserID
	}
	m.mu.RUnlock()

	if state != StateNoUsername {
		return ErrUsernameRequired
	}

	updated, err := m.client.SetUsername(ctx, userID, name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.state != StateNoUsername || m.user == nil || m.user.UserID != userID {
		m.mu.Unlock()
		return ErrNotSignedIn
	}
	if updated.UserID == userID {
		m.user = updated
	} else {
		m.user.Username = name
	}
	if m.user.Username == "" {
		m.user.Username = name
	}
	user := *m.user
	m.state = StateActive
	m.mu.Unlock()
	m.notify(StateNoUsername, StateActive, &user)

	return nil
}

// Refresh re-fetches profile and balance with the cached identity.
// Idempotent: each response is a whole snapshot of the user, so the last
// one to arrive wins. The authentication state never changes here.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	id := m.identity
	gen := m.generation
	authenticated := m.state == StateNoUsername || m.state == StateActive
	m.mu.RUnlock()

	if !authenticated || id == nil {
		return ErrNotSignedIn
	}

	user, err := m.loginWith(ctx, id)
	if err != nil {
		return &AuthError{Op: "refresh", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		// Session ended or restarted while the request was in flight.
		return nil
	}
	m.user = user
	return nil
}

// SignOut invalidates the identity session and clears the user. The
// session always ends locally, even if the provider call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	from := m.state
	id := m.identity
	m.identity = nil
	m.user = nil
	m.state = StateUnauthenticated
	m.generation++
	m.mu.Unlock()

	if from != StateUnauthenticated {
		m.notify(from, StateUnauthenticated, nil)
	}

	if id != nil {
		if err := m.provider.SignOut(ctx, id); err != nil {
			return &AuthError{Op: "sign_out", Err: err}
		}
	}
	return nil
}

func (m *Manager) login(ctx context.Context) (*api.User, *identity.Identity, error) {
	id, err := m.provider.SignIn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("provider: %w", err)
	}

	user, err := m.loginWith(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return user, id, nil
}

func (m *Manager) loginWith(ctx context.Context, id *identity.Identity) (*api.User, error) {
	token, err := m.provider.Token(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	user, err := m.client.Login(ctx, &api.LoginRequest{
		FirebaseUID: id.ProviderUID,
		Email:       id.Email,
		IDToken:     token,
		DisplayName: id.DisplayName,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return user, nil
}

func (m *Manager) notify(from, to State, user *api.User) {
	m.cbMu.Lock()
	fn := m.onTransition
	m.cbMu.Unlock()
	if fn != nil {
		fn(from, to, user)
	}
}

func stateFor(user *api.User) State {
	if user.Active() {
		return StateActive
	}
	return StateNoUsername
}
