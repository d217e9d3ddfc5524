package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/LovationAdmin/expense-api/models"
)

// State is where a Tracker is in its lifecycle.
type State int

const (
	// StateNew: Open has not completed.
	StateNew State = iota
	// StateReady: a validated session is held.
	StateReady
	// StateSignedOut: there is no usable session.
	StateSignedOut
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// ErrNotSignedIn is returned when an operation needs a session and the
// tracker has none.
var ErrNotSignedIn = errors.New("not signed in")

// Tracker owns the client-side session. It moves from StateNew to
// StateReady or StateSignedOut in one awaited Open call; there is no
// background refresh.
type Tracker struct {
	api   *Client
	store SessionStore
	now   func() time.Time

	mu      sync.Mutex
	state   State
	session *models.Session
}

func NewTracker(api *Client, store SessionStore) *Tracker {
	if store == nil {
		store = &MemoryStore{}
	}
	return &Tracker{api: api, store: store, now: time.Now}
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Session returns the held session, if ready.
func (t *Tracker) Session() (*models.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateReady || t.session == nil {
		return nil, false
	}
	s := *t.session
	return &s, true
}

// Open loads the persisted session, validates it by listing transactions
// and returns that first page of data. A missing, expired or rejected
// session leaves the tracker signed out and returns ErrNotSignedIn.
func (t *Tracker) Open(ctx context.Context) ([]models.Transaction, error) {
	session, err := t.store.Load()
	if errors.Is(err, ErrNoSession) {
		t.signOut(false)
		return nil, ErrNotSignedIn
	}
	if err != nil {
		t.signOut(false)
		return nil, err
	}

	if session.Expired(t.now()) {
		t.signOut(true)
		return nil, ErrNotSignedIn
	}

	txs, err := t.api.List(ctx, session.AccessToken)
	if err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			t.signOut(true)
			return nil, ErrNotSignedIn
		}
		return nil, err
	}

	t.mu.Lock()
	t.session = session
	t.state = StateReady
	t.mu.Unlock()
	return txs, nil
}

// Login signs in, persists the session and marks the tracker ready.
func (t *Tracker) Login(ctx context.Context, email, password string) (*models.Session, error) {
	session, err := t.api.Signin(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := t.store.Save(session); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.session = session
	t.state = StateReady
	t.mu.Unlock()
	return session, nil
}

// Logout forgets the session locally and in the store.
func (t *Tracker) Logout() error {
	t.mu.Lock()
	t.session = nil
	t.state = StateSignedOut
	t.mu.Unlock()
	return t.store.Clear()
}

// Transactions lists the signed-in user's transactions.
func (t *Tracker) Transactions(ctx context.Context) ([]models.Transaction, error) {
	token, err := t.token()
	if err != nil {
		return nil, err
	}
	txs, err := t.api.List(ctx, token)
	return txs, t.checkAuth(err)
}

// Add creates a transaction for the signed-in user.
func (t *Tracker) Add(ctx context.Context, req models.CreateTransactionRequest) (*models.Transaction, error) {
	token, err := t.token()
	if err != nil {
		return nil, err
	}
	tx, err := t.api.Create(ctx, token, req)
	return tx, t.checkAuth(err)
}

// Remove deletes a transaction of the signed-in user.
func (t *Tracker) Remove(ctx context.Context, id int64) error {
	token, err := t.token()
	if err != nil {
		return err
	}
	return t.checkAuth(t.api.Delete(ctx, token, id))
}

// Summary returns the signed-in user's totals.
func (t *Tracker) Summary(ctx context.Context) (*models.Summary, error) {
	token, err := t.token()
	if err != nil {
		return nil, err
	}
	s, err := t.api.Summary(ctx, token)
	return s, t.checkAuth(err)
}

func (t *Tracker) token() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateReady || t.session == nil {
		return "", ErrNotSignedIn
	}
	return t.session.AccessToken, nil
}

// checkAuth signs the tracker out when the server rejects the token.
func (t *Tracker) checkAuth(err error) error {
	if err == nil {
		return nil
	}
	if IsStatus(err, http.StatusUnauthorized) {
		t.signOut(true)
		return fmt.Errorf("%w: %w", ErrNotSignedIn, err)
	}
	return err
}

func (t *Tracker) signOut(clearStore bool) {
	t.mu.Lock()
	t.session = nil
	t.state = StateSignedOut
	t.mu.Unlock()
	if clearStore {
		_ = t.store.Clear()
	}
}
