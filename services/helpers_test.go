package services

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LovationAdmin/expense-api/migrations"
	"github.com/LovationAdmin/expense-api/models"
	"github.com/LovationAdmin/expense-api/utils"
)

const testSecret = "test-secret-at-least-16-chars"

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_time_format=sqlite")
	require.NoError(t, err, "failed to open test database")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := fs.ReadFile(migrations.FS, "sqlite/000001_init.up.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err, "failed to apply schema")
	return db
}

// stepClock returns a time that advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

type captureSender struct {
	mu    sync.Mutex
	links map[string]string
	err   error
}

func (s *captureSender) SendConfirmation(_ context.Context, to, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.links == nil {
		s.links = map[string]string{}
	}
	s.links[to] = link
	return nil
}

func (s *captureSender) linkFor(to string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[to]
}

type change struct {
	userID string
	action string
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []change
}

func (n *recordingNotifier) TransactionsChanged(userID, action string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change{userID, action})
}

func (n *recordingNotifier) all() []change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]change(nil), n.changes...)
}

type testEnv struct {
	db       *sql.DB
	identity *LocalIdentity
	store    *SQLStore
	gateway  *Gateway
	ledger   *Ledger
	sender   *captureSender
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T, policy ConfirmationPolicy) *testEnv {
	t.Helper()

	db := newTestDB(t)
	tokens, err := utils.NewTokenIssuer(testSecret, "expense-api-test")
	require.NoError(t, err)

	sender := &captureSender{}
	identity := NewLocalIdentity(db, DialectSQLite, tokens, LocalIdentityConfig{
		AccessTTL: time.Hour,
		PublicURL: "http://localhost:8080",
		Sender:    sender,
	})
	store := NewSQLStore(db, DialectSQLite).WithClock(newStepClock(time.Second).Now)
	notifier := &recordingNotifier{}

	ledger := NewLedger(identity, store, policy, nil)
	ledger.SetNotifier(notifier)

	return &testEnv{
		db:       db,
		identity: identity,
		store:    store,
		gateway:  NewGateway(identity, policy, nil),
		ledger:   ledger,
		sender:   sender,
		notifier: notifier,
	}
}

// signedIn creates an account and returns its resolved user and token.
func (e *testEnv) signedIn(t *testing.T, email string) (*models.User, string) {
	t.Helper()
	ctx := context.Background()

	_, err := e.gateway.Signup(ctx, email, "secret1")
	require.NoError(t, err)
	session, err := e.gateway.Signin(ctx, email, "secret1")
	require.NoError(t, err)
	user, err := e.ledger.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)
	return user, session.AccessToken
}

func amountPtr(v float64) *models.Amount {
	a := models.Amount(v)
	return &a
}
