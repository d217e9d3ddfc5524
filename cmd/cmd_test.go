package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LovationAdmin/expense-api/app"
	"github.com/LovationAdmin/expense-api/client"
	"github.com/LovationAdmin/expense-api/config"
)

func init() {
	pterm.DisableOutput()
}

func run(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.Execute()
}

func TestReadPassword(t *testing.T) {
	var out bytes.Buffer
	pw, err := readPassword(strings.NewReader("secret1\r\nignored\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "secret1", pw)
	assert.Equal(t, "Password: ", out.String())

	_, err = readPassword(strings.NewReader(""), io.Discard)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "Not signed in", capitalize("not signed in"))
	assert.Equal(t, "Érable", capitalize("érable"))
}

func TestHelpForEverySubcommand(t *testing.T) {
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		for _, sub := range c.Commands() {
			args := append(strings.Fields(sub.CommandPath())[1:], "--help")
			assert.NotPanics(t, func() { _ = run(t, "", args...) }, strings.Join(args, " "))
			walk(sub)
		}
	}
	walk(NewRootCmd())
}

func TestAddFlagShorthands(t *testing.T) {
	root := NewRootCmd()
	add, _, err := root.Find([]string{"add"})
	require.NoError(t, err)

	assert.NotPanics(t, func() { add.InheritedFlags() })
	assert.Equal(t, "category", add.Flags().ShorthandLookup("C").Name)
	assert.Equal(t, "config", add.InheritedFlags().ShorthandLookup("c").Name)
}

func TestClientCommands(t *testing.T) {
	cfg := &config.Config{
		Port:        "8080",
		Environment: "test",
		GinMode:     gin.TestMode,
		PublicURL:   "http://localhost:8080",
		Database:    config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "cli.db")},
		Auth: config.AuthConfig{
			Provider:           config.BackendLocal,
			ConfirmationPolicy: "auto",
			JWTSecret:          "cli-test-secret-0123456789",
			AccessTTL:          time.Hour,
		},
		RateLimit: config.RateLimitConfig{Window: time.Minute},
	}
	a, cleanup, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(a.Router)
	t.Cleanup(func() {
		srv.Close()
		cleanup()
	})

	session := filepath.Join(t.TempDir(), "session.json")
	common := []string{"--api-url", srv.URL, "--session", session}
	with := func(args ...string) []string { return append(args, common...) }

	err = run(t, "", with("list")...)
	assert.ErrorContains(t, err, "not signed in")

	require.NoError(t, run(t, "secret1\n", with("signup", "-e", "a@x.com")...))
	assert.ErrorContains(t, run(t, "secret1\n", with("signup", "-e", "a@x.com")...), "User already registered")

	assert.Error(t, run(t, "wrong-1\n", with("login", "-e", "a@x.com")...))
	require.NoError(t, run(t, "secret1\n", with("login", "-e", "a@x.com")...))

	require.NoError(t, run(t, "", with("add", "-d", "Coffee", "-a", "15000", "-C", "food")...))
	require.NoError(t, run(t, "", with("add", "-d", "Salary", "-a", "5000000", "-t", "income")...))
	assert.ErrorContains(t, run(t, "", with("add", "-d", "Refund", "-a", "ten")...), "not a number")
	assert.ErrorContains(t, run(t, "", with("add", "-d", "Gift", "-a", "5", "-t", "gift")...), "Type must be")
	require.NoError(t, run(t, "", with("list")...))
	require.NoError(t, run(t, "", with("summary")...))

	tr := client.NewTracker(client.New(srv.URL), client.FileStore{Path: session})
	txs, err := tr.Open(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.ErrorContains(t, run(t, "", with("delete", "abc")...), "invalid transaction id")
	require.NoError(t, run(t, "", with("delete", "1")...))

	txs, err = tr.Transactions(context.Background())
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	require.NoError(t, run(t, "", with("logout")...))
	assert.ErrorContains(t, run(t, "", with("summary")...), "not signed in")
}

func TestMigrateCommands(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_PROVIDER", "local")
	t.Setenv("JWT_SECRET", "migrate-test-secret-0123")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "migrate.db"))

	require.NoError(t, run(t, "", "migrate", "version"))
	require.NoError(t, run(t, "", "migrate", "up"))
	require.NoError(t, run(t, "", "migrate", "up"))
	require.NoError(t, run(t, "", "migrate", "version"))
	require.NoError(t, run(t, "", "migrate", "down"))
	require.NoError(t, run(t, "", "migrate", "down"))

	t.Setenv("AUTH_PROVIDER", "supabase")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service")
	assert.ErrorContains(t, run(t, "", "migrate", "up"), "local backend only")
}
