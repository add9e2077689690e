package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/warranty/internal/mail"
	"github.com/roach88/warranty/internal/notify"
	"github.com/roach88/warranty/internal/testutil"
)

const testSecret = "test-secret"

// cliEnv runs commands against one temp-dir database.
type cliEnv struct {
	t      *testing.T
	dir    string
	config string
	clock  *testutil.FixedClock
	sink   *mail.Recorder
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "warranty.yaml")
	content := fmt.Sprintf("database:\n  path: %s\nuploads:\n  dir: %s\nsecret_key: %s\n",
		filepath.Join(dir, "warranty.db"), filepath.Join(dir, "uploads"), testSecret)
	require.NoError(t, os.WriteFile(config, []byte(content), 0o600))

	return &cliEnv{
		t:      t,
		dir:    dir,
		config: config,
		// Monday
		clock: testutil.NewFixedClock(time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)),
		sink:  &mail.Recorder{},
	}
}

func (e *cliEnv) options() *RootOptions {
	return &RootOptions{
		ConfigFile: e.config,
		EnvDir:     e.dir,
		Format:     "text",
		Clock:      e.clock,
		Sink:       e.sink,
		BcryptCost: bcrypt.MinCost,
	}
}

// run executes the command line and returns stdout.
func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	cmd := newRootCommand(e.options())
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "output: %s", out)
	return out
}

// jsonData runs the command with --format json and decodes the data payload into v.
func (e *cliEnv) jsonData(v any, args ...string) {
	e.t.Helper()
	out := e.mustRun(append([]string{"--format", "json"}, args...)...)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(e.t, "ok", resp.Status)
	require.NoError(e.t, json.Unmarshal(resp.Data, v))
}

func (e *cliEnv) register(name, email string) []string {
	e.t.Helper()
	e.mustRun("user", "register", "--name", name, "--email", email, "--password", "secret1")
	return []string{"--email", email, "--password", "secret1"}
}

func (e *cliEnv) seedAdmin() []string {
	e.t.Helper()
	e.mustRun("admin", "seed", "--token", testSecret)
	return []string{"--email", "admin@example.com", "--password", "admin123"}
}

func TestItemLifecycle(t *testing.T) {
	env := newCLIEnv(t)
	ann := env.register("Ann", "ann@example.com")

	out := env.mustRun(append([]string{"item", "add", "--product", "Fridge", "--brand", "Acme",
		"--purchase-date", "2024-03-09", "--period", "1"}, ann...)...)
	assert.Contains(t, out, "Added warranty #1: Fridge, expires March 09, 2025")

	out, err := env.run(append([]string{"item", "add", "--product", "FRIDGE", "--brand", " acme ",
		"--purchase-date", "09-03-2024", "--period", "12", "--unit", "months"}, ann...)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, out, "Error [E_DUPLICATE]: a warranty for this product and brand already exists")

	out = env.mustRun(append([]string{"item", "edit", "--id", "1", "--period", "2"}, ann...)...)
	assert.Contains(t, out, "expires March 09, 2026")

	var page struct {
		Total int `json:"total"`
		Items []struct {
			ProductName string `json:"product_name"`
			Brand       string `json:"brand"`
			Months      int    `json:"warranty_period_months"`
			Status      string `json:"status"`
		} `json:"items"`
	}
	env.jsonData(&page, append([]string{"item", "list"}, ann...)...)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Acme", page.Items[0].Brand, "edit without --brand keeps the brand")
	assert.Equal(t, 24, page.Items[0].Months)
	assert.Equal(t, "Active", page.Items[0].Status)

	out = env.mustRun(append([]string{"item", "delete", "--id", "1"}, ann...)...)
	assert.Contains(t, out, "Deleted warranty #1")

	out, err = env.run(append([]string{"item", "show", "--id", "1"}, ann...)...)
	require.Error(t, err)
	assert.Contains(t, out, "E_NOT_FOUND")
}

func TestItemAdd_Invoice(t *testing.T) {
	env := newCLIEnv(t)
	ann := env.register("Ann", "ann@example.com")

	invoice := filepath.Join(env.dir, "receipt.pdf")
	require.NoError(t, os.WriteFile(invoice, []byte("%PDF-1.4"), 0o600))

	var w struct {
		InvoicePath string `json:"invoice_path"`
	}
	env.jsonData(&w, append([]string{"item", "add", "--product", "TV", "--purchase-date", "2024-01-01",
		"--period", "1", "--invoice", invoice}, ann...)...)
	require.NotEmpty(t, w.InvoicePath)
	assert.FileExists(t, filepath.Join(env.dir, "uploads", w.InvoicePath))

	bad := filepath.Join(env.dir, "receipt.exe")
	require.NoError(t, os.WriteFile(bad, []byte("MZ"), 0o600))
	out, err := env.run(append([]string{"item", "add", "--product", "Radio", "--purchase-date", "2024-01-01",
		"--period", "1", "--invoice", bad}, ann...)...)
	require.Error(t, err)
	assert.Contains(t, out, "E_VALIDATION")
}

func TestAuthentication(t *testing.T) {
	env := newCLIEnv(t)
	env.register("Ann", "ann@example.com")

	out, err := env.run("item", "list", "--email", "ann@example.com", "--password", "wrong!!")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E_UNAUTHORIZED")

	out, err = env.run("user", "register", "--name", "Ann", "--email", "ANN@example.com", "--password", "secret1")
	require.Error(t, err)
	assert.Contains(t, out, "E_DUPLICATE")

	out, err = env.run("admin", "stats", "--email", "ann@example.com", "--password", "secret1")
	require.Error(t, err)
	assert.Contains(t, out, "E_UNAUTHORIZED", "users are not administrators")
}

func TestUserProfileCommands(t *testing.T) {
	env := newCLIEnv(t)
	ann := env.register("Ann", "ann@example.com")

	out := env.mustRun(append([]string{"user", "rename", "--name", "Ann Smith"}, ann...)...)
	assert.Contains(t, out, "Ann Smith <ann@example.com>")

	_, err := env.run(append([]string{"user", "passwd", "--new", "newpass1", "--confirm", "other"}, ann...)...)
	require.Error(t, err)

	env.mustRun(append([]string{"user", "passwd", "--new", "newpass1", "--confirm", "newpass1"}, ann...)...)
	out = env.mustRun("user", "profile", "--email", "ann@example.com", "--password", "newpass1")
	assert.Contains(t, out, "Ann Smith")
}

func TestNotifyRun_IdempotentRecording(t *testing.T) {
	env := newCLIEnv(t)
	ann := env.register("Ann", "ann@example.com")
	env.mustRun(append([]string{"item", "add", "--product", "Fridge", "--purchase-date", "2023-03-09", "--period", "1"}, ann...)...)

	var first, second notify.BatchReport
	env.jsonData(&first, "notify", "run")
	env.jsonData(&second, "notify", "run")

	assert.Equal(t, notify.BatchReport{Date: "2024-03-04", Scanned: 1, Eligible: 1, Inserted: 1, Delivered: 1}, first)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Delivered)
	require.Len(t, env.sink.Messages(), 2)
	assert.Equal(t, "ann@example.com", env.sink.Messages()[0].To)
	assert.Equal(t, "Warranty reminder: Fridge", env.sink.Messages()[0].Subject)

	out := env.mustRun(append([]string{"notify", "list"}, ann...)...)
	assert.Contains(t, out, "1 unread")
	assert.Contains(t, out, "Your warranty for 'Fridge' expires on March 09, 2024.")

	out = env.mustRun(append([]string{"notify", "read"}, ann...)...)
	assert.Contains(t, out, "Marked 1 reminder(s) as read")
}

func TestNotifyGenerate(t *testing.T) {
	env := newCLIEnv(t)
	ann := env.register("Ann", "ann@example.com")
	env.mustRun(append([]string{"item", "add", "--product", "Kettle", "--purchase-date", "2023-03-06", "--period", "1"}, ann...)...)

	var r notify.GenerateReport
	env.jsonData(&r, append([]string{"notify", "generate", "--deliver"}, ann...)...)
	assert.Equal(t, notify.GenerateReport{Eligible: 1, Inserted: 1, Delivered: 1}, r)

	env.jsonData(&r, append([]string{"notify", "generate", "--deliver"}, ann...)...)
	assert.Equal(t, notify.GenerateReport{Eligible: 1}, r, "only new reminders are mailed")
	assert.Len(t, env.sink.Messages(), 1)
}

func TestNotifyGenerate_LookaheadFromConfig(t *testing.T) {
	env := newCLIEnv(t)
	f, err := os.OpenFile(env.config, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("notify:\n  lookahead_days: 30\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ann := env.register("Ann", "ann@example.com")
	// Expires 2024-03-24, twenty days out.
	env.mustRun(append([]string{"item", "add", "--product", "Kettle", "--purchase-date", "2023-03-24", "--period", "1"}, ann...)...)

	var r notify.GenerateReport
	env.jsonData(&r, append([]string{"notify", "generate"}, ann...)...)
	assert.Equal(t, 1, r.Eligible, "config window of 30 days applies")

	env.jsonData(&r, append([]string{"notify", "generate", "--lookahead", "7"}, ann...)...)
	assert.Equal(t, 0, r.Eligible, "the flag overrides the config")
}

func TestClaimAndAdminFlow(t *testing.T) {
	env := newCLIEnv(t)
	ann := env.register("Ann", "ann@example.com")
	eve := env.register("Eve", "eve@example.com")
	env.mustRun(append([]string{"item", "add", "--product", "Fridge", "--brand", "Acme", "--purchase-date", "2023-03-09", "--period", "1"}, ann...)...)

	out, err := env.run(append([]string{"claim", "submit", "--warranty", "1", "--description", "mine"}, eve...)...)
	require.Error(t, err)
	assert.Contains(t, out, "Error [E_NOT_FOUND]: invalid warranty selection")

	out = env.mustRun(append([]string{"claim", "submit", "--warranty", "1", "--description", "door seal"}, ann...)...)
	assert.Contains(t, out, "Filed claim #1 on warranty #1 (Pending)")

	_, err = env.run("admin", "seed", "--token", "guess")
	require.Error(t, err)
	admin := env.seedAdmin()
	out = env.mustRun("admin", "seed", "--token", testSecret)
	assert.Contains(t, out, "already exists")

	out = env.mustRun(append([]string{"claim", "status", "--id", "1", "--status", "In Progress"}, admin...)...)
	assert.Contains(t, out, "Claim #1 is now In Progress")
	out = env.mustRun(append([]string{"claim", "list"}, ann...)...)
	assert.Contains(t, out, "In Progress")

	out, err = env.run(append([]string{"claim", "status", "--id", "1", "--status", "Lost"}, admin...)...)
	require.Error(t, err)
	assert.Contains(t, out, "E_VALIDATION")

	var stats struct {
		Users         int `json:"users"`
		Warranties    int `json:"warranties"`
		ExpiringSoon  int `json:"expiring_soon"`
		PendingClaims int `json:"pending_claims"`
	}
	env.jsonData(&stats, append([]string{"admin", "stats"}, admin...)...)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 1, stats.Warranties)
	assert.Equal(t, 1, stats.ExpiringSoon)
	assert.Equal(t, 0, stats.PendingClaims)

	out = env.mustRun(append([]string{"admin", "report"}, admin...)...)
	assert.Contains(t, out, "Expiring in 30 days (1)")
	assert.Contains(t, out, "Ann / Fridge: total=1 pending=0 in_progress=1")

	out = env.mustRun(append([]string{"admin", "items", "--q", "acme", "--status", "Active"}, admin...)...)
	assert.Contains(t, out, "Fridge")
	out = env.mustRun(append([]string{"admin", "users"}, admin...)...)
	assert.Contains(t, out, "eve@example.com")
	out = env.mustRun(append([]string{"admin", "claims", "--status", "In Progress"}, admin...)...)
	assert.Contains(t, out, "door seal")
}

func TestProductCommands(t *testing.T) {
	env := newCLIEnv(t)
	admin := env.seedAdmin()

	out := env.mustRun(append([]string{"product", "add", "--brand", "Acme", "--model", "Cooler 3000", "--category", "Kitchen"}, admin...)...)
	assert.Contains(t, out, "Acme Cooler 3000")

	out = env.mustRun(append([]string{"product", "list", "--q", "kitchen"}, admin...)...)
	assert.Contains(t, out, "Cooler 3000")
	assert.Contains(t, out, "yes")

	_, err := env.run(append([]string{"product", "add", "--brand", "", "--model", "X"}, admin...)...)
	require.Error(t, err)
}

func TestDatabaseFlagOverridesConfig(t *testing.T) {
	env := newCLIEnv(t)
	other := filepath.Join(env.dir, "other.db")

	env.mustRun("--db", other, "user", "register", "--name", "Ann", "--email", "ann@example.com", "--password", "secret1")
	assert.FileExists(t, other)

	// The configured database has no such user.
	_, err := env.run("user", "profile", "--email", "ann@example.com", "--password", "secret1")
	require.Error(t, err)
}

func TestBadConfigIsCommandError(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.WriteFile(env.config, []byte("notify:\n  workers: 0\n"), 0o600))

	_, err := env.run("item", "list", "--email", "a@example.com", "--password", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestServe_RunsPassAndStopsOnCancel(t *testing.T) {
	env := newCLIEnv(t)
	ann := env.register("Ann", "ann@example.com")
	env.mustRun(append([]string{"item", "add", "--product", "Fridge", "--purchase-date", "2023-03-09", "--period", "1"}, ann...)...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := &ServeOptions{RootOptions: env.options(), Ready: make(chan struct{})}
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	errCh := make(chan error, 1)
	go func() { errCh <- runServe(opts, cmd) }()

	select {
	case <-opts.Ready:
	case err := <-errCh:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not start")
	}

	assert.Eventually(t, func() bool { return len(env.sink.Messages()) == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, out.String(), "Scheduler started")
}

func TestServe_HangupRunsExtraPass(t *testing.T) {
	env := newCLIEnv(t)
	ann := env.register("Ann", "ann@example.com")
	env.mustRun(append([]string{"item", "add", "--product", "Fridge", "--purchase-date", "2023-03-09", "--period", "1"}, ann...)...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := &ServeOptions{RootOptions: env.options(), Ready: make(chan struct{}), Signals: make(chan os.Signal, 1)}
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	errCh := make(chan error, 1)
	go func() { errCh <- runServe(opts, cmd) }()

	select {
	case <-opts.Ready:
	case err := <-errCh:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not start")
	}
	require.Eventually(t, func() bool { return len(env.sink.Messages()) == 1 }, 5*time.Second, 10*time.Millisecond)

	// A hangup during the start-up pass joins it, so keep asking until a new pass mails.
	assert.Eventually(t, func() bool {
		select {
		case opts.Signals <- syscall.SIGHUP:
		default:
		}
		return len(env.sink.Messages()) >= 2
	}, 5*time.Second, 20*time.Millisecond)

	opts.Signals <- syscall.SIGTERM
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop on SIGTERM")
	}
}
