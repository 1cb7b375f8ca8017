package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/config"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/lock"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metadata"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/repository"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/service"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.Metadata = map[string]string{metadata.MaxTickets: "10"}
	return cfg
}

func TestNewMemory(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &repository.MemoryStore{}, a.Store)
	assert.False(t, a.Auth.Enabled())

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tickets/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"maxTotalTickets":10}`, rec.Body.String())
}

func TestNewSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = config.DriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "ledger.db")

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	form := map[string]any{
		"firstName":            "An",
		"lastName":             "Nguyen",
		"phoneNumber":          "555-1234",
		"confirmationMethod":   "email",
		"email":                "an@example.com",
		"numberOfAdultTickets": float64(2),
		"numberOfChildTickets": float64(0),
	}
	require.NoError(t, a.Registrations.Register(ctx, form, "s1"))
	status, err := a.Registrations.TicketStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.CurrentTotalTickets)
	assert.Equal(t, 2, *status.CurrentTotalTickets)

	res, err := a.MailMerge.SendInitial(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, cfg.MailDailyQuota-1, a.MailMerge.RemainingQuota(ctx))
}

func TestSQLiteProcessesShareLockAndQuota(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = config.DriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "ledger.db")
	cfg.LockTimeout = 100 * time.Millisecond
	cfg.MailDailyQuota = 5
	ctx := context.Background()

	server, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer server.Close()
	for i, phone := range []string{"555-0001", "555-0002", "555-0003"} {
		form := map[string]any{
			"firstName":            "An",
			"lastName":             "Nguyen",
			"phoneNumber":          phone,
			"confirmationMethod":   "email",
			"email":                fmt.Sprintf("r%d@example.com", i),
			"numberOfAdultTickets": float64(1),
			"numberOfChildTickets": float64(0),
		}
		require.NoError(t, server.Registrations.Register(ctx, form, fmt.Sprintf("s%d", i)))
	}
	res, err := server.MailMerge.SendInitial(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessCount)

	cli, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer cli.Close()
	assert.Equal(t, 3, cli.MailMerge.RemainingQuota(ctx), "sends from another process count against today's quota")

	// a batch holding the lock in the CLI blocks the server's writers
	cliLock, err := lock.NewSQLite(ctx, cli.sqlite.DB(), cli.lockName(), 0)
	require.NoError(t, err)
	_, release, err := cliLock.Acquire(ctx, time.Second)
	require.NoError(t, err)
	defer release()
	assert.ErrorIs(t, server.CheckIn.CheckIn(ctx, "s0"), service.ErrLockTimeout)
}

func TestNewRejectsProcessLocalLockOnSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = config.DriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "ledger.db")
	cfg.LockDriver = config.DriverLocal
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewRejectsBadMetadata(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metadata = map[string]string{metadata.MaxTickets: "lots"}
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewRejectsBadAliasPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.MailAliasPattern = "("
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestPasswordEnablesAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthPassword = "secret"
	cfg.AuthSessionTTL = time.Minute
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.True(t, a.Auth.Enabled())
}
