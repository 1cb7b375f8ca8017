package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/mail"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metadata"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Empty(t, cfg.LockDriver)
	assert.Equal(t, DriverLocal, cfg.Lock())
	assert.Equal(t, 15*time.Second, cfg.LeaseTTL)
	assert.Equal(t, DriverLog, cfg.MailDriver)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, 30*time.Second, cfg.MailLockTimeout)
	assert.Equal(t, 30*time.Minute, cfg.AuthSessionTTL)
	assert.Equal(t, mail.DefaultAliasPattern, cfg.MailAliasPattern)
	assert.Equal(t, 100, cfg.MailDailyQuota)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "Registrations", cfg.SheetName)
	assert.Equal(t, "America/Toronto", cfg.Location.String())
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Empty(t, cfg.MailAliases)
	assert.Empty(t, cfg.Metadata)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
port: "9090"
store:
  driver: sqlite
sqlite:
  path: /tmp/ledger.db
mail:
  aliases:
    - events+tetviet2025@gmail.com
    - events+tetviet2026@gmail.com
  daily_quota: 50
metadata:
  registration:
    max_tickets: 300
    event_name: Tet Festival
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/ledger.db", cfg.SQLitePath)
	assert.Equal(t, DriverSQLite, cfg.Lock())
	assert.Equal(t, []string{"events+tetviet2025@gmail.com", "events+tetviet2026@gmail.com"}, cfg.MailAliases)
	assert.Equal(t, 50, cfg.MailDailyQuota)
	assert.Equal(t, "300", cfg.Metadata[metadata.MaxTickets])
	assert.Equal(t, "Tet Festival", cfg.Metadata[metadata.EventName])
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("port: \"9090\"\n"), 0o644))
	t.Setenv("PORT", "7070")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("MAIL_ALIASES", "a+tetviet2026@gmail.com, b+tetviet2027@gmail.com")
	t.Setenv("METADATA_REGISTRATION_TICKET_PRICE_ADULT", "25")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, []string{"a+tetviet2026@gmail.com", "b+tetviet2027@gmail.com"}, cfg.MailAliases)
	assert.Equal(t, "25", cfg.Metadata[metadata.TicketPriceAdult])
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	const key = "ADMIN_USERNAME"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=desk\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv(key) })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "desk", cfg.AdminUsername)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]map[string]string{
		"store driver":        {"STORE_DRIVER": "mongo"},
		"lock driver":         {"LOCK_DRIVER": "zookeeper"},
		"postgres lock alone": {"LOCK_DRIVER": "postgres"},
		"sqlite lock alone":   {"LOCK_DRIVER": "sqlite"},
		"local lock sqlite":   {"STORE_DRIVER": "sqlite", "LOCK_DRIVER": "local"},
		"local lock postgres": {"STORE_DRIVER": "postgres", "LOCK_DRIVER": "local"},
		"mail driver":         {"MAIL_DRIVER": "carrier-pigeon"},
		"timezone":            {"LEDGER_TIMEZONE": "Mars/Olympus"},
		"negative quota":      {"MAIL_DAILY_QUOTA": "-1"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load(t.TempDir())
			assert.Error(t, err)
		})
	}
}

func TestLockFollowsStore(t *testing.T) {
	tests := []struct {
		store, lock, want string
	}{
		{DriverMemory, "", DriverLocal},
		{DriverSQLite, "", DriverSQLite},
		{DriverPostgres, "", DriverPostgres},
		{DriverSQLite, DriverValkey, DriverValkey},
		{DriverMemory, DriverValkey, DriverValkey},
	}
	for _, tt := range tests {
		cfg := Config{StoreDriver: tt.store, LockDriver: tt.lock}
		assert.Equal(t, tt.want, cfg.Lock(), "store=%s lock=%q", tt.store, tt.lock)
	}
}

func TestValidateRejectsProcessLocalLockOnSharedStore(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	cfg.StoreDriver = DriverSQLite
	require.NoError(t, cfg.Validate())

	cfg.LockDriver = DriverLocal
	assert.ErrorContains(t, cfg.Validate(), "cannot serialise")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", "", " c "}))
	assert.Empty(t, splitList(nil))
}
