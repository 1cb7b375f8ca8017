// Package config loads service settings. Values come from, in increasing
// precedence: built-in defaults, an optional config.yaml, a .env file and the
// process environment. Environment variable names are the upper-cased key
// with dots replaced by underscores (db.host is DB_HOST).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/database"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/mail"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metadata"
)

const (
	configFileName = "config"
	configFileType = "yaml"
)

// Store, lock, cache and mail drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverLocal    = "local"
	DriverValkey   = "valkey"
	DriverLog      = "log"
	DriverSMTP     = "smtp"
)

// Config is the fully resolved service configuration.
type Config struct {
	Port string

	LogLevel  string
	LogFormat string

	StoreDriver string
	SQLitePath  string
	DB          database.Config

	// LockDriver is empty unless configured; see Lock.
	LockDriver      string
	LockTimeout     time.Duration
	LeaseTTL        time.Duration
	MailLockTimeout time.Duration

	ValkeyAddr     string
	ValkeyPassword string

	AuthPassword   string
	AuthSessionTTL time.Duration
	AuthCache      string

	MailDriver       string
	SMTP             mail.SMTPConfig
	MailDefaultFrom  string
	MailAliases      []string
	MailAliasPattern string
	MailDailyQuota   int

	SheetName string
	Location  *time.Location

	AdminUsername string
	AdminPassword string

	// Metadata holds the configured registration route values keyed by
	// field name.
	Metadata map[string]string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("sqlite.path", "ledger.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "registrations")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("lock.driver", "")
	v.SetDefault("lock.timeout", "5s")
	v.SetDefault("lock.lease_ttl", "15s")
	v.SetDefault("mail.lock_timeout", "30s")

	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.password", "")

	v.SetDefault("auth.password", "")
	v.SetDefault("auth.session_ttl", "30m")
	v.SetDefault("auth.cache", DriverMemory)

	v.SetDefault("mail.driver", DriverLog)
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.timeout", "15s")
	v.SetDefault("mail.default_from", "")
	v.SetDefault("mail.aliases", []string{})
	v.SetDefault("mail.alias_pattern", mail.DefaultAliasPattern)
	v.SetDefault("mail.daily_quota", 100)

	v.SetDefault("ledger.sheet", "Registrations")
	v.SetDefault("ledger.timezone", "America/Toronto")

	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
}

// Load resolves the configuration from dir. An empty dir means the working
// directory. A missing config.yaml or .env is not an error.
func Load(dir string) (Config, error) {
	if dir == "" {
		dir = "."
	}
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(dir)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:      v.GetString("port"),
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),

		StoreDriver: strings.ToLower(v.GetString("store.driver")),
		SQLitePath:  v.GetString("sqlite.path"),
		DB: database.Config{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},

		LockDriver:      strings.ToLower(v.GetString("lock.driver")),
		LockTimeout:     v.GetDuration("lock.timeout"),
		LeaseTTL:        v.GetDuration("lock.lease_ttl"),
		MailLockTimeout: v.GetDuration("mail.lock_timeout"),

		ValkeyAddr:     v.GetString("valkey.addr"),
		ValkeyPassword: v.GetString("valkey.password"),

		AuthPassword:   v.GetString("auth.password"),
		AuthSessionTTL: v.GetDuration("auth.session_ttl"),
		AuthCache:      strings.ToLower(v.GetString("auth.cache")),

		MailDriver: strings.ToLower(v.GetString("mail.driver")),
		SMTP: mail.SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			Timeout:  v.GetDuration("smtp.timeout"),
		},
		MailDefaultFrom:  v.GetString("mail.default_from"),
		MailAliases:      splitList(v.GetStringSlice("mail.aliases")),
		MailAliasPattern: v.GetString("mail.alias_pattern"),
		MailDailyQuota:   v.GetInt("mail.daily_quota"),

		SheetName: v.GetString("ledger.sheet"),

		AdminUsername: v.GetString("admin.username"),
		AdminPassword: v.GetString("admin.password"),

		Metadata: make(map[string]string, len(metadata.RegistrationFields)),
	}

	for _, f := range metadata.RegistrationFields {
		key := "metadata.registration." + strings.ToLower(f.Name)
		if val := v.GetString(key); val != "" {
			cfg.Metadata[f.Name] = val
		}
	}

	loc, err := time.LoadLocation(v.GetString("ledger.timezone"))
	if err != nil {
		return Config{}, fmt.Errorf("ledger.timezone: %w", err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Lock returns the document lock driver. Unless one is configured it
// follows the store: a persistent store is shared with ledgerctl, so its lock
// must be too.
func (c Config) Lock() string {
	if c.LockDriver != "" {
		return c.LockDriver
	}
	switch c.StoreDriver {
	case DriverPostgres:
		return DriverPostgres
	case DriverSQLite:
		return DriverSQLite
	default:
		return DriverLocal
	}
}

// Validate checks driver names and the combinations they allow.
func (c Config) Validate() error {
	if err := oneOf("store.driver", c.StoreDriver, DriverMemory, DriverPostgres, DriverSQLite); err != nil {
		return err
	}
	lockDriver := c.Lock()
	if err := oneOf("lock.driver", lockDriver, DriverLocal, DriverPostgres, DriverSQLite, DriverValkey); err != nil {
		return err
	}
	if err := oneOf("auth.cache", c.AuthCache, DriverMemory, DriverValkey); err != nil {
		return err
	}
	if err := oneOf("mail.driver", c.MailDriver, DriverLog, DriverSMTP); err != nil {
		return err
	}
	if lockDriver == DriverPostgres && c.StoreDriver != DriverPostgres {
		return errors.New("lock.driver postgres requires store.driver postgres")
	}
	if lockDriver == DriverSQLite && c.StoreDriver != DriverSQLite {
		return errors.New("lock.driver sqlite requires store.driver sqlite")
	}
	if lockDriver == DriverLocal && c.StoreDriver != DriverMemory {
		return fmt.Errorf("lock.driver local cannot serialise processes sharing a %s store", c.StoreDriver)
	}
	if c.MailDailyQuota < 0 {
		return fmt.Errorf("mail.daily_quota must not be negative, got %d", c.MailDailyQuota)
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown value %q (want one of %s)", key, value, strings.Join(allowed, ", "))
}

// splitList accepts both YAML lists and comma separated environment values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
