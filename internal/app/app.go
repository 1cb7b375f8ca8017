// Package app wires configuration into the running services. The HTTP server
// and the operator CLI share it so both act on the same ledger, lock and mail
// quota settings.
package app

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/auth"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/clock"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/config"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/database"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/handler"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/lock"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/mail"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metadata"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metrics"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/qrcode"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/repository"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/service"
)

// App is a fully wired service graph.
type App struct {
	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Clock   clock.Clock

	Metadata      *metadata.Registry
	Store         repository.Store
	Registrations *service.RegistrationService
	CheckIn       *service.CheckInService
	MailMerge     *service.MailMergeService
	Auth          *auth.Validator

	sqlite  *repository.SQLiteStore
	closers []func()
}

// New builds the service graph for cfg. On error every resource opened so far
// is closed.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *App, err error) {
	a := &App{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(),
		Clock:   clock.Real(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	a.Metadata = metadata.New(metadata.RegistrationFields, cfg.Metadata)
	if err = a.Metadata.Validate(); err != nil {
		return nil, err
	}

	var pool *pgxpool.Pool
	if cfg.StoreDriver == config.DriverPostgres {
		if pool, err = a.postgres(ctx); err != nil {
			return nil, err
		}
	}
	if a.Store, err = a.openStore(ctx, pool); err != nil {
		return nil, err
	}
	locker, err := a.openLocker(ctx, pool)
	if err != nil {
		return nil, err
	}
	cache, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}
	sender, err := a.openSender()
	if err != nil {
		return nil, err
	}
	pattern, err := regexp.Compile(cfg.MailAliasPattern)
	if err != nil {
		return nil, fmt.Errorf("mail.alias_pattern: %w", err)
	}

	deps := service.Deps{
		Store:       a.Store,
		Locker:      locker,
		Metadata:    a.Metadata,
		Clock:       a.Clock,
		Location:    cfg.Location,
		SheetName:   cfg.SheetName,
		LockTimeout: cfg.LockTimeout,
		Log:         log,
		Metrics:     a.Metrics,
	}
	a.Registrations = service.NewRegistrationService(deps)
	a.CheckIn = service.NewCheckInService(deps)
	a.MailMerge = service.NewMailMergeService(deps, sender, qrcode.NewPNG(), service.MailMergeOptions{
		AliasPattern: pattern,
		LockTimeout:  cfg.MailLockTimeout,
	})
	a.Auth = auth.NewValidator(cfg.AuthPassword, cache, cfg.AuthSessionTTL)

	log.Info("services ready",
		zap.String("store", cfg.StoreDriver),
		zap.String("lock", cfg.Lock()),
		zap.String("auth_cache", cfg.AuthCache),
		zap.String("mail", cfg.MailDriver),
		zap.Bool("password_protected", a.Auth.Enabled()),
	)
	return a, nil
}

func (a *App) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, a.Config.DB, a.Log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	if err := database.Migrate(ctx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (a *App) openStore(ctx context.Context, pool *pgxpool.Pool) (repository.Store, error) {
	switch a.Config.StoreDriver {
	case config.DriverPostgres:
		return repository.NewPostgresStore(pool), nil
	case config.DriverSQLite:
		s, err := repository.OpenSQLite(ctx, a.Config.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		a.sqlite = s
		return s, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

func (a *App) lockName() string {
	return "registration-ledger:" + a.Config.SheetName
}

func (a *App) openLocker(ctx context.Context, pool *pgxpool.Pool) (lock.Locker, error) {
	switch a.Config.Lock() {
	case config.DriverPostgres:
		return lock.NewPostgres(pool, a.lockName()), nil
	case config.DriverSQLite:
		return lock.NewSQLite(ctx, a.sqlite.DB(), a.lockName(), a.Config.LeaseTTL)
	case config.DriverValkey:
		l, err := lock.NewValkey(a.Config.ValkeyAddr, a.Config.ValkeyPassword, a.lockName())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, l.Close)
		return l, nil
	default:
		return lock.NewLocal(), nil
	}
}

func (a *App) openCache(ctx context.Context) (auth.Cache, error) {
	if a.Config.AuthCache != config.DriverValkey {
		return auth.NewMemoryCache(a.Clock), nil
	}
	client, err := auth.DialValkey(ctx, a.Config.ValkeyAddr, a.Config.ValkeyPassword)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return auth.NewValkeyCache(client), nil
}

func (a *App) openSender() (mail.Sender, error) {
	var transport mail.Transport
	switch a.Config.MailDriver {
	case config.DriverSMTP:
		t, err := mail.NewSMTPTransport(a.Config.SMTP)
		if err != nil {
			return nil, err
		}
		transport = t
	default:
		transport = mail.NewLogTransport(a.Log)
	}
	quota := mail.NewQuota(a.Config.MailDailyQuota, a.Clock, a.Config.Location)
	return mail.NewMailer(transport, quota, a.Config.MailDefaultFrom, a.Config.MailAliases), nil
}

// Handler builds the HTTP API over the wired services.
func (a *App) Handler() http.Handler {
	h := handler.New(handler.Services{
		Registrar: a.Registrations,
		CheckIn:   a.CheckIn,
		MailMerge: a.MailMerge,
		Auth:      a.Auth,
		Metadata:  a.Metadata,
		Clock:     a.Clock,
		Log:       a.Log,
	})
	return h.Routes(handler.RouterOptions{
		Log:           a.Log,
		Metrics:       a.Metrics,
		AdminUsername: a.Config.AdminUsername,
		AdminPassword: a.Config.AdminPassword,
	})
}

// Close releases every opened resource in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
