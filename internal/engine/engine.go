package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tufline/internal/audit"
	"tufline/internal/config"
	"tufline/internal/engine/auth"
	"tufline/internal/failure"
	"tufline/internal/logger"
	"tufline/internal/metrics"
	"tufline/internal/repo"
)

// Engine is the scheduling facade. Every operation authenticates its API key
// first and performs each write in a single transaction.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Audit   audit.Writer
	Auth    auth.Service
	Config  *config.Config
	Log     logger.Logger
	Metrics *metrics.Manager
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config, log logger.Logger, m *metrics.Manager) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	r := repo.Repo{DB: db}
	e := Engine{
		DB:      db,
		Repo:    r,
		Config:  cfg,
		Log:     log.Named("engine"),
		Metrics: m,
		Now:     time.Now,
	}
	e.Auth = auth.Service{Repo: r, TokenSecret: []byte(cfg.Auth.TokenSecret)}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

func (e Engine) log() logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

func (e Engine) audit() audit.Writer {
	if e.Audit.Now == nil {
		return audit.Writer{Now: e.now}
	}
	return e.Audit
}

func (e Engine) authService() auth.Service {
	s := e.Auth
	s.Repo = e.Repo
	if s.Now == nil {
		s.Now = e.now
	}
	return s
}

func (e Engine) authenticate(ctx context.Context, apiKey string) (auth.Principal, error) {
	return e.authService().Authenticate(ctx, apiKey)
}

func (e Engine) workers() int {
	if e.Config == nil || e.Config.Resolver.Workers < 1 {
		return 1
	}
	return e.Config.Resolver.Workers
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// finish records the outcome of op and normalizes err into the failure taxonomy.
func (e Engine) finish(ctx context.Context, op string, err error) error {
	code := failure.CodeOf(err)
	e.Metrics.ObserveOperation(op, string(code))
	if err == nil {
		return nil
	}
	fields := []logger.Field{
		logger.String("op", op),
		logger.String("code", string(code)),
		logger.String("kind", string(code.Kind())),
		logger.Error(err),
	}
	switch code.Kind() {
	case failure.KindReferential:
		e.log().Warn(ctx, "referenced entity missing", fields...)
	case failure.KindUnknown:
		e.log().Error(ctx, "operation failed", fields...)
	default:
		e.log().Debug(ctx, "operation rejected", fields...)
	}
	var fe *failure.Error
	if !errors.As(err, &fe) {
		return failure.Wrap(failure.Unknown, err, "internal error")
	}
	return err
}

// missing maps repo.ErrNotFound to code and passes other errors through.
func missing(err error, code failure.Code, format string, args ...any) error {
	if errors.Is(err, repo.ErrNotFound) {
		return failure.Wrap(code, err, format, args...)
	}
	return err
}
