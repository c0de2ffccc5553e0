package db

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/zulandar/scrumban/internal/apperr"
	"github.com/zulandar/scrumban/internal/config"
	"github.com/zulandar/scrumban/internal/telemetry"
	"gorm.io/gorm"
)

const retryPolicyKey = "scrumban:retry_policy"

// RetryPolicy bounds how often a transaction that lost a serialization
// conflict is re-run.
type RetryPolicy struct {
	MaxRetries      int
	MaxElapsed      time.Duration
	InitialInterval time.Duration
}

// DefaultRetryPolicy applies when a *gorm.DB carries no policy.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      5,
	MaxElapsed:      5 * time.Second,
	InitialInterval: 20 * time.Millisecond,
}

// PolicyFromConfig converts transaction settings into a RetryPolicy.
func PolicyFromConfig(cfg config.TransactionConfig) RetryPolicy {
	p := DefaultRetryPolicy
	p.MaxRetries = cfg.MaxRetries
	if cfg.MaxElapsed > 0 {
		p.MaxElapsed = cfg.MaxElapsed
	}
	return p
}

// WithRetryPolicy returns a reusable session of db whose Transact calls
// use p.
func WithRetryPolicy(db *gorm.DB, p RetryPolicy) *gorm.DB {
	return db.Set(retryPolicyKey, p).Session(&gorm.Session{})
}

func retryPolicy(db *gorm.DB) RetryPolicy {
	if v, ok := db.Get(retryPolicyKey); ok {
		if p, ok := v.(RetryPolicy); ok {
			return p
		}
	}
	return DefaultRetryPolicy
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxElapsedTime = p.MaxElapsed
	var b backoff.BackOff = bo
	if p.MaxRetries >= 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxRetries))
	}
	return backoff.WithContext(b, ctx)
}

// Transact runs fn inside one transaction. All of fn's reads and writes
// commit together or not at all. On MySQL the transaction is serializable.
//
// A transaction that fails with a serialization conflict (deadlock, lock
// wait timeout, busy database) is rolled back and re-run with exponential
// backoff; once the retries are exhausted the error is reported as
// apperr.ErrConflict. Any other error from fn is returned unchanged after
// the rollback.
func Transact(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	policy := retryPolicy(db)
	var opts []*sql.TxOptions
	if db.Dialector != nil && db.Dialector.Name() == "mysql" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := db.WithContext(ctx).Transaction(fn, opts...)
		if err == nil {
			return nil
		}
		if IsConflict(err) {
			slog.WarnContext(ctx, "transaction conflict, retrying", "attempt", attempt, "err", err)
			telemetry.TxRetried(ctx)
			return err
		}
		return backoff.Permanent(err)
	}, policy.backOff(ctx))

	if err != nil && IsConflict(err) {
		return apperr.Conflict(err)
	}
	return err
}

// MySQL error numbers that signal a serialization failure.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlSerialization   = 1105 // "serialization failure" on MySQL-compatible engines
)

// IsConflict reports whether err came from concurrent conflicting writes
// rather than from the operation itself.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperr.ErrConflict) {
		return true
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return true
		case mysqlSerialization:
			return strings.Contains(strings.ToLower(myErr.Message), "serializ")
		}
		return false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}
