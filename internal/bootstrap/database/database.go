package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"readconfirm/internal/bootstrap/config"
	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/errs"
)

func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.database"))

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		if err := ensureSQLiteDirectory(logCtx, cfg.DSN); err != nil {
			return nil, errs.WithStack(errs.Wrap(err, "ensure sqlite directory"))
		}

		dsn := sqliteDSN(cfg.DSN, cfg.BusyTimeout)
		db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: newGormLogger(logCtx)})
		if err != nil {
			return nil, errs.WithStack(errs.Wrap(err, "open sqlite db"))
		}
		if cfg.MaxOpenConns > 0 {
			sqlDB, err := db.DB()
			if err != nil {
				return nil, errs.WithStack(errs.Wrap(err, "get sql db"))
			}
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		logging.Info(logCtx, "database opened",
			slog.String("driver", "sqlite"),
			slog.String("dsn", cfg.DSN),
			slog.Int("max_open_conns", cfg.MaxOpenConns),
		)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// newGormLogger sends slow queries and SQL failures to the context logger.
// Lookups that find no row are normal control flow and stay out of the log.
func newGormLogger(ctx context.Context) gormlogger.Interface {
	return gormlogger.NewSlogLogger(logging.Logger(ctx).With(slog.String("component", "gorm")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
		LogLevel:                  gormlogger.Warn,
	})
}

// sqliteDSN appends the busy timeout and WAL pragmas unless the DSN already sets pragmas.
func sqliteDSN(dsn string, busyTimeout time.Duration) string {
	if dsn == ":memory:" || strings.Contains(dsn, "_pragma=") {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	pragmas := "_pragma=journal_mode(WAL)"
	if busyTimeout > 0 {
		pragmas += fmt.Sprintf("&_pragma=busy_timeout(%d)", busyTimeout.Milliseconds())
	}
	return dsn + sep + pragmas
}

func ensureSQLiteDirectory(ctx context.Context, dsn string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return nil
	}

	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = strings.TrimPrefix(candidate, "file:")
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create sqlite directory %q", dir)
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.database")), "sqlite directory ensured", slog.String("dir", dir))
	return nil
}
