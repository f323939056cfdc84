package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	libdb "snackbox/backend/libs/db"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrMigrate wraps every schema migration failure.
var ErrMigrate = errors.New("db: apply migrations")

// NewPostgres connects to Postgres using shared library helper.
func NewPostgres(ctx context.Context, dsn string, opts libdb.Options) (*sql.DB, error) {
	return libdb.NewPostgresDB(ctx, dsn, opts)
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: logger.Sugar()})

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrMigrate, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Join(ErrMigrate, err)
	}
	return nil
}

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	logger *zap.SugaredLogger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}
