package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case MySQL:
		return "mysql"
	default:
		return string(d)
	}
}

// SQLStore keeps values in a single kv_store table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// OpenSQL opens and pings a database for the dialect. The caller owns the
// returned handle.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	if dialect != Postgres && dialect != MySQL {
		return nil, fmt.Errorf("%w: unsupported dialect %q", ErrStorage, dialect)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrStorage, err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := withTimeout(ctx, pingTimeout, db.PingContext); err != nil {
		_ = db.Close()
		return nil, classify(err)
	}
	return db, nil
}

func (s *SQLStore) Init(ctx context.Context) error {
	return classify(withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, createTableQuery(s.dialect))
		return err
	}))
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return classify(withTimeout(ctx, pingTimeout, s.db.PingContext))
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, selectQuery(s.dialect), key).Scan(&v)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(err)
	}
	return v, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	return classify(withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, upsertQuery(s.dialect), key, value)
		return err
	}))
}

func createTableQuery(d Dialect) string {
	if d == MySQL {
		return `
			CREATE TABLE IF NOT EXISTS kv_store (
				kv_key     VARCHAR(191) NOT NULL PRIMARY KEY,
				kv_value   LONGTEXT     NOT NULL,
				updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			)
		`
	}
	return `
		CREATE TABLE IF NOT EXISTS kv_store (
			kv_key     TEXT        PRIMARY KEY,
			kv_value   TEXT        NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
}

func selectQuery(d Dialect) string {
	if d == MySQL {
		return `SELECT kv_value FROM kv_store WHERE kv_key = ?`
	}
	return `SELECT kv_value FROM kv_store WHERE kv_key = $1`
}

func upsertQuery(d Dialect) string {
	if d == MySQL {
		return `
			INSERT INTO kv_store (kv_key, kv_value)
			VALUES (?, ?)
			ON DUPLICATE KEY UPDATE kv_value = VALUES(kv_value)
		`
	}
	return `
		INSERT INTO kv_store (kv_key, kv_value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (kv_key) DO UPDATE
		SET kv_value = EXCLUDED.kv_value, updated_at = now()
	`
}

// classify wraps driver errors in ErrStorage, keeping the server error code
// in the message.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: postgres %s: %w", ErrStorage, pgErr.Code, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fmt.Errorf("%w: mysql %d: %w", ErrStorage, myErr.Number, err)
	}

	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

var _ Storage = (*SQLStore)(nil)
