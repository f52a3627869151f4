package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// Dialect identifies the SQL backend behind a DB.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// DB wraps sql.DB together with its dialect so repositories can
// write queries once with ? placeholders.
type DB struct {
	SQL     *sql.DB
	dialect Dialect
}

// Open connects to the database named by url. URLs with a postgres
// scheme use the pgx stdlib driver; a sqlite:// URL (or a plain file
// path) opens an embedded sqlite database. The schema is applied on
// every open.
func Open(url string) (*DB, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return openPostgres(url)
	case strings.HasPrefix(url, "sqlite://"):
		return OpenSQLite(strings.TrimPrefix(url, "sqlite://"))
	default:
		return OpenSQLite(url)
	}
}

func openPostgres(url string) (*DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := pingWithBackoff(db, 5); err != nil {
		_ = db.Close()
		return nil, err
	}

	d := &DB{SQL: db, dialect: Postgres}
	if err := d.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// OpenSQLite opens an embedded sqlite database at path. WAL and a busy
// timeout keep concurrent request handlers from tripping over each
// other; immediate transactions take the write lock up front.
func OpenSQLite(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	d := &DB{SQL: db, dialect: SQLite}
	if err := d.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// pingWithBackoff retries the initial ping so the server can come up
// before its database does.
func pingWithBackoff(db *sql.DB, attempts int) error {
	delay := time.Second
	var err error
	for i := 0; i < attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			return nil
		}
		log.Printf("db not reachable (attempt %d/%d): %v", i+1, attempts, err)
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

// Dialect returns the backend this DB was opened against.
func (d *DB) Dialect() Dialect { return d.dialect }

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.Close()
}

// Rebind converts ? placeholders to the $N form Postgres expects.
// SQLite queries pass through unchanged.
func (d *DB) Rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsUniqueViolation reports whether err is a unique or primary key
// constraint failure, for either backend. Callers map it to the
// matching domain conflict.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (d *DB) migrate() error {
	for _, stmt := range schema {
		if _, err := d.SQL.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// schema is written in the dialect intersection of Postgres and
// SQLite; TIMESTAMP and BOOLEAN map cleanly in both drivers.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		role          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name     TEXT NOT NULL,
		reg_number    TEXT UNIQUE,
		class_year    TEXT,
		created_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS modules (
		id          TEXT PRIMARY KEY,
		code        TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		invite_code TEXT NOT NULL UNIQUE,
		lecturer_id TEXT NOT NULL REFERENCES users(id),
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS module_registrations (
		student_id TEXT NOT NULL REFERENCES users(id),
		module_id  TEXT NOT NULL REFERENCES modules(id),
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (student_id, module_id)
	)`,
	`CREATE TABLE IF NOT EXISTS session_codes (
		id         TEXT PRIMARY KEY,
		module_id  TEXT NOT NULL REFERENCES modules(id),
		code       TEXT NOT NULL UNIQUE,
		active     BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_codes_module_active ON session_codes(module_id, active)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id              TEXT PRIMARY KEY,
		student_id      TEXT NOT NULL REFERENCES users(id),
		session_code_id TEXT NOT NULL REFERENCES session_codes(id),
		module_id       TEXT NOT NULL REFERENCES modules(id),
		signed_at       TIMESTAMP NOT NULL,
		UNIQUE (student_id, session_code_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_module ON attendance(module_id)`,
}
