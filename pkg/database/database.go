package database

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "pgx"
)

type DB struct {
	Driver string `yaml:"driver" envconfig:"DB_DRIVER" default:"sqlite3"`
	// Path of the SQLite file; ignored for pgx.
	Path string `yaml:"path" envconfig:"DB_PATH" default:"data/library.db"`
	DSN  string `yaml:"dsn" envconfig:"DB_DSN"`

	BusyTimeout     time.Duration `yaml:"busyTimeout" envconfig:"DB_BUSY_TIMEOUT" default:"5s"`
	MaxOpenConns    int           `yaml:"maxOpenConns" envconfig:"DB_MAX_OPEN_CONNS" default:"16"`
	MaxIdleConns    int           `yaml:"maxIdleConns" envconfig:"DB_MAX_IDLE_CONNS" default:"4"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
}

func (c DB) Dialect() Dialect {
	if c.Driver == string(Postgres) {
		return Postgres
	}
	return SQLite
}

// Placeholder returns the squirrel placeholder format of the dialect.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

func (d Dialect) gooseDialect() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite3"
}

// MigrationsDir is the directory inside the migrations FS that holds the dialect's files.
func (d Dialect) MigrationsDir() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// sqliteDSN makes every write transaction take the database lock at BEGIN,
// so read-then-write sequences inside one tx are serialized.
func sqliteDSN(cfg *DB) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", fmt.Sprint(cfg.BusyTimeout.Milliseconds()))
	q.Set("_foreign_keys", "1")
	q.Set("_journal_mode", "WAL")
	return "file:" + cfg.Path + "?" + q.Encode()
}

// NewDB opens the configured store, checks it and applies the embedded migrations.
func NewDB(ctx context.Context, cfg *DB, migrations fs.FS) (*sqlx.DB, error) {
	dialect := cfg.Dialect()
	dsn := cfg.DSN
	if dialect == SQLite {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create db dir")
			}
		}
		if dsn == "" {
			dsn = sqliteDSN(cfg)
		}
	} else if dsn == "" {
		return nil, errors.New("database DSN is required for pgx")
	}

	db, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlx.Open")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "db.Ping")
	}

	if migrations != nil {
		if err := Migrate(db, dialect, migrations); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Migrate runs goose up on the dialect's migration directory.
func Migrate(db *sqlx.DB, dialect Dialect, migrations fs.FS) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(log.New(io.Discard, "", 0))
	if err := goose.SetDialect(dialect.gooseDialect()); err != nil {
		return errors.Wrap(err, "goose.SetDialect")
	}
	if err := goose.Up(db.DB, dialect.MigrationsDir()); err != nil {
		return errors.Wrap(err, "goose.Up")
	}
	return nil
}
