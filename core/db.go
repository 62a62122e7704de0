package core

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// SQLiteDBOption tunes the connection string of the sqlite file backing the
// user and message history stores. The zero value opens the file with the
// driver defaults.
type SQLiteDBOption struct {
	// ro | rw | rwc | memory
	Mode string
	// shared | private
	Cache string
	// DELETE | TRUNCATE | PERSIST | MEMORY | WAL | OFF
	JournalMode string
}

func (o *SQLiteDBOption) dsn(file string) string {
	params := make([]string, 0, 3)
	if o != nil {
		if o.Mode != "" {
			params = append(params, "mode="+o.Mode)
		}
		if o.Cache != "" {
			params = append(params, "cache="+o.Cache)
		}
		if o.JournalMode != "" {
			params = append(params, "_journal_mode="+o.JournalMode)
		}
	}
	dsn := "file:" + file
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}
	return dsn
}

// SQLiteDB wraps the sql handle together with the migration directory so the
// app can open and migrate in one place.
type SQLiteDB struct {
	*sql.DB
	migrationDir string
}

func NewSQLiteDB(file, migrationDir string, opt *SQLiteDBOption) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", opt.dsn(file))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	return &SQLiteDB{DB: db, migrationDir: migrationDir}, nil
}

// Migrate applies all pending goose migrations from the configured directory.
func (db *SQLiteDB) Migrate() error {
	goose.SetBaseFS(os.DirFS(db.migrationDir))
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	if err := goose.Up(db.DB, "."); err != nil {
		return fmt.Errorf("migrating sqlite db: %w", err)
	}
	return nil
}
