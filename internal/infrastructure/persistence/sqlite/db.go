package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverModernc is the pure Go driver registered by modernc.org/sqlite.
	DriverModernc = "sqlite"
	// DriverCgo is github.com/mattn/go-sqlite3.
	DriverCgo = "sqlite3"
)

// Open connects to a SQLite database. Transactions start with
// BEGIN IMMEDIATE so two writers never interleave a read-modify-write.
func Open(driver, path string) (*sql.DB, error) {
	dsn, err := dataSource(driver, path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if isMemory(path) {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func dataSource(driver, path string) (string, error) {
	if isMemory(path) {
		return path, nil
	}

	switch driver {
	case DriverModernc:
		return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate", nil
	case DriverCgo:
		return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate", nil
	default:
		return "", fmt.Errorf("sqlite: unknown driver %q", driver)
	}
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
