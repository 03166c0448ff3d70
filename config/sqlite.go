package config

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const defaultSqlitePath = "./manufacturing.db"

// ConnectSqlite opens the SQLITE_PATH database file in WAL mode.
func ConnectSqlite() (*sqlx.DB, error) {
	return OpenSqlite(stringFromEnv("SQLITE_PATH", defaultSqlitePath))
}

func OpenSqlite(path string) (*sqlx.DB, error) {
	conn, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
