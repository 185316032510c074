// Package db holds the sqlite plumbing for the optional session log: driver
// registration, schema, and scan/value helpers. The network core itself
// keeps no on-disk state; only the CLI opens a database.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the registered sqlite driver with the session-log pragmas
// applied on every new connection.
const DriverName = "netplay_sqlite3"

// RegisterPragmaHook registers DriverName. Call once, before Open.
func RegisterPragmaHook(cacheSize int) {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(c *sqlite3.SQLiteConn) error {
			pragmas := fmt.Sprintf(`
				PRAGMA journal_mode = WAL;
				PRAGMA busy_timeout = 5000;
				PRAGMA synchronous = NORMAL;
				PRAGMA cache_size = -%d;
				PRAGMA foreign_keys = true;
				PRAGMA temp_store = memory;
			`, cacheSize)
			_, err := c.Exec(pragmas, nil)
			return err
		},
	})
}

// Open opens (or creates) the session log database and applies the schema.
func Open(ctx context.Context, dbFile string) (*sql.DB, error) {
	uri := &url.URL{
		Scheme: "file",
		Opaque: dbFile,
	}
	query := uri.Query()
	query.Set("_txlock", "immediate")
	uri.RawQuery = query.Encode()

	conn, err := sql.Open(DriverName, uri.String())
	if err != nil {
		return nil, err
	}

	if _, err := conn.ExecContext(ctx, Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init db: %w", err)
	}

	return conn, nil
}
