package bookmark

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `CREATE TABLE IF NOT EXISTS bookmarks (
	book     TEXT PRIMARY KEY,
	"offset" INTEGER NOT NULL,
	updated  INTEGER NOT NULL
);`

// SQLite is Store backed by SQLite database. Single connection is shared
// and serialized.
type SQLite struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

// OpenSQLite opens or creates database at path. Use ":memory:" for
// temporary database.
func OpenSQLite(path string) (*SQLite, error) {
	flags := []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenCreate}
	if path == ":memory:" {
		flags = append(flags, sqlite.OpenMemory)
	} else {
		flags = append(flags, sqlite.OpenWAL)
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, fmt.Errorf("unable to open bookmarks database %q: %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare bookmarks database %q: %w", path, err)
	}
	return &SQLite{conn: conn}, nil
}

func (s *SQLite) Load(ctx context.Context, key string) (offset int, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.conn.SetInterrupt(s.conn.SetInterrupt(ctx.Done()))

	err = sqlitex.Execute(s.conn, `SELECT "offset" FROM bookmarks WHERE book = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				offset, ok = int(stmt.ColumnInt64(0)), true
				return nil
			},
		})
	if err != nil {
		return 0, false, err
	}
	return offset, ok, nil
}

func (s *SQLite) Save(ctx context.Context, key string, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.conn.SetInterrupt(s.conn.SetInterrupt(ctx.Done()))

	return sqlitex.Execute(s.conn, `INSERT INTO bookmarks (book, "offset", updated) VALUES (?, ?, ?)
		ON CONFLICT(book) DO UPDATE SET "offset" = excluded."offset", updated = excluded.updated`,
		&sqlitex.ExecOptions{Args: []any{key, offset, time.Now().Unix()}})
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
