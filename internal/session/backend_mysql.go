package session

import (
	"context"
	"regexp"
	"time"

	"sandgate/internal/common/db"
	appErr "sandgate/pkg/errors"
)

const defaultSessionTable = "sandgate_sessions"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// MySQLBackend keeps one row per session key.
type MySQLBackend struct {
	db    db.Database
	table string
}

// NewMySQLBackend uses table (default "sandgate_sessions"). The name is
// interpolated into SQL, so only plain identifiers are accepted.
func NewMySQLBackend(database db.Database, table string) (*MySQLBackend, error) {
	if table == "" {
		table = defaultSessionTable
	}
	if !tableName.MatchString(table) {
		return nil, appErr.InvalidParam("session.mysql.table", "must be a plain identifier")
	}
	return &MySQLBackend{db: database, table: table}, nil
}

// EnsureSchema creates the table when missing.
func (b *MySQLBackend) EnsureSchema(ctx context.Context) error {
	query := "CREATE TABLE IF NOT EXISTS " + b.table + ` (
	session_key VARCHAR(255) NOT NULL PRIMARY KEY,
	data LONGBLOB NOT NULL,
	updated_at DATETIME(3) NOT NULL
)`
	if _, err := b.db.Exec(ctx, query); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "create session table %s failed: %v", b.table, err)
	}
	return nil
}

func (b *MySQLBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRow(ctx, "SELECT data FROM "+b.table+" WHERE session_key = ?", key).Scan(&data)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, notFound(key)
		}
		return nil, appErr.Wrapf(err, appErr.StorageError, "load session %q failed: %v", key, err)
	}
	return data, nil
}

func (b *MySQLBackend) Store(ctx context.Context, key string, data []byte) error {
	query := "INSERT INTO " + b.table + " (session_key, data, updated_at) VALUES (?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)"
	if _, err := b.db.Exec(ctx, query, key, data, time.Now().UTC()); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "store session %q failed: %v", key, err)
	}
	return nil
}

func (b *MySQLBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.Exec(ctx, "DELETE FROM "+b.table+" WHERE session_key = ?", key); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "delete session %q failed: %v", key, err)
	}
	return nil
}
