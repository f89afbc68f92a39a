//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "clipbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutState(ctx context.Context, chatID int64, blob []byte) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sub_state(chat_id, blob) VALUES(?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET blob=excluded.blob`,
		chatID, blob,
	)
	return err
}

func (s *sqliteStore) DeleteState(ctx context.Context, chatID int64) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sub_state WHERE chat_id = ?`, chatID)
	return err
}

func (s *sqliteStore) LoadStates(ctx context.Context) (map[int64][]byte, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, blob FROM sub_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64][]byte{}
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		out[id] = blob
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendSent(ctx context.Context, url string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if strings.TrimSpace(url) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO sent(url) VALUES(?)`, url)
	return err
}

func (s *sqliteStore) ReplaceSent(ctx context.Context, urls []string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM sent`); err != nil {
		return err
	}
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sent(url) VALUES(?)`, u); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadSent(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM sent ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AddFollow(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if strings.TrimSpace(name) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO follows(name) VALUES(?) ON CONFLICT(name) DO NOTHING`, name)
	return err
}

func (s *sqliteStore) RemoveFollow(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM follows WHERE name = ?`, name)
	return err
}

func (s *sqliteStore) LoadFollows(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM follows`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PutCredential(ctx context.Context, token string, expiresAt time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credential(id, token, expires_at) VALUES(1,?,?)
		 ON CONFLICT(id) DO UPDATE SET token=excluded.token, expires_at=excluded.expires_at`,
		token, expiresAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) GetCredential(ctx context.Context) (string, time.Time, bool, error) {
	if s == nil || s.db == nil {
		return "", time.Time{}, false, ErrDisabled
	}
	var token, raw string
	err := s.db.QueryRowContext(ctx, `SELECT token, expires_at FROM credential WHERE id = 1`).Scan(&token, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	exp, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", time.Time{}, false, nil
	}
	return token, exp, true, nil
}
