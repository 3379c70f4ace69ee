// Package statedb remembers which files were verified or re-encoded, so unchanged
// files can be skipped on the next run.
package statedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"go.senan.xyz/flacr"
)

const schema = `
create table if not exists processed (
	path text primary key,
	kind text not null,
	size integer not null,
	mod_time integer not null,
	processed_at integer not null
);
`

type DB struct {
	db  *sql.DB
	now func() time.Time
}

var _ flacr.State = (*DB)(nil)

func Open(path string) (*DB, error) {
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db: db, now: time.Now}, nil
}

func (d *DB) Lookup(ctx context.Context, path string) (flacr.StateEntry, bool, error) {
	var kind string
	var size, modTime int64
	err := d.db.
		QueryRowContext(ctx, `select kind, size, mod_time from processed where path=?`, path).
		Scan(&kind, &size, &modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return flacr.StateEntry{}, false, nil
	}
	if err != nil {
		return flacr.StateEntry{}, false, fmt.Errorf("query: %w", err)
	}
	return flacr.StateEntry{
		Path:    path,
		Kind:    flacr.Kind(kind),
		Size:    size,
		ModTime: time.Unix(0, modTime),
	}, true, nil
}

func (d *DB) Store(ctx context.Context, entry flacr.StateEntry) error {
	_, err := d.db.ExecContext(ctx, `
		insert into processed (path, kind, size, mod_time, processed_at)
		values (?, ?, ?, ?, ?)
		on conflict (path) do update set
			kind=excluded.kind,
			size=excluded.size,
			mod_time=excluded.mod_time,
			processed_at=excluded.processed_at
		`,
		entry.Path, string(entry.Kind), entry.Size, entry.ModTime.UnixNano(), d.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Prune forgets every path that fn reports as gone.
func (d *DB) Prune(ctx context.Context, gone func(path string) bool) (int, error) {
	rows, err := d.db.QueryContext(ctx, `select path from processed`)
	if err != nil {
		return 0, fmt.Errorf("query: %w", err)
	}
	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan: %w", err)
		}
		if gone(path) {
			stale = append(stale, path)
		}
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return 0, fmt.Errorf("iter rows: %w", err)
	}

	for _, path := range stale {
		if _, err := d.db.ExecContext(ctx, `delete from processed where path=?`, path); err != nil {
			return 0, fmt.Errorf("delete: %w", err)
		}
	}
	return len(stale), nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
