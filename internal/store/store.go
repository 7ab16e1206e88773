/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store is the host-side block property store: it keeps each note's
// editorOptions and a raster preview in SQLite or Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"handnote/internal/editorstate"
	applog "handnote/internal/log"
	"handnote/internal/note"

	// Postgres through database/sql
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound       = errors.New("store: not found")
	ErrInvalidOptions = errors.New("store: invalid editor options")
)

// Dialect selects SQL flavour details.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// DialectFor picks the dialect from a DSN: postgres URLs go to pgx, anything else is a SQLite path.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Store persists block properties.
type Store struct {
	db      *sql.DB
	dialect Dialect
	schema  *gojsonschema.Schema
	l       *slog.Logger
	now     func() time.Time
}

// Open connects to dsn, creating the SQLite file and the tables when missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("store"), "open")
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("store: dsn is required")
	}
	d := DialectFor(dsn)
	var (
		db  *sql.DB
		err error
	)
	switch d {
	case Postgres:
		db, err = sql.Open("pgx", dsn)
	default:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		db, err = sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(dsn)))
		if err == nil {
			db.SetMaxOpenConns(1)
			db.SetMaxIdleConns(1)
		}
	}
	if err != nil {
		l.Error("open failed", slog.String("dialect", d.String()), slog.Any("err", err))
		return nil, fmt.Errorf("open %s: %w", d, err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	if d == SQLite {
		if _, err := db.ExecContext(pctx, "PRAGMA journal_mode=WAL;"); err != nil {
			l.Warn("enable WAL failed", slog.Any("err", err))
		}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(editorstate.Schema()))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("compile options schema: %w", err)
	}
	s := &Store{db: db, dialect: d, schema: schema, l: applog.WithComponent("store"), now: time.Now}
	if err := s.migrate(pctx); err != nil {
		_ = db.Close()
		l.Error("migrate failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("store ready", slog.String("dialect", d.String()))
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) migrate(ctx context.Context) error {
	blob := "BLOB"
	if s.dialect == Postgres {
		blob = "BYTEA"
	}
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS blocks (
			id         TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS previews (
			block_id   TEXT PRIMARY KEY,
			png        ` + blob + ` NOT NULL,
			w          INTEGER NOT NULL DEFAULT 0,
			h          INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, q := range ddl {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(q string) string { return rebind(s.dialect, q) }

func rebind(d Dialect, q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) stamp() string { return s.now().UTC().Format(time.RFC3339Nano) }

// Put stores value as JSON under (id, key). editorOptions values are validated first.
func (s *Store) Put(ctx context.Context, id, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.PutRaw(ctx, id, key, raw)
}

// PutRaw stores already encoded JSON.
func (s *Store) PutRaw(ctx context.Context, id, key string, raw []byte) error {
	if id == "" || key == "" {
		return errors.New("store: block id and key are required")
	}
	if key == note.OptionsKey {
		if err := s.Validate(raw); err != nil {
			return err
		}
	} else if !json.Valid(raw) {
		return fmt.Errorf("store: %s is not valid JSON", key)
	}
	q := s.rebind(`INSERT INTO blocks(id, key, value, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, id, key, string(raw), s.stamp()); err != nil {
		return fmt.Errorf("put %s/%s: %w", id, key, err)
	}
	s.l.DebugContext(ctx, "block property stored", slog.String("block", id), slog.String("key", key), slog.Int("bytes", len(raw)))
	return nil
}

// Validate checks raw against the editorOptions schema.
func (s *Store) Validate(raw []byte) error {
	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(msgs, "; "))
	}
	return nil
}

// Get returns the raw JSON stored under (id, key).
func (s *Store) Get(ctx context.Context, id, key string) (json.RawMessage, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM blocks WHERE id = ? AND key = ?`), id, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", id, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", id, key, err)
	}
	return json.RawMessage(v), nil
}

// Options loads the editorOptions of a block.
func (s *Store) Options(ctx context.Context, id string) (editorstate.EditorOptions, error) {
	var opts editorstate.EditorOptions
	raw, err := s.Get(ctx, id, note.OptionsKey)
	if err != nil {
		return opts, err
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return opts, fmt.Errorf("decode %s options: %w", id, err)
	}
	return opts, nil
}

// Blocks lists block ids that have editorOptions, sorted.
func (s *Store) Blocks(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id FROM blocks WHERE key = ? ORDER BY id`), note.OptionsKey)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a block's properties and preview.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM blocks WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM previews WHERE block_id = ?`), id); err != nil {
		return fmt.Errorf("delete %s preview: %w", id, err)
	}
	return nil
}

// PutPreview stores a PNG thumbnail for a block.
func (s *Store) PutPreview(ctx context.Context, id string, png []byte, w, h int) error {
	q := s.rebind(`INSERT INTO previews(block_id, png, w, h, updated_at) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(block_id) DO UPDATE SET png = excluded.png, w = excluded.w, h = excluded.h, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, id, png, w, h, s.stamp()); err != nil {
		return fmt.Errorf("put preview %s: %w", id, err)
	}
	return nil
}

// Preview loads the PNG thumbnail of a block.
func (s *Store) Preview(ctx context.Context, id string) (png []byte, w, h int, err error) {
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT png, w, h FROM previews WHERE block_id = ?`), id).Scan(&png, &w, &h)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, 0, fmt.Errorf("preview %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("get preview %s: %w", id, err)
	}
	return png, w, h, nil
}

// Updater returns the host callback for one block. Failures are logged; the
// widget never sees them.
func (s *Store) Updater(ctx context.Context, id string) note.UpdateFunc {
	l := applog.WithOperation(s.l, "update").With(slog.String("block", id))
	return func(key string, value any) {
		if err := s.Put(ctx, id, key, value); err != nil {
			l.ErrorContext(ctx, "store block property failed", slog.String("key", key), slog.Any("err", err))
			return
		}
		l.InfoContext(ctx, "block property updated", slog.String("key", key))
	}
}
