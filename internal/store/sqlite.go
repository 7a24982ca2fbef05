package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	for _, stmt := range schemaStatements("integer primary key autoincrement", "text") {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate documents: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Insert(ctx context.Context, kind Kind, doc Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	_, err := s.db.ExecContext(ctx, "insert into documents (kind, id, owner, symbol, version, body) values (?, ?, ?, ?, ?, ?)",
		string(kind), doc.ID, doc.Owner, doc.Symbol, doc.Version, string(doc.Body))
	if err != nil {
		return "", sqliteError(err)
	}
	return doc.ID, nil
}

func (s *SQLite) FindOne(ctx context.Context, kind Kind, f Filter) (Document, error) {
	cond, args := where(kind, f, question, 0)
	var d Document
	var body string
	err := s.db.QueryRowContext(ctx, "select id, owner, symbol, version, body from documents"+cond+" order by seq limit 1", args...).
		Scan(&d.ID, &d.Owner, &d.Symbol, &d.Version, &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, ErrNotFound
		}
		return d, err
	}
	d.Body = []byte(body)
	return d, nil
}

func (s *SQLite) Find(ctx context.Context, kind Kind, f Filter) ([]Document, error) {
	cond, args := where(kind, f, question, 0)
	rows, err := s.db.QueryContext(ctx, "select id, owner, symbol, version, body from documents"+cond+" order by seq", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		var body string
		if err := rows.Scan(&d.ID, &d.Owner, &d.Symbol, &d.Version, &body); err != nil {
			return nil, err
		}
		d.Body = []byte(body)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateOne(ctx context.Context, kind Kind, f Filter, doc Document) (bool, error) {
	if f.ID == "" {
		return false, errMissingID
	}
	cond, args := where(kind, f, question, 0)
	args = append([]any{doc.Owner, doc.Symbol, doc.Version, string(doc.Body)}, args...)
	res, err := s.db.ExecContext(ctx, "update documents set owner = ?, symbol = ?, version = ?, body = ?"+cond, args...)
	if err != nil {
		return false, sqliteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) DeleteOne(ctx context.Context, kind Kind, f Filter) (bool, error) {
	cond, args := where(kind, f, question, 0)
	res, err := s.db.ExecContext(ctx, "delete from documents where seq = (select seq from documents"+cond+" order by seq limit 1)", args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	_ = s.db.Close()
}

func sqliteError(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
