package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements("bigserial primary key", "jsonb") {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate documents: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Insert(ctx context.Context, kind Kind, doc Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	_, err := p.pool.Exec(ctx, "insert into documents (kind, id, owner, symbol, version, body) values ($1, $2, $3, $4, $5, $6)",
		string(kind), doc.ID, doc.Owner, doc.Symbol, doc.Version, string(doc.Body))
	if err != nil {
		return "", pgError(err)
	}
	return doc.ID, nil
}

func (p *Postgres) FindOne(ctx context.Context, kind Kind, f Filter) (Document, error) {
	cond, args := where(kind, f, dollar, 0)
	var d Document
	var body []byte
	err := p.pool.QueryRow(ctx, "select id, owner, symbol, version, body from documents"+cond+" order by seq limit 1", args...).
		Scan(&d.ID, &d.Owner, &d.Symbol, &d.Version, &body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return d, ErrNotFound
		}
		return d, err
	}
	d.Body = body
	return d, nil
}

func (p *Postgres) Find(ctx context.Context, kind Kind, f Filter) ([]Document, error) {
	cond, args := where(kind, f, dollar, 0)
	rows, err := p.pool.Query(ctx, "select id, owner, symbol, version, body from documents"+cond+" order by seq", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		var body []byte
		if err := rows.Scan(&d.ID, &d.Owner, &d.Symbol, &d.Version, &body); err != nil {
			return nil, err
		}
		d.Body = body
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateOne(ctx context.Context, kind Kind, f Filter, doc Document) (bool, error) {
	if f.ID == "" {
		return false, errMissingID
	}
	cond, args := where(kind, f, dollar, 4)
	args = append([]any{doc.Owner, doc.Symbol, doc.Version, string(doc.Body)}, args...)
	tag, err := p.pool.Exec(ctx, "update documents set owner = $1, symbol = $2, version = $3, body = $4"+cond, args...)
	if err != nil {
		return false, pgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) DeleteOne(ctx context.Context, kind Kind, f Filter) (bool, error) {
	cond, args := where(kind, f, dollar, 0)
	tag, err := p.pool.Exec(ctx, "delete from documents where seq = (select seq from documents"+cond+" order by seq limit 1)", args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
