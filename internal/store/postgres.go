package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) InsertLink(ctx context.Context, l Link) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO links(alias, target_url, topic, owner, created_at) VALUES($1, $2, $3, $4, $5)`,
		l.Alias, l.Target, nullString(l.Topic), nullString(l.Owner), l.CreatedAt.UTC())
	return pgConflict(err)
}

func (p *Postgres) LinkByAlias(ctx context.Context, alias string) (Link, error) {
	return pgLink(p.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE alias = $1`, alias))
}

func (p *Postgres) LinkByTarget(ctx context.Context, target string) (Link, error) {
	return pgLink(p.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE target_url = $1`, target))
}

func (p *Postgres) LinksByTopic(ctx context.Context, topic string) ([]Link, error) {
	return p.links(ctx, `SELECT `+linkColumns+` FROM links WHERE topic = $1 ORDER BY created_at, alias`, topic)
}

func (p *Postgres) LinksByOwner(ctx context.Context, owner string) ([]Link, error) {
	return p.links(ctx, `SELECT `+linkColumns+` FROM links WHERE owner = $1 ORDER BY created_at, alias`, owner)
}

func (p *Postgres) links(ctx context.Context, query string, arg string) ([]Link, error) {
	rows, err := p.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func (p *Postgres) InsertVisit(ctx context.Context, v Visit) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO visits(id, alias, visited_at, user_agent, ip, os, device, country, region, city)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		v.ID, v.Alias, v.VisitedAt.UTC(), v.UserAgent, v.IP, v.OS, v.Device, v.Country, v.Region, v.City)
	return err
}

func (p *Postgres) ScanVisits(ctx context.Context, alias string, fn func(Visit) error) error {
	rows, err := p.pool.Query(ctx, `SELECT `+visitColumns+` FROM visits WHERE alias = $1 ORDER BY visited_at, id`, alias)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (p *Postgres) TopAliases(ctx context.Context, n int) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT l.alias FROM links l
		LEFT JOIN visits v ON v.alias = l.alias
		GROUP BY l.alias
		ORDER BY COUNT(v.id) DESC, l.alias
		LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// MigratePostgres ensures schema exists
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS links (
			alias TEXT PRIMARY KEY,
			target_url TEXT NOT NULL,
			topic TEXT,
			owner TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT links_target_url_key UNIQUE (target_url)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_links_topic ON links(topic);`,
		`CREATE INDEX IF NOT EXISTS idx_links_owner ON links(owner);`,
		`CREATE TABLE IF NOT EXISTS visits (
			id TEXT PRIMARY KEY,
			alias TEXT NOT NULL,
			visited_at TIMESTAMPTZ NOT NULL,
			user_agent TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			os TEXT NOT NULL DEFAULT '',
			device TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_visits_alias_ts ON visits(alias, visited_at);`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

func pgLink(row pgx.Row) (Link, error) {
	l, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Link{}, ErrNotFound
	}
	return l, err
}

// pgConflict maps unique_violation (23505) to the store sentinels by constraint name.
func pgConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "links_target_url_key":
		return ErrTargetTaken
	case "links_pkey":
		return ErrAliasTaken
	}
	return err
}
