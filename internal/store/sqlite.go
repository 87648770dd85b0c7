package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) InsertLink(ctx context.Context, l Link) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO links(alias, target_url, topic, owner, created_at) VALUES(?, ?, ?, ?, ?)`,
		l.Alias, l.Target, nullString(l.Topic), nullString(l.Owner), l.CreatedAt.UTC())
	return sqliteConflict(err)
}

func (s *SQLite) LinkByAlias(ctx context.Context, alias string) (Link, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE alias = ?`, alias)
	return scanLink(row)
}

func (s *SQLite) LinkByTarget(ctx context.Context, target string) (Link, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE target_url = ?`, target)
	return scanLink(row)
}

func (s *SQLite) LinksByTopic(ctx context.Context, topic string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+linkColumns+` FROM links WHERE topic = ? ORDER BY created_at, alias`, topic)
	if err != nil {
		return nil, err
	}
	return collectLinks(rows)
}

func (s *SQLite) LinksByOwner(ctx context.Context, owner string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+linkColumns+` FROM links WHERE owner = ? ORDER BY created_at, alias`, owner)
	if err != nil {
		return nil, err
	}
	return collectLinks(rows)
}

func (s *SQLite) InsertVisit(ctx context.Context, v Visit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visits(id, alias, visited_at, user_agent, ip, os, device, country, region, city)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Alias, v.VisitedAt.UTC(), v.UserAgent, v.IP, v.OS, v.Device, v.Country, v.Region, v.City)
	return err
}

func (s *SQLite) ScanVisits(ctx context.Context, alias string, fn func(Visit) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE alias = ? ORDER BY visited_at, id`, alias)
	if err != nil {
		return err
	}
	return eachVisit(rows, fn)
}

func (s *SQLite) TopAliases(ctx context.Context, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.alias FROM links l
		LEFT JOIN visits v ON v.alias = l.alias
		GROUP BY l.alias
		ORDER BY COUNT(v.id) DESC, l.alias
		LIMIT ?`, n)
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

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// MigrateSQLite ensures schema exists
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS links (
			alias TEXT PRIMARY KEY,
			target_url TEXT NOT NULL UNIQUE,
			topic TEXT,
			owner TEXT,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_links_topic ON links(topic);`,
		`CREATE INDEX IF NOT EXISTS idx_links_owner ON links(owner);`,
		`CREATE TABLE IF NOT EXISTS visits (
			id TEXT PRIMARY KEY,
			alias TEXT NOT NULL,
			visited_at TIMESTAMP NOT NULL,
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
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func sqliteConflict(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return err
	}
	// "UNIQUE constraint failed: links.target_url"
	if strings.Contains(se.Error(), "links.target_url") {
		return ErrTargetTaken
	}
	if strings.Contains(se.Error(), "links.alias") {
		return ErrAliasTaken
	}
	return err
}

const (
	linkColumns  = `alias, target_url, topic, owner, created_at`
	visitColumns = `id, alias, visited_at, user_agent, ip, os, device, country, region, city`
)

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(r rowScanner) (Link, error) {
	var (
		l            Link
		topic, owner sql.NullString
		created      time.Time
	)
	if err := r.Scan(&l.Alias, &l.Target, &topic, &owner, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Link{}, ErrNotFound
		}
		return Link{}, err
	}
	l.Topic = topic.String
	l.Owner = owner.String
	l.CreatedAt = created.UTC()
	return l, nil
}

func collectLinks(rows *sql.Rows) ([]Link, error) {
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

func scanVisit(r rowScanner) (Visit, error) {
	var v Visit
	err := r.Scan(&v.ID, &v.Alias, &v.VisitedAt, &v.UserAgent, &v.IP, &v.OS, &v.Device, &v.Country, &v.Region, &v.City)
	v.VisitedAt = v.VisitedAt.UTC()
	return v, err
}

func eachVisit(rows *sql.Rows, fn func(Visit) error) error {
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

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
