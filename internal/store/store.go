package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrAliasTaken is returned by InsertLink when the alias is already assigned.
	ErrAliasTaken = errors.New("alias already taken")
	// ErrTargetTaken is returned by InsertLink when another link already points at the target URL.
	ErrTargetTaken = errors.New("target already shortened")
)

// Link is the durable alias -> target mapping. Alias and Target never change once stored.
type Link struct {
	Alias     string
	Target    string
	Topic     string
	Owner     string
	CreatedAt time.Time
}

// Visit is one recorded redirect. Visits are append-only.
type Visit struct {
	ID        string
	Alias     string
	VisitedAt time.Time
	UserAgent string
	IP        string
	OS        string
	Device    string
	Country   string
	Region    string
	City      string
}

type Store interface {
	// InsertLink stores l only if neither its alias nor its target exist yet.
	// The check and the write are a single atomic statement.
	InsertLink(ctx context.Context, l Link) error
	LinkByAlias(ctx context.Context, alias string) (Link, error)
	LinkByTarget(ctx context.Context, target string) (Link, error)
	LinksByTopic(ctx context.Context, topic string) ([]Link, error)
	LinksByOwner(ctx context.Context, owner string) ([]Link, error)

	InsertVisit(ctx context.Context, v Visit) error
	// ScanVisits calls fn for every visit of alias ordered by time.
	// Returning an error from fn stops the scan and is returned as is.
	ScanVisits(ctx context.Context, alias string, fn func(Visit) error) error

	// TopAliases returns up to n aliases ordered by visit count, used for cache prewarm.
	TopAliases(ctx context.Context, n int) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
