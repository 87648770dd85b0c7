package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/linkpulse/internal/cache"
	"github.com/roniherschmann/linkpulse/internal/metrics"
	"github.com/roniherschmann/linkpulse/internal/shortid"
	"github.com/roniherschmann/linkpulse/internal/store"
)

const (
	maxAllocAttempts = 5
	defaultCacheTTL  = time.Hour
	maxURLLength     = 2048
)

// Generator produces candidate identifiers.
type Generator interface {
	Generate() string
}

type Service struct {
	store    store.Store
	cache    cache.Cache
	recorder Recorder
	gen      Generator
	now      func() time.Time
	cacheTTL time.Duration
}

type Option func(*Service)

func WithGenerator(g Generator) Option {
	return func(s *Service) { s.gen = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCacheTTL sets the expiry of entries repopulated on a cache miss.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

func NewService(st store.Store, c cache.Cache, rec Recorder, opts ...Option) *Service {
	s := &Service{
		store:    st,
		cache:    c,
		recorder: rec,
		gen:      shortid.NewRandom(),
		now:      time.Now,
		cacheTTL: defaultCacheTTL,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ShortenInput is a creation request. Alias, Topic and Owner are optional.
type ShortenInput struct {
	Target string
	Alias  string
	Topic  string
	Owner  string
}

// Shorten returns the link for in.Target, creating it if the target was never shortened.
// created is false when an existing link was returned.
func (s *Service) Shorten(ctx context.Context, in ShortenInput) (link store.Link, created bool, err error) {
	target := strings.TrimSpace(in.Target)
	if err := validateTarget(target); err != nil {
		return store.Link{}, false, err
	}
	alias := strings.TrimSpace(in.Alias)
	if alias != "" {
		if err := shortid.ValidateAlias(alias); err != nil {
			return store.Link{}, false, invalid("customAlias", err.Error())
		}
	}

	existing, err := s.store.LinkByTarget(ctx, target)
	if err == nil {
		metrics.Shortens.WithLabelValues("existing").Inc()
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Link{}, false, fmt.Errorf("lookup target: %w", err)
	}

	link = store.Link{
		Target:    target,
		Topic:     strings.TrimSpace(in.Topic),
		Owner:     in.Owner,
		CreatedAt: s.now().UTC(),
	}
	link, created, err = s.allocate(ctx, link, alias)
	if err != nil {
		return store.Link{}, false, err
	}
	if !created {
		metrics.Shortens.WithLabelValues("existing").Inc()
		return link, false, nil
	}

	if err := s.cache.Set(ctx, link.Alias, encodeSnapshot(link), 0); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		log.Warn().Err(err).Str("alias", link.Alias).Msg("cache write-through")
	}
	metrics.Shortens.WithLabelValues("created").Inc()
	return link, true, nil
}

// allocate inserts link under alias, or under fresh random identifiers when alias is empty.
// Uniqueness rests on the store's conditional insert, never on a prior existence check.
func (s *Service) allocate(ctx context.Context, link store.Link, alias string) (store.Link, bool, error) {
	attempts := maxAllocAttempts
	if alias != "" {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		link.Alias = alias
		if link.Alias == "" {
			link.Alias = s.gen.Generate()
		}

		err := s.store.InsertLink(ctx, link)
		switch {
		case err == nil:
			return link, true, nil
		case errors.Is(err, store.ErrTargetTaken):
			// A concurrent request shortened the same target first.
			winner, err := s.store.LinkByTarget(ctx, link.Target)
			if err != nil {
				return store.Link{}, false, fmt.Errorf("lookup target: %w", err)
			}
			return winner, false, nil
		case errors.Is(err, store.ErrAliasTaken):
			if alias != "" {
				return store.Link{}, false, ErrConflict
			}
			log.Debug().Str("alias", link.Alias).Int("attempt", i+1).Msg("identifier collision")
			continue
		default:
			return store.Link{}, false, fmt.Errorf("insert link: %w", err)
		}
	}
	return store.Link{}, false, ErrExhaustedRetries
}

// Hit describes one redirect request for visit recording.
type Hit struct {
	Alias     string
	At        time.Time
	UserAgent string
	IP        string
}

// Resolve returns the target URL of alias, reading the cache first and the store on a miss.
// Every successful resolution is handed to the recorder.
func (s *Service) Resolve(ctx context.Context, alias, userAgent, ip string) (string, error) {
	target, ok := s.cached(ctx, alias)
	if !ok {
		link, err := s.store.LinkByAlias(ctx, alias)
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", fmt.Errorf("lookup alias: %w", err)
		}
		target = link.Target
		if err := s.cache.Set(ctx, alias, encodeSnapshot(link), s.cacheTTL); err != nil {
			metrics.CacheErrors.WithLabelValues("set").Inc()
			log.Warn().Err(err).Str("alias", alias).Msg("cache repopulate")
		}
	}

	s.recorder.Record(ctx, Hit{Alias: alias, At: s.now().UTC(), UserAgent: userAgent, IP: ip})
	return target, nil
}

func (s *Service) cached(ctx context.Context, alias string) (string, bool) {
	raw, ok, err := s.cache.Get(ctx, alias)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		log.Warn().Err(err).Str("alias", alias).Msg("cache read")
		return "", false
	}
	if ok {
		if target, ok := decodeTarget(raw); ok {
			metrics.CacheHit.WithLabelValues("link").Inc()
			return target, true
		}
	}
	metrics.CacheMiss.WithLabelValues("link").Inc()
	return "", false
}

// PrewarmCache loads the n most visited links into the cache.
func (s *Service) PrewarmCache(ctx context.Context, n int) error {
	aliases, err := s.store.TopAliases(ctx, n)
	if err != nil {
		return err
	}
	for _, a := range aliases {
		link, err := s.store.LinkByAlias(ctx, a)
		if err != nil {
			continue
		}
		if err := s.cache.Set(ctx, a, encodeSnapshot(link), s.cacheTTL); err != nil {
			return fmt.Errorf("prewarm %s: %w", a, err)
		}
	}
	return nil
}

// Ready reports whether the store is reachable. Cache failures are tolerated.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("cache ping")
	}
	return s.store.Ping(ctx)
}

func validateTarget(u string) error {
	if u == "" {
		return invalid("longUrl", "is required")
	}
	if len(u) > maxURLLength {
		return invalid("longUrl", "exceeds maximum length of 2048 characters")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return invalid("longUrl", "is not a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return invalid("longUrl", "must use http or https")
	}
	if parsed.Host == "" {
		return invalid("longUrl", "must have a host")
	}
	return nil
}
