package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/linkpulse/internal/geo"
	"github.com/roniherschmann/linkpulse/internal/metrics"
	"github.com/roniherschmann/linkpulse/internal/store"
	"github.com/roniherschmann/linkpulse/internal/useragent"
)

// Recorder accepts one Hit per successful redirect. It never reports failure to the caller.
type Recorder interface {
	Record(ctx context.Context, h Hit)
}

// VisitLog enriches hits and appends them to the visit store.
type VisitLog struct {
	store      store.Store
	geo        geo.Resolver
	geoTimeout time.Duration
	newID      func() string
}

func NewVisitLog(st store.Store, resolver geo.Resolver, geoTimeout time.Duration) *VisitLog {
	if resolver == nil {
		resolver = geo.Noop{}
	}
	return &VisitLog{store: st, geo: resolver, geoTimeout: geoTimeout, newID: uuid.NewString}
}

// Append classifies the user agent, resolves geo and stores the visit.
// A failed or slow geo lookup leaves the location empty.
func (l *VisitLog) Append(ctx context.Context, h Hit) error {
	v := store.Visit{
		ID:        l.newID(),
		Alias:     h.Alias,
		VisitedAt: h.At.UTC(),
		UserAgent: h.UserAgent,
		IP:        h.IP,
		OS:        useragent.OS(h.UserAgent),
		Device:    useragent.Device(h.UserAgent),
	}
	if loc, err := l.lookup(ctx, h.IP); err != nil {
		metrics.GeoFailures.Inc()
		log.Debug().Err(err).Str("alias", h.Alias).Msg("geo lookup")
	} else {
		v.Country, v.Region, v.City = loc.Country, loc.Region, loc.City
	}

	if err := l.store.InsertVisit(ctx, v); err != nil {
		metrics.VisitsFailed.Inc()
		return err
	}
	metrics.VisitsRecorded.Inc()
	return nil
}

func (l *VisitLog) lookup(ctx context.Context, ip string) (geo.Location, error) {
	if l.geoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.geoTimeout)
		defer cancel()
	}
	return l.geo.Lookup(ctx, ip)
}

// SyncRecorder appends each hit before Record returns.
type SyncRecorder struct {
	log     *VisitLog
	timeout time.Duration
}

func NewSyncRecorder(l *VisitLog) *SyncRecorder {
	return &SyncRecorder{log: l, timeout: 5 * time.Second}
}

func (r *SyncRecorder) Record(ctx context.Context, h Hit) {
	// Detached so a client hanging up mid-redirect still gets its visit stored.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.log.Append(ctx, h); err != nil {
		log.Error().Err(err).Str("alias", h.Alias).Msg("record visit")
	}
}

// QueuedRecorder buffers hits in a bounded channel drained by worker goroutines.
// When the buffer is full the hit is appended on the caller's goroutine instead.
type QueuedRecorder struct {
	log     *VisitLog
	ch      chan Hit
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueuedRecorder(l *VisitLog, size, workers int) *QueuedRecorder {
	if size <= 0 {
		size = 10000
	}
	if workers <= 0 {
		workers = 1
	}
	r := &QueuedRecorder{log: l, ch: make(chan Hit, size), timeout: 5 * time.Second}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.run()
	}
	return r
}

func (r *QueuedRecorder) Record(ctx context.Context, h Hit) {
	if r.enqueue(h) {
		return
	}
	metrics.VisitsInline.Inc()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.log.Append(ctx, h); err != nil {
		log.Error().Err(err).Str("alias", h.Alias).Msg("record visit")
	}
}

// enqueue reports whether h was handed to the workers.
// After Close it drops h and reports true.
func (r *QueuedRecorder) enqueue(h Hit) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		metrics.VisitsDropped.Inc()
		log.Warn().Str("alias", h.Alias).Msg("visit after recorder close")
		return true
	}
	select {
	case r.ch <- h:
		return true
	default:
		return false
	}
}

func (r *QueuedRecorder) run() {
	defer r.wg.Done()
	for h := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.log.Append(ctx, h); err != nil {
			log.Error().Err(err).Str("alias", h.Alias).Msg("insert visit")
		}
		cancel()
	}
}

// Close stops intake and waits until buffered hits are stored or ctx expires.
func (r *QueuedRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
