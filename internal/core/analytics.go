package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roniherschmann/linkpulse/internal/metrics"
	"github.com/roniherschmann/linkpulse/internal/store"
	"github.com/roniherschmann/linkpulse/internal/useragent"
)

// NoDataMessage accompanies a zeroed report for a scope without visits.
const NoDataMessage = "No analytics data available yet"

const (
	dateLayout   = "2006-01-02"
	scanParallel = 4
)

// Windows bounds the clicksByDate histogram of each view. Zero means all dates.
type Windows struct {
	Alias time.Duration
	Topic time.Duration
	Owner time.Duration
}

// DefaultWindows restricts only the per-alias histogram, to the last seven days.
var DefaultWindows = Windows{Alias: 7 * 24 * time.Hour}

type DateClicks struct {
	Date   string `json:"date"`
	Clicks int    `json:"clicks"`
}

type OSClicks struct {
	OSName       string `json:"osName"`
	UniqueClicks int    `json:"uniqueClicks"`
	UniqueUsers  int    `json:"uniqueUsers"`
}

type DeviceClicks struct {
	DeviceName   string `json:"deviceName"`
	UniqueClicks int    `json:"uniqueClicks"`
	UniqueUsers  int    `json:"uniqueUsers"`
}

// LinkClicks summarises one link inside a topic report. ShortURL is filled by the transport.
type LinkClicks struct {
	Alias        string `json:"alias"`
	ShortURL     string `json:"shortUrl"`
	TotalClicks  int    `json:"totalClicks"`
	UniqueClicks int    `json:"uniqueClicks"`
}

type Summary struct {
	Message      string       `json:"message,omitempty"`
	TotalClicks  int          `json:"totalClicks"`
	UniqueClicks int          `json:"uniqueClicks"`
	ClicksByDate []DateClicks `json:"clicksByDate"`
}

type AliasReport struct {
	Summary
	OSType     []OSClicks     `json:"osType"`
	DeviceType []DeviceClicks `json:"deviceType"`
}

type TopicReport struct {
	Summary
	URLs []LinkClicks `json:"urls"`
}

type OwnerReport struct {
	TotalURLs int `json:"totalUrls"`
	Summary
	OSType     []OSClicks     `json:"osType"`
	DeviceType []DeviceClicks `json:"deviceType"`
}

// Aggregator computes analytics views by streaming visit events from the store.
type Aggregator struct {
	store   store.Store
	windows Windows
	now     func() time.Time
}

func NewAggregator(st store.Store, w Windows, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{store: st, windows: w, now: now}
}

func (a *Aggregator) ForAlias(ctx context.Context, alias string) (AliasReport, error) {
	metrics.AnalyticsQueries.WithLabelValues("alias").Inc()
	if _, err := a.store.LinkByAlias(ctx, alias); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AliasReport{}, ErrNotFound
		}
		return AliasReport{}, fmt.Errorf("lookup alias: %w", err)
	}
	t, err := a.scan(ctx, alias)
	if err != nil {
		return AliasReport{}, err
	}
	return AliasReport{
		Summary:    t.summary(a.cutoff(a.windows.Alias)),
		OSType:     t.os.osClicks(),
		DeviceType: t.device.deviceClicks(),
	}, nil
}

func (a *Aggregator) ForTopic(ctx context.Context, topic string) (TopicReport, error) {
	metrics.AnalyticsQueries.WithLabelValues("topic").Inc()
	links, err := a.store.LinksByTopic(ctx, topic)
	if err != nil {
		return TopicReport{}, fmt.Errorf("lookup topic: %w", err)
	}
	if len(links) == 0 {
		return TopicReport{}, ErrNotFound
	}
	perLink, err := a.scanAll(ctx, links)
	if err != nil {
		return TopicReport{}, err
	}

	total := newTally()
	urls := make([]LinkClicks, len(links))
	for i, t := range perLink {
		total.merge(t)
		urls[i] = LinkClicks{Alias: links[i].Alias, TotalClicks: t.total, UniqueClicks: len(t.ips)}
	}
	return TopicReport{Summary: total.summary(a.cutoff(a.windows.Topic)), URLs: urls}, nil
}

func (a *Aggregator) ForOwner(ctx context.Context, owner string) (OwnerReport, error) {
	metrics.AnalyticsQueries.WithLabelValues("owner").Inc()
	if owner == "" {
		return OwnerReport{}, ErrNotFound
	}
	links, err := a.store.LinksByOwner(ctx, owner)
	if err != nil {
		return OwnerReport{}, fmt.Errorf("lookup owner: %w", err)
	}
	if len(links) == 0 {
		return OwnerReport{}, ErrNotFound
	}
	perLink, err := a.scanAll(ctx, links)
	if err != nil {
		return OwnerReport{}, err
	}

	total := newTally()
	for _, t := range perLink {
		total.merge(t)
	}
	return OwnerReport{
		TotalURLs:  len(links),
		Summary:    total.summary(a.cutoff(a.windows.Owner)),
		OSType:     total.os.osClicks(),
		DeviceType: total.device.deviceClicks(),
	}, nil
}

// cutoff returns the instant a day must start after to be reported. Zero means no bound.
func (a *Aggregator) cutoff(window time.Duration) time.Time {
	if window <= 0 {
		return time.Time{}
	}
	return a.now().UTC().Add(-window)
}

func (a *Aggregator) scan(ctx context.Context, alias string) (*tally, error) {
	t := newTally()
	err := a.store.ScanVisits(ctx, alias, func(v store.Visit) error {
		t.add(v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan visits %s: %w", alias, err)
	}
	return t, nil
}

// scanAll tallies every link concurrently. Results keep the order of links.
func (a *Aggregator) scanAll(ctx context.Context, links []store.Link) ([]*tally, error) {
	res := make([]*tally, len(links))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanParallel)
	for i, l := range links {
		g.Go(func() error {
			t, err := a.scan(ctx, l.Alias)
			if err != nil {
				return err
			}
			res[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

type tally struct {
	total  int
	ips    map[string]struct{}
	dates  map[string]int
	os     *breakdown
	device *breakdown
}

func newTally() *tally {
	return &tally{
		ips:    make(map[string]struct{}),
		dates:  make(map[string]int),
		os:     newBreakdown(),
		device: newBreakdown(),
	}
}

func (t *tally) add(v store.Visit) {
	t.total++
	t.ips[v.IP] = struct{}{}
	t.dates[v.VisitedAt.UTC().Format(dateLayout)]++

	osName := v.OS
	if osName == "" {
		osName = useragent.OS(v.UserAgent)
	}
	device := v.Device
	if device == "" {
		device = useragent.Device(v.UserAgent)
	}
	t.os.add(osName, v.IP)
	t.device.add(device, v.IP)
}

func (t *tally) merge(o *tally) {
	t.total += o.total
	for ip := range o.ips {
		t.ips[ip] = struct{}{}
	}
	for d, n := range o.dates {
		t.dates[d] += n
	}
	t.os.merge(o.os)
	t.device.merge(o.device)
}

func (t *tally) summary(cutoff time.Time) Summary {
	s := Summary{
		TotalClicks:  t.total,
		UniqueClicks: len(t.ips),
		ClicksByDate: []DateClicks{},
	}
	if t.total == 0 {
		s.Message = NoDataMessage
		return s
	}
	for d, n := range t.dates {
		if !cutoff.IsZero() {
			day, err := time.Parse(dateLayout, d)
			if err != nil || !day.After(cutoff) {
				continue
			}
		}
		s.ClicksByDate = append(s.ClicksByDate, DateClicks{Date: d, Clicks: n})
	}
	sort.Slice(s.ClicksByDate, func(i, j int) bool { return s.ClicksByDate[i].Date < s.ClicksByDate[j].Date })
	return s
}

// breakdown counts clicks and distinct clients per category in first-seen order.
type breakdown struct {
	order  []string
	clicks map[string]int
	users  map[string]map[string]struct{}
}

func newBreakdown() *breakdown {
	return &breakdown{clicks: make(map[string]int), users: make(map[string]map[string]struct{})}
}

func (b *breakdown) add(category, ip string) {
	if _, ok := b.clicks[category]; !ok {
		b.order = append(b.order, category)
		b.users[category] = make(map[string]struct{})
	}
	b.clicks[category]++
	b.users[category][ip] = struct{}{}
}

func (b *breakdown) merge(o *breakdown) {
	for _, c := range o.order {
		if _, ok := b.clicks[c]; !ok {
			b.order = append(b.order, c)
			b.users[c] = make(map[string]struct{})
		}
		b.clicks[c] += o.clicks[c]
		for ip := range o.users[c] {
			b.users[c][ip] = struct{}{}
		}
	}
}

func (b *breakdown) osClicks() []OSClicks {
	res := make([]OSClicks, 0, len(b.order))
	for _, c := range b.order {
		res = append(res, OSClicks{OSName: c, UniqueClicks: b.clicks[c], UniqueUsers: len(b.users[c])})
	}
	return res
}

func (b *breakdown) deviceClicks() []DeviceClicks {
	res := make([]DeviceClicks, 0, len(b.order))
	for _, c := range b.order {
		res = append(res, DeviceClicks{DeviceName: c, UniqueClicks: b.clicks[c], UniqueUsers: len(b.users[c])})
	}
	return res
}
