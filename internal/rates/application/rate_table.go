package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	rates "stats-indexer/internal/rates/domain"
)

// Source fetches a rate table for a date bucket ("latest" or YYYY-MM-DD).
type Source interface {
	Fetch(ctx context.Context, bucket string) (rates.Quote, error)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now() }

// FetchEvent describes one network fetch.
type FetchEvent struct {
	Bucket string
	// QuoteDate is the date the source published the quote for.
	QuoteDate  string
	Currencies []string
	Elapsed    time.Duration
	Err        error
}

// FetchHook observes every network fetch the table performs.
type FetchHook func(FetchEvent)

// RateTable caches rate maps per date bucket for the lifetime of the table.
// Concurrent callers asking for the same uncached bucket share one fetch.
type RateTable struct {
	source   Source
	base     string
	clock    Clock
	location *time.Location
	hook     FetchHook

	mu    sync.RWMutex
	cache map[string]*rates.RateMap
	group singleflight.Group
}

// Option configures the table.
type Option func(*RateTable)

// WithClock overrides the clock used to find today.
func WithClock(clock Clock) Option {
	return func(t *RateTable) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithLocation sets the time zone that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(t *RateTable) {
		if loc != nil {
			t.location = loc
		}
	}
}

// WithFetchHook registers a fetch observer.
func WithFetchHook(hook FetchHook) Option {
	return func(t *RateTable) {
		t.hook = hook
	}
}

// NewRateTable constructs a table converting into base.
func NewRateTable(source Source, base string, opts ...Option) (*RateTable, error) {
	if source == nil {
		return nil, errors.New("rate table: nil source")
	}
	base = rates.NormalizeCode(base)
	if base == "" {
		return nil, rates.ErrEmptyBaseCurrency
	}
	t := &RateTable{
		source:   source,
		base:     base,
		clock:    SystemClock{},
		location: time.UTC,
		cache:    make(map[string]*rates.RateMap),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Base returns the reporting currency.
func (t *RateTable) Base() string { return t.base }

// Bucket returns the cache key date maps to.
func (t *RateTable) Bucket(date time.Time) string {
	return rates.BucketFor(date, t.clock.Now(), t.location)
}

// Rates returns the rate map for date's bucket, fetching it on first use.
// Failures are returned as *rates.RateFetchError and are not cached.
func (t *RateTable) Rates(ctx context.Context, date time.Time) (*rates.RateMap, error) {
	return t.ratesForBucket(ctx, t.Bucket(date))
}

// Cached returns the number of buckets held in the cache.
func (t *RateTable) Cached() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.cache)
}

func (t *RateTable) ratesForBucket(ctx context.Context, bucket string) (*rates.RateMap, error) {
	if m, ok := t.lookup(bucket); ok {
		return m, nil
	}
	v, err, _ := t.group.Do(bucket, func() (any, error) {
		// A caller that lost the race to a completed flight lands here after the
		// cache was populated.
		if m, ok := t.lookup(bucket); ok {
			return m, nil
		}
		// The flight is shared by every caller waiting on bucket, so one caller's
		// cancellation must not fail the others. The source bounds the request
		// with its own timeout.
		m, err := t.fetch(context.WithoutCancel(ctx), bucket)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.cache[bucket] = m
		t.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rates.RateMap), nil
}

func (t *RateTable) lookup(bucket string) (*rates.RateMap, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.cache[bucket]
	return m, ok
}

func (t *RateTable) fetch(ctx context.Context, bucket string) (m *rates.RateMap, err error) {
	started := time.Now()
	var quote rates.Quote
	defer func() {
		if t.hook != nil {
			t.hook(FetchEvent{
				Bucket:     bucket,
				QuoteDate:  quote.Date,
				Currencies: m.Codes(),
				Elapsed:    time.Since(started),
				Err:        err,
			})
		}
	}()

	quote, err = t.source.Fetch(ctx, bucket)
	if err != nil {
		var fetchErr *rates.RateFetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &rates.RateFetchError{Bucket: bucket, Err: err}
	}
	m, err = rates.Rebase(quote, t.base)
	if err != nil {
		return nil, &rates.RateFetchError{Bucket: bucket, Err: err}
	}
	return m, nil
}
