// Package query is the keyed read cache that sits between the services and
// the remote story client. Entries are never mutated locally: writes mark
// families stale and the next read re-fetches.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads the value for one key
type Fetcher func(ctx context.Context) (any, error)

// ReadOptions controls a single read
type ReadOptions struct {
	// Disabled skips the fetcher and returns Default without creating an entry
	Disabled bool
	Default  any
}

// subscriberBuffer is the per-subscriber channel size. Sends never block;
// a slow subscriber drops events and should Peek on the next one.
const subscriberBuffer = 16

type entry struct {
	value     any
	hasValue  bool
	status    Status
	stale     bool
	fetchedAt time.Time
	err       error
	token     uint64
}

// Cache holds one entry per Key. At most one fetch per key is in flight.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	subs    map[Key]map[uint64]chan Snapshot
	seq     uint64 // request tokens and subscriber IDs
	group   singleflight.Group
	logger  *slog.Logger
	now     func() time.Time
}

// NewCache creates an empty cache
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[Key]*entry),
		subs:    make(map[Key]map[uint64]chan Snapshot),
		logger:  logger,
		now:     time.Now,
	}
}

// Read returns the cached value for key when it is fresh, the stored error
// when the last fetch failed and nothing has invalidated it, and otherwise
// starts or joins the in-flight fetch and waits for it.
//
// The fetch itself is detached from ctx: if ctx ends first Read returns
// ctx.Err() but the fetch still completes and populates the entry.
func (c *Cache) Read(ctx context.Context, key Key, fetch Fetcher, opts ReadOptions) (any, error) {
	if opts.Disabled {
		return opts.Default, nil
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	if !e.stale {
		switch e.status {
		case StatusSuccess:
			v := e.value
			c.mu.Unlock()
			return v, nil
		case StatusError:
			err := e.err
			c.mu.Unlock()
			return nil, err
		}
	}
	if e.status != StatusLoading || e.stale {
		c.seq++
		e.token = c.seq
		e.status = StatusLoading
		e.stale = false
		c.notifyLocked(key, e)
		c.logger.Debug("query fetch started", "key", key.String(), "token", e.token)
	}
	token := e.token
	c.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(key, token), func() (any, error) {
		if v, err, done := c.settled(key, token); done {
			return v, err
		}
		v, err := fetch(fetchCtx)
		c.complete(key, token, v, err)
		return v, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// settled reports the stored result when the flight for token already
// finished and left the singleflight group before a late joiner arrived
func (c *Cache) settled(key Key, token uint64) (any, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.token != token {
		return nil, nil, false
	}
	switch e.status {
	case StatusSuccess:
		return e.value, nil, true
	case StatusError:
		return nil, e.err, true
	}
	return nil, nil, false
}

// complete stores a fetch result unless the entry was cleared or a newer
// request replaced it
func (c *Cache) complete(key Key, token uint64, v any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.token != token {
		c.logger.Debug("query result discarded", "key", key.String(), "token", token)
		return
	}

	e.fetchedAt = c.now()
	if err != nil {
		e.status = StatusError
		e.err = err
		c.logger.Warn("query fetch failed", "key", key.String(), "error", err)
	} else {
		e.status = StatusSuccess
		e.value = v
		e.hasValue = true
		e.err = nil
	}
	c.notifyLocked(key, e)
}

// Peek returns the current state of key without fetching
func (c *Cache) Peek(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key, Status: StatusIdle}
	}
	return snapshot(key, e)
}

// Invalidate marks every entry of the given families stale and returns how
// many entries were marked. Nothing is fetched until the next Read.
func (c *Cache) Invalidate(families ...string) int {
	if len(families) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(families))
	for _, f := range families {
		set[f] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.entries {
		if _, ok := set[key.Family]; !ok {
			continue
		}
		e.stale = true
		n++
		c.notifyLocked(key, e)
	}
	c.logger.Debug("query families invalidated", "families", families, "entries", n)
	return n
}

// Clear drops every entry. In-flight fetches complete but their results are
// discarded. Subscribers are notified with an idle snapshot.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		c.sendLocked(key, Snapshot{Key: key, Status: StatusIdle})
	}
	c.entries = make(map[Key]*entry)
	c.logger.Debug("query cache cleared")
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Subscribe returns one channel receiving a snapshot on every change to any
// of keys. The returned func unsubscribes and closes the channel.
func (c *Cache) Subscribe(keys ...Key) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	c.mu.Lock()
	c.seq++
	id := c.seq
	for _, key := range keys {
		if c.subs[key] == nil {
			c.subs[key] = make(map[uint64]chan Snapshot)
		}
		c.subs[key][id] = ch
	}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for _, key := range keys {
				delete(c.subs[key], id)
				if len(c.subs[key]) == 0 {
					delete(c.subs, key)
				}
			}
			close(ch)
		})
	}
}

func (c *Cache) notifyLocked(key Key, e *entry) {
	c.sendLocked(key, snapshot(key, e))
}

func (c *Cache) sendLocked(key Key, s Snapshot) {
	for _, ch := range c.subs[key] {
		select {
		case ch <- s:
		default: // Non-blocking if subscriber is behind
		}
	}
}

func snapshot(key Key, e *entry) Snapshot {
	return Snapshot{
		Key:       key,
		Value:     e.value,
		HasValue:  e.hasValue,
		Status:    e.status,
		Stale:     e.stale,
		FetchedAt: e.fetchedAt,
		Err:       e.err,
	}
}

// Get is the typed form of Cache.Read
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error), opts ReadOptions) (T, error) {
	var zero T
	v, err := c.Read(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, opts)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query: entry %s holds %T", key, v)
	}
	return t, nil
}
