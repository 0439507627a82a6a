// Package sync implements the client-side resource cache shared by tasks,
// notes, events, and files: one in-memory ordered snapshot of the signed-in
// user's rows, mutated optimistically and reconciled against the canonical
// rows the backend returns.
package sync

import (
	"context"
	"errors"
	stdsync "sync"

	"github.com/synkhq/synk/internal/remote"
)

// ErrClosed is returned by operations on a collection after Close.
var ErrClosed = errors.New("collection closed")

// Row is a cached resource row. RowID returns the server-generated id.
type Row interface {
	RowID() string
}

// Placement selects where a freshly created row lands in the cache.
type Placement int

const (
	// PlacePrepend puts new rows first; used by recency-descending kinds.
	PlacePrepend Placement = iota
	// PlaceSorted inserts new rows at the position given by Less.
	PlaceSorted
)

// Kind configures a Collection for one resource type: which table it reads,
// the canonical sort the backend applies, how new rows are placed locally,
// and how the owning user id is injected on create.
type Kind[R Row] struct {
	Table     string
	Order     remote.Order
	Placement Placement
	Less      func(a, b R) bool // required for PlaceSorted
	WithOwner func(row R, userID string) R
}

// Collection owns the cached rows of one resource kind for the current
// user. The cache always reflects the last known remote state reconciled
// with locally applied mutations. Safe for concurrent use; collections
// share no state with each other.
type Collection[R Row] struct {
	kind   Kind[R]
	auth   remote.Auth
	tables remote.Tables

	mu      stdsync.Mutex
	rows    []R
	loaded  bool
	lastErr error
	closed  bool
	nextSeq uint64
	applied map[string]uint64
}

func NewCollection[R Row](kind Kind[R], auth remote.Auth, tables remote.Tables) *Collection[R] {
	return &Collection[R]{
		kind:    kind,
		auth:    auth,
		tables:  tables,
		applied: make(map[string]uint64),
	}
}

// Fetch loads the full row set and replaces the cache with it. On failure
// the cache keeps its last good contents; the error is recorded and
// returned.
func (c *Collection[R]) Fetch(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	var rows []R
	err := c.tables.Select(ctx, c.kind.Table, nil, &c.kind.Order, &rows)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err != nil {
		c.lastErr = err
		return err
	}
	c.rows = rows
	c.loaded = true
	return nil
}

// Create inserts a row owned by the signed-in user and places the canonical
// returned row (server-generated id and timestamps included) into the cache
// per the kind's placement rule. Fails with remote.ErrNotAuthenticated when
// no user is signed in; the cache is untouched on any failure.
func (c *Collection[R]) Create(ctx context.Context, row R) (R, error) {
	var zero R
	if err := c.checkOpen(); err != nil {
		return zero, err
	}

	session, err := c.auth.Session(ctx)
	if err != nil {
		c.record(err)
		return zero, err
	}
	if session == nil {
		c.record(remote.ErrNotAuthenticated)
		return zero, remote.ErrNotAuthenticated
	}

	owned := row
	if c.kind.WithOwner != nil {
		owned = c.kind.WithOwner(row, session.User.ID)
	}

	seq := c.takeSeq()
	var created R
	if err := c.tables.Insert(ctx, c.kind.Table, owned, &created); err != nil {
		c.record(err)
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && c.apply(created.RowID(), seq) {
		c.place(created)
	}
	return created, nil
}

// Update patches a row and replaces the matching cached row in place,
// preserving its position. A row missing from the cache leaves the cache
// unchanged. Responses that lose to a newer mutation on the same row are
// not applied.
func (c *Collection[R]) Update(ctx context.Context, id string, patch any) (R, error) {
	var zero R
	if err := c.checkOpen(); err != nil {
		return zero, err
	}

	seq := c.takeSeq()
	var updated R
	if err := c.tables.Update(ctx, c.kind.Table, id, patch, &updated); err != nil {
		c.record(err)
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && c.apply(id, seq) {
		for i := range c.rows {
			if c.rows[i].RowID() == id {
				c.rows[i] = updated
				break
			}
		}
	}
	return updated, nil
}

// Remove deletes a row and filters it out of the cache.
func (c *Collection[R]) Remove(ctx context.Context, id string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	seq := c.takeSeq()
	if err := c.tables.Delete(ctx, c.kind.Table, id); err != nil {
		c.record(err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && c.apply(id, seq) {
		kept := c.rows[:0]
		for _, row := range c.rows {
			if row.RowID() != id {
				kept = append(kept, row)
			}
		}
		c.rows = kept
	}
	return nil
}

// Rows returns a snapshot of the cache in its canonical order.
func (c *Collection[R]) Rows() []R {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]R, len(c.rows))
	copy(out, c.rows)
	return out
}

// Loaded reports whether at least one Fetch has succeeded, distinguishing
// "not yet loaded" from "loaded empty".
func (c *Collection[R]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Err returns the last recorded operation error, if any.
func (c *Collection[R]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close releases the collection. In-flight responses arriving afterwards do
// not mutate the cache, and subsequent operations fail with ErrClosed.
func (c *Collection[R]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Collection[R]) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Collection[R]) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.lastErr = err
	}
}

func (c *Collection[R]) takeSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	return c.nextSeq
}

// apply decides whether a completed mutation may touch the cache: only if
// no newer mutation for the same row has already been applied. This makes
// concurrent mutations on one row resolve to the last-issued one no matter
// which response arrives first. Caller holds mu.
func (c *Collection[R]) apply(id string, seq uint64) bool {
	if prev, ok := c.applied[id]; ok && prev > seq {
		return false
	}
	c.applied[id] = seq
	return true
}

// place inserts a created row per the kind's placement rule. Caller holds mu.
func (c *Collection[R]) place(row R) {
	if c.kind.Placement == PlaceSorted && c.kind.Less != nil {
		idx := len(c.rows)
		for i := range c.rows {
			if c.kind.Less(row, c.rows[i]) {
				idx = i
				break
			}
		}
		c.rows = append(c.rows, row)
		copy(c.rows[idx+1:], c.rows[idx:])
		c.rows[idx] = row
		return
	}
	c.rows = append([]R{row}, c.rows...)
}
