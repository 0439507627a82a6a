// Package identity resolves the current user and keeps their profile warm:
// an initial session check, a single auth-state subscription, and a durable
// profile cache so consumers can render before the network answers.
package identity

import (
	"context"
	"encoding/json"
	"log"
	stdsync "sync"

	"github.com/synkhq/synk/internal/profilecache"
	"github.com/synkhq/synk/internal/remote"
	"github.com/synkhq/synk/internal/resource"
)

// Bootstrap tracks the signed-in user and their profile. It moves from
// unresolved to resolved on the initial session check and re-resolves on
// every auth-state change until Close.
type Bootstrap struct {
	auth   remote.Auth
	tables remote.Tables
	cache  profilecache.Store

	mu      stdsync.Mutex
	user    *remote.UserIdentity
	profile *resource.Profile
	loading bool
	started bool
	closed  bool
	sub     *remote.Subscription
}

// New pre-seeds the in-memory profile from the durable cache when a valid
// entry exists. A missing or malformed entry is treated as absent.
func New(auth remote.Auth, tables remote.Tables, cache profilecache.Store) *Bootstrap {
	b := &Bootstrap{
		auth:    auth,
		tables:  tables,
		cache:   cache,
		loading: true,
	}
	if raw, err := cache.Get(); err == nil {
		var p resource.Profile
		if json.Unmarshal(raw, &p) == nil {
			b.profile = &p
		}
	}
	return b
}

// Start performs the initial session check and subscribes to auth-state
// changes. It must be called at most once; the subscription is held until
// Close.
func (b *Bootstrap) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started || b.closed {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	session, err := b.auth.Session(ctx)
	if err != nil {
		log.Printf("[WARN] initial session check failed: %v", err)
		session = nil
	}
	b.resolve(ctx, session)

	sub := b.auth.OnAuthStateChange(func(event remote.AuthEvent, s *remote.Session) {
		b.resolve(context.Background(), s)
	})

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.Unsubscribe()
		return err
	}
	b.sub = sub
	b.mu.Unlock()
	return err
}

// resolve applies one auth resolution: set the identity, then fetch and
// cache the profile (or clear both on sign-out). Late resolutions after
// Close never mutate state.
func (b *Bootstrap) resolve(ctx context.Context, session *remote.Session) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if session != nil {
		user := session.User
		b.user = &user
	} else {
		b.user = nil
	}
	b.mu.Unlock()

	if session != nil {
		var profiles []resource.Profile
		err := b.tables.Select(ctx, "profiles",
			[]remote.Filter{{Column: "id", Value: session.User.ID}}, nil, &profiles)
		if err != nil {
			log.Printf("[WARN] profile fetch failed: %v", err)
		} else if len(profiles) > 0 {
			p := profiles[0]
			b.mu.Lock()
			if !b.closed {
				b.profile = &p
				if raw, err := json.Marshal(p); err == nil {
					if err := b.cache.Set(raw); err != nil {
						log.Printf("[WARN] profile cache write failed: %v", err)
					}
				}
			}
			b.mu.Unlock()
		}
	} else {
		b.mu.Lock()
		if !b.closed {
			b.profile = nil
			if err := b.cache.Delete(); err != nil {
				log.Printf("[WARN] profile cache delete failed: %v", err)
			}
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.loading = false
	b.mu.Unlock()
}

// User returns the resolved identity, or nil when signed out or unresolved.
func (b *Bootstrap) User() *remote.UserIdentity {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.user == nil {
		return nil
	}
	u := *b.user
	return &u
}

// Profile returns the current profile, which may come from the durable
// cache before the first network resolution supersedes it.
func (b *Bootstrap) Profile() *resource.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.profile == nil {
		return nil
	}
	p := *b.profile
	return &p
}

// Loading is a startup gate: true only until the first resolution
// completes, never re-raised by later auth events.
func (b *Bootstrap) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// Close releases the auth subscription; subsequent auth events are dropped.
func (b *Bootstrap) Close() {
	b.mu.Lock()
	b.closed = true
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}
