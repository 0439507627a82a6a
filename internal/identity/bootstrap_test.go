package identity

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/synkhq/synk/internal/profilecache"
	"github.com/synkhq/synk/internal/remote"
	"github.com/synkhq/synk/internal/resource"
)

type fakeAuth struct {
	mu       sync.Mutex
	session  *remote.Session
	listener func(remote.AuthEvent, *remote.Session)
	released bool
}

func (f *fakeAuth) Session(ctx context.Context) (*remote.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, params remote.SignUpParams) (*remote.Session, error) {
	return nil, errors.New("not supported")
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*remote.Session, error) {
	return nil, errors.New("not supported")
}

func (f *fakeAuth) SignOut(ctx context.Context) error { return nil }

func (f *fakeAuth) OnAuthStateChange(fn func(remote.AuthEvent, *remote.Session)) *remote.Subscription {
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
	return remote.NewSubscription(func() {
		f.mu.Lock()
		f.released = true
		f.listener = nil
		f.mu.Unlock()
	})
}

func (f *fakeAuth) emit(event remote.AuthEvent, session *remote.Session) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	if fn != nil {
		fn(event, session)
	}
}

type fakeTables struct {
	profiles  map[string]resource.Profile
	selectErr error
	selects   int
}

func (f *fakeTables) Select(ctx context.Context, table string, filters []remote.Filter, order *remote.Order, dest any) error {
	f.selects++
	if f.selectErr != nil {
		return f.selectErr
	}
	if table != "profiles" || len(filters) != 1 || filters[0].Column != "id" {
		return errors.New("unexpected query")
	}
	out := dest.(*[]resource.Profile)
	if p, ok := f.profiles[filters[0].Value]; ok {
		*out = []resource.Profile{p}
	}
	return nil
}

func (f *fakeTables) Insert(ctx context.Context, table string, row, dest any) error {
	return errors.New("not supported")
}

func (f *fakeTables) Update(ctx context.Context, table, id string, patch, dest any) error {
	return errors.New("not supported")
}

func (f *fakeTables) Delete(ctx context.Context, table, id string) error {
	return errors.New("not supported")
}

type memCache struct {
	mu    sync.Mutex
	value json.RawMessage
	bad   bool
}

func (m *memCache) Get() (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bad {
		return nil, profilecache.ErrMalformed
	}
	if m.value == nil {
		return nil, profilecache.ErrNotCached
	}
	return m.value, nil
}

func (m *memCache) Set(value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = append(json.RawMessage(nil), value...)
	return nil
}

func (m *memCache) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = nil
	return nil
}

func str(s string) *string { return &s }

func sessionFor(id, email string) *remote.Session {
	return &remote.Session{User: remote.UserIdentity{ID: id, Email: email}}
}

func TestStartResolvesSessionAndProfile(t *testing.T) {
	auth := &fakeAuth{session: sessionFor("user-1", "ada@example.com")}
	tables := &fakeTables{profiles: map[string]resource.Profile{
		"user-1": {FirstName: str("Ada"), Email: str("ada@example.com")},
	}}
	cache := &memCache{}

	b := New(auth, tables, cache)
	if !b.Loading() {
		t.Error("loading should gate until first resolution")
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if b.Loading() {
		t.Error("loading should clear after first resolution")
	}
	user := b.User()
	if user == nil || user.ID != "user-1" {
		t.Fatalf("expected user-1, got %v", user)
	}
	profile := b.Profile()
	if profile == nil || profile.FirstName == nil || *profile.FirstName != "Ada" {
		t.Fatalf("expected Ada's profile, got %+v", profile)
	}
	if cache.value == nil {
		t.Error("profile should be mirrored to the durable cache")
	}
}

func TestPreSeedsFromDurableCache(t *testing.T) {
	cache := &memCache{}
	cache.Set(json.RawMessage(`{"first_name":"Cached","last_name":null,"email":null,"avatar_url":null}`))

	// No Start: the pre-seed must be synchronous, before any network call.
	b := New(&fakeAuth{}, &fakeTables{}, cache)
	profile := b.Profile()
	if profile == nil || profile.FirstName == nil || *profile.FirstName != "Cached" {
		t.Fatalf("expected cached profile before any resolution, got %+v", profile)
	}
}

func TestMalformedCacheIsSilentlyAbsent(t *testing.T) {
	b := New(&fakeAuth{}, &fakeTables{}, &memCache{bad: true})
	if b.Profile() != nil {
		t.Error("malformed cache must be treated as absent")
	}
}

func TestNetworkProfileSupersedesCachedOne(t *testing.T) {
	cache := &memCache{}
	cache.Set(json.RawMessage(`{"first_name":"Stale","last_name":null,"email":null,"avatar_url":null}`))

	auth := &fakeAuth{session: sessionFor("user-1", "ada@example.com")}
	tables := &fakeTables{profiles: map[string]resource.Profile{
		"user-1": {FirstName: str("Fresh")},
	}}

	b := New(auth, tables, cache)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	profile := b.Profile()
	if profile == nil || *profile.FirstName != "Fresh" {
		t.Fatalf("network profile should supersede the cached one, got %+v", profile)
	}
}

func TestSignOutClearsBothCaches(t *testing.T) {
	auth := &fakeAuth{session: sessionFor("user-1", "ada@example.com")}
	tables := &fakeTables{profiles: map[string]resource.Profile{
		"user-1": {FirstName: str("Ada")},
	}}
	cache := &memCache{}

	b := New(auth, tables, cache)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	auth.emit(remote.AuthEventSignedOut, nil)

	if b.User() != nil {
		t.Error("identity should clear on sign-out")
	}
	if b.Profile() != nil {
		t.Error("in-memory profile should clear on sign-out")
	}
	if cache.value != nil {
		t.Error("durable cache entry should be removed on sign-out")
	}
	if b.Loading() {
		t.Error("loading must not re-raise on later auth events")
	}
}

func TestAuthEventsReResolve(t *testing.T) {
	auth := &fakeAuth{}
	tables := &fakeTables{profiles: map[string]resource.Profile{
		"user-2": {FirstName: str("Grace")},
	}}
	cache := &memCache{}

	b := New(auth, tables, cache)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if b.User() != nil {
		t.Fatal("expected signed-out start")
	}

	auth.emit(remote.AuthEventSignedIn, sessionFor("user-2", "grace@example.com"))

	user := b.User()
	if user == nil || user.ID != "user-2" {
		t.Fatalf("expected user-2 after sign-in event, got %v", user)
	}
	profile := b.Profile()
	if profile == nil || *profile.FirstName != "Grace" {
		t.Fatalf("expected Grace's profile, got %+v", profile)
	}
}

func TestProfileFetchFailureKeepsPriorProfile(t *testing.T) {
	cache := &memCache{}
	cache.Set(json.RawMessage(`{"first_name":"Cached","last_name":null,"email":null,"avatar_url":null}`))

	auth := &fakeAuth{session: sessionFor("user-1", "ada@example.com")}
	tables := &fakeTables{selectErr: &remote.RemoteError{Op: "select", Table: "profiles", Status: 503}}

	b := New(auth, tables, cache)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	profile := b.Profile()
	if profile == nil || *profile.FirstName != "Cached" {
		t.Fatalf("fetch failure should keep the prior profile, got %+v", profile)
	}
	if b.Loading() {
		t.Error("loading should clear even when the profile fetch fails")
	}
}

func TestCloseDropsLateEvents(t *testing.T) {
	auth := &fakeAuth{}
	tables := &fakeTables{profiles: map[string]resource.Profile{
		"user-1": {FirstName: str("Ada")},
	}}
	cache := &memCache{}

	b := New(auth, tables, cache)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	b.Close()

	if !auth.released {
		t.Error("Close should release the auth subscription")
	}

	auth.emit(remote.AuthEventSignedIn, sessionFor("user-1", "ada@example.com"))
	if b.User() != nil || b.Profile() != nil {
		t.Error("events after Close must not mutate state")
	}
}
