// Package remote defines the client surface of the Synk backend: identity,
// row-level-security scoped table access, and object storage. Concrete
// drivers live in remote/rest (hosted backend) and store (self-hosted).
package remote

import (
	"context"
	"io"
	"time"
)

// UserIdentity is the authenticated principal as reported by the identity
// provider. Immutable for the lifetime of a session.
type UserIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session carries the tokens and identity for the current sign-in.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         UserIdentity
}

// AuthEvent identifies a transition on the auth-state stream.
type AuthEvent string

const (
	AuthEventInitialSession AuthEvent = "initial_session"
	AuthEventSignedIn       AuthEvent = "signed_in"
	AuthEventSignedOut      AuthEvent = "signed_out"
	AuthEventTokenRefreshed AuthEvent = "token_refreshed"
)

// Subscription is a handle on an auth-state listener. Unsubscribe is
// idempotent and releases the listener.
type Subscription struct {
	unsubscribe func()
}

func NewSubscription(unsubscribe func()) *Subscription {
	return &Subscription{unsubscribe: unsubscribe}
}

func (s *Subscription) Unsubscribe() {
	if s == nil || s.unsubscribe == nil {
		return
	}
	s.unsubscribe()
	s.unsubscribe = nil
}

// SignUpParams carries the account-creation payload. FirstName and LastName
// travel as user metadata and seed the provisioned profile row.
type SignUpParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Auth is the identity surface of the backend. Session returns (nil, nil)
// when no user is signed in.
type Auth interface {
	Session(ctx context.Context) (*Session, error)
	SignUp(ctx context.Context, params SignUpParams) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn func(event AuthEvent, session *Session)) *Subscription
}

// Filter is an equality predicate on a column.
type Filter struct {
	Column string
	Value  string
}

// Order is the sort applied by a select.
type Order struct {
	Column    string
	Ascending bool
}

// Tables is the row-access surface. Every operation is authorization-scoped
// by the driver: a caller only ever observes rows it owns. dest receives the
// decoded result (a slice for Select, a single row for Insert/Update).
type Tables interface {
	Select(ctx context.Context, table string, filters []Filter, order *Order, dest any) error
	Insert(ctx context.Context, table string, row any, dest any) error
	Update(ctx context.Context, table string, id string, patch any, dest any) error
	Delete(ctx context.Context, table string, id string) error
}

// UploadOptions tune an object upload.
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool
}

// ListOptions page an object listing.
type ListOptions struct {
	Limit  int
	Offset int
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Storage is the object-store surface.
type Storage interface {
	Upload(ctx context.Context, bucket, path string, r io.Reader, opts UploadOptions) (string, error)
	Download(ctx context.Context, bucket, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, bucket string, paths []string) error
	List(ctx context.Context, bucket, prefix string, opts ListOptions) ([]ObjectInfo, error)
	PublicURL(bucket, path string) string
	CreateSignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}

// Client bundles the three surfaces a consumer needs. Drivers for the parts
// may come from different packages (hosted auth with a direct database, for
// example).
type Client struct {
	Auth    Auth
	Tables  Tables
	Storage Storage
}
