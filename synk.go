// Package synk is the client SDK for the Synk productivity backend: cached,
// owner-scoped collections for tasks, notes, events and files, plus identity
// bootstrap with a durable profile cache.
//
// The hosted backend is reached over its REST surface. When a Postgres DSN
// and object directory are configured, table and storage traffic go to the
// self-hosted drivers instead while authentication stays on the hosted
// identity service.
package synk

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synkhq/synk/internal/config"
	"github.com/synkhq/synk/internal/identity"
	"github.com/synkhq/synk/internal/profilecache"
	"github.com/synkhq/synk/internal/remote"
	"github.com/synkhq/synk/internal/remote/rest"
	"github.com/synkhq/synk/internal/resource"
	"github.com/synkhq/synk/internal/store"
)

// Client bundles the collections and identity state for one signed-in user.
type Client struct {
	Remote *remote.Client

	Tasks  *resource.Tasks
	Notes  *resource.Notes
	Events *resource.Events
	Files  *resource.Files

	Identity *identity.Bootstrap

	notifier *identity.WelcomeNotifier
	pool     *pgxpool.Pool
}

// New builds a client from configuration, applies migrations in self-hosted
// mode, and starts the identity bootstrap.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.Remote.URL == "" {
		return nil, fmt.Errorf("synk: remote URL is required")
	}

	restClient, err := rest.New(rest.Config{
		BaseURL:       cfg.Remote.URL,
		AnonKey:       cfg.Remote.AnonKey,
		JWTSecret:     cfg.Remote.JWTSecret,
		OIDCIssuerURL: cfg.OIDC.IssuerURL,
		OIDCClientID:  cfg.OIDC.ClientID,
	})
	if err != nil {
		return nil, err
	}
	rc := restClient.Remote()

	c := &Client{Remote: rc}

	if cfg.DB.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, fmt.Errorf("synk: create db pool: %w", err)
		}
		if err := store.ApplyMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("synk: apply migrations: %w", err)
		}
		c.pool = pool
		rc.Tables = store.NewPostgres(pool, rc.Auth)
	}
	if cfg.Storage.Dir != "" {
		rc.Storage = store.NewObjectDir(cfg.Storage.Dir, cfg.SiteURL, []byte(cfg.Storage.SignSecret))
	}

	c.Tasks = resource.NewTasks(rc)
	c.Notes = resource.NewNotes(rc)
	c.Events = resource.NewEvents(rc)
	c.Files = resource.NewFiles(rc)

	if cfg.NotifierURL != "" {
		c.notifier = identity.NewWelcomeNotifier(cfg.NotifierURL)
	}

	cache := profilecache.NewFileStore(cfg.ProfileCachePath)
	c.Identity = identity.New(rc.Auth, rc.Tables, cache)
	// A failed initial session check resolves to signed-out and is already
	// logged; the client stays usable.
	_ = c.Identity.Start(ctx)

	return c, nil
}

// SignUp creates an account and fires the welcome email through the
// configured notifier. Delivery failures never fail the sign-up.
func (c *Client) SignUp(ctx context.Context, params remote.SignUpParams) (*remote.Session, error) {
	return identity.SignUp(ctx, c.Remote.Auth, c.notifier, params)
}

// Close tears down the collections, the identity subscription, and the
// database pool in self-hosted mode. In-flight responses arriving afterwards
// are dropped.
func (c *Client) Close() {
	c.Tasks.Close()
	c.Notes.Close()
	c.Events.Close()
	c.Files.Close()
	c.Identity.Close()
	if c.pool != nil {
		c.pool.Close()
	}
}
