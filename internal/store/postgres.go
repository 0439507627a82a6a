// Package store holds the self-hosted drivers: a direct-Postgres table store
// and a filesystem object store. Both present the same surfaces as the hosted
// backend so the rest of the program cannot tell the deployments apart.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/synkhq/synk/internal/metrics"
	"github.com/synkhq/synk/internal/remote"
)

// SessionSource yields the session whose user scopes every statement.
// remote.Auth satisfies it.
type SessionSource interface {
	Session(ctx context.Context) (*remote.Session, error)
}

// Postgres implements remote.Tables against a pgx pool. Rows live as jsonb
// documents with id and user_id lifted into real columns, so the driver
// serves any resource table the schema knows without per-table code.
type Postgres struct {
	pool PgxPool
	auth SessionSource
}

var _ remote.Tables = (*Postgres)(nil)

func NewPostgres(pool PgxPool, auth SessionSource) *Postgres {
	return &Postgres{pool: pool, auth: auth}
}

// identPattern fences table and column names. They come from code, not user
// input, but they are interpolated into SQL and the fence is cheap.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func checkIdent(op, table, name string) error {
	if !identPattern.MatchString(name) {
		return &remote.RemoteError{Op: op, Table: table, Message: fmt.Sprintf("invalid identifier %q", name)}
	}
	return nil
}

func (p *Postgres) userID(ctx context.Context, op, table string) (string, error) {
	session, err := p.auth.Session(ctx)
	if err != nil {
		return "", &remote.RemoteError{Op: op, Table: table, Message: "resolve session", Err: err}
	}
	if session == nil {
		return "", &remote.RemoteError{Op: op, Table: table, Err: remote.ErrNotAuthenticated}
	}
	return session.User.ID, nil
}

// selectSQL builds the list query. Filters on user_id hit the lifted column;
// everything else matches against the document. The caller's user id is
// always argument one.
func selectSQL(table string, filters []remote.Filter, order *remote.Order) (string, []any, error) {
	sql := `SELECT data FROM ` + table + ` WHERE user_id = $1`
	args := []any{nil} // slot for the user id
	for _, f := range filters {
		if f.Column == "user_id" {
			continue
		}
		if err := checkIdent("select", table, f.Column); err != nil {
			return "", nil, err
		}
		args = append(args, f.Value)
		sql += fmt.Sprintf(" AND data->>'%s' = $%d", f.Column, len(args))
	}
	if order != nil {
		if err := checkIdent("select", table, order.Column); err != nil {
			return "", nil, err
		}
		dir := "DESC"
		if order.Ascending {
			dir = "ASC"
		}
		sql += fmt.Sprintf(" ORDER BY data->>'%s' %s", order.Column, dir)
	}
	return sql, args, nil
}

func (p *Postgres) Select(ctx context.Context, table string, filters []remote.Filter, order *remote.Order, dest any) error {
	defer observe("select", table)()

	if err := checkIdent("select", table, table); err != nil {
		return err
	}
	uid, err := p.userID(ctx, "select", table)
	if err != nil {
		return err
	}

	sql, args, err := selectSQL(table, filters, order)
	if err != nil {
		return err
	}
	args[0] = uid

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return &remote.RemoteError{Op: "select", Table: table, Err: err}
	}
	defer rows.Close()

	docs := []json.RawMessage{}
	for rows.Next() {
		var doc json.RawMessage
		if err := rows.Scan(&doc); err != nil {
			return &remote.RemoteError{Op: "select", Table: table, Message: "scan row", Err: err}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return &remote.RemoteError{Op: "select", Table: table, Err: err}
	}

	return decodeDocs(docs, table, "select", dest)
}

// decodeDocs reassembles the scanned documents into one JSON array so dest
// can be any slice type, matching the REST driver's decoding contract.
func decodeDocs(docs []json.RawMessage, table, op string, dest any) error {
	if dest == nil {
		return nil
	}
	joined, err := json.Marshal(docs)
	if err != nil {
		return &remote.RemoteError{Op: op, Table: table, Message: "encode rows", Err: err}
	}
	if err := json.Unmarshal(joined, dest); err != nil {
		return &remote.RemoteError{Op: op, Table: table, Message: "decode rows", Err: err}
	}
	return nil
}

// composeDoc merges the caller's row with the server-assigned fields and
// returns the canonical document.
func composeDoc(row any, id, uid string, now time.Time) (map[string]any, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	stamp := now.UTC().Format(time.RFC3339)
	doc["id"] = id
	doc["user_id"] = uid
	doc["created_at"] = stamp
	doc["updated_at"] = stamp
	return doc, nil
}

func (p *Postgres) Insert(ctx context.Context, table string, row any, dest any) error {
	defer observe("insert", table)()

	if err := checkIdent("insert", table, table); err != nil {
		return err
	}
	uid, err := p.userID(ctx, "insert", table)
	if err != nil {
		return err
	}

	doc, err := composeDoc(row, uuid.NewString(), uid, time.Now())
	if err != nil {
		return &remote.RemoteError{Op: "insert", Table: table, Message: "encode row", Err: err}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return &remote.RemoteError{Op: "insert", Table: table, Message: "encode row", Err: err}
	}

	sql := `INSERT INTO ` + table + ` (id, user_id, data) VALUES ($1, $2, $3) RETURNING data`
	var stored json.RawMessage
	if err := p.pool.QueryRow(ctx, sql, doc["id"], uid, raw).Scan(&stored); err != nil {
		return &remote.RemoteError{Op: "insert", Table: table, Err: err}
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(stored, dest); err != nil {
		return &remote.RemoteError{Op: "insert", Table: table, Message: "decode row", Err: err}
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, table, id string, patch any, dest any) error {
	defer observe("update", table)()

	if err := checkIdent("update", table, table); err != nil {
		return err
	}
	uid, err := p.userID(ctx, "update", table)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(patch)
	if err != nil {
		return &remote.RemoteError{Op: "update", Table: table, Message: "encode patch", Err: err}
	}
	stamp := time.Now().UTC().Format(time.RFC3339)

	sql := `UPDATE ` + table + `
SET data = data || $3::jsonb || jsonb_build_object('updated_at', $4::text),
    updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING data`
	var stored json.RawMessage
	err = p.pool.QueryRow(ctx, sql, id, uid, raw, stamp).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return &remote.RemoteError{Op: "update", Table: table, Err: remote.ErrNotFound}
	}
	if err != nil {
		return &remote.RemoteError{Op: "update", Table: table, Err: err}
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(stored, dest); err != nil {
		return &remote.RemoteError{Op: "update", Table: table, Message: "decode row", Err: err}
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, table, id string) error {
	defer observe("delete", table)()

	if err := checkIdent("delete", table, table); err != nil {
		return err
	}
	uid, err := p.userID(ctx, "delete", table)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1 AND user_id = $2`, id, uid)
	if err != nil {
		return &remote.RemoteError{Op: "delete", Table: table, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &remote.RemoteError{Op: "delete", Table: table, Err: remote.ErrNotFound}
	}
	return nil
}

func observe(op, table string) func() {
	start := time.Now()
	return func() {
		metrics.ObserveRemoteLatency(op, table, start)
	}
}
