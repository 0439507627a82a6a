package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/synkhq/synk/internal/remote"
)

// Tables speaks the PostgREST dialect. Row visibility is enforced by the
// backend's row-level security against the bearer token; no ownership
// filters are added client-side.
type Tables struct {
	t *transport
}

var _ remote.Tables = (*Tables)(nil)

// singleObject asks PostgREST to return exactly one object instead of an
// array, failing when the filter matches zero or several rows.
const singleObject = "application/vnd.pgrst.object+json"

func (s *Tables) Select(ctx context.Context, table string, filters []remote.Filter, order *remote.Order, dest any) error {
	query := url.Values{}
	query.Set("select", "*")
	for _, f := range filters {
		query.Set(f.Column, "eq."+f.Value)
	}
	if order != nil {
		dir := "desc"
		if order.Ascending {
			dir = "asc"
		}
		query.Set("order", order.Column+"."+dir)
	}
	return s.t.doJSON(ctx, "select", table, http.MethodGet, "/rest/v1/"+table, query, nil, nil, dest)
}

func (s *Tables) Insert(ctx context.Context, table string, row any, dest any) error {
	body, err := json.Marshal(row)
	if err != nil {
		return &remote.RemoteError{Op: "insert", Table: table, Message: "encode row", Err: err}
	}
	headers := map[string]string{
		"Content-Type": "application/json",
		"Prefer":       "return=representation",
		"Accept":       singleObject,
	}
	return s.t.doJSON(ctx, "insert", table, http.MethodPost, "/rest/v1/"+table, nil, headers, bytes.NewReader(body), dest)
}

func (s *Tables) Update(ctx context.Context, table, id string, patch any, dest any) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return &remote.RemoteError{Op: "update", Table: table, Message: "encode patch", Err: err}
	}
	query := url.Values{}
	query.Set("id", "eq."+id)
	headers := map[string]string{
		"Content-Type": "application/json",
		"Prefer":       "return=representation",
		"Accept":       singleObject,
	}
	return s.t.doJSON(ctx, "update", table, http.MethodPatch, "/rest/v1/"+table, query, headers, bytes.NewReader(body), dest)
}

func (s *Tables) Delete(ctx context.Context, table, id string) error {
	query := url.Values{}
	query.Set("id", "eq."+id)
	headers := map[string]string{"Prefer": "return=minimal"}
	return s.t.doJSON(ctx, "delete", table, http.MethodDelete, "/rest/v1/"+table, query, headers, nil, nil)
}
