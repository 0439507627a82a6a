package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/synkhq/synk/internal/remote"
)

type fixedSession struct {
	session *remote.Session
	err     error
}

func (f fixedSession) Session(context.Context) (*remote.Session, error) {
	return f.session, f.err
}

func signedIn(userID string) fixedSession {
	return fixedSession{session: &remote.Session{User: remote.UserIdentity{ID: userID}}}
}

func TestSelectSQLScopesAndOrders(t *testing.T) {
	sql, args, err := selectSQL("tasks",
		[]remote.Filter{{Column: "user_id", Value: "u1"}, {Column: "completed", Value: "false"}},
		&remote.Order{Column: "created_at", Ascending: false})
	if err != nil {
		t.Fatalf("selectSQL: %v", err)
	}
	want := `SELECT data FROM tasks WHERE user_id = $1 AND data->>'completed' = $2 ORDER BY data->>'created_at' DESC`
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	// Slot zero is reserved for the user id; user_id filters collapse into it.
	if len(args) != 2 || args[1] != "false" {
		t.Errorf("args = %v", args)
	}
}

func TestSelectSQLRejectsBadIdentifiers(t *testing.T) {
	_, _, err := selectSQL("tasks", []remote.Filter{{Column: "title; DROP TABLE tasks", Value: "x"}}, nil)
	if err == nil {
		t.Fatal("expected identifier rejection")
	}
}

func TestSelectDecodesDocuments(t *testing.T) {
	pool := &mockPool{
		t: t,
		rowSets: []rowSetExpectation{{
			expect: regexp.MustCompile(`SELECT data FROM tasks WHERE user_id = \$1`),
			args:   []any{"u1"},
			docs: []string{
				`{"id":"t1","user_id":"u1","title":"Buy milk"}`,
				`{"id":"t2","user_id":"u1","title":"Walk dog"}`,
			},
		}},
	}
	p := NewPostgres(pool, signedIn("u1"))

	var rows []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := p.Select(context.Background(), "tasks", nil, nil, &rows); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 2 || rows[0].Title != "Buy milk" || rows[1].ID != "t2" {
		t.Fatalf("unexpected rows %v", rows)
	}
	pool.assertDone()
}

func TestSelectRequiresSession(t *testing.T) {
	p := NewPostgres(&mockPool{t: t}, fixedSession{})
	err := p.Select(context.Background(), "tasks", nil, nil, nil)
	if !errors.Is(err, remote.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestInsertAssignsIDAndOwner(t *testing.T) {
	pool := &mockPool{
		t: t,
		queries: []queryExpectation{{
			expect: regexp.MustCompile(`INSERT INTO tasks \(id, user_id, data\)`),
			value:  `{"id":"captured"}`,
		}},
	}
	p := NewPostgres(pool, signedIn("u1"))
	var created struct {
		ID string `json:"id"`
	}
	err := p.Insert(context.Background(), "tasks", map[string]string{"title": "Buy milk"}, &created)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.ID != "captured" {
		t.Errorf("dest not decoded from returned document: %+v", created)
	}
	pool.assertDone()
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	pool := &mockPool{
		t: t,
		queries: []queryExpectation{{
			expect: regexp.MustCompile(`UPDATE tasks`),
			err:    pgx.ErrNoRows,
		}},
	}
	p := NewPostgres(pool, signedIn("u1"))

	err := p.Update(context.Background(), "tasks", "missing", map[string]bool{"completed": true}, nil)
	if !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	pool.assertDone()
}

func TestUpdateReturnsMergedDocument(t *testing.T) {
	pool := &mockPool{
		t: t,
		queries: []queryExpectation{{
			expect: regexp.MustCompile(`UPDATE tasks`),
			args:   []any{"t1", "u1", nil, nil},
			value:  `{"id":"t1","completed":true}`,
		}},
	}
	p := NewPostgres(pool, signedIn("u1"))

	var updated struct {
		ID        string `json:"id"`
		Completed bool   `json:"completed"`
	}
	if err := p.Update(context.Background(), "tasks", "t1", map[string]bool{"completed": true}, &updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != "t1" || !updated.Completed {
		t.Errorf("unexpected row %+v", updated)
	}
	pool.assertDone()
}

func TestDeleteScopesToOwner(t *testing.T) {
	pool := &mockPool{
		t: t,
		execs: []execExpectation{{
			expect: regexp.MustCompile(`DELETE FROM tasks WHERE id = \$1 AND user_id = \$2`),
			args:   []any{"t1", "u1"},
		}},
	}
	p := NewPostgres(pool, signedIn("u1"))

	if err := p.Delete(context.Background(), "tasks", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	pool.assertDone()
}

func TestRejectsBadTableName(t *testing.T) {
	p := NewPostgres(&mockPool{t: t}, signedIn("u1"))
	err := p.Delete(context.Background(), "tasks; --", "t1")
	if err == nil {
		t.Fatal("expected identifier rejection")
	}
}
