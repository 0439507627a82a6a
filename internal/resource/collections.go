package resource

import (
	"context"

	"github.com/synkhq/synk/internal/remote"
	"github.com/synkhq/synk/internal/sync"
)

// Tasks caches the current user's tasks, newest first.
type Tasks struct {
	*sync.Collection[Task]
}

func NewTasks(client *remote.Client) *Tasks {
	kind := sync.Kind[Task]{
		Table:     "tasks",
		Order:     remote.Order{Column: "created_at", Ascending: false},
		Placement: sync.PlacePrepend,
		WithOwner: func(row Task, userID string) Task {
			row.UserID = userID
			return row
		},
	}
	return &Tasks{Collection: sync.NewCollection(kind, client.Auth, client.Tables)}
}

// Notes caches the current user's notes, most recently updated first.
type Notes struct {
	*sync.Collection[Note]
}

func NewNotes(client *remote.Client) *Notes {
	kind := sync.Kind[Note]{
		Table:     "notes",
		Order:     remote.Order{Column: "updated_at", Ascending: false},
		Placement: sync.PlacePrepend,
		WithOwner: func(row Note, userID string) Note {
			row.UserID = userID
			return row
		},
	}
	return &Notes{Collection: sync.NewCollection(kind, client.Auth, client.Tables)}
}

// ToggleFavorite flips the favorite flag relative to the caller-supplied
// cached value; it does not re-read the row first.
func (n *Notes) ToggleFavorite(ctx context.Context, id string, isFavorite bool) (Note, error) {
	return n.Update(ctx, id, map[string]any{"is_favorite": !isFavorite})
}

// Events caches the current user's calendar entries in start-time order.
type Events struct {
	*sync.Collection[Event]
}

func NewEvents(client *remote.Client) *Events {
	kind := sync.Kind[Event]{
		Table:     "events",
		Order:     remote.Order{Column: "start_time", Ascending: true},
		Placement: sync.PlaceSorted,
		Less: func(a, b Event) bool {
			return a.StartTime.Before(b.StartTime)
		},
		WithOwner: func(row Event, userID string) Event {
			row.UserID = userID
			return row
		},
	}
	return &Events{Collection: sync.NewCollection(kind, client.Auth, client.Tables)}
}
