// Package resource defines the row types of the Synk data model and the
// configured synchronization collections for each of them.
package resource

import "time"

// Task is a to-do item with an optional due date.
type Task struct {
	ID          string     `json:"id,omitempty"`
	UserID      string     `json:"user_id,omitempty"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

func (t Task) RowID() string { return t.ID }

// Note is a markdown note that can be marked favorite.
type Note struct {
	ID         string    `json:"id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Title      string    `json:"title"`
	Body       *string   `json:"body"`
	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

func (n Note) RowID() string { return n.ID }

// Event is a calendar entry.
type Event struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Location    *string   `json:"location"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

func (e Event) RowID() string { return e.ID }

// FileMetadata describes an uploaded object; the bytes live in object
// storage under FilePath.
type FileMetadata struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	Name        string    `json:"name"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	MimeType    string    `json:"mime_type"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

func (f FileMetadata) RowID() string { return f.ID }

// Profile is the display data attached to a user identity. Provisioned by
// the backend on signup; this client only reads and caches it.
type Profile struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	AvatarURL *string `json:"avatar_url"`
}
