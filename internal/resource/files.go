package resource

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/synkhq/synk/internal/remote"
	"github.com/synkhq/synk/internal/sync"
)

// DefaultBucket is the object-storage bucket holding user uploads.
const DefaultBucket = "user-files"

// Files caches the current user's file metadata, newest first, and
// coordinates the object-storage side of uploads and deletes.
type Files struct {
	*sync.Collection[FileMetadata]

	auth    remote.Auth
	storage remote.Storage
	bucket  string
}

func NewFiles(client *remote.Client) *Files {
	kind := sync.Kind[FileMetadata]{
		Table:     "files",
		Order:     remote.Order{Column: "created_at", Ascending: false},
		Placement: sync.PlacePrepend,
		WithOwner: func(row FileMetadata, userID string) FileMetadata {
			row.UserID = userID
			return row
		},
	}
	return &Files{
		Collection: sync.NewCollection(kind, client.Auth, client.Tables),
		auth:       client.Auth,
		storage:    client.Storage,
		bucket:     DefaultBucket,
	}
}

// Upload stores the object under the user's private prefix, then records
// its metadata row. The object name is unique per upload so same-named
// files never collide.
func (f *Files) Upload(ctx context.Context, name string, r io.Reader, size int64, mimeType, description string) (FileMetadata, error) {
	session, err := f.auth.Session(ctx)
	if err != nil {
		return FileMetadata{}, err
	}
	if session == nil {
		return FileMetadata{}, remote.ErrNotAuthenticated
	}

	objectPath := fmt.Sprintf("%s/%d_%s%s",
		session.User.ID, time.Now().UnixMilli(), uuid.NewString()[:8], strings.ToLower(path.Ext(name)))

	storedPath, err := f.storage.Upload(ctx, f.bucket, objectPath, r, remote.UploadOptions{
		ContentType:  mimeType,
		CacheControl: "3600",
	})
	if err != nil {
		return FileMetadata{}, err
	}

	row := FileMetadata{
		Name:     name,
		FilePath: storedPath,
		FileSize: size,
		MimeType: mimeType,
	}
	if description != "" {
		row.Description = &description
	}
	return f.Create(ctx, row)
}

// Delete removes the stored object, then the metadata row. The object is
// deleted first: if that fails, the metadata delete is not attempted, so
// the cache and the database stay consistent with each other.
func (f *Files) Delete(ctx context.Context, id, filePath string) error {
	if err := f.storage.Remove(ctx, f.bucket, []string{filePath}); err != nil {
		return err
	}
	return f.Remove(ctx, id)
}

// SignedURL returns a time-limited URL for a private object.
func (f *Files) SignedURL(ctx context.Context, filePath string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return f.storage.CreateSignedURL(ctx, f.bucket, filePath, ttl)
}

// Download streams a stored object.
func (f *Files) Download(ctx context.Context, filePath string) (io.ReadCloser, error) {
	return f.storage.Download(ctx, f.bucket, filePath)
}

// ListObjects enumerates the current user's stored objects.
func (f *Files) ListObjects(ctx context.Context) ([]remote.ObjectInfo, error) {
	session, err := f.auth.Session(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, remote.ErrNotAuthenticated
	}
	return f.storage.List(ctx, f.bucket, session.User.ID, remote.ListOptions{Limit: 100})
}
