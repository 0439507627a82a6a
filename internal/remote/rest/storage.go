package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/synkhq/synk/internal/remote"
)

// Storage speaks the hosted object-storage API. Bucket policies are
// enforced server-side against the bearer token.
type Storage struct {
	t *transport
}

var _ remote.Storage = (*Storage)(nil)

func (s *Storage) Upload(ctx context.Context, bucket, path string, r io.Reader, opts remote.UploadOptions) (string, error) {
	headers := map[string]string{}
	if opts.ContentType != "" {
		headers["Content-Type"] = opts.ContentType
	}
	if opts.CacheControl != "" {
		headers["Cache-Control"] = opts.CacheControl
	}
	if opts.Upsert {
		headers["x-upsert"] = "true"
	}

	var result struct {
		Key string `json:"Key"`
	}
	err := s.t.doJSON(ctx, "storage.upload", bucket, http.MethodPost, "/storage/v1/object/"+bucket+"/"+path, nil, headers, r, &result)
	if err != nil {
		return "", err
	}
	return path, nil
}

func (s *Storage) Download(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	defer observe("storage.download", bucket)()

	resp, err := s.t.do(ctx, http.MethodGet, "/storage/v1/object/"+bucket+"/"+path, nil, nil, nil)
	if err != nil {
		return nil, &remote.RemoteError{Op: "storage.download", Table: bucket, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError("storage.download", bucket, resp)
	}
	return resp.Body, nil
}

func (s *Storage) Remove(ctx context.Context, bucket string, paths []string) error {
	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return &remote.RemoteError{Op: "storage.remove", Table: bucket, Message: "encode request", Err: err}
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return s.t.doJSON(ctx, "storage.remove", bucket, http.MethodDelete, "/storage/v1/object/"+bucket, nil, headers, bytes.NewReader(body), nil)
}

func (s *Storage) List(ctx context.Context, bucket, prefix string, opts remote.ListOptions) ([]remote.ObjectInfo, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	payload := map[string]any{
		"prefix": prefix,
		"limit":  limit,
		"offset": opts.Offset,
		"sortBy": map[string]string{"column": "created_at", "order": "desc"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &remote.RemoteError{Op: "storage.list", Table: bucket, Message: "encode request", Err: err}
	}

	var entries []struct {
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
		Metadata  struct {
			Size int64 `json:"size"`
		} `json:"metadata"`
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if err := s.t.doJSON(ctx, "storage.list", bucket, http.MethodPost, "/storage/v1/object/list/"+bucket, nil, headers, bytes.NewReader(body), &entries); err != nil {
		return nil, err
	}

	infos := make([]remote.ObjectInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, remote.ObjectInfo{
			Name:      e.Name,
			Size:      e.Metadata.Size,
			CreatedAt: e.CreatedAt,
		})
	}
	return infos, nil
}

func (s *Storage) PublicURL(bucket, path string) string {
	return s.t.baseURL + "/storage/v1/object/public/" + bucket + "/" + path
}

func (s *Storage) CreateSignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	body, err := json.Marshal(map[string]int64{"expiresIn": int64(ttl.Seconds())})
	if err != nil {
		return "", &remote.RemoteError{Op: "storage.sign", Table: bucket, Message: "encode request", Err: err}
	}

	var result struct {
		SignedURL string `json:"signedURL"`
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if err := s.t.doJSON(ctx, "storage.sign", bucket, http.MethodPost, "/storage/v1/object/sign/"+bucket+"/"+path, nil, headers, bytes.NewReader(body), &result); err != nil {
		return "", err
	}
	return s.t.baseURL + "/storage/v1" + result.SignedURL, nil
}
