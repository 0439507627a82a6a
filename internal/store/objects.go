package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/synkhq/synk/internal/remote"
)

// ObjectDir implements remote.Storage on a local directory tree, one
// subdirectory per bucket. Signed URLs are HMAC JWTs carrying bucket, path
// and expiry; the serving side validates them with VerifySignedURL.
type ObjectDir struct {
	root       string
	baseURL    string
	signSecret []byte
}

var _ remote.Storage = (*ObjectDir)(nil)

func NewObjectDir(root, baseURL string, signSecret []byte) *ObjectDir {
	return &ObjectDir{
		root:       root,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signSecret: signSecret,
	}
}

// objectPath resolves bucket/path under root, rejecting traversal out of the
// bucket directory.
func (d *ObjectDir) objectPath(op, bucket, path string) (string, error) {
	if bucket == "" || path == "" {
		return "", &remote.RemoteError{Op: op, Table: bucket, Message: "bucket and path are required"}
	}
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", &remote.RemoteError{Op: op, Table: bucket, Message: fmt.Sprintf("invalid object path %q", path)}
	}
	return filepath.Join(d.root, bucket, cleaned), nil
}

func (d *ObjectDir) Upload(ctx context.Context, bucket, path string, r io.Reader, opts remote.UploadOptions) (string, error) {
	defer observe("storage.upload", bucket)()

	full, err := d.objectPath("storage.upload", bucket, path)
	if err != nil {
		return "", err
	}
	if !opts.Upsert {
		if _, err := os.Stat(full); err == nil {
			return "", &remote.RemoteError{Op: "storage.upload", Table: bucket, Message: "object already exists"}
		}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", &remote.RemoteError{Op: "storage.upload", Table: bucket, Err: err}
	}

	// Write to a sibling temp file and rename so readers never see a
	// partial object.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", &remote.RemoteError{Op: "storage.upload", Table: bucket, Err: err}
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &remote.RemoteError{Op: "storage.upload", Table: bucket, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", &remote.RemoteError{Op: "storage.upload", Table: bucket, Err: err}
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", &remote.RemoteError{Op: "storage.upload", Table: bucket, Err: err}
	}
	return path, nil
}

func (d *ObjectDir) Download(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	defer observe("storage.download", bucket)()

	full, err := d.objectPath("storage.download", bucket, path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &remote.RemoteError{Op: "storage.download", Table: bucket, Err: remote.ErrNotFound}
	}
	if err != nil {
		return nil, &remote.RemoteError{Op: "storage.download", Table: bucket, Err: err}
	}
	return f, nil
}

// Remove deletes the named objects. Missing objects are not errors so the
// call is idempotent, matching the hosted backend.
func (d *ObjectDir) Remove(ctx context.Context, bucket string, paths []string) error {
	defer observe("storage.remove", bucket)()

	for _, path := range paths {
		full, err := d.objectPath("storage.remove", bucket, path)
		if err != nil {
			return err
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &remote.RemoteError{Op: "storage.remove", Table: bucket, Err: err}
		}
	}
	return nil
}

func (d *ObjectDir) List(ctx context.Context, bucket, prefix string, opts remote.ListOptions) ([]remote.ObjectInfo, error) {
	defer observe("storage.list", bucket)()

	dir := filepath.Join(d.root, bucket)
	if prefix != "" {
		resolved, err := d.objectPath("storage.list", bucket, prefix)
		if err != nil {
			return nil, err
		}
		dir = resolved
	}

	var infos []remote.ObjectInfo
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if errors.Is(err, os.ErrNotExist) {
			return filepath.SkipAll
		}
		if err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".upload-") {
			return nil
		}
		fi, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		infos = append(infos, remote.ObjectInfo{
			Name:      filepath.ToSlash(rel),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, &remote.RemoteError{Op: "storage.list", Table: bucket, Err: err}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })

	if opts.Offset > 0 {
		if opts.Offset >= len(infos) {
			return []remote.ObjectInfo{}, nil
		}
		infos = infos[opts.Offset:]
	}
	if opts.Limit > 0 && len(infos) > opts.Limit {
		infos = infos[:opts.Limit]
	}
	return infos, nil
}

func (d *ObjectDir) PublicURL(bucket, path string) string {
	return d.baseURL + "/objects/" + bucket + "/" + path
}

// signedClaims binds a token to one object.
type signedClaims struct {
	Bucket string `json:"bkt"`
	Path   string `json:"pth"`
	jwt.RegisteredClaims
}

func (d *ObjectDir) CreateSignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	full, err := d.objectPath("storage.sign", bucket, path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); errors.Is(err, os.ErrNotExist) {
		return "", &remote.RemoteError{Op: "storage.sign", Table: bucket, Err: remote.ErrNotFound}
	} else if err != nil {
		return "", &remote.RemoteError{Op: "storage.sign", Table: bucket, Err: err}
	}

	claims := signedClaims{
		Bucket: bucket,
		Path:   path,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.signSecret)
	if err != nil {
		return "", &remote.RemoteError{Op: "storage.sign", Table: bucket, Message: "sign token", Err: err}
	}
	return d.baseURL + "/objects/sign/" + bucket + "/" + path + "?token=" + token, nil
}

// VerifySignedURL checks a signed-URL token and returns the bucket and path
// it grants access to.
func (d *ObjectDir) VerifySignedURL(token string) (bucket, path string, err error) {
	claims := &signedClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return d.signSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return "", "", fmt.Errorf("verify signed url: %w", err)
	}
	return claims.Bucket, claims.Path, nil
}
