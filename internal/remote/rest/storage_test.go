package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/synkhq/synk/internal/remote"
)

func TestUploadSetsObjectHeaders(t *testing.T) {
	var got *http.Request
	var body []byte
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		body, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]string{"Key": "user-files/u1/file.pdf"})
	})

	path, err := c.Storage().Upload(context.Background(), "user-files", "u1/file.pdf",
		strings.NewReader("pdf-bytes"), remote.UploadOptions{
			ContentType:  "application/pdf",
			CacheControl: "3600",
		})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if path != "u1/file.pdf" {
		t.Errorf("path = %q", path)
	}
	if got.URL.Path != "/storage/v1/object/user-files/u1/file.pdf" {
		t.Errorf("path = %s", got.URL.Path)
	}
	if ct := got.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cc := got.Header.Get("Cache-Control"); cc != "3600" {
		t.Errorf("cache control = %q", cc)
	}
	if string(body) != "pdf-bytes" {
		t.Errorf("body = %q", body)
	}
}

func TestRemoveSendsPrefixes(t *testing.T) {
	var method string
	var payload map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(`[]`))
	})

	err := c.Storage().Remove(context.Background(), "user-files", []string{"u1/a.txt", "u1/b.txt"})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if method != http.MethodDelete {
		t.Errorf("method = %s", method)
	}
	if len(payload["prefixes"]) != 2 || payload["prefixes"][0] != "u1/a.txt" {
		t.Errorf("prefixes = %v", payload["prefixes"])
	}
}

func TestListMapsEntries(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/list/user-files" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["prefix"] != "u1" {
			t.Errorf("prefix = %v", body["prefix"])
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"name":       "report.pdf",
				"created_at": created.Format(time.RFC3339),
				"metadata":   map[string]int64{"size": 2048},
			},
		})
	})

	infos, err := c.Storage().List(context.Background(), "user-files", "u1", remote.ListOptions{Limit: 100})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected one entry, got %d", len(infos))
	}
	if infos[0].Name != "report.pdf" || infos[0].Size != 2048 || !infos[0].CreatedAt.Equal(created) {
		t.Errorf("unexpected entry %+v", infos[0])
	}
}

func TestDownloadStreamsBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/user-files/u1/a.txt" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte("contents"))
	})

	rc, err := c.Storage().Download(context.Background(), "user-files", "u1/a.txt")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "contents" {
		t.Errorf("body = %q", data)
	}
}

func TestCreateSignedURLJoinsReturnedPath(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int64
		json.NewDecoder(r.Body).Decode(&body)
		if body["expiresIn"] != 3600 {
			t.Errorf("expiresIn = %d", body["expiresIn"])
		}
		json.NewEncoder(w).Encode(map[string]string{
			"signedURL": "/object/sign/user-files/u1/a.txt?token=abc",
		})
	})

	u, err := c.Storage().CreateSignedURL(context.Background(), "user-files", "u1/a.txt", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	want := srv.URL + "/storage/v1/object/sign/user-files/u1/a.txt?token=abc"
	if u != want {
		t.Errorf("signed url = %q, want %q", u, want)
	}
}

func TestPublicURL(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	got := c.Storage().PublicURL("user-files", "u1/a.txt")
	want := srv.URL + "/storage/v1/object/public/user-files/u1/a.txt"
	if got != want {
		t.Errorf("public url = %q, want %q", got, want)
	}
}
