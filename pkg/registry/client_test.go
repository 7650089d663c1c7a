package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lwaddell/depscope/pkg/cache"
	"github.com/lwaddell/depscope/pkg/errors"
)

const requestsPayload = `{
	"info": {
		"name": "requests",
		"version": "2.28.1",
		"classifiers": ["Programming Language :: Python :: 3.9"],
		"requires_dist": ["urllib3>=1.21", "chardet ; extra == \"use_chardet_on_py3\""]
	},
	"releases": {
		"2.28.1": [
			{"filename": "requests-2.28.1-py3-none-any.whl", "python_version": "py3", "url": "https://example.invalid/requests.whl"}
		]
	}
}`

func testServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/requests/json":
			w.Write([]byte(requestsPayload))
		case "/flaky/json":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetch(t *testing.T) {
	var hits atomic.Int64
	srv := testServer(t, &hits)
	client := NewClient(cache.NewNull(), 0).WithBaseURL(srv.URL)

	meta, err := client.Fetch(context.Background(), "Requests")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if meta.Name != "requests" || meta.Version != "2.28.1" {
		t.Errorf("metadata = %q %q, want requests 2.28.1", meta.Name, meta.Version)
	}
	if len(meta.RequiresDist) != 2 {
		t.Errorf("RequiresDist = %v, want 2 entries", meta.RequiresDist)
	}
	dists := meta.Releases["2.28.1"]
	if len(dists) != 1 || dists[0].PythonTag != "py3" {
		t.Errorf("releases = %v, want one py3 wheel", dists)
	}
}

func TestClientFetch_MemoizesByIdentity(t *testing.T) {
	var hits atomic.Int64
	srv := testServer(t, &hits)
	client := NewClient(cache.NewNull(), 0).WithBaseURL(srv.URL)

	// Different spellings of the same identity share one lookup.
	for _, name := range []string{"requests", "Requests", "requests"} {
		if _, err := client.Fetch(context.Background(), name); err != nil {
			t.Fatalf("Fetch(%q) failed: %v", name, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestClientFetch_PersistentStore(t *testing.T) {
	var hits atomic.Int64
	srv := testServer(t, &hits)
	store, err := cache.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}

	first := NewClient(store, 0).WithBaseURL(srv.URL)
	if _, err := first.Fetch(context.Background(), "requests"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// A fresh client with an empty memory layer hits the store, not the
	// network.
	second := NewClient(store, 0).WithBaseURL(srv.URL)
	if _, err := second.Fetch(context.Background(), "requests"); err != nil {
		t.Fatalf("Fetch through store failed: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestClientFetch_NotFound(t *testing.T) {
	var hits atomic.Int64
	srv := testServer(t, &hits)
	client := NewClient(cache.NewNull(), 0).WithBaseURL(srv.URL)

	_, err := client.Fetch(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error for an unknown package")
	}
	if code := errors.GetCode(err); code != errors.ErrCodePackageNotFound {
		t.Errorf("code = %s, want %s", code, errors.ErrCodePackageNotFound)
	}
}

func TestClientFetch_ServerError(t *testing.T) {
	var hits atomic.Int64
	srv := testServer(t, &hits)
	client := NewClient(cache.NewNull(), 0).WithBaseURL(srv.URL)

	_, err := client.Fetch(context.Background(), "flaky")
	if err == nil {
		t.Fatal("expected an error for a server failure")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeRegistryLookup {
		t.Errorf("code = %s, want %s", code, errors.ErrCodeRegistryLookup)
	}
	// A failed lookup is not retried.
	if got := hits.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestClientFetch_InvalidName(t *testing.T) {
	client := NewClient(cache.NewNull(), 0)

	_, err := client.Fetch(context.Background(), "../escape")
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeInvalidPackage {
		t.Errorf("code = %s, want %s", code, errors.ErrCodeInvalidPackage)
	}
}

func TestDecodeMetadata_Malformed(t *testing.T) {
	if _, err := decodeMetadata("pkg", []byte("{not json")); err == nil {
		t.Fatal("expected a decode error")
	}
}
