// Package registry provides access to the PyPI JSON API with two layers of
// memoization: a bounded in-process cache and a persistent backend.
//
// Registry calls are the dominant cost of a tree build and packages are
// revisited many times during traversal, so a hit at either layer
// short-circuits the network entirely. Concurrent misses for the same
// identity collapse to a single outbound request.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lwaddell/depscope/pkg/cache"
	"github.com/lwaddell/depscope/pkg/errors"
	"github.com/lwaddell/depscope/pkg/pydep"
)

const (
	// DefaultBaseURL is the PyPI JSON metadata endpoint.
	DefaultBaseURL = "https://pypi.org/pypi"

	httpTimeout = 30 * time.Second

	memoryCapacity = 2048
)

// Client fetches package metadata from PyPI, memoizing by normalized
// identity. It implements [pydep.Fetcher] and is safe for concurrent use.
//
// Lookup order: in-process cache, persistent store, network. The persistent
// store is only written on successful lookups; a non-success response is a
// hard failure and is not retried, since missing package metadata is not a
// transient condition for this tool's batch usage.
type Client struct {
	baseURL string
	http    *http.Client
	mem     *cache.Memory
	store   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
}

// NewClient creates a client backed by the given persistent store. Pass a
// [cache.Null] to disable persistence. A ttl of zero keeps entries forever;
// freshness is not a concern for this tool, historical runs are acceptable.
func NewClient(store cache.Cache, ttl time.Duration) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: httpTimeout},
		mem:     cache.NewMemory(memoryCapacity),
		store:   store,
		ttl:     ttl,
	}
}

// WithBaseURL overrides the registry endpoint, primarily for tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// Fetch retrieves metadata for a package by name. The name is normalized
// before lookup, so any spelling of the same identity shares one cache
// entry and one network call.
func (c *Client) Fetch(ctx context.Context, name string) (*pydep.Metadata, error) {
	if err := errors.ValidatePackageName(name); err != nil {
		return nil, err
	}
	id := pydep.Normalize(name)

	raw, err := c.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeMetadata(id, raw)
}

func (c *Client) lookup(ctx context.Context, id pydep.Identity) ([]byte, error) {
	key := "pypi:" + id.String()

	if data, ok, _ := c.mem.Get(ctx, key); ok {
		return data, nil
	}
	if data, ok, err := c.store.Get(ctx, key); err == nil && ok {
		_ = c.mem.Set(ctx, key, data, 0)
		return data, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		data, err := c.get(ctx, id)
		if err != nil {
			return nil, err
		}
		_ = c.store.Set(ctx, key, data, c.ttl)
		_ = c.mem.Set(ctx, key, data, 0)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) get(ctx context.Context, id pydep.Identity) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/json", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRegistryLookup, err, "building request for %s", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRegistryLookup, err, "fetching %s", id)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.New(errors.ErrCodePackageNotFound, "package %s not on the registry", id)
	default:
		return nil, errors.New(errors.ErrCodeRegistryLookup, "registry returned status %d for %s", resp.StatusCode, id)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRegistryLookup, err, "reading response for %s", id)
	}
	return data, nil
}

type apiResponse struct {
	Info     apiInfo                      `json:"info"`
	Releases map[string][]apiDistribution `json:"releases"`
}

type apiInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Classifiers  []string `json:"classifiers"`
	RequiresDist []string `json:"requires_dist"`
}

type apiDistribution struct {
	Filename      string `json:"filename"`
	PythonVersion string `json:"python_version"`
	URL           string `json:"url"`
}

func decodeMetadata(id pydep.Identity, raw []byte) (*pydep.Metadata, error) {
	var data apiResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRegistryLookup, err, "malformed registry payload for %s", id)
	}

	meta := &pydep.Metadata{
		Name:         data.Info.Name,
		Version:      data.Info.Version,
		Classifiers:  data.Info.Classifiers,
		RequiresDist: data.Info.RequiresDist,
		Releases:     make(map[string][]pydep.Distribution, len(data.Releases)),
	}
	for version, dists := range data.Releases {
		files := make([]pydep.Distribution, len(dists))
		for i, d := range dists {
			files[i] = pydep.Distribution{
				Filename:  d.Filename,
				PythonTag: d.PythonVersion,
				URL:       d.URL,
			}
		}
		meta.Releases[version] = files
	}
	return meta, nil
}

var _ pydep.Fetcher = (*Client)(nil)
