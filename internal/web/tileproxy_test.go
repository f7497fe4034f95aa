package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/13/0/0.png" {
			http.Error(w, "no tile", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTileProxy_FetchAndCache(t *testing.T) {
	var hits atomic.Int64
	srv := newUpstream(t, &hits)
	proxy := NewTileProxy(srv.URL, "png", NewTileCache(10, time.Minute))
	ctx := context.Background()

	data, ct, err := proxy.Fetch(ctx, 12, 1234, 1518)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, int64(1), hits.Load())

	// Second fetch is served from cache.
	_, _, err = proxy.Fetch(ctx, 12, 1234, 1518)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestTileProxy_UpstreamError(t *testing.T) {
	var hits atomic.Int64
	srv := newUpstream(t, &hits)
	proxy := NewTileProxy(srv.URL, "png", nil)

	_, _, err := proxy.Fetch(context.Background(), 13, 0, 0)
	assert.Error(t, err)
}

func TestTileProxy_NoCache(t *testing.T) {
	var hits atomic.Int64
	srv := newUpstream(t, &hits)
	proxy := NewTileProxy(srv.URL, "png", nil)
	ctx := context.Background()

	_, _, err := proxy.Fetch(ctx, 12, 0, 0)
	require.NoError(t, err)
	_, _, err = proxy.Fetch(ctx, 12, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}
