package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// TileProxy serves basemap raster tiles for the picker map from an upstream
// tile server (e.g. OSM), caching results so the upstream sees one request
// per tile per TTL.
type TileProxy struct {
	baseURL string
	format  string
	client  *http.Client
	cache   *TileCache
}

func NewTileProxy(baseURL, format string, cache *TileCache) *TileProxy {
	return &TileProxy{
		baseURL: baseURL,
		format:  format,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}
}

// Fetch retrieves a basemap tile from the cache or the upstream server.
func (p *TileProxy) Fetch(ctx context.Context, z, x, y int) ([]byte, string, error) {
	if p.cache != nil {
		if cached := p.cache.Get(z, x, y); cached != nil {
			return cached, p.contentType(), nil
		}
	}

	url := fmt.Sprintf("%s/%d/%d/%d.%s", p.baseURL, z, x, y, p.format)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "web: create basemap request")
	}
	req.Header.Set("User-Agent", "bure/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", eris.Wrap(err, "web: fetch basemap tile")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Errorf("web: basemap upstream returned %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", eris.Wrap(err, "web: read basemap tile body")
	}

	if p.cache != nil {
		p.cache.Put(z, x, y, data)
	}

	zap.L().Debug("web: fetched basemap tile", zap.String("url", url), zap.Int("bytes", len(data)))
	return data, p.contentType(), nil
}

func (p *TileProxy) contentType() string {
	switch p.format {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
