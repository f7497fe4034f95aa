package scraper

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ClientConfig tunes the HTTP side of the scraper.
type ClientConfig struct {
	CitySlug       string  // URL suffix detail pages carry, e.g. "boston-ma"
	RequestsPerSec float64 // 0 means 2 req/s
	Timeout        time.Duration
	UserAgent      string
}

// Client fetches and parses listing-site pages. All requests share one
// rate limiter so parallel district scrapes stay polite.
type Client struct {
	http     *resty.Client
	detailRE *regexp.Regexp
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.CitySlug == "" {
		cfg.CitySlug = "boston-ma"
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	httpClient := resty.New()
	httpClient.SetHeader("user-agent", cfg.UserAgent)
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetRetryCount(2)

	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	return &Client{
		http:     httpClient,
		detailRE: regexp.MustCompile(`(?i)^https?://[^/]+/.+-` + regexp.QuoteMeta(cfg.CitySlug) + `/[^/]+/?$`),
	}
}

func (c *Client) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	res, err := c.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: fetch %s", pageURL)
	}
	if res.IsError() {
		return nil, eris.Errorf("scraper: fetch %s: status %d", pageURL, res.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: parse %s", pageURL)
	}
	return doc, nil
}

// CollectPropertyURLs walks up to maxPages of a search result and returns
// the distinct property detail URLs it links to, sorted.
func (c *Client) CollectPropertyURLs(ctx context.Context, searchURL string, maxPages int) ([]string, error) {
	base, err := url.Parse(searchURL)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: search url %s", searchURL)
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	seen := make(map[string]struct{})
	for page := 1; page <= maxPages; page++ {
		doc, err := c.document(ctx, pageURL(base, page))
		if err != nil {
			return nil, err
		}
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			abs := base.ResolveReference(ref).String()
			if c.detailRE.MatchString(abs) {
				seen[abs] = struct{}{}
			}
		})
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

func pageURL(base *url.URL, page int) string {
	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
