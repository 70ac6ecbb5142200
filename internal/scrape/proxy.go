package scrape

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/northcounty/propsync/internal/config"
)

// ProxyFetcher retrieves rendered HTML through a third-party
// rendering proxy, which runs the target site's client framework so
// the state blob and history table are present in the returned HTML.
type ProxyFetcher struct {
	cfg     config.ScrapeConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewProxyFetcher creates a fetcher for the rendering proxy.
func NewProxyFetcher(cfg config.ScrapeConfig) *ProxyFetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 0.5
	}
	return &ProxyFetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// Fetch renders the target URL through the proxy and returns the HTML.
func (p *ProxyFetcher) Fetch(ctx context.Context, target string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "scrape: rate limiter wait")
	}

	params := url.Values{}
	params.Set("api_key", p.cfg.ProxyKey)
	params.Set("url", target)
	params.Set("render", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.ProxyBaseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "scrape: create proxy request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: proxy fetch %s", target)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("scrape: proxy returned %d for %s", resp.StatusCode, target)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "scrape: read proxy body")
	}
	return string(body), nil
}
