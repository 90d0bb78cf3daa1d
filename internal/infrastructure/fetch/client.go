package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"resource-jobs/internal/config"
)

// Options tune a single page fetch. Zero values mean a plain GET.
type Options struct {
	RenderJS     bool
	WaitMS       int
	CountryCode  string
	PremiumProxy bool
	BlockAds     bool
}

type Page struct {
	Body     []byte
	FinalURL string
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts Options) (Page, error)
}

const (
	maxBodyBytes = 5 << 20
	browserUA    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// New picks the render-API client when a key is configured, otherwise a plain
// HTTP client with a local headless renderer behind RenderJS.
func New(cfg config.FetchConfig, logger *log.Logger) Fetcher {
	if strings.TrimSpace(cfg.RenderAPIKey) != "" && strings.TrimSpace(cfg.RenderAPIBase) != "" {
		return NewRenderClient(cfg.RenderAPIBase, cfg.RenderAPIKey, cfg.CountryCode, logger)
	}
	return &localFetcher{
		plain:    NewPlainClient(logger),
		headless: newHeadlessRenderer(logger),
	}
}

type localFetcher struct {
	plain    *PlainClient
	headless *headlessRenderer
}

func (f *localFetcher) Fetch(ctx context.Context, rawURL string, opts Options) (Page, error) {
	if f == nil {
		return Page{}, fmt.Errorf("nil fetcher")
	}
	if opts.RenderJS && f.headless != nil {
		return f.headless.Fetch(ctx, rawURL, opts)
	}
	return f.plain.Fetch(ctx, rawURL, opts)
}

// RenderClient proxies fetches through a rendering API, translating Options
// to the service's query parameters.
type RenderClient struct {
	apiBase     string
	apiKey      string
	countryCode string
	client      *http.Client
	logger      *log.Logger
}

func NewRenderClient(apiBase, apiKey, countryCode string, logger *log.Logger) *RenderClient {
	return &RenderClient{
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		apiKey:      strings.TrimSpace(apiKey),
		countryCode: strings.TrimSpace(countryCode),
		client:      &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
	}
}

func (c *RenderClient) Fetch(ctx context.Context, rawURL string, opts Options) (Page, error) {
	if c == nil || c.client == nil {
		return Page{}, fmt.Errorf("nil render client")
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Page{}, fmt.Errorf("empty url")
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("url", rawURL)
	q.Set("render_js", strconv.FormatBool(opts.RenderJS))
	if opts.WaitMS > 0 {
		q.Set("wait", strconv.Itoa(opts.WaitMS))
	}
	cc := opts.CountryCode
	if cc == "" {
		cc = c.countryCode
	}
	if cc != "" {
		q.Set("country_code", cc)
	}
	if opts.PremiumProxy {
		q.Set("premium_proxy", "true")
	}
	if opts.BlockAds {
		q.Set("block_ads", "true")
	}

	endpoint := c.apiBase + "?" + q.Encode()
	body, err := getWithRetry(ctx, c.client, endpoint, nil, 3)
	if err != nil {
		if c.logger != nil {
			c.logger.Printf("[Fetch] render api error url=%s err=%v", rawURL, err)
		}
		return Page{}, err
	}
	return Page{Body: body, FinalURL: rawURL}, nil
}

// PlainClient is a direct HTTP fetcher with browser headers and redirect
// follow. RenderJS is ignored.
type PlainClient struct {
	client *http.Client
	logger *log.Logger
}

func NewPlainClient(logger *log.Logger) *PlainClient {
	return &PlainClient{
		client: &http.Client{Timeout: 25 * time.Second},
		logger: logger,
	}
}

func (c *PlainClient) Fetch(ctx context.Context, rawURL string, opts Options) (Page, error) {
	if c == nil || c.client == nil {
		return Page{}, fmt.Errorf("nil plain client")
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Page{}, fmt.Errorf("empty url")
	}

	var finalURL string
	body, err := getWithRetry(ctx, c.client, rawURL, func(resp *http.Response) {
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
	}, 3)
	if err != nil {
		return Page{}, err
	}
	if finalURL == "" {
		finalURL = rawURL
	}
	return Page{Body: body, FinalURL: finalURL}, nil
}

func getWithRetry(ctx context.Context, client *http.Client, url string, onResp func(*http.Response), attempts int) ([]byte, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var body []byte
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", browserUA)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-CA,en;q=0.9")
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
			continue
		}
		func() {
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
				return
			}
			b, err := readAllLimit(resp.Body, maxBodyBytes)
			if err != nil {
				lastErr = err
				return
			}
			if onResp != nil {
				onResp(resp)
			}
			lastErr = nil
			body = b
		}()
		if lastErr == nil {
			return body, nil
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return nil, lastErr
}

func readAllLimit(r io.Reader, max int64) ([]byte, error) {
	lr := &io.LimitedReader{R: r, N: max}
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if lr.N <= 0 {
		return nil, fmt.Errorf("response too large")
	}
	return b, nil
}
