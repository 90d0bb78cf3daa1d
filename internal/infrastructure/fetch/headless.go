package fetch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// headlessRenderer loads a page in headless Chrome and returns the rendered
// DOM. Used for JS-heavy career sites when no render API is configured.
type headlessRenderer struct {
	logger *log.Logger
}

func newHeadlessRenderer(logger *log.Logger) *headlessRenderer {
	return &headlessRenderer{logger: logger}
}

func (r *headlessRenderer) Fetch(ctx context.Context, rawURL string, opts Options) (Page, error) {
	if r == nil {
		return Page{}, fmt.Errorf("nil renderer")
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Page{}, fmt.Errorf("empty url")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(browserUA),
		)...,
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	reqCtx, reqCancel := context.WithTimeout(browserCtx, 45*time.Second)
	defer reqCancel()

	wait := time.Duration(opts.WaitMS) * time.Millisecond
	if wait <= 0 {
		wait = 1500 * time.Millisecond
	}

	var html string
	var finalURL string
	err := chromedp.Run(reqCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(wait),
		chromedp.EvaluateAsDevTools(`document.documentElement.outerHTML`, &html),
		chromedp.EvaluateAsDevTools(`window.location.href`, &finalURL),
	)
	if err != nil {
		if r.logger != nil {
			r.logger.Printf("[Fetch] headless render error url=%s err=%v", rawURL, err)
		}
		return Page{}, err
	}
	if strings.TrimSpace(finalURL) == "" {
		finalURL = rawURL
	}
	return Page{Body: []byte(html), FinalURL: finalURL}, nil
}
