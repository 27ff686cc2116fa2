package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// MinContentLength is the minimum extracted text length to consider HTTP fetch successful.
// If content is shorter, we should fall back to browser rendering.
const MinContentLength = 500

// ShouldUseBrowser returns true if the extracted text is too short,
// indicating the page is likely a JavaScript-rendered SPA.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// Renderer returns the HTML of a page after client-side scripts run.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// BrowserRenderer renders pages in headless Chrome. Requires Chrome or
// Chromium on the host.
type BrowserRenderer struct {
	Timeout time.Duration
	Settle  time.Duration
	Logger  *logrus.Logger
}

// NewBrowserRenderer creates a renderer with a 30s timeout.
func NewBrowserRenderer(logger *logrus.Logger) *BrowserRenderer {
	return &BrowserRenderer{
		Timeout: 30 * time.Second,
		Settle:  2 * time.Second,
		Logger:  logger,
	}
}

// Render navigates to url, waits for the body plus a settle delay, and
// returns the outer HTML of the document.
func (b *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	if b.Logger != nil {
		b.Logger.WithField("url", url).Debug("rendering page in headless browser")
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, b.Timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.Settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	if b.Logger != nil {
		b.Logger.WithFields(logrus.Fields{"url": url, "bytes": len(html)}).Debug("rendered page")
	}
	return html, nil
}
