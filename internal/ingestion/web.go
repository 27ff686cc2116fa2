package ingestion

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/content-repurposer/internal/fetch"
	"github.com/jonathan/content-repurposer/internal/store"
)

// FromWebPage fetches rawURL and extracts its main article text. Readability
// runs first; goquery main-content selection is the fallback. When the text
// is still shorter than fetch.MinContentLength and a renderer is configured,
// the page is rendered in a headless browser and extracted again.
func (i *Ingester) FromWebPage(ctx context.Context, rawURL string) (*Content, error) {
	pageURL, err := parseWebURL(rawURL)
	if err != nil {
		return nil, err
	}

	result, err := i.pages.Get(ctx, pageURL.String())
	if err != nil {
		return nil, upstreamError(err)
	}
	if ct := strings.ToLower(result.ContentType); ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedURL, result.ContentType)
	}

	finalURL := pageURL
	if result.FinalURL != "" {
		if u, perr := url.Parse(result.FinalURL); perr == nil {
			finalURL = u
		}
	}

	article := extractArticle(result.HTML, finalURL)
	if fetch.ShouldUseBrowser(article.Text) && i.renderer != nil {
		i.logger.WithFields(logrus.Fields{"url": pageURL.String(), "chars": len(article.Text)}).
			Info("page text too short, rendering in browser")
		html, rerr := i.renderer.Render(ctx, pageURL.String())
		if rerr != nil {
			i.logger.WithError(rerr).WithField("url", pageURL.String()).Warn("browser rendering failed")
		} else if rendered := extractArticle(html, finalURL); len(rendered.Text) > len(article.Text) {
			article = rendered
			article.Metadata["rendered"] = "browser"
		}
	}

	if strings.TrimSpace(article.Text) == "" {
		return nil, ErrEmptyContent
	}
	if article.Title == "" {
		article.Title = finalURL.Host
	}

	article.Metadata["host"] = finalURL.Host
	article.Metadata["word_count"] = fmt.Sprint(WordCount(article.Text))
	return &Content{
		Kind:     store.SourceKindWeb,
		URL:      pageURL.String(),
		Title:    article.Title,
		Text:     article.Text,
		Metadata: article.Metadata,
	}, nil
}

type article struct {
	Title    string
	Text     string
	Metadata map[string]string
}

// extractArticle never fails: it returns whatever text it could find,
// possibly empty.
func extractArticle(html string, pageURL *url.URL) article {
	out := article{Metadata: map[string]string{}}

	parsed, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err == nil {
		out.Title = strings.TrimSpace(parsed.Title)
		out.Text = CleanText(parsed.TextContent)
		setIfPresent(out.Metadata, "excerpt", parsed.Excerpt)
		setIfPresent(out.Metadata, "byline", parsed.Byline)
		setIfPresent(out.Metadata, "site_name", parsed.SiteName)
		setIfPresent(out.Metadata, "image", parsed.Image)
		if out.Text != "" {
			out.Metadata["extractor"] = "readability"
		}
	}

	if fetch.ShouldUseBrowser(out.Text) {
		if text, qerr := fetch.ExtractMainText(html, fetch.DefaultTextSelectors()); qerr == nil {
			if text = CleanText(text); len(text) > len(out.Text) {
				out.Text = text
				out.Metadata["extractor"] = "selectors"
			}
		}
	}
	if out.Title == "" {
		out.Title = fetch.ExtractTitle(html)
	}
	return out
}

func setIfPresent(m map[string]string, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		m[key] = value
	}
}

// parseWebURL accepts absolute http(s) URLs. YouTube links are rejected so
// callers use the transcript endpoint instead.
func parseWebURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	if isYouTubeHost(u.Hostname()) {
		return nil, fmt.Errorf("%w: use the YouTube source for %q", ErrUnsupportedURL, raw)
	}
	u.Fragment = ""
	return u, nil
}
