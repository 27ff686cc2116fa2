package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-repurposer/internal/fetch"
	"github.com/jonathan/content-repurposer/internal/store"
)

func TestFromWebPage_ExtractsArticle(t *testing.T) {
	pages := newFakePages()
	pages.add("https://blog.example.com/post", `<html><head><title>Why Go</title>
		<meta name="author" content="Ada"></head>
		<body><nav>Home | About</nav><article><h1>Why Go</h1>`+longParagraphs(12)+`</article>
		<footer>Copyright</footer></body></html>`, "text/html; charset=utf-8")

	content, err := newTestIngester(pages, nil).FromWebPage(context.Background(), "https://blog.example.com/post#comments")
	require.NoError(t, err)

	assert.Equal(t, store.SourceKindWeb, content.Kind)
	assert.Equal(t, "https://blog.example.com/post", content.URL)
	assert.Equal(t, "Why Go", content.Title)
	assert.Contains(t, content.Text, "simple, reliable, and efficient")
	assert.NotContains(t, content.Text, "Copyright")
	assert.Equal(t, "blog.example.com", content.Metadata["host"])
	assert.NotEmpty(t, content.Metadata["word_count"])
}

func TestFromWebPage_RejectsBadURLs(t *testing.T) {
	ing := newTestIngester(newFakePages(), nil)
	for _, raw := range []string{"", "notaurl", "ftp://example.com", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"} {
		_, err := ing.FromWebPage(context.Background(), raw)
		assert.ErrorIs(t, err, ErrUnsupportedURL, raw)
	}
}

func TestFromWebPage_NotFoundIsUnsupported(t *testing.T) {
	_, err := newTestIngester(newFakePages(), nil).FromWebPage(context.Background(), "https://example.com/missing")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
}

func TestFromWebPage_RejectsNonHTML(t *testing.T) {
	pages := newFakePages()
	pages.add("https://example.com/file.pdf", "%PDF-1.4", "application/pdf")

	_, err := newTestIngester(pages, nil).FromWebPage(context.Background(), "https://example.com/file.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
}

func TestFromWebPage_EmptyPage(t *testing.T) {
	pages := newFakePages()
	pages.add("https://example.com/empty", `<html><head><title>Empty</title></head><body><script>app()</script></body></html>`, "text/html")

	_, err := newTestIngester(pages, nil).FromWebPage(context.Background(), "https://example.com/empty")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestFromWebPage_BrowserFallback(t *testing.T) {
	pages := newFakePages()
	pages.add("https://spa.example.com/", `<html><head><title>App</title></head><body><div id="root"></div></body></html>`, "text/html")
	renderer := &fakeRenderer{html: `<html><head><title>App</title></head><body><main>` + longParagraphs(10) + `</main></body></html>`}

	content, err := newTestIngester(pages, renderer).FromWebPage(context.Background(), "https://spa.example.com/")
	require.NoError(t, err)
	assert.Equal(t, 1, renderer.calls)
	assert.Equal(t, "browser", content.Metadata["rendered"])
	assert.Contains(t, content.Text, "efficient software")
}

func TestFromWebPage_BrowserFailureKeepsHTTPText(t *testing.T) {
	pages := newFakePages()
	pages.add("https://example.com/short", `<html><body><main><p>Short but real text.</p></main></body></html>`, "text/html")
	renderer := &fakeRenderer{err: errors.New("chrome not found")}

	content, err := newTestIngester(pages, renderer).FromWebPage(context.Background(), "https://example.com/short")
	require.NoError(t, err)
	assert.Equal(t, 1, renderer.calls)
	assert.Contains(t, content.Text, "Short but real text.")
	assert.Equal(t, "example.com", content.Title)
}

func TestFromWebPage_RefusesInternalAddresses(t *testing.T) {
	var hits int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><main>` + longParagraphs(10) + `</main></body></html>`))
	}))
	defer internal.Close()

	ingester := newTestIngester(fetch.NewClient(fetch.DefaultOptions()), nil)
	_, err := ingester.FromWebPage(context.Background(), internal.URL+"/admin")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedURL)
	assert.ErrorIs(t, err, fetch.ErrPrivateAddress)
	assert.Zero(t, atomic.LoadInt32(&hits))
}
