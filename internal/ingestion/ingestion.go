// Package ingestion turns a submitted URL into source text: an article
// extracted from a web page or the transcript of a YouTube video.
package ingestion

import (
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/content-repurposer/internal/fetch"
	"github.com/jonathan/content-repurposer/internal/store"
)

var (
	// ErrUnsupportedURL is returned for malformed URLs or URLs of the wrong kind.
	ErrUnsupportedURL = errors.New("unsupported URL")
	// ErrTranscriptUnavailable is returned when a video has no caption tracks.
	ErrTranscriptUnavailable = errors.New("transcript unavailable for this video")
	// ErrEmptyContent is returned when no usable text could be extracted.
	ErrEmptyContent = errors.New("no text content could be extracted")
	// ErrUpstream is returned when the remote site fails or refuses the request.
	ErrUpstream = errors.New("upstream fetch failed")
)

// Content is the result of ingesting a URL.
type Content struct {
	Kind     string
	URL      string
	Title    string
	Text     string
	Metadata map[string]string
}

// ToSource converts c into an unsaved ContentSource owned by userID.
func (c *Content) ToSource(userID uuid.UUID) *store.ContentSource {
	return &store.ContentSource{
		UserID:   userID,
		Kind:     c.Kind,
		URL:      c.URL,
		Title:    c.Title,
		Content:  c.Text,
		Metadata: c.Metadata,
	}
}

// Ingester fetches and extracts source content. A nil renderer disables
// the headless browser fallback.
type Ingester struct {
	pages    fetch.Getter
	renderer fetch.Renderer
	logger   *logrus.Logger

	youtubeBaseURL string
}

// New creates an Ingester.
func New(pages fetch.Getter, renderer fetch.Renderer, logger *logrus.Logger) *Ingester {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Ingester{pages: pages, renderer: renderer, logger: logger, youtubeBaseURL: defaultYouTubeBaseURL}
}

// upstreamError classifies a fetch failure. Client errors from the remote
// site (other than 429) are reported as unsupported URLs.
func upstreamError(err error) error {
	if errors.Is(err, fetch.ErrPrivateAddress) {
		return errors.Join(ErrUnsupportedURL, err)
	}
	var fe *fetch.Error
	if errors.As(err, &fe) {
		switch {
		case fe.Message == "invalid URL":
			return errors.Join(ErrUnsupportedURL, err)
		case fe.StatusCode >= 400 && fe.StatusCode < 500 && fe.StatusCode != 429:
			return errors.Join(ErrUnsupportedURL, err)
		}
	}
	return errors.Join(ErrUpstream, err)
}
