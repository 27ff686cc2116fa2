package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-repurposer/internal/store"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", false},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/shorts/abcDEF12_-3", "abcDEF12_-3", false},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/live/dQw4w9WgXcQ?feature=share", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?v=short", "", true},
		{"https://www.youtube.com/channel/UC123", "", true},
		{"https://vimeo.com/12345", "", true},
		{"not a url", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ParseVideoID(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickCaptionTrack(t *testing.T) {
	manualEN := captionTrack{BaseURL: "m-en", LanguageCode: "en"}
	autoEN := captionTrack{BaseURL: "a-en", LanguageCode: "en", Kind: "asr"}
	manualDE := captionTrack{BaseURL: "m-de", LanguageCode: "de"}
	manualGB := captionTrack{BaseURL: "m-gb", LanguageCode: "en-GB"}

	got, ok := pickCaptionTrack([]captionTrack{autoEN, manualDE, manualEN})
	require.True(t, ok)
	assert.Equal(t, "m-en", got.BaseURL)

	got, _ = pickCaptionTrack([]captionTrack{manualDE, autoEN})
	assert.Equal(t, "a-en", got.BaseURL)

	got, _ = pickCaptionTrack([]captionTrack{autoEN, manualGB})
	assert.Equal(t, "m-gb", got.BaseURL)

	got, _ = pickCaptionTrack([]captionTrack{manualDE})
	assert.Equal(t, "m-de", got.BaseURL)

	_, ok = pickCaptionTrack(nil)
	assert.False(t, ok)
}

func TestParseTimedText(t *testing.T) {
	legacy := `<?xml version="1.0" encoding="utf-8" ?><transcript>
		<text start="0.5" dur="2.1">Hello &amp;amp; welcome</text>
		<text start="2.6" dur="1.9">it&amp;#39;s   a
		test</text></transcript>`
	text, err := parseTimedText(legacy)
	require.NoError(t, err)
	assert.Equal(t, "Hello & welcome it's a test", text)

	srv3 := `<timedtext format="3"><body><p t="0" d="1000">First <s>line</s></p><p t="1000" d="900">second</p></body></timedtext>`
	text, err = parseTimedText(srv3)
	require.NoError(t, err)
	assert.Equal(t, "First line second", text)

	_, err = parseTimedText("<transcript><text>unterminated")
	assert.ErrorIs(t, err, ErrUpstream)
}

const watchPage = `<html><script>var ytInitialPlayerResponse = {
	"playabilityStatus": {"status": "OK"},
	"videoDetails": {"videoId": "dQw4w9WgXcQ", "title": "Never Gonna", "author": "Rick", "lengthSeconds": "212"},
	"captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
		{"baseUrl": "/api/timedtext?v=dQw4w9WgXcQ&lang=en&kind=asr", "languageCode": "en", "kind": "asr"},
		{"baseUrl": "/api/timedtext?v=dQw4w9WgXcQ&lang=fr", "languageCode": "fr"}
	]}}
};var meta = {"x": 1};</script></html>`

func TestFromYouTube(t *testing.T) {
	pages := newFakePages()
	ing := newTestIngester(pages, nil)
	ing.youtubeBaseURL = "http://yt.test"

	pages.add("http://yt.test/watch?v=dQw4w9WgXcQ&hl=en", watchPage, "text/html")
	pages.add("http://yt.test/api/timedtext?v=dQw4w9WgXcQ&lang=en&kind=asr",
		`<transcript><text start="0" dur="1">We&amp;#39;re no strangers</text><text start="1" dur="1">to love</text></transcript>`, "text/xml")

	content, err := ing.FromYouTube(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, store.SourceKindYouTube, content.Kind)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", content.URL)
	assert.Equal(t, "Never Gonna", content.Title)
	assert.Equal(t, "We're no strangers to love", content.Text)
	assert.Equal(t, "Rick", content.Metadata["author"])
	assert.Equal(t, "auto", content.Metadata["caption_kind"])
	assert.Equal(t, "212", content.Metadata["duration_seconds"])
}

func TestFromYouTube_NoCaptions(t *testing.T) {
	pages := newFakePages()
	ing := newTestIngester(pages, nil)
	ing.youtubeBaseURL = "http://yt.test"
	pages.add("http://yt.test/watch?v=dQw4w9WgXcQ&hl=en",
		`<script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"OK"},"videoDetails":{"title":"Silent"}};</script>`, "text/html")

	_, err := ing.FromYouTube(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrTranscriptUnavailable)
}

func TestFromYouTube_VideoUnavailable(t *testing.T) {
	pages := newFakePages()
	ing := newTestIngester(pages, nil)
	ing.youtubeBaseURL = "http://yt.test"
	pages.add("http://yt.test/watch?v=dQw4w9WgXcQ&hl=en",
		`<script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}};</script>`, "text/html")

	_, err := ing.FromYouTube(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
}

func TestFromYouTube_MissingPlayerResponse(t *testing.T) {
	pages := newFakePages()
	ing := newTestIngester(pages, nil)
	ing.youtubeBaseURL = "http://yt.test"
	pages.add("http://yt.test/watch?v=dQw4w9WgXcQ&hl=en", `<html>consent required</html>`, "text/html")

	_, err := ing.FromYouTube(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrUpstream)
}
