package ingestion

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/content-repurposer/internal/store"
)

const defaultYouTubeBaseURL = "https://www.youtube.com"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character video ID from watch, youtu.be,
// shorts, embed and live URLs.
func ParseVideoID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}

	host := strings.ToLower(u.Hostname())
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch {
	case host == "youtu.be":
		id = segments[0]
	case isYouTubeHost(host):
		switch {
		case segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live" || segments[0] == "v"):
			id = segments[1]
		}
	default:
		return "", fmt.Errorf("%w: not a YouTube URL: %q", ErrUnsupportedURL, raw)
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: no video ID in %q", ErrUnsupportedURL, raw)
	}
	return id, nil
}

func isYouTubeHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com", "youtu.be":
		return true
	}
	return false
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	Captions struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

func (c captionTrack) auto() bool { return c.Kind == "asr" }
func (c captionTrack) english() bool {
	return c.LanguageCode == "en" || strings.HasPrefix(c.LanguageCode, "en-")
}

// pickCaptionTrack prefers manual English, then auto-generated English,
// then whatever track comes first.
func pickCaptionTrack(tracks []captionTrack) (captionTrack, bool) {
	if len(tracks) == 0 {
		return captionTrack{}, false
	}
	for _, t := range tracks {
		if t.english() && !t.auto() {
			return t, true
		}
	}
	for _, t := range tracks {
		if t.english() {
			return t, true
		}
	}
	return tracks[0], true
}

const playerResponseMarker = "ytInitialPlayerResponse"

// parsePlayerResponse decodes the JSON object assigned to
// ytInitialPlayerResponse in the watch page.
func parsePlayerResponse(page string) (*playerResponse, error) {
	idx := strings.Index(page, playerResponseMarker)
	if idx < 0 {
		return nil, fmt.Errorf("%w: player response not found", ErrUpstream)
	}
	rest := page[idx+len(playerResponseMarker):]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return nil, fmt.Errorf("%w: player response not found", ErrUpstream)
	}

	var resp playerResponse
	if err := json.NewDecoder(strings.NewReader(rest[start:])).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: decode player response: %v", ErrUpstream, err)
	}
	return &resp, nil
}

type timedText struct {
	Texts []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
	Paragraphs []struct {
		Text     string `xml:",chardata"`
		Segments []struct {
			Text string `xml:",chardata"`
		} `xml:"s"`
	} `xml:"body>p"`
}

// parseTimedText joins caption segments from either the legacy
// <transcript><text> format or the srv3 <timedtext><body><p> format.
func parseTimedText(data string) (string, error) {
	var doc timedText
	if err := xml.Unmarshal([]byte(data), &doc); err != nil {
		return "", fmt.Errorf("%w: decode captions: %v", ErrUpstream, err)
	}

	parts := make([]string, 0, len(doc.Texts)+len(doc.Paragraphs))
	for _, t := range doc.Texts {
		parts = append(parts, t.Text)
	}
	for _, p := range doc.Paragraphs {
		text := p.Text
		for _, s := range p.Segments {
			text += s.Text
		}
		parts = append(parts, text)
	}

	for i, part := range parts {
		// Caption text arrives entity-encoded a second time inside the XML.
		parts[i] = strings.Join(strings.Fields(html.UnescapeString(part)), " ")
	}
	return CleanText(strings.Join(parts, " ")), nil
}

// FromYouTube loads the video's watch page, picks a caption track and
// returns its transcript.
func (i *Ingester) FromYouTube(ctx context.Context, rawURL string) (*Content, error) {
	videoID, err := ParseVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	base := i.youtubeBaseURL
	if base == "" {
		base = defaultYouTubeBaseURL
	}
	watchURL := base + "/watch?v=" + videoID + "&hl=en"

	page, err := i.pages.Get(ctx, watchURL)
	if err != nil {
		return nil, upstreamError(err)
	}

	player, err := parsePlayerResponse(page.HTML)
	if err != nil {
		return nil, err
	}
	if player.PlayabilityStatus.Status == "ERROR" {
		return nil, fmt.Errorf("%w: video unavailable: %s", ErrUnsupportedURL, player.PlayabilityStatus.Reason)
	}

	track, ok := pickCaptionTrack(player.Captions.Renderer.CaptionTracks)
	if !ok {
		return nil, ErrTranscriptUnavailable
	}

	trackURL, err := resolveTrackURL(base, track.BaseURL)
	if err != nil {
		return nil, err
	}
	captions, err := i.pages.Get(ctx, trackURL)
	if err != nil {
		return nil, upstreamError(err)
	}
	if strings.TrimSpace(captions.HTML) == "" {
		return nil, ErrTranscriptUnavailable
	}

	text, err := parseTimedText(captions.HTML)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyContent
	}

	captionKind := "manual"
	if track.auto() {
		captionKind = "auto"
	}
	i.logger.WithFields(logrus.Fields{
		"video_id": videoID,
		"language": track.LanguageCode,
		"captions": captionKind,
		"words":    WordCount(text),
	}).Debug("fetched transcript")

	title := strings.TrimSpace(player.VideoDetails.Title)
	if title == "" {
		title = "YouTube video " + videoID
	}
	metadata := map[string]string{
		"video_id":     videoID,
		"language":     track.LanguageCode,
		"caption_kind": captionKind,
		"word_count":   fmt.Sprint(WordCount(text)),
	}
	setIfPresent(metadata, "author", player.VideoDetails.Author)
	setIfPresent(metadata, "duration_seconds", player.VideoDetails.LengthSeconds)

	return &Content{
		Kind:     store.SourceKindYouTube,
		URL:      "https://www.youtube.com/watch?v=" + videoID,
		Title:    title,
		Text:     text,
		Metadata: metadata,
	}, nil
}

func resolveTrackURL(base, trackURL string) (string, error) {
	ref, err := url.Parse(trackURL)
	if err != nil || trackURL == "" {
		return "", fmt.Errorf("%w: bad caption track URL", ErrUpstream)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: bad base URL", ErrUpstream)
	}
	return baseURL.ResolveReference(ref).String(), nil
}
