// Package generation drafts ideas and social posts from stored sources
// using the LLM client, validating every reply against a JSON Schema.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/content-repurposer/internal/llm"
	"github.com/jonathan/content-repurposer/internal/prompts"
	"github.com/jonathan/content-repurposer/internal/schemas"
	"github.com/jonathan/content-repurposer/internal/store"
)

var (
	// ErrInvalidOutput is returned when the model reply fails schema validation.
	ErrInvalidOutput = errors.New("model returned invalid output")
	// ErrModelFailed wraps errors from the model client that survived retries.
	ErrModelFailed = errors.New("model request failed")
)

const (
	// MaxSourceChars bounds how much source text is placed in a prompt.
	MaxSourceChars = 30000
	// DefaultConcurrency limits concurrent per-platform generations.
	DefaultConcurrency = 3

	maxTitleRunes = 300
	maxTagRunes   = 50
	maxTags       = 30
)

// Generator turns sources and ideas into drafts.
type Generator struct {
	client      llm.Client
	prompts     prompts.Set
	logger      *logrus.Logger
	concurrency int
}

// New creates a Generator using the embedded generation prompts.
func New(client llm.Client, logger *logrus.Logger) (*Generator, error) {
	set, err := prompts.Load(prompts.GenerationFile)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{schemas.Ideas, schemas.Posts} {
		if _, err := schemas.Load(name); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Generator{client: client, prompts: set, logger: logger, concurrency: DefaultConcurrency}, nil
}

// GenerateIdeas drafts up to count ideas from source. The returned ideas
// are unsaved and carry the source's user and ID.
func (g *Generator) GenerateIdeas(ctx context.Context, source *store.ContentSource, count int) ([]store.Idea, error) {
	prompt, err := g.prompts.Render("ideas", map[string]string{
		"Kind":    sourceKindLabel(source.Kind),
		"Title":   source.Title,
		"Count":   strconv.Itoa(count),
		"Content": Truncate(source.Content, MaxSourceChars),
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Ideas []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"ideas"`
	}
	if err := g.generate(ctx, schemas.Ideas, prompt, llm.TierLite, &out); err != nil {
		return nil, err
	}

	ideas := make([]store.Idea, 0, count)
	for _, d := range out.Ideas {
		if len(ideas) == count {
			break
		}
		ideas = append(ideas, store.Idea{
			UserID:      source.UserID,
			SourceID:    source.ID,
			Title:       clip(d.Title, maxTitleRunes),
			Description: strings.TrimSpace(d.Description),
		})
	}
	return ideas, nil
}

// PostInput describes one post generation request. Idea is optional; when
// set, drafts focus on it.
type PostInput struct {
	Source    *store.ContentSource
	Idea      *store.Idea
	Platforms []string
	Tone      string
	Length    string
	Count     int
}

// GeneratePosts drafts Count posts for every platform. Platforms run
// concurrently; results keep the order of in.Platforms.
func (g *Generator) GeneratePosts(ctx context.Context, in PostInput) ([]store.Post, error) {
	results := make([][]store.Post, len(in.Platforms))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, platform := range in.Platforms {
		eg.Go(func() error {
			posts, err := g.generateForPlatform(egCtx, in, platform)
			if err != nil {
				return fmt.Errorf("%s: %w", platform, err)
			}
			results[i] = posts
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []store.Post
	for _, posts := range results {
		all = append(all, posts...)
	}
	return all, nil
}

func (g *Generator) generateForPlatform(ctx context.Context, in PostInput, platform string) ([]store.Post, error) {
	platformGuide, err := g.prompts.Get("platform-" + platform)
	if err != nil {
		return nil, err
	}
	lengthGuide, err := g.prompts.Get("length-" + in.Length)
	if err != nil {
		return nil, err
	}

	focus, err := g.prompts.Render("focus-source", nil)
	if err != nil {
		return nil, err
	}
	if in.Idea != nil {
		focus, err = g.prompts.Render("focus-idea", map[string]string{
			"IdeaTitle":       in.Idea.Title,
			"IdeaDescription": in.Idea.Description,
		})
		if err != nil {
			return nil, err
		}
	}

	prompt, err := g.prompts.Render("posts", map[string]string{
		"Count":         strconv.Itoa(in.Count),
		"Platform":      platform,
		"PlatformGuide": platformGuide,
		"Tone":          in.Tone,
		"Length":        in.Length,
		"LengthGuide":   lengthGuide,
		"Focus":         focus,
		"Title":         in.Source.Title,
		"Content":       Truncate(in.Source.Content, MaxSourceChars),
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Posts []struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			Tags        []string `json:"tags"`
		} `json:"posts"`
	}
	tier := llm.TierStandard
	if in.Length == "long" {
		tier = llm.TierAdvanced
	}
	if err := g.generate(ctx, schemas.Posts, prompt, tier, &out); err != nil {
		return nil, err
	}

	posts := make([]store.Post, 0, in.Count)
	for _, d := range out.Posts {
		if len(posts) == in.Count {
			break
		}
		post := store.Post{
			UserID:      in.Source.UserID,
			SourceID:    in.Source.ID,
			Title:       clip(d.Title, maxTitleRunes),
			Description: strings.TrimSpace(d.Description),
			Tags:        NormalizeTags(d.Tags),
			Platform:    platform,
			Tone:        in.Tone,
			Length:      in.Length,
		}
		if in.Idea != nil {
			id := in.Idea.ID
			post.IdeaID = &id
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// generate calls the model, validates the reply against schemaName and
// decodes it into out.
func (g *Generator) generate(ctx context.Context, schemaName, prompt string, tier llm.ModelTier, out any) error {
	start := time.Now()
	raw, err := g.client.GenerateJSON(ctx, prompt, tier)
	if err != nil {
		return fmt.Errorf("%w: generate %s: %w", ErrModelFailed, schemaName, err)
	}

	if err := schemas.Validate(schemaName, raw); err != nil {
		g.logger.WithFields(logrus.Fields{
			"schema": schemaName,
			"error":  err.Error(),
		}).Warn("model output failed validation")
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	g.logger.WithFields(logrus.Fields{
		"schema":      schemaName,
		"tier":        string(tier),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("generation complete")
	return nil
}

// Truncate returns at most limit characters of text, cutting at the last
// whitespace when one falls in the final tenth of the window.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := limit
	for i := limit; i > limit-limit/10 && i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut]))
}

// NormalizeTags strips leading '#', trims, drops empties and overlong tags,
// and removes case-insensitive duplicates. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tag), "#"))
		if tag == "" || len([]rune(tag)) > maxTagRunes {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > limit {
		return strings.TrimSpace(string(runes[:limit]))
	}
	return s
}

func sourceKindLabel(kind string) string {
	if kind == store.SourceKindYouTube {
		return "video transcript"
	}
	return "article"
}
