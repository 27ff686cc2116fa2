// Package prompts provides a loader for externalized LLM prompt templates.
// Prompts are stored as JSON files and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// GenerationFile holds the idea and post prompts.
const GenerationFile = "generation.json"

//go:embed *.json
var promptFiles embed.FS

var (
	cache   = make(map[string]Set)
	cacheMu sync.RWMutex
)

var placeholder = regexp.MustCompile(`\{\{\.[A-Za-z0-9_]+\}\}`)

// Set is the parsed contents of one prompt file, keyed by prompt name.
type Set map[string]string

// Load returns the parsed prompt file, cached after the first read.
func Load(filename string) (Set, error) {
	cacheMu.RLock()
	if set, ok := cache[filename]; ok {
		cacheMu.RUnlock()
		return set, nil
	}
	cacheMu.RUnlock()

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = set
	cacheMu.Unlock()
	return set, nil
}

// Get retrieves a prompt by filename and key.
func Get(filename, key string) (string, error) {
	set, err := Load(filename)
	if err != nil {
		return "", err
	}
	return set.Get(key)
}

// Get returns the raw template stored under key.
func (s Set) Get(key string) (string, error) {
	prompt, ok := s[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found", key)
	}
	return prompt, nil
}

// Render fills the template stored under key. Placeholders left without a
// value are an error so a prompt never reaches the model half-filled.
func (s Set) Render(key string, data map[string]string) (string, error) {
	template, err := s.Get(key)
	if err != nil {
		return "", err
	}
	var missing []string
	for _, m := range placeholder.FindAllString(template, -1) {
		if _, ok := data[m[3:len(m)-2]]; !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %q missing values for %s", key, strings.Join(missing, ", "))
	}
	return Format(template, data), nil
}

// Keys returns the prompt names in s, sorted.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Format replaces {{.Key}} placeholders with values from data. Values are
// inserted once, so placeholder-like text inside a value is left alone.
func Format(template string, data map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[3 : len(m)-2]
		if value, ok := data[key]; ok {
			return value
		}
		return m
	})
}

// ClearCache clears the prompt cache. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]Set)
	cacheMu.Unlock()
}
