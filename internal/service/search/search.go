package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino/components/tool"
)

// ErrDisabled is returned by the Disabled searcher.
var ErrDisabled = errors.New("web search is disabled")

// QueryPlaceholder is replaced by the user's text in a query template.
const QueryPlaceholder = "{query}"

// Searcher issues one web query and returns its textual result.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
	Available() bool
}

// Query substitutes text into template literally. A template without the placeholder gets
// the text appended after a space.
func Query(template, text string) string {
	if !strings.Contains(template, QueryPlaceholder) {
		if template == "" {
			return text
		}
		return template + " " + text
	}
	return strings.ReplaceAll(template, QueryPlaceholder, text)
}

// Disabled is used when the deployment turns web search off.
type Disabled struct{}

// Search implements Searcher.
func (Disabled) Search(context.Context, string) (string, error) {
	return "", ErrDisabled
}

// Available implements Searcher.
func (Disabled) Available() bool { return false }

// Config controls the DuckDuckGo tool.
type Config struct {
	MaxResults int
	Timeout    time.Duration
}

// ToolSearcher runs queries through an eino invokable tool.
type ToolSearcher struct {
	tool tool.InvokableTool
}

// NewDuckDuckGo builds a ToolSearcher backed by the DuckDuckGo text search tool.
func NewDuckDuckGo(ctx context.Context, cfg Config) (*ToolSearcher, error) {
	ddg, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		MaxResults: cfg.MaxResults,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create duckduckgo tool: %w", err)
	}
	return NewToolSearcher(ddg), nil
}

// NewToolSearcher wraps any invokable tool that accepts a {"query": "..."} argument.
func NewToolSearcher(t tool.InvokableTool) *ToolSearcher {
	return &ToolSearcher{tool: t}
}

// Available implements Searcher.
func (s *ToolSearcher) Available() bool { return s != nil && s.tool != nil }

// Search implements Searcher.
func (s *ToolSearcher) Search(ctx context.Context, query string) (string, error) {
	args, err := json.Marshal(&duckduckgo.TextSearchRequest{Query: query})
	if err != nil {
		return "", fmt.Errorf("failed to encode search request: %w", err)
	}

	raw, err := s.tool.InvokableRun(ctx, string(args))
	if err != nil {
		return "", fmt.Errorf("search %q failed: %w", query, err)
	}

	text := flatten(raw)
	log.Printf("[search] query=%q bytes=%d", query, len(text))
	return text, nil
}

// flatten turns the tool's JSON response into one text blob. Output that does not parse
// as a search response is returned verbatim.
func flatten(raw string) string {
	var resp duckduckgo.TextSearchResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil || len(resp.Results) == 0 {
		return raw
	}

	var b strings.Builder
	for i, result := range resp.Results {
		if result == nil {
			continue
		}
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString("[")
		b.WriteString(strings.TrimSpace(result.Title))
		b.WriteString("] ")
		b.WriteString(strings.TrimSpace(result.Summary))
		if result.URL != "" {
			b.WriteString(" (")
			b.WriteString(result.URL)
			b.WriteString(")")
		}
	}
	return b.String()
}
