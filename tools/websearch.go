package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dksnowdon/gomini/config"
	"github.com/dksnowdon/gomini/errors"
	"golang.org/x/net/html"
)

const searchEndpoint = "https://html.duckduckgo.com/html/"

// WebSearchTool performs a DuckDuckGo search and returns the top results.
type WebSearchTool struct {
	client     *http.Client
	endpoint   string
	region     string
	maxResults int
}

func NewWebSearchTool(cfg *config.WebSearch) *WebSearchTool {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{
		client:     &http.Client{Timeout: 15 * time.Second},
		endpoint:   searchEndpoint,
		region:     cfg.Region,
		maxResults: maxResults,
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Searches the web for current information. Use this for recent news, library documentation, or anything outside the knowledge base."
}
func (t *WebSearchTool) Sensitive() bool { return false }

func (t *WebSearchTool) Parameters() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"query": {Type: "string", Description: "Search keywords"},
		},
		Required: []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", errors.New("missing or invalid 'query' argument")
	}

	form := url.Values{"q": {query}}
	if t.region != "" {
		form.Set("kl", t.region)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrapf(err, "failed to build search request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; gomini)")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "web search failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("web search returned HTTP %d", resp.StatusCode)
	}

	results, err := parseSearchResults(resp.Body, t.maxResults)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	formatted := make([]string, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, fmt.Sprintf("Title: %s\nLink: %s\nSnippet: %s", r.title, r.link, r.snippet))
	}
	return strings.Join(formatted, "\n---\n"), nil
}

type searchResult struct {
	title   string
	link    string
	snippet string
}

// parseSearchResults walks the HTML result page, collecting result anchors
// ("result__a") and their snippets ("result__snippet").
func parseSearchResults(r io.Reader, limit int) ([]searchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse search results page")
	}

	var results []searchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit+1 {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			results = append(results, searchResult{
				title: textContent(n),
				link:  attrValue(n, "href"),
			})
		}
		if n.Type == html.ElementNode && hasClass(n, "result__snippet") {
			if len(results) > 0 && results[len(results)-1].snippet == "" {
				results[len(results)-1].snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
