package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dksnowdon/gomini/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="https://go.dev/doc/">Go <b>Documentation</b></a>
  <div class="result__snippet">The official Go documentation.</div>
</div>
<div class="result">
  <a class="result__a" href="https://pkg.go.dev/">Package index</a>
  <div class="result__snippet">Browse Go packages.</div>
</div>
<div class="result">
  <a class="result__a" href="https://go.dev/blog/">The Go Blog</a>
</div>
</body></html>`

func TestParseSearchResults(t *testing.T) {
	results, err := parseSearchResults(strings.NewReader(resultsPage), 5)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Go Documentation", results[0].title)
	assert.Equal(t, "https://go.dev/doc/", results[0].link)
	assert.Equal(t, "The official Go documentation.", results[0].snippet)
	assert.Empty(t, results[2].snippet)
}

func TestParseSearchResultsLimit(t *testing.T) {
	results, err := parseSearchResults(strings.NewReader(resultsPage), 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestWebSearchExecute(t *testing.T) {
	var gotQuery, gotRegion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery = r.Form.Get("q")
		gotRegion = r.Form.Get("kl")
		w.Write([]byte(resultsPage))
	}))
	defer server.Close()

	tool := &WebSearchTool{
		client:     &http.Client{Timeout: time.Second},
		endpoint:   server.URL,
		region:     "us-en",
		maxResults: 2,
	}

	out, err := tool.Execute(context.Background(), map[string]any{"query": "golang docs"})
	require.NoError(t, err)
	assert.Equal(t, "golang docs", gotQuery)
	assert.Equal(t, "us-en", gotRegion)
	assert.Contains(t, out, "Title: Go Documentation")
	assert.Contains(t, out, "Link: https://go.dev/doc/")
	assert.Contains(t, out, "\n---\n")
	// Limited to two results.
	assert.NotContains(t, out, "The Go Blog")
}

func TestWebSearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>no results markup</body></html>"))
	}))
	defer server.Close()

	tool := &WebSearchTool{
		client:     &http.Client{Timeout: time.Second},
		endpoint:   server.URL,
		maxResults: 5,
	}
	out, err := tool.Execute(context.Background(), map[string]any{"query": "zzz"})
	require.NoError(t, err)
	assert.Equal(t, "No results found.", out)
}

func TestWebSearchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tool := &WebSearchTool{
		client:     &http.Client{Timeout: time.Second},
		endpoint:   server.URL,
		maxResults: 5,
	}
	_, err := tool.Execute(context.Background(), map[string]any{"query": "zzz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
}

func TestWebSearchRejectsEmptyQuery(t *testing.T) {
	tool := NewWebSearchTool(&config.WebSearch{})
	_, err := tool.Execute(context.Background(), map[string]any{"query": "   "})
	require.Error(t, err)
}
