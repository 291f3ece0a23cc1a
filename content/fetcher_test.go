package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Test Article</title></head>
<body>
<nav>Site navigation that should not matter</nav>
<article>
<h1>Test Article</h1>
<p>First paragraph with the actual story. It has enough text to count as
content for the extractor, describing events in some detail so the reader
understands what happened and why it matters.</p>
<p>Second paragraph continues the story with additional facts and a quote
from a named source, giving the piece the length a real article has.</p>
</article>
</body>
</html>`

func TestFetcher_Fetch_ExtractsArticle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	doc, err := NewFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, server.URL, doc.URL)
	assert.Equal(t, "Test Article", doc.Title)
	assert.Contains(t, doc.HTML, "First paragraph")
	assert.Contains(t, doc.Markdown, "First paragraph")
	// Markdown conversion strips tags.
	assert.NotContains(t, doc.Markdown, "<p>")
}

func TestFetcher_Fetch_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewFetcher().Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetcher_Fetch_RejectsNonHTTPSchemes(t *testing.T) {
	f := NewFetcher()

	_, err := f.Fetch(context.Background(), "file:///etc/passwd")
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), "chrome-extension://abc/page.html")
	assert.Error(t, err)
}

func TestExtractHTMLTitle(t *testing.T) {
	assert.Equal(t, "Hello", extractHTMLTitle([]byte(`<html><head><title> Hello </title></head></html>`)))
	assert.Empty(t, extractHTMLTitle([]byte(`<html><body>no title</body></html>`)))
}
