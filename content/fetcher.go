// Package content fetches web documents and extracts their readable text
// for use as execution input.
package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// maxDocumentSize limits fetched document bodies.
const maxDocumentSize = 10 * 1024 * 1024 // 10MB

// Document is the extracted content of a fetched page.
type Document struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
}

// Fetcher retrieves documents over HTTP and extracts the main article
// content.
type Fetcher struct {
	httpClient *http.Client
	converter  *md.Converter
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a document fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	f := &Fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		converter:  converter,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the document at rawURL and extracts its readable content.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if pageURL.Scheme != "http" && pageURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme: %s", pageURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	doc := &Document{URL: rawURL}

	// Prefer readability's article extraction; fall back to the raw body
	// for pages it can't parse.
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && article.Content != "" {
		doc.Title = article.Title
		doc.HTML = article.Content
	} else {
		if err != nil {
			f.logger.Debug("Readability extraction failed, using raw body",
				"url", rawURL, "error", err)
		}
		doc.HTML = string(body)
	}

	if doc.Title == "" {
		doc.Title = extractHTMLTitle(body)
	}

	markdown, err := f.converter.ConvertString(doc.HTML)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	doc.Markdown = strings.TrimSpace(markdown)

	return doc, nil
}

// extractHTMLTitle extracts the title from HTML.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			extract(c)
		}
	}
	extract(doc)

	return title
}
