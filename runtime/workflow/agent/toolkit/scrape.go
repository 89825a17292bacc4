package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultScrapeLength caps scraped page text when the sub-node does not
// configure a limit.
const DefaultScrapeLength = 5000

var whitespaceRun = regexp.MustCompile(`\s+`)

// Scrape fetches url, strips markup and script/style content, collapses
// whitespace, and truncates to maxLength characters.
func Scrape(ctx context.Context, client *http.Client, url string, maxLength int) (string, error) {
	if url == "" {
		return "", fmt.Errorf("url is required")
	}
	if maxLength <= 0 {
		maxLength = DefaultScrapeLength
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", url, err)
	}
	doc.Find("script, style, noscript").Remove()
	text := strings.TrimSpace(whitespaceRun.ReplaceAllString(doc.Text(), " "))
	return truncate(text, maxLength), nil
}

// ScraperTool fetches a URL and returns its readable text.
func ScraperTool(client *http.Client, maxLength int) Tool {
	return Tool{
		Name:        "web_scraper",
		Description: "Fetch a web page and return its visible text content.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "The URL to fetch"}
			},
			"required": ["url"],
			"additionalProperties": false
		}`),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			url := argString(args, "url", "")
			text, err := Scrape(ctx, client, url, maxLength)
			if err != nil {
				return "", &ToolError{Tool: "web_scraper", Message: "cannot fetch page", Cause: err}
			}
			return text, nil
		},
	}
}
