// Package jobdesc loads job-description text from its collaborators (inline
// text, a local file, or a posting URL) and derives retrieval keywords from it.
package jobdesc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxKeywords caps the derived keyword list
const MaxKeywords = 50

// noiseSelectors are stripped from fetched postings before text extraction
var noiseSelectors = []string{"script", "style", "noscript", "nav", "header", "footer", "iframe"}

// DeriveKeywords splits the job-description text on commas and newlines and
// keeps tokens longer than 2 characters, capped at MaxKeywords, in order of
// first appearance.
func DeriveKeywords(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	var keywords []string
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if len(token) > 2 {
			keywords = append(keywords, token)
			if len(keywords) == MaxKeywords {
				break
			}
		}
	}
	return keywords
}

// FromFile reads a job description from a local text file
func FromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read job description: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// FromURL fetches a posting page and extracts its visible text
func FromURL(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid job posting URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "cvtailor/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch job posting: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to fetch job posting: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse job posting HTML: %w", err)
	}

	return ExtractText(doc), nil
}

// ExtractText pulls cleaned visible text out of a parsed posting page
func ExtractText(doc *goquery.Document) string {
	for _, selector := range noiseSelectors {
		doc.Find(selector).Remove()
	}

	var lines []string
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		for _, line := range strings.Split(body.Text(), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
	})

	return strings.Join(lines, "\n")
}
