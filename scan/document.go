package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one rendered corpus file prepared for scanning.
type Document struct {
	// Path is the document path relative to the corpus root.
	Path string

	// Title is extracted from HTML <title> or markdown frontmatter.
	Title string

	// RawLines are the file's original lines, used for location recovery and
	// marker scanning.
	RawLines []string

	// TextLines are the normalized flowing-text lines the literal extractor
	// works on. For markdown this is the body; for HTML it is the
	// readability-cleaned content converted to markdown, so a label and its
	// number stay adjacent even when inline tags separate them in the raw
	// file.
	TextLines []string

	// textLineOffset maps TextLines indices back to RawLines for formats
	// where the two share line numbering (markdown frontmatter skip).
	// -1 means no direct mapping; locations are recovered by raw search.
	textLineOffset int
}

// loadDocument reads and normalizes one corpus file.
func loadDocument(root, path string) (*Document, error) {
	abs := filepath.Join(root, path)
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc := &Document{
		Path:           path,
		RawLines:       splitLines(string(content)),
		textLineOffset: -1,
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		if err := doc.normalizeHTML(content); err != nil {
			return nil, err
		}
	default:
		doc.normalizeMarkdown(string(content))
	}
	return doc, nil
}

// normalizeMarkdown strips YAML frontmatter, keeping line numbering aligned
// with the raw file.
func (d *Document) normalizeMarkdown(content string) {
	body := content
	offset := 0

	if strings.HasPrefix(content, "---\n") || strings.HasPrefix(content, "---\r\n") {
		if fm, rest, skipped, err := extractFrontmatter(content); err == nil {
			body = rest
			offset = skipped
			if t, ok := fm["title"].(string); ok {
				d.Title = t
			}
		}
	}

	d.TextLines = splitLines(body)
	d.textLineOffset = offset
}

// extractFrontmatter parses YAML frontmatter, returning the map, the body,
// and the number of raw lines consumed by the frontmatter block.
func extractFrontmatter(content string) (map[string]any, string, int, error) {
	lines := splitLines(content)
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, content, 0, fmt.Errorf("no closing frontmatter delimiter")
	}

	var fm map[string]any
	block := strings.Join(lines[1:end], "\n")
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return nil, content, 0, fmt.Errorf("parse frontmatter: %w", err)
	}

	body := strings.Join(lines[end+1:], "\n")
	return fm, body, end + 1, nil
}

// lineOf maps a TextLines index to a raw-file line number (1-based). When no
// direct mapping exists, the raw lines are searched for the given needle.
func (d *Document) lineOf(textIdx int, needle string) int {
	if d.textLineOffset >= 0 {
		return d.textLineOffset + textIdx + 1
	}
	if needle != "" {
		for i, raw := range d.RawLines {
			if strings.Contains(raw, needle) {
				return i + 1
			}
		}
	}
	return 1
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
