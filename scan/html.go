package scan

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// htmlConverter is shared across documents; the converter is stateless after
// construction.
var htmlConverter = newHTMLConverter()

func newHTMLConverter() *md.Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return conv
}

// normalizeHTML prepares a rendered HTML page for scanning: readability
// strips navigation and boilerplate so numbers in chrome never reach the
// literal extractor, and the remaining content is converted to markdown so a
// label and its value stay adjacent across inline elements.
func (d *Document) normalizeHTML(content []byte) error {
	d.Title = htmlTitle(content)

	pageURL, _ := url.Parse("file:///" + d.Path)
	article, err := readability.FromReader(bytes.NewReader(content), pageURL)
	if err != nil {
		return fmt.Errorf("readability extraction for %s: %w", d.Path, err)
	}
	if d.Title == "" {
		d.Title = article.Title
	}

	text, err := htmlConverter.ConvertString(article.Content)
	if err != nil {
		return fmt.Errorf("html to markdown for %s: %w", d.Path, err)
	}

	d.TextLines = splitLines(text)
	d.textLineOffset = -1
	return nil
}

// htmlTitle extracts the <title> text.
func htmlTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}
