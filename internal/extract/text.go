package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/ppiankov/claimprobe/internal/fetch"
)

// DocumentText returns the readable text of a fetched page
func DocumentText(page *fetch.Page) (string, error) {
	switch {
	case page.IsPDF():
		return PDFText(page.Body)
	case page.ContentType == "" || strings.Contains(page.ContentType, "html") || strings.Contains(page.ContentType, "xml"):
		return HTMLText(bytes.NewReader(page.Body))
	case strings.HasPrefix(page.ContentType, "text/"):
		return collapseSpace(string(page.Body)), nil
	default:
		return "", fmt.Errorf("unsupported content type %q", page.ContentType)
	}
}

// HTMLText extracts visible text, one line per block element. Link targets
// are kept after the link text since URL patterns are evidence too.
func HTMLText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg", "template":
				return
			case "head":
				if title := findTitle(n); title != "" {
					buf.WriteString(title)
					buf.WriteString("\n")
				}
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			if n.Data == "a" {
				if href := attr(n, "href"); strings.HasPrefix(href, "http") || strings.HasPrefix(href, "/") {
					buf.WriteString("<" + href + "> ")
				}
			}
			if blockElements[n.Data] {
				buf.WriteString("\n")
			}
		}
	}
	walk(doc)

	return collapseSpace(buf.String()), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "br": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "footer": true, "nav": true, "table": true, "ul": true, "ol": true,
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collapseSpace trims each line, squeezes runs of blanks and drops empty lines
func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// PDFText extracts the plain text of a PDF document
func PDFText(data []byte) (text string, err error) {
	// the PDF reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	if !utf8.Valid(raw) {
		raw = bytes.ToValidUTF8(raw, []byte("�"))
	}
	return collapseSpace(string(raw)), nil
}
