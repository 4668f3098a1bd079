package extract

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/topicast/topicast/pkg/topicast/internalerr"
)

// blockTags end a line of visible text.
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"table": true, "tr": true, "section": true, "article": true,
	"blockquote": true, "pre": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true,
}

// ExtractHTML strips an HTML document down to its visible text. Script
// and style bodies are skipped; each block element ends in a blank
// line, each <br> in a line break, and whitespace runs within a line
// collapse to single spaces.
func ExtractHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if n.Data == "br" {
				buf.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			buf.WriteString("\n\n")
		}
	}
	walk(doc)

	return tidyText(buf.String()), nil
}

// tidyText collapses horizontal whitespace within lines and blank-line
// runs down to a single blank line.
func tidyText(s string) string {
	var out []string
	blank := true
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// extractHTML reads a paper published as an HTML page. The whole
// document counts as a single page.
func (e *Extractor) extractHTML(path string, size int64) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return failure(path, err), nil
	}
	defer file.Close()

	text, err := ExtractHTML(file)
	if err != nil {
		return failure(path, fmt.Errorf("%w: %v", internalerr.ErrExtraction, err)), nil
	}

	return &Result{
		Success:   true,
		Path:      path,
		PageCount: 1,
		FileSize:  size,
		Pages:     []Page{{Number: 1, Text: text, Method: MethodHTML}},
		FullText:  text,
	}, nil
}
