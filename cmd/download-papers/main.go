// Command download-papers fetches question paper PDFs linked from an
// exam board index page into the directory layout the process command
// expects: one subdirectory per detected year.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

type paperLink struct {
	URL  string
	Text string
}

func main() {
	var (
		indexURL = flag.String("index", "", "URL of the page listing paper PDFs (required)")
		outDir   = flag.String("out", "papers", "output directory")
		limit    = flag.Int("limit", 0, "download at most N papers (0 = all)")
		delay    = flag.Duration("delay", 200*time.Millisecond, "pause between downloads")
	)
	flag.Parse()

	if *indexURL == "" {
		log.Fatal("-index required")
	}

	base, err := url.Parse(*indexURL)
	if err != nil {
		log.Fatal("Invalid index URL:", err)
	}

	log.Printf("Fetching paper index from %s...", *indexURL)

	links, err := fetchPaperLinks(base)
	if err != nil {
		log.Fatal("Failed to fetch index:", err)
	}
	if len(links) == 0 {
		log.Fatal("No PDF links found on the index page")
	}
	if *limit > 0 && len(links) > *limit {
		links = links[:*limit]
	}

	log.Printf("Found %d paper links", len(links))

	client := &http.Client{Timeout: 2 * time.Minute}
	downloaded := 0

	for i, link := range links {
		dest := filepath.Join(*outDir, yearDir(link), fileNameFor(link.URL))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			log.Fatal("Failed to create output directory:", err)
		}

		if err := download(client, link.URL, dest); err != nil {
			log.Printf("Failed to download %s: %v", link.URL, err)
			continue
		}

		downloaded++
		if (i+1)%10 == 0 {
			log.Printf("Downloaded %d/%d papers...", downloaded, len(links))
		}

		// Be polite to the host
		time.Sleep(*delay)
	}

	log.Printf("✓ Downloaded %d papers to %s", downloaded, *outDir)
}

// fetchPaperLinks downloads the index page and returns the absolute
// URLs of all linked PDFs, in page order, without duplicates.
func fetchPaperLinks(base *url.URL) ([]paperLink, error) {
	resp, err := http.Get(base.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	return collectPDFLinks(doc, base), nil
}

func collectPDFLinks(doc *html.Node, base *url.URL) []paperLink {
	seen := make(map[string]bool)
	var links []paperLink

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attrValue(n, "href")
			if strings.HasSuffix(strings.ToLower(href), ".pdf") {
				if ref, err := url.Parse(href); err == nil {
					abs := base.ResolveReference(ref).String()
					if !seen[abs] {
						seen[abs] = true
						links = append(links, paperLink{URL: abs, Text: anchorText(n)})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func anchorText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

// yearDir picks the subdirectory for a link from the first plausible
// exam year in its URL or anchor text. Undateable papers land in
// "undated" and fall back to the configured default year later.
func yearDir(link paperLink) string {
	if year := findYear(link.URL); year != 0 {
		return strconv.Itoa(year)
	}
	if year := findYear(link.Text); year != 0 {
		return strconv.Itoa(year)
	}
	return "undated"
}

func findYear(s string) int {
	for i := 0; i+4 <= len(s); i++ {
		if i > 0 && isDigit(s[i-1]) {
			continue
		}
		if i+4 < len(s) && isDigit(s[i+4]) {
			continue
		}
		candidate := s[i : i+4]
		if !allDigits(candidate) {
			continue
		}
		year, _ := strconv.Atoi(candidate)
		if year >= 1950 && year <= 2100 {
			return year
		}
	}
	return 0
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// fileNameFor derives a safe local file name from the URL path.
func fileNameFor(rawURL string) string {
	name := "paper.pdf"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

func download(client *http.Client, rawURL, dest string) error {
	resp, err := client.Get(rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}
