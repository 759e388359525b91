package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Document is the readable content of an HTML page
type Document struct {
	Title  string
	Author string
	Text   string
}

// ParseHTML extracts title, author and visible text from HTML content
func ParseHTML(htmlContent string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	doc := &Document{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if doc.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					doc.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				if doc.Author == "" && attr(n, "name") == "author" {
					doc.Author = strings.TrimSpace(attr(n, "content"))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	doc.Text = strings.TrimSpace(visibleText(root))
	return doc, nil
}

// visibleText extracts text nodes from HTML, skipping scripts/styles
func visibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
