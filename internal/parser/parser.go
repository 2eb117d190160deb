package parser

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Anchor is an <a href> element as found in the page. Href is left as
// written; use Resolve with Document.Base to make it absolute.
type Anchor struct {
	Href string
	Text string
}

type Document struct {
	// Base is the page address, or its <base href> when present.
	Base *url.URL
	// TextNodes holds the non-empty leaf text nodes in document order.
	TextNodes []string
	Anchors   []Anchor
}

// Text concatenates the leaf text nodes.
func (d *Document) Text() string {
	return strings.Join(d.TextNodes, "\n")
}

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader, pageURL string) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	result := &Document{Base: base}
	for _, n := range doc.Nodes {
		result.TextNodes = append(result.TextNodes, LeafText(n)...)
	}

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		var text []string
		for _, n := range s.Nodes {
			text = append(text, LeafText(n)...)
		}
		result.Anchors = append(result.Anchors, Anchor{
			Href: href,
			Text: strings.Join(text, " "),
		})
	})

	return result, nil
}

// skipped elements carry no page text.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// LeafText returns the trimmed, non-empty text nodes under root in
// depth-first order. It walks with an explicit stack so document depth is
// bounded only by memory.
func LeafText(root *html.Node) []string {
	var texts []string
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type {
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				texts = append(texts, text)
			}
			continue
		case html.ElementNode:
			if skipped[n.Data] {
				continue
			}
		case html.CommentNode, html.DoctypeNode:
			continue
		}

		// Push children last-first so the first child is visited next.
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return texts
}
