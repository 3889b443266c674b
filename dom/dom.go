// Package dom queries parsed HTML documents with CSS selectors. Page objects
// snapshot a container's HTML once and read rows out of it here instead of
// issuing one browser round trip per cell.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	css "github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrNoMatch is returned by First when nothing matches.
var ErrNoMatch = errors.New("found no matches")

// Parse parses a whole document or a fragment. html.Parse adds the missing
// html, head and body elements, so a fragment ends up inside body.
func Parse(s string) *html.Node {
	// html.Parse only fails on reader errors, which a strings.Reader never
	// returns.
	n, _ := html.Parse(strings.NewReader(s))
	return n
}

// Compile parses a CSS selector, groups included.
func Compile(sel string) (css.Selector, error) {
	c, err := css.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return c, nil
}

// All returns the descendants of n matching sel in document order. Like
// querySelectorAll, n itself is never part of the result.
func All(n *html.Node, sel string) ([]*html.Node, error) {
	c, err := Compile(sel)
	if err != nil {
		return nil, err
	}
	var ns []*html.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		ns = append(ns, c.MatchAll(child)...)
	}
	return ns, nil
}

// First returns the first descendant of n matching sel.
func First(n *html.Node, sel string) (*html.Node, error) {
	c, err := Compile(sel)
	if err != nil {
		return nil, err
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if m := c.MatchFirst(child); m != nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w for %q", ErrNoMatch, sel)
}

// Attr returns the value of the attribute key of n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets, or adds, the attribute key of n.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes the attribute key of n.
func RemoveAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}

// Text returns the text content of n with runs of whitespace collapsed to a
// single space, roughly what a browser shows. Scripts and styles are
// skipped.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		// Rendering to a bytes.Buffer can't fail.
		_ = html.Render(&buf, c)
	}
	return buf.String()
}
