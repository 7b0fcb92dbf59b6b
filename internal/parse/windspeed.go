package parse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var intRe = regexp.MustCompile(`\d+`)

// ErrNoNumber is returned when a fragment carries no digits.
var ErrNoNumber = errors.New("no numeric value in result text")

// FirstInt returns the first run of digits in s as an integer. "Vmph = 115"
// gives 115; "Vmph: 103.5 mph" gives 103.
func FirstInt(s string) (int, error) {
	m := intRe.FindString(s)
	if m == "" {
		return 0, ErrNoNumber
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// skipped elements never contribute rendered text.
var skipped = map[string]bool{"script": true, "style": true, "noscript": true, "template": true, "head": true}

// MarkerText finds the first text fragment containing marker in an HTML
// document. Leaf elements whose only child is a text node are preferred; if
// none matches, every text node of the document is walked in order.
// It returns "" when the marker does not occur.
func MarkerText(doc, marker string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	if s := findLeaf(root, marker); s != "" {
		return s, nil
	}
	return findTextNode(root, marker), nil
}

func findLeaf(n *html.Node, marker string) string {
	if n.Type == html.ElementNode && skipped[n.Data] {
		return ""
	}
	if n.Type == html.ElementNode && n.FirstChild != nil && n.FirstChild == n.LastChild && n.FirstChild.Type == html.TextNode {
		if t := normalize(n.FirstChild.Data); strings.Contains(t, marker) {
			return t
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if s := findLeaf(c, marker); s != "" {
			return s
		}
	}
	return ""
}

func findTextNode(n *html.Node, marker string) string {
	if n.Type == html.ElementNode && skipped[n.Data] {
		return ""
	}
	if n.Type == html.TextNode {
		if t := normalize(n.Data); strings.Contains(t, marker) {
			return t
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if s := findTextNode(c, marker); s != "" {
			return s
		}
	}
	return ""
}

// normalize collapses runs of whitespace the way rendered text does.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
