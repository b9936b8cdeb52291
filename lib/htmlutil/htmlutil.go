package htmlutil

import (
	"bytes"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collapses runs of whitespace and strips non-printable
// characters, the usual treatment for text pulled out of markup.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// SelectionText is CleanText over the combined text of a selection.
func SelectionText(sel *goquery.Selection) string {
	return CleanText(sel.Text())
}

// ObservedMarkers collects the distinct values of the given attribute
// across a document, capped at limit. When no known selector matches a
// page anymore, this is what tells us which selectors to write next.
func ObservedMarkers(doc *goquery.Document, attr string, limit int) []string {
	seen := map[string]bool{}
	doc.Find("[" + attr + "]").Each(func(_ int, sel *goquery.Selection) {
		if len(seen) >= limit {
			return
		}
		v, ok := sel.Attr(attr)
		if ok && v != "" {
			seen[v] = true
		}
	})

	markers := make([]string, 0, len(seen))
	for v := range seen {
		markers = append(markers, v)
	}
	sort.Strings(markers)
	return markers
}
