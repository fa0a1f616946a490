// Package htmlutil holds the DOM helpers shared by the scraping code. They
// operate on goquery selections or raw html nodes and never fail the page;
// callers decide what a missing value means.
package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("lib/htmlutil")

// Text returns the concatenated text content of a node and all of its
// descendants, in document order, without any whitespace cleanup.
func Text(node *html.Node) string {
	var buffer bytes.Buffer
	textRecursive(node, &buffer)
	return buffer.String()
}

func textRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		textRecursive(child, buffer)
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// Clean strips non-printable runes, trims surrounding whitespace and
// collapses inner whitespace runs into single spaces. Scraped text goes
// through this before it reaches a record field.
func Clean(s string) string {
	printable := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			printable.WriteRune(c)
		}
	}
	out := strings.Trim(printable.String(), " \t\n")
	return innerWhitespace.ReplaceAllString(out, " ")
}

type Anchor struct {
	Name string
	Href string
}

// Anchors extracts every link in the selection as a name/href pair. Hrefs
// that do not parse as URLs are skipped and recorded on the span.
func Anchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	ctx, span := tracer.Start(ctx, "Anchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}

		name := Clean(Text(n))
		linkStr := link.String()
		anchors = append(anchors, Anchor{
			Name: name,
			Href: linkStr,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", linkStr),
		))
	}

	return anchors
}

var digitRuns = regexp.MustCompile(`\d[\d.]*`)

// Digits pulls the first integer out of a text blob, tolerating the
// dot-separated thousands format the site renders counters in
// ("1.234 encontrados").
func Digits(s string) (int, error) {
	match := digitRuns.FindString(s)
	if match == "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(strings.ReplaceAll(match, ".", ""))
}

// AttrInt reads an attribute as an integer, reporting whether the attribute
// was present and numeric.
func AttrInt(sel *goquery.Selection, attr string) (int, bool) {
	raw, ok := sel.Attr(attr)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}
