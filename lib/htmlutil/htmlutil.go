package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"milesfare-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("milesfare.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style" || node.Data == "noscript") {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode && isBlock(node.Data) {
		buffer.WriteByte('\n')
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
	if node.Type == html.ElementNode && isBlock(node.Data) {
		buffer.WriteByte('\n')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "tr", "td", "th", "br", "section", "article",
		"h1", "h2", "h3", "h4", "h5", "h6", "table", "ul", "ol":
		return true
	}
	return false
}

var innerWhitespace = regexp.MustCompile(`[ \t]+`)
var blankLines = regexp.MustCompile(`\n\s*\n+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || c == '\n' {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText strips non-printable characters, collapses runs of spaces and
// blank lines.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// DocumentText parses a full html document and returns its visible text.
func DocumentText(ctx context.Context, document string) (string, error) {
	_, span := tracer.Start(ctx, "DocumentText")
	defer span.End()

	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	text := CleanText(GetText(root))
	span.SetAttributes(attribute.Int("text_length", len(text)))
	return text, nil
}

// TableRows returns the trimmed cell texts of every row with at least one
// td cell in the selection, header rows made only of th cells are skipped.
func TableRows(ctx context.Context, sel *goquery.Selection) [][]string {
	_, span := tracer.Start(ctx, "TableRows")
	defer span.End()

	rows := [][]string{}
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		row := []string{}
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, textutil.CollapseSpace(removeNonPrintable(td.Text())))
		})
		rows = append(rows, row)
	})
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows
}
