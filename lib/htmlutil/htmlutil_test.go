package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestDocumentText(t *testing.T) {
	doc := `<html><head><style>.x{}</style><script>var a = 1;</script></head>
<body><div>CI 5   <span>23:40</span></div><p>35,000 miles</p></body></html>`

	text, err := DocumentText(context.Background(), doc)
	require.Nil(t, err)
	require.Equal(t, "CI 5 23:40\n35,000 miles", text)
}

func TestTableRows(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<table>
<tr><th>Airline</th><th>Miles</th></tr>
<tr><td>China Airlines</td><td> 50,000
 miles</td></tr>
<tr><td>EVA Air</td><td>40,000 miles</td></tr>
</table>`))
	require.Nil(t, err)

	rows := TableRows(context.Background(), doc.Selection)
	require.Equal(t, [][]string{
		{"China Airlines", "50,000 miles"},
		{"EVA Air", "40,000 miles"},
	}, rows)
}
