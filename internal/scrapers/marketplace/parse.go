package marketplace

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

var (
	milesRegex      = regexp.MustCompile(`(?i)([\d,]+)\s*(?:miles|mi)\b`)
	unitPriceRegex  = regexp.MustCompile(`(?i)\$?\s*(\d*\.?\d+)\s*(?:per\s+|/\s*)(?:mile|mi|point|pt)\b`)
	dollarRegex     = regexp.MustCompile(`\$\s*([\d,]*\.?\d+)`)
	totalPriceRegex = regexp.MustCompile(`(?i)total(?:\s+price)?[:\s]*\$?([\d,]+(?:\.\d{2})?)`)
	priceRegex      = regexp.MustCompile(`(?i)price[:\s]*\$?([\d,]+(?:\.\d{2})?)`)
	sellerRegex     = regexp.MustCompile(`(?i)\b(?:seller|by|from)\b[:\s]*([A-Za-z0-9_]+)`)
	ratingRegex     = regexp.MustCompile(`(?i)([\d.]+)\s*(?:/\s*5|stars?|rating)`)
	postedRegex     = regexp.MustCompile(`(?i)posted[:\s]*(\d{4}-\d{2}-\d{2})`)
	numberRegex     = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?|\.\d+`)
	separatorCell   = regexp.MustCompile(`^:?-{3,}:?$`)
	blockSeparator  = regexp.MustCompile(`(?m)^(?:---\s*$|#{1,3}\s)`)
)

// listingDraft is a listing as read off the page, before the price is
// normalized to a per-mile rate.
type listingDraft struct {
	airline   string
	program   string
	miles     int
	unitPrice *float64
	total     *float64
	seller    string
	rating    *float64
	status    string
	posted    string
	text      string
}

func parseNumber(s string) (float64, bool) {
	m := numberRegex.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func numberGroup(re *regexp.Regexp, text string) *float64 {
	v, ok := parseNumber(firstGroup(re, text))
	if !ok {
		return nil
	}
	return &v
}

func milesIn(text string) int {
	v, ok := parseNumber(firstGroup(milesRegex, text))
	if !ok {
		return 0
	}
	return int(v)
}

// columns holds the index of each known column of a table, -1 when absent.
type columns struct {
	airline, program, miles, unitPrice, total, seller, rating, status, posted int
}

func headerColumns(header []string) (columns, bool) {
	cols := columns{-1, -1, -1, -1, -1, -1, -1, -1, -1}
	set := func(field *int, i int) {
		if *field < 0 {
			*field = i
		}
	}
	for i, cell := range header {
		h := strings.ToLower(cell)
		switch {
		case strings.Contains(h, "per") || strings.Contains(h, "/") || strings.Contains(h, "unit"):
			set(&cols.unitPrice, i)
		case strings.Contains(h, "total"):
			set(&cols.total, i)
		case strings.Contains(h, "airline"):
			set(&cols.airline, i)
		case strings.Contains(h, "program"):
			set(&cols.program, i)
		case strings.Contains(h, "rating"):
			set(&cols.rating, i)
		case strings.Contains(h, "seller"):
			set(&cols.seller, i)
		case strings.Contains(h, "status"):
			set(&cols.status, i)
		case strings.Contains(h, "posted") || strings.Contains(h, "date"):
			set(&cols.posted, i)
		case strings.Contains(h, "mile") || strings.Contains(h, "quantity") || strings.Contains(h, "points"):
			set(&cols.miles, i)
		case strings.Contains(h, "price"):
			set(&cols.total, i)
		}
	}
	return cols, cols.miles >= 0 && (cols.unitPrice >= 0 || cols.total >= 0)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func cellNumber(row []string, i int) *float64 {
	v, ok := parseNumber(cell(row, i))
	if !ok {
		return nil
	}
	return &v
}

// rowFromColumns reads a row through its header. A unit price column
// holding 1 or more is the listing's total price.
func rowFromColumns(row []string, cols columns) (listingDraft, bool) {
	miles, ok := parseNumber(cell(row, cols.miles))
	if !ok {
		return listingDraft{}, false
	}
	unit := cellNumber(row, cols.unitPrice)
	total := cellNumber(row, cols.total)
	if unit != nil && *unit >= 1 {
		if total == nil {
			total = unit
		}
		unit = nil
	}
	return listingDraft{
		airline:   cell(row, cols.airline),
		program:   cell(row, cols.program),
		miles:     int(miles),
		unitPrice: unit,
		total:     total,
		seller:    cell(row, cols.seller),
		rating:    cellNumber(row, cols.rating),
		status:    strings.ToLower(cell(row, cols.status)),
		posted:    cell(row, cols.posted),
		text:      strings.Join(row, " "),
	}, true
}

// rowFromText reads a row whose header gave no usable columns. A dollar
// amount under 1 is a per-mile price, anything larger is the total.
func rowFromText(row []string) (listingDraft, bool) {
	if len(row) < 3 {
		return listingDraft{}, false
	}
	text := strings.Join(row, " ")
	miles := milesIn(text)
	if miles <= 0 {
		return listingDraft{}, false
	}
	draft := listingDraft{miles: miles, text: text}
	if unit := numberGroup(unitPriceRegex, text); unit != nil {
		draft.unitPrice = unit
		return draft, true
	}
	price := numberGroup(dollarRegex, text)
	if price == nil {
		return listingDraft{}, false
	}
	if *price < 1 {
		draft.unitPrice = price
	} else {
		draft.total = price
	}
	return draft, true
}

func tableDrafts(header []string, rows [][]string) []listingDraft {
	cols, ok := headerColumns(header)
	drafts := []listingDraft{}
	for _, row := range rows {
		var draft listingDraft
		var parsed bool
		if ok {
			draft, parsed = rowFromColumns(row, cols)
		} else {
			draft, parsed = rowFromText(row)
		}
		if parsed {
			drafts = append(drafts, draft)
		}
	}
	return drafts
}

// markdownTable returns the rows of the pipe tables in markdown, separator
// rows removed. The first row is the header.
func markdownTable(markdown string) [][]string {
	rows := [][]string{}
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		parts := strings.Split(strings.Trim(line, "|"), "|")
		cells := make([]string, 0, len(parts))
		separator := true
		for _, p := range parts {
			p = strings.TrimSpace(p)
			cells = append(cells, p)
			if !separatorCell.MatchString(p) {
				separator = false
			}
		}
		if separator {
			continue
		}
		rows = append(rows, cells)
	}
	return rows
}

func markdownTableDrafts(markdown string) []listingDraft {
	rows := markdownTable(markdown)
	if len(rows) < 2 {
		return nil
	}
	return tableDrafts(rows[0], rows[1:])
}

func htmlTableDrafts(ctx context.Context, document string) []listingDraft {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil
	}
	drafts := []listingDraft{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		header := []string{}
		table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Find("th").Length() > 0
		}).First().Find("th").Each(func(_ int, th *goquery.Selection) {
			header = append(header, htmlutil.CleanText(th.Text()))
		})
		drafts = append(drafts, tableDrafts(header, htmlutil.TableRows(ctx, table))...)
	})
	return drafts
}

func blockDraft(block string) (listingDraft, bool) {
	miles := milesIn(block)
	if miles <= 0 {
		return listingDraft{}, false
	}
	draft := listingDraft{
		miles:     miles,
		program:   loyaltyProgram(block),
		unitPrice: numberGroup(unitPriceRegex, block),
		total:     numberGroup(totalPriceRegex, block),
		seller:    firstGroup(sellerRegex, block),
		rating:    numberGroup(ratingRegex, block),
		posted:    firstGroup(postedRegex, block),
		text:      block,
	}
	if draft.unitPrice == nil && draft.total == nil {
		draft.total = numberGroup(priceRegex, block)
	}
	return draft, draft.unitPrice != nil || draft.total != nil
}

func blockDrafts(text string) []listingDraft {
	drafts := []listingDraft{}
	for _, block := range blockSeparator.Split(text, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		draft, ok := blockDraft(block)
		if ok {
			drafts = append(drafts, draft)
		}
	}
	return drafts
}

func loyaltyProgram(text string) string {
	lower := strings.ToLower(text)
	for _, program := range loyaltyPrograms {
		if strings.Contains(lower, strings.ToLower(program)) {
			return program
		}
	}
	return ""
}

var (
	codePatterns = func() []namedPattern {
		out := []namedPattern{}
		for code, name := range airlineByCode {
			out = append(out, namedPattern{name: name, re: regexp.MustCompile(`\b` + code + `\b`)})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
		return out
	}()
	namePatterns = func() []namedPattern {
		out := []namedPattern{}
		for name := range KnownAirlines {
			out = append(out, namedPattern{name: name, re: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)})
		}
		// longer names first so "Air Canada" wins over "ANA"
		sort.Slice(out, func(i, j int) bool {
			if len(out[i].name) != len(out[j].name) {
				return len(out[i].name) > len(out[j].name)
			}
			return out[i].name < out[j].name
		})
		return out
	}()
)

type namedPattern struct {
	name string
	re   *regexp.Regexp
}

// airlineIn finds an airline by upper-case IATA code, then by name.
func airlineIn(text string) string {
	for _, p := range codePatterns {
		if p.re.MatchString(text) {
			return p.name
		}
	}
	for _, p := range namePatterns {
		if p.re.MatchString(text) {
			return p.name
		}
	}
	return "Unknown"
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func listingID(searchURL string, index int, d listingDraft, airline string) string {
	key := fmt.Sprintf("%s#%d|%s|%d|%s", searchURL, index, airline, d.miles, d.text)
	return "pb-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// finalize normalizes drafts into listings. The price is always stored per
// mile: a published unit price under 1 is taken as is, a larger one or a
// total alone is divided by the quantity.
func finalize(drafts []listingDraft, airlineFilter, searchURL string) []airfare.MarketplaceListing {
	filterName := ""
	if airlineFilter != "" && airlineFilter != "all" {
		filterName = airlineFilter
		if name, ok := AirlineName(airlineFilter); ok {
			filterName = name
		}
	}

	listings := []airfare.MarketplaceListing{}
	for i, d := range drafts {
		if d.miles <= 0 {
			continue
		}
		ppm := 0.0
		switch {
		case d.unitPrice != nil:
			ppm = *d.unitPrice
		case d.total != nil:
			ppm = *d.total / float64(d.miles)
		}
		if ppm <= 0 {
			continue
		}

		airline := filterName
		if airline == "" {
			airline = d.airline
			if airline == "" {
				airline = airlineIn(d.text)
			} else if name, ok := AirlineName(airline); ok {
				airline = name
			}
		}

		total := round(float64(d.miles)*ppm, 2)
		if d.total != nil {
			total = round(*d.total, 2)
		}
		status := d.status
		if status == "" {
			status = airfare.ListingStatusActive
		}
		program := d.program
		if program == "" {
			program = loyaltyProgram(d.text)
		}

		listings = append(listings, airfare.MarketplaceListing{
			ID:             listingID(searchURL, i, d, airline),
			Airline:        airline,
			LoyaltyProgram: program,
			MilesAvailable: d.miles,
			PricePerMile:   round(ppm, 4),
			TotalPrice:     &total,
			SellerName:     d.seller,
			SellerRating:   d.rating,
			Status:         status,
			PostedDate:     d.posted,
		})
	}
	return listings
}

// Parse reads listings off a scraped page: markdown tables, then html
// tables, then free-form blocks of the markdown (or of the page text when
// only html was fetched).
func Parse(ctx context.Context, page ScrapedPage, airlineFilter, searchURL string) []airfare.MarketplaceListing {
	if page.Markdown != "" {
		listings := finalize(markdownTableDrafts(page.Markdown), airlineFilter, searchURL)
		if len(listings) > 0 {
			return listings
		}
	}
	if page.HTML != "" {
		listings := finalize(htmlTableDrafts(ctx, page.HTML), airlineFilter, searchURL)
		if len(listings) > 0 {
			return listings
		}
	}

	text := page.Markdown
	if text == "" && page.HTML != "" {
		documentText, err := htmlutil.DocumentText(ctx, page.HTML)
		if err != nil {
			return []airfare.MarketplaceListing{}
		}
		text = documentText
	}
	return finalize(blockDrafts(text), airlineFilter, searchURL)
}
