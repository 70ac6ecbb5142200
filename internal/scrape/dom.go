package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Selector pairs tried in order for each part of the history table.
// The first selector is the site's current markup, the rest are older
// generations that still appear on cached pages.
var (
	historyRowSelectors = []string{
		".PropertyHistoryEventRow",
		`[data-rf-test-id="property-history-event-row"]`,
	}
	eventColSelectors = []string{
		".event-col",
		`[data-rf-test-id="event-col"]`,
	}
	priceColSelectors = []string{
		".price-col",
		`[data-rf-test-id="price-col"]`,
	}
)

// DOMExtractor walks the visible property-history table.
type DOMExtractor struct{}

// Name returns the extractor identifier.
func (DOMExtractor) Name() string { return "dom" }

// Extract scans history rows for "Listed" and "Sold" events and takes
// the first priced occurrence of each.
func (DOMExtractor) Extract(html string) (*PriceHistory, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse document")
	}

	h := &PriceHistory{Source: "dom"}
	rows := selectFirst(doc, historyRowSelectors)
	rows.Each(func(_ int, row *goquery.Selection) {
		event := strings.ToLower(findText(row, eventColSelectors))
		price := parsePrice(findText(row, priceColSelectors))
		if price == 0 {
			return
		}
		if strings.Contains(event, "listed") && h.ListingPrice == 0 {
			h.ListingPrice = price
		}
		if strings.Contains(event, "sold") && h.SoldPrice == 0 {
			h.SoldPrice = price
		}
	})

	if h.Empty() {
		return nil, eris.New("scrape: no price history rows matched")
	}
	return h, nil
}

// selectFirst returns the selection for the first selector that
// matches anything.
func selectFirst(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		s := doc.Find(sel)
		if s.Length() > 0 {
			return s
		}
	}
	return doc.Find(selectors[len(selectors)-1])
}

func findText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}
