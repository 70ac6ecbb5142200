// Package scrape recovers listing and sold prices from rendered
// listing pages. Everything here is best-effort enrichment: selectors
// break whenever the target site changes markup, so results are
// treated as unverified and never outrank the override file.
package scrape

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// PriceHistory holds prices recovered from one listing page.
type PriceHistory struct {
	ListingPrice float64
	SoldPrice    float64
	Source       string // extractor that produced the values
}

// Empty reports whether extraction found nothing usable.
func (h *PriceHistory) Empty() bool {
	return h == nil || (h.ListingPrice == 0 && h.SoldPrice == 0)
}

// Extractor recovers a price history from rendered page HTML.
type Extractor interface {
	Name() string
	Extract(html string) (*PriceHistory, error)
}

// Fetcher retrieves rendered HTML for a listing URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

var priceRe = regexp.MustCompile(`\$[\d,]+`)

// parsePrice turns "$1,234,567" into 1234567. Returns 0 when the text
// carries no usable amount (listing sites render "—" for unknowns).
func parsePrice(text string) float64 {
	m := priceRe.FindString(text)
	if m == "" {
		m = strings.TrimSpace(text)
	}
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(m)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
