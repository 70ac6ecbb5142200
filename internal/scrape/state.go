package scrape

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// State blob patterns injected by the target site's client framework.
var stateBlobRes = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.__reactServerState\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)window\.__PRELOADED_STATE__\s*=\s*(\{.*?\});`),
}

// Keys that carry a listing price inside the state blob, in
// preference order.
var listingPriceKeys = []string{"listingPrice", "originalListPrice"}

// StateExtractor pulls prices out of the serialized state blob the
// site embeds in a script tag. It survives markup changes that break
// the DOM path, which is why the chain tries it second rather than
// not at all.
type StateExtractor struct{}

// Name returns the extractor identifier.
func (StateExtractor) Name() string { return "state" }

// Extract locates the state blob and searches it recursively for
// price fields.
func (StateExtractor) Extract(html string) (*PriceHistory, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse document")
	}

	var blob map[string]any
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content := s.Text()
		for _, re := range stateBlobRes {
			m := re.FindStringSubmatch(content)
			if m == nil {
				continue
			}
			var parsed map[string]any
			if err := json.Unmarshal([]byte(m[1]), &parsed); err != nil {
				continue
			}
			blob = parsed
			return false
		}
		return true
	})

	if blob == nil {
		return nil, eris.New("scrape: no embedded state blob found")
	}

	h := &PriceHistory{Source: "state"}
	for _, key := range listingPriceKeys {
		if v, ok := findNumber(blob, key); ok {
			h.ListingPrice = v
			break
		}
	}
	if v, ok := findNumber(blob, "soldPrice"); ok {
		h.SoldPrice = v
	}

	if h.Empty() {
		return nil, eris.New("scrape: state blob carries no price fields")
	}
	return h, nil
}

// findNumber searches the decoded blob depth-first for the first
// positive numeric value under the given key.
func findNumber(v any, key string) (float64, bool) {
	switch node := v.(type) {
	case map[string]any:
		if raw, ok := node[key]; ok {
			if f, ok := raw.(float64); ok && f > 0 {
				return f, true
			}
		}
		for _, child := range node {
			if f, ok := findNumber(child, key); ok {
				return f, true
			}
		}
	case []any:
		for _, child := range node {
			if f, ok := findNumber(child, key); ok {
				return f, true
			}
		}
	}
	return 0, false
}
