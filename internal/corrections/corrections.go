// Package corrections loads the hand-curated price override file.
// Entries there outrank every source-provided price.
package corrections

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Entry is one manually curated price correction, keyed by address.
type Entry struct {
	ListingPrice float64 `json:"listingPrice"`
	SoldPrice    float64 `json:"soldPrice"`
	Verified     bool    `json:"verified"`
	Notes        string  `json:"notes,omitempty"`
}

// File is the on-disk shape of the corrections document.
type File struct {
	Properties map[string]Entry `json:"properties"`
}

// Load reads the corrections file at path. A missing file is not an
// error: collection should proceed on API data alone.
func Load(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Warn("corrections: no override file found, using source data only",
				zap.String("path", path),
			)
			return map[string]Entry{}, nil
		}
		return nil, eris.Wrapf(err, "corrections: read %s", path)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "corrections: parse %s", path)
	}
	if f.Properties == nil {
		f.Properties = map[string]Entry{}
	}

	zap.L().Info("corrections: loaded verified listing prices",
		zap.Int("entries", len(f.Properties)),
	)
	return f.Properties, nil
}
