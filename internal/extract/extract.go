// Package extract turns EDINET CSV archives into holding figures. The CSVs
// carry no schema contract: encodings, column layouts and unit conventions
// drift across documents and years, so everything here is heuristic and a
// miss is a recorded outcome, not an error.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	ratioMarker   = "株券等保有割合"
	sharesMarker  = "保有株券等の数（総数）"
	purposeMarker = "保有の目的"

	// 欄外 rows are footnote restatements of the same figure.
	footnoteMarker = "欄外"

	placeholderDash = "－"
	purposeMaxRunes = 500
)

// Rows reporting the prior period or a period-over-period change carry the
// ratio marker but a different quantity.
var ratioExclusions = []string{"直前", footnoteMarker, "増減"}

// Result holds the extracted figures for one filing. Any field may be nil;
// all-nil means extraction ran and nothing matched.
type Result struct {
	SharesHeld   *int64
	HoldingRatio *float64
	Purpose      *string
}

// Empty reports whether no field was extracted.
func (r *Result) Empty() bool {
	return r.SharesHeld == nil && r.HoldingRatio == nil && r.Purpose == nil
}

// ExtractHoldings applies the label-matching rules to each table in order
// and stops after the first table that yields any signal. Documents often
// repeat the same figures across entries; the first table with a value is
// taken as canonical.
func ExtractHoldings(tables []Table) Result {
	var res Result
	for _, t := range tables {
		extractFromTable(t, &res)
		if !res.Empty() {
			break
		}
	}
	return res
}

func extractFromTable(t Table, res *Result) {
	for _, row := range t.Rows {
		switch {
		case matchesRatio(row.Label):
			if v, ok := parseRatio(row.Value); ok {
				if res.HoldingRatio == nil || v > *res.HoldingRatio {
					res.HoldingRatio = &v
				}
			}
		case matchesShares(row.Label):
			if v, ok := parseShares(row.Value); ok {
				if res.SharesHeld == nil || v > *res.SharesHeld {
					res.SharesHeld = &v
				}
			}
		case matchesPurpose(row.Label):
			if res.Purpose == nil {
				if v, ok := cleanPurpose(row.Value); ok {
					res.Purpose = &v
				}
			}
		}
	}
}

func matchesRatio(label string) bool {
	if !strings.Contains(label, ratioMarker) {
		return false
	}
	for _, excl := range ratioExclusions {
		if strings.Contains(label, excl) {
			return false
		}
	}
	return true
}

func matchesShares(label string) bool {
	return strings.Contains(label, sharesMarker) && !strings.Contains(label, footnoteMarker)
}

func matchesPurpose(label string) bool {
	return strings.Contains(label, purposeMarker) && !strings.Contains(label, footnoteMarker)
}

// parseRatio normalizes a holding-ratio cell to a percentage. Some documents
// report the ratio as a decimal fraction; values in (0, 1] are scaled by 100.
// Only values in (0, 100] are accepted.
func parseRatio(value string) (float64, bool) {
	clean := strings.NewReplacer("%", "", "％", "", ",", "").Replace(value)
	clean = strings.TrimSpace(clean)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, false
	}

	ratio := d.InexactFloat64()
	if ratio > 0 && ratio <= 1 {
		ratio *= 100
	}
	if ratio <= 0 || ratio > 100 {
		return 0, false
	}
	return ratio, true
}

// parseShares normalizes a share-count cell: thousands separators and the 株
// unit suffix are stripped. Only strictly positive counts are accepted.
func parseShares(value string) (int64, bool) {
	clean := strings.NewReplacer(",", "", "株", "").Replace(value)
	clean = strings.TrimSpace(clean)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, false
	}
	if !d.IsInteger() {
		return 0, false
	}

	shares := d.IntPart()
	if shares <= 0 {
		return 0, false
	}
	return shares, true
}

// cleanPurpose accepts the first substantive purpose text: non-empty, not
// the placeholder dash, longer than two runes. Truncated to a bounded length
// for storage.
func cleanPurpose(value string) (string, bool) {
	v := strings.TrimSpace(value)
	if v == "" || v == placeholderDash || utf8.RuneCountInString(v) <= 2 {
		return "", false
	}
	if utf8.RuneCountInString(v) > purposeMaxRunes {
		runes := []rune(v)
		v = string(runes[:purposeMaxRunes])
	}
	return v, true
}
