package pipeline

import (
	"regexp"
	"strings"

	"github.com/Maggerino21/ai-component-extractor/internal"
	"github.com/Maggerino21/ai-component-extractor/internal/util"
)

// structuralKeywords open the category and column-header rows that repeat
// through these documents. A row whose combined text starts with one of
// them describes a class of line, not an installed part.
var structuralKeywords = []string{
	"type", "posisjon", "position", "quantity", "comment",
	"mooring line", "anchor", "bottom mooring",
}

// reCategoryLabel matches section labels like "1.2 ploganker": a bare
// leading number followed by a lowercase word.
var reCategoryLabel = regexp.MustCompile(`^\d+(?:[.,]\d+)*\s+[a-zæøå]`)

// IsHeaderRow decides whether a row is a structural or category header
// rather than a component instance. Headers share vocabulary with real
// parts; what separates them is the absence of any measurable or
// identifying fact.
func IsHeaderRow(row internal.NormalizedRow) bool {
	typ := strings.TrimSpace(row.Type)
	sub := strings.TrimSpace(row.Subtype)
	if typ == "" && sub == "" {
		return true
	}

	combined := util.NormalizeText(joinNonEmpty(typ, sub))
	if reCategoryLabel.MatchString(combined) {
		return true
	}
	for _, kw := range structuralKeywords {
		if strings.HasPrefix(combined, kw) {
			return true
		}
	}

	if hasSpecToken(combined) {
		return false
	}
	if strings.TrimSpace(row.Identifier) != "" || strings.TrimSpace(row.Tracking) != "" {
		return false
	}
	if row.Quantity != nil && *row.Quantity > 0 {
		return false
	}
	return true
}

// FilterRows drops header and noise rows, keeping document order.
func FilterRows(rows []internal.NormalizedRow) []internal.NormalizedRow {
	out := make([]internal.NormalizedRow, 0, len(rows))
	for _, row := range rows {
		if IsHeaderRow(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}
