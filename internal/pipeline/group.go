package pipeline

import (
	"sort"
	"strings"

	"github.com/Maggerino21/ai-component-extractor/internal"
	"github.com/Maggerino21/ai-component-extractor/internal/util"
)

// positionPrefixes derives the position class from the reference prefix:
// hjørne, ramme, bunn and spredt lines in the source documents.
var positionPrefixes = map[byte]internal.PositionType{
	'H': internal.PositionCorner,
	'R': internal.PositionFrame,
	'B': internal.PositionBottom,
	'S': internal.PositionSpread,
}

func PositionTypeFor(ref string) internal.PositionType {
	r := strings.ToUpper(strings.TrimSpace(ref))
	if r == "" {
		return internal.PositionUnknown
	}
	if pt, ok := positionPrefixes[r[0]]; ok {
		return pt
	}
	return internal.PositionUnknown
}

// Group assembles normalized rows into per-position groups: header rows are
// dropped, surviving rows extracted, and each group sorted by sequence.
// Position cells are often merged in the source sheets, so a blank position
// inherits the reference of the row above. Groups come back in first-seen
// order to keep repeated runs identical.
func Group(sheet string, rows []internal.NormalizedRow) []internal.PositionGroup {
	groups := []internal.PositionGroup{}
	index := map[string]int{}
	lastRef := ""

	for _, row := range rows {
		if IsHeaderRow(row) {
			continue
		}
		ref := strings.ToUpper(strings.TrimSpace(row.Position))
		if ref == "" {
			ref = lastRef
		}
		if ref == "" {
			continue
		}
		lastRef = ref

		i, ok := index[ref]
		if !ok {
			groups = append(groups, internal.PositionGroup{
				DocumentReference: ref,
				PositionType:      PositionTypeFor(ref),
				SourceSheet:       sheet,
			})
			i = len(groups) - 1
			index[ref] = i
		}
		groups[i].Components = append(groups[i].Components, Extract(row))
	}

	for i := range groups {
		SortBySequence(groups[i].Components)
	}
	return groups
}

// SortBySequence orders components ascending by sequence number. A missing
// or non-numeric sequence sorts last; ties keep their document order.
func SortBySequence(components []internal.ComponentRecord) {
	sort.SliceStable(components, func(i, j int) bool {
		a, b := components[i].Sequence, components[j].Sequence
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})
}

// InheritManufacturers walks a sorted group once, left to right, carrying
// the nearest preceding manufacturer into rows that lack one. The source
// documents record manufacturer on the first component of a mooring line
// and imply it for the rest.
func InheritManufacturers(components []internal.ComponentRecord) {
	var last *string
	for i := range components {
		m := components[i].Manufacturer
		if m != nil && strings.TrimSpace(*m) != "" {
			last = m
			continue
		}
		if last != nil {
			components[i].Manufacturer = util.StringPtr(*last)
		}
	}
}

// ManufacturerInheritable reports, per component of the sorted group,
// whether inheritance will fill its manufacturer. The resolver skips rows
// the inheritance pass is going to settle anyway.
func ManufacturerInheritable(components []internal.ComponentRecord) []bool {
	out := make([]bool, len(components))
	seen := false
	for i := range components {
		m := components[i].Manufacturer
		if m != nil && strings.TrimSpace(*m) != "" {
			seen = true
			continue
		}
		out[i] = seen
	}
	return out
}

// AnnotateMappings attaches host position ids to groups whose document
// reference appears in the supplied mapping; extraction output is never
// altered, only annotated.
func AnnotateMappings(groups []internal.PositionGroup, mappings []internal.PositionMapping) {
	if len(mappings) == 0 {
		return
	}
	byRef := make(map[string]internal.PositionMapping, len(mappings))
	for _, m := range mappings {
		byRef[strings.ToUpper(strings.TrimSpace(m.DocumentReference))] = m
	}
	for i := range groups {
		m, ok := byRef[groups[i].DocumentReference]
		if !ok {
			continue
		}
		groups[i].InternalPositionID = util.IntPtr(m.InternalPositionID)
		groups[i].PositionName = util.StringPtr(m.PositionName)
		groups[i].MappingFound = true
	}
}
