package pipeline

import (
	"strings"

	"github.com/Maggerino21/ai-component-extractor/internal"
	"github.com/Maggerino21/ai-component-extractor/internal/util"
)

// fieldProbe selects a column for one semantic field. A column matches when
// its normalized name equals one of the exact names or contains one of the
// substrings. Exact names exist for short headers like "Nr" that would
// otherwise collide with "Varenr" or "Serienr".
type fieldProbe struct {
	substrings []string
	exact      []string
}

var headerProbes = map[string]fieldProbe{
	"position": {
		substrings: []string{"posisjon", "position"},
		exact:      []string{"pos"},
	},
	"sequence": {
		substrings: []string{"rekkefølge", "sekvens", "sequence", "løpenr", "linjenr", "line no"},
		exact:      []string{"nr", "no", "seq", "#"},
	},
	"type": {
		substrings: []string{"komponenttype", "type", "komponent", "utstyr"},
	},
	"subtype": {
		substrings: []string{"beskrivelse", "description", "undertype", "subtype", "spesifikasjon", "detalj"},
	},
	"identifier": {
		substrings: []string{"varenr", "varenummer", "artikkelnr", "artikkel", "produktnr", "partnr", "part no", "part number"},
		exact:      []string{"id"},
	},
	"tracking": {
		substrings: []string{"sporing", "tracking", "serienr", "serienummer", "serial", "sertifikat", "certificate", "batch", "merking"},
	},
	"installer": {
		substrings: []string{"leverandør", "produsent", "manufacturer", "supplier", "installert av", "montert av", "installatør"},
	},
	"date": {
		substrings: []string{"dato", "date"},
		exact:      []string{"installert", "montert"},
	},
	"quantity": {
		substrings: []string{"antall", "quantity", "mengde", "qty"},
		exact:      []string{"ant", "stk"},
	},
}

// ColumnMap holds the resolved column index per semantic field for one
// header row. -1 means the document has no column for that field.
type ColumnMap struct {
	Position   int
	Sequence   int
	Type       int
	Subtype    int
	Identifier int
	Tracking   int
	Installer  int
	Date       int
	Quantity   int
}

func emptyColumnMap() ColumnMap {
	return ColumnMap{
		Position: -1, Sequence: -1, Type: -1, Subtype: -1, Identifier: -1,
		Tracking: -1, Installer: -1, Date: -1, Quantity: -1,
	}
}

// Matched counts how many fields found a column.
func (cm ColumnMap) Matched() int {
	n := 0
	for _, idx := range []int{cm.Position, cm.Sequence, cm.Type, cm.Subtype, cm.Identifier, cm.Tracking, cm.Installer, cm.Date, cm.Quantity} {
		if idx >= 0 {
			n++
		}
	}
	return n
}

// ResolveColumns maps a header row onto the semantic schema. For every
// field the leftmost matching column wins, so re-running on the same header
// set always picks the same column.
func ResolveColumns(headers []string) ColumnMap {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, strings.Trim(util.NormalizeText(h), " .,:;"))
	}

	cm := emptyColumnMap()
	cm.Position = findColumn(norm, headerProbes["position"])
	cm.Sequence = findColumn(norm, headerProbes["sequence"])
	cm.Type = findColumn(norm, headerProbes["type"])
	cm.Subtype = findColumn(norm, headerProbes["subtype"])
	cm.Identifier = findColumn(norm, headerProbes["identifier"])
	cm.Tracking = findColumn(norm, headerProbes["tracking"])
	cm.Installer = findColumn(norm, headerProbes["installer"])
	cm.Date = findColumn(norm, headerProbes["date"])
	cm.Quantity = findColumn(norm, headerProbes["quantity"])
	return cm
}

func findColumn(headers []string, probe fieldProbe) int {
	for i, h := range headers {
		if h == "" {
			continue
		}
		for _, e := range probe.exact {
			if h == e {
				return i
			}
		}
		for _, sub := range probe.substrings {
			if strings.Contains(h, sub) {
				return i
			}
		}
	}
	return -1
}

// FindHeaderRow scans the leading rows of a sheet for the row that carries
// the column headers. Title and metadata rows above it rarely match more
// than one field, so two matches are taken as the header.
func FindHeaderRow(rows []internal.RawRow, maxScan int) (int, ColumnMap, bool) {
	if maxScan <= 0 || maxScan > len(rows) {
		maxScan = len(rows)
	}
	for i := 0; i < maxScan; i++ {
		cm := ResolveColumns(rows[i].Cells)
		if cm.Matched() >= 2 {
			return i, cm, true
		}
	}
	return -1, emptyColumnMap(), false
}

// Normalize maps one raw row onto the fixed schema using the resolved
// columns. Absent fields stay empty; nothing here fails.
func (cm ColumnMap) Normalize(row internal.RawRow) internal.NormalizedRow {
	out := internal.NormalizedRow{
		SourceRow:   row.Number,
		Position:    cell(row.Cells, cm.Position),
		Sequence:    cell(row.Cells, cm.Sequence),
		Type:        cell(row.Cells, cm.Type),
		Subtype:     cell(row.Cells, cm.Subtype),
		Identifier:  cell(row.Cells, cm.Identifier),
		Tracking:    cell(row.Cells, cm.Tracking),
		Installer:   cell(row.Cells, cm.Installer),
		InstallDate: cell(row.Cells, cm.Date),
	}
	if qty := cell(row.Cells, cm.Quantity); qty != "" {
		out.Quantity = util.ParseQuantity(qty)
	}
	out.RawText = joinNonEmpty(out.Type, out.Subtype)
	return out
}

// NormalizeRows applies the column map to every row below the header.
func NormalizeRows(cm ColumnMap, rows []internal.RawRow) []internal.NormalizedRow {
	out := make([]internal.NormalizedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, cm.Normalize(row))
	}
	return out
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
