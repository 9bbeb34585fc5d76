package pipeline

import (
	"testing"

	"github.com/Maggerino21/ai-component-extractor/internal"
)

func TestGroup(t *testing.T) {
	rows := []internal.NormalizedRow{
		// No position context yet: dropped.
		{Position: "", Sequence: "1", Type: "Svivel", Subtype: "5T", RawText: "Svivel 5T"},
		{Position: "H01A", Sequence: "1", Type: "Ploganker", Subtype: "1700 kg", RawText: "Ploganker 1700 kg"},
		// Merged position cells: blank inherits the row above.
		{Position: "", Sequence: "3", Type: "Sjakkel", Subtype: "90T", RawText: "Sjakkel 90T"},
		{Position: "", Sequence: "2", Type: "Kjetting", Subtype: "30mm", RawText: "Kjetting 30mm"},
		// Section label between the lines must not break inheritance.
		{Position: "", Type: "Hovedkomponenter"},
		{Position: "R01", Sequence: "1", Type: "Trosse", Subtype: "64 mm x 220 m", RawText: "Trosse 64 mm x 220 m"},
		// Same position, different casing.
		{Position: "h01a", Sequence: "4", Type: "Bøye", RawText: "Bøye", Quantity: fp(1)},
	}

	groups := Group("sheet1", rows)
	if len(groups) != 2 {
		t.Fatalf("len=%d", len(groups))
	}

	g := groups[0]
	if g.DocumentReference != "H01A" || g.PositionType != internal.PositionCorner || g.SourceSheet != "sheet1" {
		t.Fatalf("group: %+v", g)
	}
	if len(g.Components) != 4 {
		t.Fatalf("components=%d", len(g.Components))
	}
	want := []internal.ComponentType{
		internal.ComponentAnchor, internal.ComponentChain, internal.ComponentShackle, internal.ComponentBuoy,
	}
	for i, w := range want {
		if g.Components[i].ComponentType != w {
			t.Fatalf("order[%d]=%s", i, g.Components[i].ComponentType)
		}
	}

	if groups[1].DocumentReference != "R01" || groups[1].PositionType != internal.PositionFrame {
		t.Fatalf("group: %+v", groups[1])
	}
	if len(groups[1].Components) != 1 {
		t.Fatalf("components=%d", len(groups[1].Components))
	}
}

func TestSortBySequence(t *testing.T) {
	comps := []internal.ComponentRecord{
		{Sequence: ip(3), RawDescription: "c"},
		{Sequence: ip(1), RawDescription: "a"},
		{Sequence: nil, RawDescription: "d"},
		{Sequence: ip(2), RawDescription: "b"},
	}
	SortBySequence(comps)
	got := ""
	for _, c := range comps {
		got += c.RawDescription
	}
	if got != "abcd" {
		t.Fatalf("order=%q", got)
	}
}

func TestInheritManufacturers(t *testing.T) {
	comps := []internal.ComponentRecord{
		{},
		{Manufacturer: sp("AQS TOR")},
		{},
		{Manufacturer: sp("SELSTAD")},
		{},
	}
	InheritManufacturers(comps)

	if comps[0].Manufacturer != nil {
		t.Fatalf("leading row inherited %q", *comps[0].Manufacturer)
	}
	for i, want := range []string{"AQS TOR", "AQS TOR", "SELSTAD", "SELSTAD"} {
		m := comps[i+1].Manufacturer
		if m == nil || *m != want {
			t.Fatalf("comps[%d]=%v", i+1, deref(m))
		}
	}
}

func TestManufacturerInheritable(t *testing.T) {
	comps := []internal.ComponentRecord{
		{},
		{Manufacturer: sp("AQS TOR")},
		{},
	}
	got := ManufacturerInheritable(comps)
	want := []bool{false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v", got)
		}
	}
}

func TestPositionTypeFor(t *testing.T) {
	cases := []struct {
		ref  string
		want internal.PositionType
	}{
		{"H01A", internal.PositionCorner},
		{" h01a ", internal.PositionCorner},
		{"R01", internal.PositionFrame},
		{"B02", internal.PositionBottom},
		{"S01", internal.PositionSpread},
		{"X99", internal.PositionUnknown},
		{"", internal.PositionUnknown},
	}
	for _, tc := range cases {
		if got := PositionTypeFor(tc.ref); got != tc.want {
			t.Errorf("%q: got %s", tc.ref, got)
		}
	}
}

func TestAnnotateMappings(t *testing.T) {
	groups := []internal.PositionGroup{
		{DocumentReference: "H01A"},
		{DocumentReference: "R01"},
	}
	mappings := []internal.PositionMapping{
		{DocumentReference: "h01a", InternalPositionID: 42, PositionName: "Hjørne A", PositionType: "corner"},
	}
	AnnotateMappings(groups, mappings)

	g := groups[0]
	if !g.MappingFound || g.InternalPositionID == nil || *g.InternalPositionID != 42 {
		t.Fatalf("group: %+v", g)
	}
	if g.PositionName == nil || *g.PositionName != "Hjørne A" {
		t.Fatalf("name=%v", deref(g.PositionName))
	}
	if groups[1].MappingFound || groups[1].InternalPositionID != nil {
		t.Fatalf("unmapped group annotated: %+v", groups[1])
	}
}
