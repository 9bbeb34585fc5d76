package pipeline

import (
	"testing"

	"github.com/Maggerino21/ai-component-extractor/internal"
)

func sp(s string) *string   { return &s }
func fp(v float64) *float64 { return &v }

func TestClassifyComponent(t *testing.T) {
	cases := []struct {
		text string
		want internal.ComponentType
	}{
		{"Ploganker", internal.ComponentAnchor},
		{"Sjakkel 90T", internal.ComponentShackle},
		{"Kjetting 30mm", internal.ComponentChain},
		{"Trosse 64 mm", internal.ComponentRope},
		{"Bøye", internal.ComponentBuoy},
		{"Svivel galvanisert", internal.ComponentSwivel},
		{"Kause", internal.ComponentThimble},
		{"Koblingsplate", internal.ComponentConnector},
		{"Betonglodd", internal.ComponentSinker},
		{"Anker sjakkel", internal.ComponentAnchor},
		{"Gummiklump", internal.ComponentUnknown},
		{"", internal.ComponentUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyComponent(tc.text); got != tc.want {
			t.Errorf("%q: got %s want %s", tc.text, got, tc.want)
		}
	}
}

func TestExtractSpecs(t *testing.T) {
	s := ExtractSpecs("Softanker 1700 kg")
	if s.WeightKg == nil || *s.WeightKg != 1700 {
		t.Fatalf("weight=%v", s.WeightKg)
	}
	if s.LengthM != nil || s.DiameterMm != nil || s.CapacityT != nil {
		t.Fatalf("unexpected specs: %+v", s)
	}

	s = ExtractSpecs("Kjetting 30mm - 27,5m")
	if s.DiameterMm == nil || *s.DiameterMm != 30 {
		t.Fatalf("diameter=%v", s.DiameterMm)
	}
	if s.LengthM == nil || *s.LengthM != 27.5 {
		t.Fatalf("length=%v", s.LengthM)
	}

	s = ExtractSpecs("Sjakkel 90T Grade 60")
	if s.CapacityT == nil || *s.CapacityT != 90 {
		t.Fatalf("capacity=%v", s.CapacityT)
	}
	if s.WeightKg != nil || s.LengthM != nil || s.DiameterMm != nil {
		t.Fatalf("unexpected specs: %+v", s)
	}

	s = ExtractSpecs("Ploganker 1.700 kg")
	if s.WeightKg == nil || *s.WeightKg != 1700 {
		t.Fatalf("thousands weight=%v", s.WeightKg)
	}

	s = ExtractSpecs("Trosse 64 mm x 220 m")
	if s.DiameterMm == nil || *s.DiameterMm != 64 {
		t.Fatalf("diameter=%v", s.DiameterMm)
	}
	if s.LengthM == nil || *s.LengthM != 220 {
		t.Fatalf("length=%v", s.LengthM)
	}

	s = ExtractSpecs("Bolt M24")
	if s.WeightKg != nil || s.LengthM != nil || s.DiameterMm != nil || s.CapacityT != nil {
		t.Fatalf("unexpected specs: %+v", s)
	}
}

func TestClassifyIdentifier(t *testing.T) {
	cases := []struct {
		in       string
		part     *string
		tracking *string
	}{
		{"606616", sp("606616"), nil},
		{"606616-1", sp("606616-1"), nil},
		{"1234", sp("1234"), nil},
		{"123", nil, nil},
		{"12-34", nil, nil},
		{"12T", nil, nil},
		{"20MIN", nil, nil},
		{"G1463", nil, sp("G1463")},
		{"GAP-GBA", nil, sp("GAP-GBA")},
		{" gap-gba ", nil, sp("GAP-GBA")},
		{"", nil, nil},
	}
	for _, tc := range cases {
		part, tracking := ClassifyIdentifier(tc.in)
		if !eqPtr(part, tc.part) || !eqPtr(tracking, tc.tracking) {
			t.Errorf("%q: part=%v tracking=%v", tc.in, deref(part), deref(tracking))
		}
	}
}

func TestExtractManufacturer(t *testing.T) {
	if m := ExtractManufacturer("aqs tor", ""); m == nil || *m != "AQS TOR" {
		t.Fatalf("got %v", deref(m))
	}
	if m := ExtractManufacturer("Ukjent Leverandør AS", ""); m == nil || *m != "Ukjent Leverandør AS" {
		t.Fatalf("got %v", deref(m))
	}
	if m := ExtractManufacturer("", "Levert av Mørenot i 2023"); m == nil || *m != "MØRENOT" {
		t.Fatalf("got %v", deref(m))
	}
	if m := ExtractManufacturer("", "AQS TOR installasjon"); m == nil || *m != "AQS TOR" {
		t.Fatalf("got %v", deref(m))
	}
	if m := ExtractManufacturer("", "helt ukjent"); m != nil {
		t.Fatalf("got %v", *m)
	}
}

func TestExtract(t *testing.T) {
	row := internal.NormalizedRow{
		SourceRow:   12,
		Sequence:    "2",
		Type:        "Kjetting",
		Subtype:     "30mm - 27,5m",
		Identifier:  "606616",
		Installer:   "Selstad",
		InstallDate: "2023-05-10",
		Quantity:    fp(2),
		RawText:     "Kjetting 30mm - 27,5m",
	}
	rec := Extract(row)

	if rec.SourceRow != 12 || rec.Sequence == nil || *rec.Sequence != 2 {
		t.Fatalf("sequence: %+v", rec)
	}
	if rec.ComponentType != internal.ComponentChain {
		t.Fatalf("type=%s", rec.ComponentType)
	}
	if rec.Specs.DiameterMm == nil || *rec.Specs.DiameterMm != 30 || rec.Specs.LengthM == nil || *rec.Specs.LengthM != 27.5 {
		t.Fatalf("specs: %+v", rec.Specs)
	}
	if rec.Quantity != 2 {
		t.Fatalf("qty=%v", rec.Quantity)
	}
	if rec.Manufacturer == nil || *rec.Manufacturer != "SELSTAD" {
		t.Fatalf("manufacturer=%v", deref(rec.Manufacturer))
	}
	if rec.PartNumber == nil || *rec.PartNumber != "606616" || rec.TrackingNumber != nil {
		t.Fatalf("identifiers: part=%v tracking=%v", deref(rec.PartNumber), deref(rec.TrackingNumber))
	}
	if rec.Subtype == nil || *rec.Subtype != "30mm - 27,5m" {
		t.Fatalf("subtype=%v", deref(rec.Subtype))
	}
	if rec.InstallDate == nil || *rec.InstallDate != "2023-05-10" {
		t.Fatalf("date=%v", deref(rec.InstallDate))
	}
	if rec.Confidence != 1.0 || rec.Resolution != internal.ResolvedDeterministic {
		t.Fatalf("confidence=%v resolution=%s", rec.Confidence, rec.Resolution)
	}
}

func TestExtractTrackingColumn(t *testing.T) {
	rec := Extract(internal.NormalizedRow{Type: "Sjakkel", Tracking: "G-1463", RawText: "Sjakkel"})
	if rec.TrackingNumber == nil || *rec.TrackingNumber != "G-1463" || rec.PartNumber != nil {
		t.Fatalf("part=%v tracking=%v", deref(rec.PartNumber), deref(rec.TrackingNumber))
	}

	// A clean part number in the tracking column fills the empty slot.
	rec = Extract(internal.NormalizedRow{Type: "Sjakkel", Tracking: "606616", RawText: "Sjakkel"})
	if rec.PartNumber == nil || *rec.PartNumber != "606616" || rec.TrackingNumber != nil {
		t.Fatalf("part=%v tracking=%v", deref(rec.PartNumber), deref(rec.TrackingNumber))
	}

	// Unless the part number slot is taken; then the column wins verbatim.
	rec = Extract(internal.NormalizedRow{Type: "Sjakkel", Identifier: "111111", Tracking: "606616", RawText: "Sjakkel"})
	if rec.PartNumber == nil || *rec.PartNumber != "111111" {
		t.Fatalf("part=%v", deref(rec.PartNumber))
	}
	if rec.TrackingNumber == nil || *rec.TrackingNumber != "606616" {
		t.Fatalf("tracking=%v", deref(rec.TrackingNumber))
	}

	// The tracking column is authoritative even for unit-like tokens.
	rec = Extract(internal.NormalizedRow{Type: "Sjakkel", Tracking: "12T", RawText: "Sjakkel"})
	if rec.TrackingNumber == nil || *rec.TrackingNumber != "12T" {
		t.Fatalf("tracking=%v", deref(rec.TrackingNumber))
	}
}

func TestExtractIdentifierColumnTracking(t *testing.T) {
	rec := Extract(internal.NormalizedRow{
		Type:       "Sjakkel",
		Identifier: "GAP-GBA",
		RawText:    "Sjakkel 90T",
	})
	if rec.PartNumber != nil {
		t.Fatalf("part=%v", deref(rec.PartNumber))
	}
	if rec.TrackingNumber == nil || *rec.TrackingNumber != "GAP-GBA" {
		t.Fatalf("tracking=%v", deref(rec.TrackingNumber))
	}
	if rec.ComponentType != internal.ComponentShackle || rec.Specs.CapacityT == nil || *rec.Specs.CapacityT != 90 {
		t.Fatalf("record: %+v", rec)
	}
}

func TestParseSequence(t *testing.T) {
	cases := []struct {
		in   string
		want *int
	}{
		{"3", ip(3)},
		{"3.0", ip(3)},
		{"2,0", ip(2)},
		{"", nil},
		{"abc", nil},
		{"3.5", nil},
	}
	for _, tc := range cases {
		got := ParseSequence(tc.in)
		if (got == nil) != (tc.want == nil) {
			t.Errorf("%q: got %v", tc.in, got)
			continue
		}
		if got != nil && *got != *tc.want {
			t.Errorf("%q: got %d", tc.in, *got)
		}
	}
}

func ip(v int) *int { return &v }

func eqPtr(a, b *string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
