package pipeline

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Maggerino21/ai-component-extractor/internal"
	"github.com/Maggerino21/ai-component-extractor/internal/util"
)

// componentSynonyms resolves Norwegian and English component nouns to the
// canonical type. Entries are probed in order and the first hit wins.
var componentSynonyms = []struct {
	ctype internal.ComponentType
	words []string
}{
	{internal.ComponentAnchor, []string{"ploganker", "softanker", "fjellbolt", "anker", "anchor"}},
	{internal.ComponentShackle, []string{"sjakkel", "sjakkler", "shackle"}},
	{internal.ComponentChain, []string{"kjetting", "kjede", "chain"}},
	{internal.ComponentRope, []string{"tauverk", "trosse", "tau", "rope"}},
	{internal.ComponentBuoy, []string{"bøye", "blåse", "buoy", "flottør"}},
	{internal.ComponentSwivel, []string{"svivel", "swivel"}},
	{internal.ComponentThimble, []string{"kause", "thimble"}},
	{internal.ComponentConnector, []string{"koblingsplate", "kobling", "masterlink", "sammenføyning", "connector"}},
	{internal.ComponentSinker, []string{"betonglodd", "lodd", "søkke", "sinker"}},
}

// Units here end on \b because the source texts run values and units
// together ("30mm", "90T"); a trailing boundary keeps "30mm" out of the
// meter pattern and "tau" out of the tonnage pattern.
var (
	reWeight   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*kg\b`)
	reLength   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*m\b`)
	reDiameter = regexp.MustCompile(`(?i)(\d+)\s*mm\b`)
	reCapacity = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*t(?:onn)?\b`)

	rePartNumber = regexp.MustCompile(`^\d{4,}(-\d+)?$`)
	reDigitsOnly = regexp.MustCompile(`^\d+(-\d+)?$`)
)

// knownManufacturers is the fixed allow-list of suppliers seen across the
// source documents. Longer names sit before their prefixes so "AQS TOR"
// wins over "AQS" on substring scans.
var knownManufacturers = []string{
	"AQS TOR", "AQS", "MØRENOT", "SCALEAQ", "SCALE AQ", "SELSTAD",
	"SOTRA", "VÓNIN", "FRØY", "EGERSUND",
}

// ClassifyComponent resolves free text to the canonical component type, or
// unknown when no synonym appears.
func ClassifyComponent(text string) internal.ComponentType {
	norm := util.NormalizeText(text)
	if norm == "" {
		return internal.ComponentUnknown
	}
	for _, entry := range componentSynonyms {
		for _, w := range entry.words {
			if strings.Contains(norm, w) {
				return entry.ctype
			}
		}
	}
	return internal.ComponentUnknown
}

// ExtractSpecs pulls numeric specifications out of free text. Comma
// decimals are normalized to dots; a token the parser rejects leaves its
// field nil. Multiple specs may coexist on one row.
func ExtractSpecs(text string) internal.Specifications {
	specs := internal.Specifications{}
	if m := reWeight.FindStringSubmatch(text); len(m) > 1 {
		if v, ok := util.ParseDecimal(m[1]); ok {
			specs.WeightKg = util.FloatPtr(v)
		}
	}
	if m := reLength.FindStringSubmatch(text); len(m) > 1 {
		if v, ok := util.ParseDecimal(m[1]); ok {
			specs.LengthM = util.FloatPtr(v)
		}
	}
	if m := reDiameter.FindStringSubmatch(text); len(m) > 1 {
		if v, ok := util.ParseDecimal(m[1]); ok {
			specs.DiameterMm = util.FloatPtr(v)
		}
	}
	if m := reCapacity.FindStringSubmatch(text); len(m) > 1 {
		if v, ok := util.ParseDecimal(m[1]); ok {
			specs.CapacityT = util.FloatPtr(v)
		}
	}
	return specs
}

func hasSpecToken(text string) bool {
	return reWeight.MatchString(text) || reLength.MatchString(text) ||
		reDiameter.MatchString(text) || reCapacity.MatchString(text)
}

// ClassifyIdentifier sorts an identifier token into part number or tracking
// number. The two feed different downstream joins (catalog lookup vs.
// installation audit trail) and must never be conflated. Unit-like tokens
// ("12T", "20MIN") and short digit runs fit neither and stay unclassified.
func ClassifyIdentifier(token string) (partNumber, trackingNumber *string) {
	tok := util.NormalizeCode(token)
	if tok == "" {
		return nil, nil
	}
	if rePartNumber.MatchString(tok) {
		return util.StringPtr(tok), nil
	}
	if reDigitsOnly.MatchString(tok) {
		return nil, nil
	}
	hasLetter := strings.ContainsFunc(tok, unicode.IsLetter)
	first, _ := utf8.DecodeRuneInString(tok)
	if hasLetter && (strings.Contains(tok, "-") || unicode.IsLetter(first)) {
		return nil, util.StringPtr(tok)
	}
	return nil, nil
}

// ExtractManufacturer resolves the installer field against the known
// manufacturer list, falling back to scanning the description. Installer
// text outside the list is kept verbatim, not discarded.
func ExtractManufacturer(installer, description string) *string {
	field := strings.TrimSpace(installer)
	if field != "" {
		for _, known := range knownManufacturers {
			if strings.EqualFold(field, known) {
				return util.StringPtr(known)
			}
		}
		return util.StringPtr(field)
	}
	desc := strings.ToUpper(description)
	for _, known := range knownManufacturers {
		if strings.Contains(desc, known) {
			return util.StringPtr(known)
		}
	}
	return nil
}

// Extract turns a normalized row into a component record using pattern
// rules only, no external calls. Confidence starts at 1.0; the resolver
// lowers it when it has to take over.
func Extract(row internal.NormalizedRow) internal.ComponentRecord {
	desc := row.RawText

	rec := internal.ComponentRecord{
		Sequence:       ParseSequence(row.Sequence),
		ComponentType:  ClassifyComponent(desc),
		RawDescription: desc,
		Specs:          ExtractSpecs(desc),
		Quantity:       1,
		Confidence:     1.0,
		Resolution:     internal.ResolvedDeterministic,
		SourceRow:      row.SourceRow,
	}
	if s := strings.TrimSpace(row.Subtype); s != "" {
		rec.Subtype = util.StringPtr(s)
	}
	if d := strings.TrimSpace(row.InstallDate); d != "" {
		rec.InstallDate = util.StringPtr(d)
	}
	if row.Quantity != nil && *row.Quantity > 0 {
		rec.Quantity = *row.Quantity
	}
	rec.Manufacturer = ExtractManufacturer(row.Installer, desc)
	rec.PartNumber, rec.TrackingNumber = ClassifyIdentifier(row.Identifier)
	applyTracking(&rec, row.Tracking)
	return rec
}

// applyTracking folds the tracking column in. Its value is authoritative
// and lands on the record even when the classifier would call it noise,
// except that a clean part number fills an empty partNumber slot instead.
func applyTracking(rec *internal.ComponentRecord, tracking string) {
	tok := util.NormalizeCode(tracking)
	if tok == "" {
		return
	}
	part, _ := ClassifyIdentifier(tok)
	if part != nil && rec.PartNumber == nil {
		rec.PartNumber = part
		return
	}
	if rec.TrackingNumber == nil {
		rec.TrackingNumber = util.StringPtr(tok)
	}
}

// ParseSequence reads a sequence cell. Spreadsheet number cells arrive as
// "1" or "1.0"; anything non-integer counts as missing.
func ParseSequence(raw string) *int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	v, ok := util.ParseDecimal(s)
	if !ok || v != math.Trunc(v) {
		return nil
	}
	return util.IntPtr(int(v))
}
