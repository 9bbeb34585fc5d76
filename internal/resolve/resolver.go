package resolve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/Maggerino21/ai-component-extractor/internal"
)

// FallbackConfidence is what a row keeps when resolution fails and the
// deterministic partial data has to stand on its own.
const FallbackConfidence = 0.4

// Request carries the fields the deterministic extractor could not settle
// for one row.
type Request struct {
	RawText           string
	ManufacturerField string
	PartNumber        *string
	TrackingNumber    *string
}

// Key is the content hash used for caching and in-flight deduplication:
// identical rows cost one resolution.
func (r Request) Key() string {
	h := sha256.New()
	io.WriteString(h, r.RawText)
	io.WriteString(h, "\x00")
	io.WriteString(h, r.ManufacturerField)
	io.WriteString(h, "\x00")
	if r.PartNumber != nil {
		io.WriteString(h, *r.PartNumber)
	}
	io.WriteString(h, "\x00")
	if r.TrackingNumber != nil {
		io.WriteString(h, *r.TrackingNumber)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fields is a resolver's answer. Nil members leave the record untouched.
type Fields struct {
	ComponentType  *internal.ComponentType
	Subtype        *string
	Manufacturer   *string
	PartNumber     *string
	TrackingNumber *string
	Specs          *internal.Specifications
	Confidence     float64
}

// Resolver settles rows the deterministic extractor left ambiguous. An
// error return degrades that one row to its fallback; it must never abort
// the surrounding run.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Fields, error)
}

// Needs reports whether a record still has unresolved required fields.
// inheritable tells whether an earlier row in the sorted group carries a
// manufacturer that the inheritance pass will fill in later.
func Needs(rec internal.ComponentRecord, inheritable bool) bool {
	if rec.ComponentType == internal.ComponentUnknown {
		return true
	}
	if rec.Manufacturer == nil && !inheritable {
		return true
	}
	if rec.PartNumber == nil && rec.TrackingNumber == nil && strings.TrimSpace(rec.RawDescription) != "" {
		return true
	}
	if rec.Specs.Empty() {
		return true
	}
	return false
}

// RequestFor builds the resolver input from a record's deterministic
// partials.
func RequestFor(rec internal.ComponentRecord, manufacturerField string) Request {
	return Request{
		RawText:           rec.RawDescription,
		ManufacturerField: manufacturerField,
		PartNumber:        rec.PartNumber,
		TrackingNumber:    rec.TrackingNumber,
	}
}

// Merge folds a resolver answer into the record. Deterministic fields win
// and the resolver only fills gaps, except componentType, which it may
// settle when the extractor said unknown.
func Merge(rec *internal.ComponentRecord, f Fields, res internal.Resolution) {
	if rec.ComponentType == internal.ComponentUnknown && f.ComponentType != nil {
		rec.ComponentType = *f.ComponentType
	}
	if rec.Subtype == nil && f.Subtype != nil {
		rec.Subtype = f.Subtype
	}
	if rec.Manufacturer == nil && f.Manufacturer != nil {
		rec.Manufacturer = f.Manufacturer
	}
	if rec.PartNumber == nil && f.PartNumber != nil {
		rec.PartNumber = f.PartNumber
	}
	if rec.TrackingNumber == nil && f.TrackingNumber != nil {
		rec.TrackingNumber = f.TrackingNumber
	}
	if f.Specs != nil {
		if rec.Specs.WeightKg == nil {
			rec.Specs.WeightKg = f.Specs.WeightKg
		}
		if rec.Specs.LengthM == nil {
			rec.Specs.LengthM = f.Specs.LengthM
		}
		if rec.Specs.DiameterMm == nil {
			rec.Specs.DiameterMm = f.Specs.DiameterMm
		}
		if rec.Specs.CapacityT == nil {
			rec.Specs.CapacityT = f.Specs.CapacityT
		}
	}

	conf := f.Confidence
	if conf <= 0 || conf > 1 {
		conf = FallbackConfidence
	}
	if conf < rec.Confidence {
		rec.Confidence = conf
	}
	rec.Resolution = res
}

// Fallback keeps the deterministic partials and marks the row as degraded.
func Fallback(rec *internal.ComponentRecord) {
	rec.Confidence = FallbackConfidence
	rec.Resolution = internal.ResolvedFallback
}
