package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Maggerino21/ai-component-extractor/internal"
)

func sp(s string) *string   { return &s }
func fp(v float64) *float64 { return &v }

// stubResolver answers with the request text so tests can check outcomes
// land at their input index.
type stubResolver struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	fail  string
}

func (s *stubResolver) Resolve(ctx context.Context, req Request) (Fields, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return Fields{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.fail != "" && req.RawText == s.fail {
		return Fields{}, errors.New("resolver says no")
	}
	return Fields{Subtype: sp(req.RawText), Confidence: 0.8}, nil
}

func (s *stubResolver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestBatcher(t *testing.T, resolver Resolver, workers int, timeout time.Duration) *Batcher {
	t.Helper()
	cache, err := NewCache(16)
	if err != nil {
		t.Fatal(err)
	}
	return NewBatcher(resolver, cache, workers, timeout, zerolog.Nop())
}

func TestResolveAllDedupes(t *testing.T) {
	stub := &stubResolver{}
	b := newTestBatcher(t, stub, 4, time.Second)

	reqs := []Request{{RawText: "A"}, {RawText: "A"}, {RawText: "B"}}
	out := b.ResolveAll(context.Background(), reqs)
	if len(out) != 3 {
		t.Fatalf("len=%d", len(out))
	}
	// Two distinct rows: singleflight and the cache keep it at two calls.
	if b.Calls() != 2 || stub.count() != 2 {
		t.Fatalf("calls=%d", stub.count())
	}

	// A second batch over the same rows is answered from cache entirely.
	out = b.ResolveAll(context.Background(), reqs)
	if b.Calls() != 2 {
		t.Fatalf("calls=%d", b.Calls())
	}
	for i, o := range out {
		if o.Source != internal.ResolvedFromCache {
			t.Fatalf("out[%d].Source=%s", i, o.Source)
		}
	}
	if *out[0].Fields.Subtype != "A" || *out[2].Fields.Subtype != "B" {
		t.Fatalf("fields misplaced: %+v", out)
	}

	b.Reset()
	if b.Calls() != 0 {
		t.Fatalf("calls after reset=%d", b.Calls())
	}
	b.ResolveAll(context.Background(), reqs[:1])
	if stub.count() != 3 {
		t.Fatalf("calls=%d", stub.count())
	}
}

func TestResolveAllKeepsOrder(t *testing.T) {
	stub := &stubResolver{}
	b := newTestBatcher(t, stub, 2, time.Second)

	reqs := []Request{{RawText: "en"}, {RawText: "to"}, {RawText: "tre"}, {RawText: "fire"}}
	out := b.ResolveAll(context.Background(), reqs)
	for i, req := range reqs {
		if out[i].Fields.Subtype == nil || *out[i].Fields.Subtype != req.RawText {
			t.Fatalf("out[%d]: %+v", i, out[i])
		}
		if out[i].Source != internal.ResolvedExternal {
			t.Fatalf("out[%d].Source=%s", i, out[i].Source)
		}
	}
}

func TestResolveAllFailureDegradesOneRow(t *testing.T) {
	stub := &stubResolver{fail: "bad"}
	b := newTestBatcher(t, stub, 2, time.Second)

	out := b.ResolveAll(context.Background(), []Request{{RawText: "good"}, {RawText: "bad"}})
	if out[0].Source != internal.ResolvedExternal || *out[0].Fields.Subtype != "good" {
		t.Fatalf("out[0]: %+v", out[0])
	}
	if out[1].Source != internal.ResolvedFallback {
		t.Fatalf("out[1]: %+v", out[1])
	}

	// Failures are not cached; the next batch tries again.
	calls := stub.count()
	out = b.ResolveAll(context.Background(), []Request{{RawText: "bad"}})
	if out[0].Source != internal.ResolvedFallback {
		t.Fatalf("out[0]: %+v", out[0])
	}
	if stub.count() != calls+1 {
		t.Fatalf("calls=%d", stub.count())
	}
}

func TestResolveAllTimeout(t *testing.T) {
	stub := &stubResolver{delay: 200 * time.Millisecond}
	b := newTestBatcher(t, stub, 1, 10*time.Millisecond)

	out := b.ResolveAll(context.Background(), []Request{{RawText: "treg"}})
	if out[0].Source != internal.ResolvedFallback {
		t.Fatalf("out[0]: %+v", out[0])
	}
}

func TestNeeds(t *testing.T) {
	settled := internal.ComponentRecord{
		ComponentType:  internal.ComponentChain,
		RawDescription: "Kjetting 19mm",
		Manufacturer:   sp("AQS"),
		TrackingNumber: sp("G1463"),
		Specs:          internal.Specifications{DiameterMm: fp(19)},
	}
	if Needs(settled, false) {
		t.Fatal("settled record flagged")
	}

	unknown := settled
	unknown.ComponentType = internal.ComponentUnknown
	if !Needs(unknown, false) {
		t.Fatal("unknown type not flagged")
	}

	noMfr := settled
	noMfr.Manufacturer = nil
	if !Needs(noMfr, false) {
		t.Fatal("missing manufacturer not flagged")
	}
	if Needs(noMfr, true) {
		t.Fatal("inheritable manufacturer flagged")
	}

	noIDs := settled
	noIDs.TrackingNumber = nil
	if !Needs(noIDs, false) {
		t.Fatal("missing identifiers not flagged")
	}

	noSpecs := settled
	noSpecs.Specs = internal.Specifications{}
	if !Needs(noSpecs, false) {
		t.Fatal("empty specs not flagged")
	}
}

func TestMerge(t *testing.T) {
	ct := internal.ComponentChain
	rec := internal.ComponentRecord{
		ComponentType:  internal.ComponentUnknown,
		RawDescription: "Gummiklump spesial",
		PartNumber:     sp("111111"),
		Confidence:     1.0,
		Resolution:     internal.ResolvedDeterministic,
	}
	Merge(&rec, Fields{
		ComponentType: &ct,
		Manufacturer:  sp("MØRENOT"),
		PartNumber:    sp("222222"),
		Specs:         &internal.Specifications{WeightKg: fp(40)},
		Confidence:    0.9,
	}, internal.ResolvedExternal)

	if rec.ComponentType != internal.ComponentChain {
		t.Fatalf("type=%s", rec.ComponentType)
	}
	if rec.Manufacturer == nil || *rec.Manufacturer != "MØRENOT" {
		t.Fatalf("manufacturer=%v", rec.Manufacturer)
	}
	// Deterministic extraction wins over the resolver.
	if *rec.PartNumber != "111111" {
		t.Fatalf("partNumber=%q", *rec.PartNumber)
	}
	if rec.Specs.WeightKg == nil || *rec.Specs.WeightKg != 40 {
		t.Fatalf("specs: %+v", rec.Specs)
	}
	if rec.Confidence != 0.9 || rec.Resolution != internal.ResolvedExternal {
		t.Fatalf("confidence=%v resolution=%s", rec.Confidence, rec.Resolution)
	}

	// Settled type is never overwritten.
	anchor := internal.ComponentAnchor
	Merge(&rec, Fields{ComponentType: &anchor, Confidence: 0.95}, internal.ResolvedExternal)
	if rec.ComponentType != internal.ComponentChain {
		t.Fatalf("type=%s", rec.ComponentType)
	}
	// Confidence only ever drops.
	if rec.Confidence != 0.9 {
		t.Fatalf("confidence=%v", rec.Confidence)
	}
}

func TestMergeClampsConfidence(t *testing.T) {
	rec := internal.ComponentRecord{Confidence: 1.0}
	Merge(&rec, Fields{Confidence: 1.7}, internal.ResolvedExternal)
	if rec.Confidence != FallbackConfidence {
		t.Fatalf("confidence=%v", rec.Confidence)
	}

	rec = internal.ComponentRecord{Confidence: 1.0}
	Merge(&rec, Fields{}, internal.ResolvedExternal)
	if rec.Confidence != FallbackConfidence {
		t.Fatalf("confidence=%v", rec.Confidence)
	}
}

func TestFallback(t *testing.T) {
	rec := internal.ComponentRecord{Confidence: 1.0, Resolution: internal.ResolvedDeterministic}
	Fallback(&rec)
	if rec.Confidence != FallbackConfidence || rec.Resolution != internal.ResolvedFallback {
		t.Fatalf("rec: %+v", rec)
	}
}

func TestRequestKey(t *testing.T) {
	a := Request{RawText: "Kjetting 19mm", ManufacturerField: "AQS"}
	b := Request{RawText: "Kjetting 19mm", ManufacturerField: "AQS"}
	if a.Key() != b.Key() {
		t.Fatal("identical requests differ")
	}
	if (Request{RawText: "x"}).Key() == (Request{RawText: "y"}).Key() {
		t.Fatal("different texts collide")
	}
	// Field boundaries must matter.
	if (Request{RawText: "a"}).Key() == (Request{ManufacturerField: "a"}).Key() {
		t.Fatal("field shift collides")
	}
	if (Request{PartNumber: sp("606616")}).Key() == (Request{}).Key() {
		t.Fatal("part number ignored")
	}
}

func TestStats(t *testing.T) {
	outcomes := []Outcome{
		{Source: internal.ResolvedExternal},
		{Source: internal.ResolvedFromCache},
		{Source: internal.ResolvedFallback},
		{Source: internal.ResolvedFromCache},
	}
	stats := Stats(outcomes, 1)
	if stats.Dispatched != 4 || stats.CacheHits != 2 || stats.Fallbacks != 1 || stats.External != 1 {
		t.Fatalf("stats: %+v", stats)
	}
}
