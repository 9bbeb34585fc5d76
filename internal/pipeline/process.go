package pipeline

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/Maggerino21/ai-component-extractor/internal"
	"github.com/Maggerino21/ai-component-extractor/internal/config"
	"github.com/Maggerino21/ai-component-extractor/internal/resolve"
	"github.com/Maggerino21/ai-component-extractor/internal/storage"
)

// headerScanRows caps how deep the header detector looks into a sheet.
const headerScanRows = 10

// ProcessingService runs a document through the whole pipeline: read,
// normalize, filter, extract, resolve, group, match, persist. Sheets are
// handled sequentially; only resolver calls fan out.
type ProcessingService struct {
	db      *storage.DB
	cfg     config.Config
	batcher *resolve.Batcher
	log     zerolog.Logger
}

// NewProcessingService wires the pipeline. A nil resolver disables
// external resolution; ambiguous rows then keep their deterministic
// partials at fallback confidence.
func NewProcessingService(db *storage.DB, cfg config.Config, resolver resolve.Resolver, log zerolog.Logger) (*ProcessingService, error) {
	s := &ProcessingService{db: db, cfg: cfg, log: log}
	if resolver != nil {
		cache, err := resolve.NewCache(cfg.ResolveCacheSize)
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(cfg.ResolveTimeoutMs) * time.Millisecond
		s.batcher = resolve.NewBatcher(resolver, cache, cfg.ResolveWorkers, timeout, log)
	}
	return s, nil
}

func (s *ProcessingService) ProcessFile(ctx context.Context, path string, mappings []internal.PositionMapping) (internal.ImportResult, error) {
	name := filepath.Base(path)
	content, err := os.ReadFile(path)
	if err != nil {
		return internal.ImportResult{File: name}, err
	}
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	sheets, err := ReadBytes(name, content)
	if err != nil {
		// Record the failed import so a watcher does not retry forever.
		if id, dbErr := s.db.CreateImport(name, hash); dbErr == nil {
			_ = s.db.FinishImport(id, storage.ImportStatusFailed, 0, 0, 0, []string{err.Error()})
		}
		return internal.ImportResult{File: name}, err
	}
	return s.ProcessSheets(ctx, name, hash, sheets, mappings)
}

// ProcessSheets is the pre-parsed entry point. An empty hash is derived
// from the sheet contents.
func (s *ProcessingService) ProcessSheets(ctx context.Context, file, hash string, sheets []internal.Sheet, mappings []internal.PositionMapping) (internal.ImportResult, error) {
	start := time.Now()
	if hash == "" {
		hash = sheetsHash(file, sheets)
	}

	importID, err := s.db.CreateImport(file, hash)
	if err != nil {
		return internal.ImportResult{File: file}, err
	}
	if s.batcher != nil {
		s.batcher.Reset()
	}

	var matcher *Matcher
	if products, err := s.db.ListProducts(); err == nil && len(products) > 0 {
		matcher = NewMatcher(s.cfg, products)
	}

	result := internal.ImportResult{ImportID: importID, File: file, Sheets: len(sheets)}
	allGroups := []internal.PositionGroup{}
	allOutcomes := []resolve.Outcome{}

	for _, sheet := range sheets {
		result.Rows += len(sheet.Rows)

		headerIdx, cm, ok := FindHeaderRow(sheet.Rows, headerScanRows)
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: no recognizable header row", sheet.Name))
			continue
		}

		normalized := NormalizeRows(cm, sheet.Rows[headerIdx+1:])
		groups := Group(sheet.Name, normalized)

		installer := map[int]string{}
		for _, row := range normalized {
			installer[row.SourceRow] = row.Installer
		}

		outcomes := s.resolveGroups(ctx, groups, installer)
		allOutcomes = append(allOutcomes, outcomes...)

		for gi := range groups {
			InheritManufacturers(groups[gi].Components)
		}
		allGroups = append(allGroups, groups...)
	}

	AnnotateMappings(allGroups, mappings)

	for gi := range allGroups {
		for ci := range allGroups[gi].Components {
			result.Kept++
			if matcher != nil {
				match := matcher.Match(allGroups[gi].Components[ci])
				allGroups[gi].Components[ci].Match = &match
			}
		}
	}
	result.Groups = allGroups

	externalCalls := 0
	if s.batcher != nil {
		externalCalls = s.batcher.Calls()
	}
	result.Resolver = resolve.Stats(allOutcomes, externalCalls)

	if err := s.db.SaveGroups(importID, allGroups); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("save groups: %v", err))
	}

	status := storage.ImportStatusProcessed
	if len(allGroups) == 0 && len(result.Errors) > 0 {
		status = storage.ImportStatusFailed
	}
	if err := s.db.FinishImport(importID, status, result.Sheets, result.Rows, result.Kept, result.Errors); err != nil {
		return result, err
	}

	_ = s.db.InsertRun(traceID(), importID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{
			"rows":      result.Rows,
			"kept":      result.Kept,
			"groups":    len(allGroups),
			"external":  result.Resolver.External,
			"cacheHits": result.Resolver.CacheHits,
			"fallbacks": result.Resolver.Fallbacks,
		})

	s.log.Info().
		Str("file", file).
		Int64("importId", importID).
		Int("sheets", result.Sheets).
		Int("rows", result.Rows).
		Int("components", result.Kept).
		Int("groups", len(allGroups)).
		Int("fallbacks", result.Resolver.Fallbacks).
		Msg("import processed")

	return result, nil
}

type pendingResolution struct {
	group, comp int
	req         resolve.Request
}

// resolveGroups dispatches every row the deterministic pass left ambiguous
// and merges answers back in place. Results land by original index, so
// group order never depends on completion order.
func (s *ProcessingService) resolveGroups(ctx context.Context, groups []internal.PositionGroup, installer map[int]string) []resolve.Outcome {
	pending := []pendingResolution{}
	for gi := range groups {
		inheritable := ManufacturerInheritable(groups[gi].Components)
		for ci := range groups[gi].Components {
			if !resolve.Needs(groups[gi].Components[ci], inheritable[ci]) {
				continue
			}
			req := resolve.RequestFor(groups[gi].Components[ci], installer[groups[gi].Components[ci].SourceRow])
			pending = append(pending, pendingResolution{group: gi, comp: ci, req: req})
		}
	}
	if len(pending) == 0 {
		return nil
	}

	if s.batcher == nil {
		outcomes := make([]resolve.Outcome, len(pending))
		for k, p := range pending {
			resolve.Fallback(&groups[p.group].Components[p.comp])
			outcomes[k] = resolve.Outcome{Source: internal.ResolvedFallback}
		}
		return outcomes
	}

	reqs := make([]resolve.Request, len(pending))
	for k, p := range pending {
		reqs[k] = p.req
	}
	outcomes := s.batcher.ResolveAll(ctx, reqs)
	for k, p := range pending {
		comp := &groups[p.group].Components[p.comp]
		if outcomes[k].Source == internal.ResolvedFallback {
			resolve.Fallback(comp)
			continue
		}
		resolve.Merge(comp, outcomes[k].Fields, outcomes[k].Source)
	}
	return outcomes
}

func sheetsHash(file string, sheets []internal.Sheet) string {
	h := sha256.New()
	h.Write([]byte(file))
	blob, _ := json.Marshal(sheets)
	h.Write(blob)
	return hex.EncodeToString(h.Sum(nil))
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
