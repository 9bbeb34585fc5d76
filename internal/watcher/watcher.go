package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Maggerino21/ai-component-extractor/internal/config"
	"github.com/Maggerino21/ai-component-extractor/internal/pipeline"
	"github.com/Maggerino21/ai-component-extractor/internal/storage"
)

// Service polls a drop directory for mooring documents and imports
// whatever lands there. Handled files move into done/ or failed/
// subfolders; a re-dropped or renamed copy of a handled document is
// recognized by content hash and filed without a second import.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	log       zerolog.Logger
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService, log zerolog.Logger) *Service {
	return &Service{db: db, cfg: cfg, processor: processor, log: log}
}

func (s *Service) Run(ctx context.Context) error {
	s.log.Info().
		Str("dir", s.cfg.WatchDir).
		Int("intervalSec", s.cfg.WatchIntervalSec).
		Msg("watching for documents")

	for {
		if err := s.runCycle(ctx); err != nil {
			s.log.Error().Err(err).Msg("watch cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.WatchIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	entries, err := os.ReadDir(s.cfg.WatchDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !supportedFile(entry.Name()) {
			continue
		}
		path := filepath.Join(s.cfg.WatchDir, entry.Name())
		if err := s.handleFile(ctx, path); err != nil {
			s.log.Error().Err(err).Str("file", entry.Name()).Msg("import failed")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (s *Service) handleFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.db.GetImportByHash(hash)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status != storage.ImportStatusProcessing {
		// Handled in an earlier cycle under another name; just file it.
		return s.moveTo(path, subfolderFor(existing.Status))
	}

	result, err := s.processor.ProcessFile(ctx, path, nil)
	if err != nil {
		if moveErr := s.moveTo(path, "failed"); moveErr != nil {
			s.log.Error().Err(moveErr).Str("file", filepath.Base(path)).Msg("move failed")
		}
		return err
	}

	if s.cfg.WatchAutoExport && result.Kept > 0 {
		rows, err := s.db.GetExportRows(result.ImportID)
		if err != nil {
			return err
		}
		filename := fmt.Sprintf("%d_%s.xlsx", result.ImportID, sanitizeFilename(result.File))
		outputPath := filepath.Join(s.cfg.OutputDir, "watcher", filename)
		if err := pipeline.ExportRowsToXLSX(rows, outputPath); err != nil {
			return err
		}
	}

	s.log.Info().
		Str("file", result.File).
		Int64("importId", result.ImportID).
		Int("components", result.Kept).
		Int("errors", len(result.Errors)).
		Msg("document imported")

	sub := "done"
	if result.Kept == 0 && len(result.Errors) > 0 {
		sub = "failed"
	}
	return s.moveTo(path, sub)
}

func subfolderFor(status string) string {
	if status == storage.ImportStatusFailed {
		return "failed"
	}
	return "done"
}

func (s *Service) moveTo(path, sub string) error {
	dir := filepath.Join(filepath.Dir(path), sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(dir, fmt.Sprintf("%d_%s", time.Now().Unix(), filepath.Base(path)))
	}
	return os.Rename(path, target)
}

// supportedFile skips Excel lock files and hidden files along with
// unsupported extensions.
func supportedFile(name string) bool {
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls", ".pdf", ".html", ".htm", ".csv":
		return true
	}
	return false
}

func sanitizeFilename(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(strings.TrimSuffix(input, filepath.Ext(input)))
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
