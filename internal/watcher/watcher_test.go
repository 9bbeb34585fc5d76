package watcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/Maggerino21/ai-component-extractor/internal/config"
	"github.com/Maggerino21/ai-component-extractor/internal/pipeline"
	"github.com/Maggerino21/ai-component-extractor/internal/storage"
)

func reportXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Fortøyningsrapport"},
		{"Posisjon", "Nr", "Type", "Beskrivelse", "Antall"},
		{"H01A", 1, "Sjakkel", "Sjakkel 90T", 1},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T) (*Service, *storage.DB, string) {
	t.Helper()
	watchDir := t.TempDir()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	cfg, _ := config.Load()
	cfg.WatchDir = watchDir
	cfg.WatchAutoExport = false

	processor, err := pipeline.NewProcessingService(db, cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return NewService(db, cfg, processor, zerolog.Nop()), db, watchDir
}

func TestRunCycleImportsAndMoves(t *testing.T) {
	svc, db, dir := newTestService(t)
	blob := reportXLSX(t)

	path := filepath.Join(dir, "rapport.xlsx")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("source file still in watch dir")
	}
	if _, err := os.Stat(filepath.Join(dir, "done", "rapport.xlsx")); err != nil {
		t.Fatal(err)
	}

	imports, err := db.ListImports(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(imports) != 1 || imports[0].Kept != 1 {
		t.Fatalf("imports: %+v", imports)
	}

	// A re-dropped copy under a new name matches by content hash and is
	// filed without a second import.
	if err := os.WriteFile(filepath.Join(dir, "kopi.xlsx"), blob, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "done", "kopi.xlsx")); err != nil {
		t.Fatal(err)
	}
	imports, err = db.ListImports(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(imports) != 1 {
		t.Fatalf("len=%d", len(imports))
	}
}

func TestRunCycleFailedFile(t *testing.T) {
	svc, db, dir := newTestService(t)

	path := filepath.Join(dir, "ødelagt.xlsx")
	if err := os.WriteFile(path, []byte("ikke en arbeidsbok"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "failed", "ødelagt.xlsx")); err != nil {
		t.Fatal(err)
	}
	imports, err := db.ListImports(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(imports) != 1 || imports[0].Status != storage.ImportStatusFailed {
		t.Fatalf("imports: %+v", imports)
	}

	// Same broken content again goes straight to failed/.
	if err := os.WriteFile(filepath.Join(dir, "ødelagt2.xlsx"), []byte("ikke en arbeidsbok"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "failed", "ødelagt2.xlsx")); err != nil {
		t.Fatal(err)
	}
}

func TestSupportedFile(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{name: "rapport.xlsx", want: true},
		{name: "rapport.PDF", want: true},
		{name: "liste.csv", want: true},
		{name: "~$rapport.xlsx", want: false},
		{name: ".skjult.xlsx", want: false},
		{name: "notat.docx", want: false},
	}
	for _, tc := range cases {
		if got := supportedFile(tc.name); got != tc.want {
			t.Fatalf("%s: got %v", tc.name, got)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("Anlegg 12/3: rapport.xlsx"); got != "Anlegg_12_3__rapport" {
		t.Fatalf("got %q", got)
	}
}
