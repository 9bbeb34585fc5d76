package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Maggerino21/ai-component-extractor/internal"
	"github.com/Maggerino21/ai-component-extractor/internal/catalog"
	"github.com/Maggerino21/ai-component-extractor/internal/config"
	"github.com/Maggerino21/ai-component-extractor/internal/logging"
	"github.com/Maggerino21/ai-component-extractor/internal/pipeline"
	"github.com/Maggerino21/ai-component-extractor/internal/resolve"
	"github.com/Maggerino21/ai-component-extractor/internal/storage"
	"github.com/Maggerino21/ai-component-extractor/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "document to import (.xlsx/.pdf/.html/.csv)")
		mappingsPath := fs.String("mappings", "", "optional position mappings json")
		out := fs.String("out", "", "optional xlsx export path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}

		mappings, err := loadMappings(*mappingsPath)
		must(err)

		processor, err := pipeline.NewProcessingService(db, cfg, newResolver(cfg, log), log)
		must(err)
		result, err := processor.ProcessFile(context.Background(), *file, mappings)
		must(err)

		fmt.Printf("import %d: sheets=%d rows=%d components=%d groups=%d\n",
			result.ImportID, result.Sheets, result.Rows, result.Kept, len(result.Groups))
		fmt.Printf("resolver: dispatched=%d cacheHits=%d external=%d fallbacks=%d\n",
			result.Resolver.Dispatched, result.Resolver.CacheHits, result.Resolver.External, result.Resolver.Fallbacks)
		for _, e := range result.Errors {
			fmt.Printf("warning: %s\n", e)
		}
		if strings.TrimSpace(*out) != "" {
			rows, err := db.GetExportRows(result.ImportID)
			must(err)
			must(pipeline.ExportRowsToXLSX(rows, *out))
			fmt.Printf("exported %d rows to %s\n", len(rows), *out)
		}
	case "export:xlsx", "export:csv":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		importID := fs.Int64("importId", 0, "import id (0 = latest)")
		out := fs.String("out", "", "output path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		id, err := resolveImportID(db, *importID)
		must(err)
		rows, err := db.GetExportRows(id)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no export rows for importId=%d", id))
		}
		if cmd == "export:csv" {
			must(pipeline.ExportRowsToCSV(rows, *out))
		} else {
			must(pipeline.ExportRowsToXLSX(rows, *out))
		}
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "review":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		importID := fs.Int64("importId", 0, "import id (0 = latest)")
		max := fs.Float64("max", 0.5, "confidence ceiling")
		_ = fs.Parse(os.Args[2:])
		id, err := resolveImportID(db, *importID)
		must(err)
		rows, err := db.ReviewRows(id, *max)
		must(err)
		if len(rows) == 0 {
			fmt.Printf("import %d: nothing below %.2f\n", id, *max)
			return
		}
		for _, row := range rows {
			seq := "-"
			if row.Sequence != nil {
				seq = fmt.Sprintf("%d", *row.Sequence)
			}
			fmt.Printf("%s seq=%s conf=%.2f %s: %s\n",
				row.DocumentReference, seq, row.Confidence, row.Resolution, row.RawDescription)
		}
	case "imports":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max rows")
		_ = fs.Parse(os.Args[2:])
		imports, err := db.ListImports(*limit)
		must(err)
		for _, imp := range imports {
			fmt.Printf("%d\t%s\t%s\tsheets=%d rows=%d kept=%d\t%s\n",
				imp.ID, imp.Status, imp.File, imp.Sheets, imp.Rows, imp.Kept, imp.CreatedAt)
		}
	case "catalog:initial-sync":
		svc := catalog.NewSyncService(db, cfg)
		count, err := svc.InitialSync(context.Background())
		must(err)
		fmt.Printf("initial sync complete: %d products\n", count)
	case "catalog:incremental-sync":
		svc := catalog.NewSyncService(db, cfg)
		count, err := svc.IncrementalSync(context.Background())
		must(err)
		fmt.Printf("incremental sync complete: %d products\n", count)
	case "catalog:seed":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "products file (.json or .xlsx)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		svc := catalog.NewSyncService(db, cfg)
		count, err := svc.SeedFromFile(*file)
		must(err)
		fmt.Printf("seeded %d products from %s\n", count, *file)
	case "watch":
		processor, err := pipeline.NewProcessingService(db, cfg, newResolver(cfg, log), log)
		must(err)
		svc := watcher.NewService(db, cfg, processor, log)
		must(svc.Run(context.Background()))
	default:
		usage()
		os.Exit(1)
	}
}

// newResolver returns nil when resolution is disabled or unconfigured;
// the pipeline then falls back deterministically.
func newResolver(cfg config.Config, log zerolog.Logger) resolve.Resolver {
	if !cfg.ResolveEnabled || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil
	}
	return resolve.NewOpenAIResolver(cfg, log)
}

func loadMappings(path string) ([]internal.PositionMapping, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []internal.PositionMapping
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

func resolveImportID(db *storage.DB, requested int64) (int64, error) {
	if requested != 0 {
		return requested, nil
	}
	return db.LatestImportID()
}

func usage() {
	fmt.Println("usage: extractor <command>")
	fmt.Println("commands:")
	fmt.Println("  process --file=doc.xlsx [--mappings=positions.json] [--out=result.xlsx]")
	fmt.Println("  export:xlsx --out=result.xlsx [--importId=N]")
	fmt.Println("  export:csv --out=result.csv [--importId=N]")
	fmt.Println("  review [--importId=N] [--max=0.5]")
	fmt.Println("  imports [--limit=20]")
	fmt.Println("  catalog:initial-sync")
	fmt.Println("  catalog:incremental-sync")
	fmt.Println("  catalog:seed --file=products.json")
	fmt.Println("  watch")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
