package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Maggerino21/ai-component-extractor/internal"
	"github.com/Maggerino21/ai-component-extractor/internal/config"
	"github.com/Maggerino21/ai-component-extractor/internal/storage"
	"github.com/Maggerino21/ai-component-extractor/internal/util"
)

const (
	metaLastInitialSync     = "catalog.last_initial_sync"
	metaLastIncrementalSync = "catalog.last_incremental_sync"
)

// SyncService keeps the local product table aligned with the supplier
// catalog so matching can run offline.
type SyncService struct {
	db     *storage.DB
	client *Client
	cfg    config.Config
}

func NewSyncService(db *storage.DB, cfg config.Config) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), cfg: cfg}
}

// InitialSync pulls the full catalog and upserts every product.
func (s *SyncService) InitialSync(ctx context.Context) (int, error) {
	if strings.TrimSpace(s.cfg.CatalogAPIBaseURL) == "" {
		return 0, errors.New("CATALOG_API_BASE_URL is not configured")
	}
	products, err := s.client.GetProductsScrollAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.db.UpsertProducts(products); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata(metaLastInitialSync, time.Now().UTC().Format(time.RFC3339))
	return len(products), nil
}

// IncrementalSync pulls only products updated within the lookback window.
func (s *SyncService) IncrementalSync(ctx context.Context) (int, error) {
	if strings.TrimSpace(s.cfg.CatalogAPIBaseURL) == "" {
		return 0, errors.New("CATALOG_API_BASE_URL is not configured")
	}
	products, err := s.client.GetProductsUpdatedSince(ctx, s.cfg.CatalogLookbackHrs)
	if err != nil {
		return 0, err
	}
	if len(products) > 0 {
		if err := s.db.UpsertProducts(products); err != nil {
			return 0, err
		}
	}
	_ = s.db.SetMetadata(metaLastIncrementalSync, time.Now().UTC().Format(time.RFC3339))
	return len(products), nil
}

// SeedFromFile loads products from a local JSON or XLSX file, for sites
// without API access and for tests.
func (s *SyncService) SeedFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var products []internal.ProductRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		products, err = productsFromXLSX(data)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &products); err != nil {
			return 0, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	for i := range products {
		if products[i].RawJSON == "" {
			raw, _ := json.Marshal(products[i])
			products[i].RawJSON = string(raw)
		}
	}

	if err := s.db.UpsertProducts(products); err != nil {
		return 0, err
	}
	return len(products), nil
}

// Seed workbook layout: a header row naming the columns, one product per
// row. Recognized headers: id, name, type, partNumber, manufacturer,
// weightKg, lengthM, diameterMm, capacityT.
func productsFromXLSX(data []byte) ([]internal.ProductRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, errors.New("seed workbook has no data rows")
	}

	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"id", "name"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("seed workbook is missing a %s column", required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	products := make([]internal.ProductRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		id, err := strconv.Atoi(cell(row, "id"))
		name := cell(row, "name")
		if err != nil || name == "" {
			continue
		}
		p := internal.ProductRecord{ID: id, Name: name, Type: internal.ComponentUnknown}
		if ct, ok := productTypes[strings.ToLower(cell(row, "type"))]; ok {
			p.Type = ct
		}
		if v := cell(row, "partnumber"); v != "" {
			p.PartNumber = util.StringPtr(v)
		}
		if v := cell(row, "manufacturer"); v != "" {
			p.Manufacturer = util.StringPtr(v)
		}
		p.Specs.WeightKg = seedSpec(cell(row, "weightkg"))
		p.Specs.LengthM = seedSpec(cell(row, "lengthm"))
		p.Specs.DiameterMm = seedSpec(cell(row, "diametermm"))
		p.Specs.CapacityT = seedSpec(cell(row, "capacityt"))
		products = append(products, p)
	}
	return products, nil
}

func seedSpec(s string) *float64 {
	if s == "" {
		return nil
	}
	if v, ok := util.ParseDecimal(s); ok {
		return &v
	}
	return nil
}

// LastSyncTimes reports when the catalog was last refreshed.
func (s *SyncService) LastSyncTimes() (initial, incremental *string) {
	initial, _ = s.db.GetMetadata(metaLastInitialSync)
	incremental, _ = s.db.GetMetadata(metaLastIncrementalSync)
	return initial, incremental
}
