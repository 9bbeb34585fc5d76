package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Maggerino21/ai-component-extractor/internal"
)

const (
	ImportStatusProcessing = "processing"
	ImportStatusProcessed  = "processed"
	ImportStatusFailed     = "failed"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY,
  partNumber TEXT,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  manufacturer TEXT,
  weightKg REAL,
  lengthM REAL,
  diameterMm REAL,
  capacityT REAL,
  updatedAt TEXT,
  raw_json TEXT NOT NULL,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_partNumber ON products(partNumber);
CREATE INDEX IF NOT EXISTS idx_products_type ON products(type);

CREATE TABLE IF NOT EXISTS imports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  file TEXT NOT NULL,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'processing',
  sheets INTEGER NOT NULL DEFAULT 0,
  rows INTEGER NOT NULL DEFAULT 0,
  kept INTEGER NOT NULL DEFAULT 0,
  errorsJson TEXT NOT NULL DEFAULT '[]',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(hash)
);

CREATE TABLE IF NOT EXISTS position_groups (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  importId INTEGER NOT NULL,
  documentReference TEXT NOT NULL,
  positionType TEXT NOT NULL,
  sourceSheet TEXT NOT NULL,
  internalPositionId INTEGER,
  positionName TEXT,
  mappingFound INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(importId, sourceSheet, documentReference),
  FOREIGN KEY(importId) REFERENCES imports(id)
);

CREATE TABLE IF NOT EXISTS components (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  groupId INTEGER NOT NULL,
  seq INTEGER,
  componentType TEXT NOT NULL,
  subtype TEXT,
  rawDescription TEXT NOT NULL,
  manufacturer TEXT,
  trackingNumber TEXT,
  partNumber TEXT,
  weightKg REAL,
  lengthM REAL,
  diameterMm REAL,
  capacityT REAL,
  installDate TEXT,
  quantity REAL NOT NULL DEFAULT 1,
  confidence REAL NOT NULL,
  resolution TEXT NOT NULL,
  sourceRow INTEGER NOT NULL,
  matchedProductId INTEGER,
  matchConfidence REAL,
  matchReason TEXT,
  candidatesJson TEXT NOT NULL DEFAULT '[]',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(groupId) REFERENCES position_groups(id),
  FOREIGN KEY(matchedProductId) REFERENCES products(id)
);
CREATE INDEX IF NOT EXISTS idx_components_groupId ON components(groupId);
CREATE INDEX IF NOT EXISTS idx_components_trackingNumber ON components(trackingNumber);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  importId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(importId) REFERENCES imports(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertProducts(products []internal.ProductRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO products (
  id, partNumber, name, type, manufacturer,
  weightKg, lengthM, diameterMm, capacityT,
  updatedAt, raw_json, lastSeenAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  partNumber=excluded.partNumber,
  name=excluded.name,
  type=excluded.type,
  manufacturer=excluded.manufacturer,
  weightKg=excluded.weightKg,
  lengthM=excluded.lengthM,
  diameterMm=excluded.diameterMm,
  capacityT=excluded.capacityT,
  updatedAt=excluded.updatedAt,
  raw_json=excluded.raw_json,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.Exec(
			p.ID, p.PartNumber, p.Name, string(p.Type), p.Manufacturer,
			p.Specs.WeightKg, p.Specs.LengthM, p.Specs.DiameterMm, p.Specs.CapacityT,
			p.UpdatedAt, p.RawJSON,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListProducts() ([]internal.ProductRecord, error) {
	rows, err := d.conn.Query(`
SELECT id, partNumber, name, type, manufacturer,
       weightKg, lengthM, diameterMm, capacityT,
       updatedAt, raw_json
FROM products`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ProductRecord
	for rows.Next() {
		var p internal.ProductRecord
		var ptype string
		if err := rows.Scan(
			&p.ID, &p.PartNumber, &p.Name, &ptype, &p.Manufacturer,
			&p.Specs.WeightKg, &p.Specs.LengthM, &p.Specs.DiameterMm, &p.Specs.CapacityT,
			&p.UpdatedAt, &p.RawJSON,
		); err != nil {
			return nil, err
		}
		p.Type = internal.ComponentType(ptype)
		out = append(out, p)
	}

	return out, rows.Err()
}

func (d *DB) CreateImport(file, hash string) (int64, error) {
	_, err := d.conn.Exec(`
INSERT INTO imports (file, hash) VALUES (?, ?)
ON CONFLICT(hash) DO UPDATE SET
  file=excluded.file,
  status='processing',
  updatedAt=CURRENT_TIMESTAMP
`, file, hash)
	if err != nil {
		return 0, err
	}
	row, err := d.GetImportByHash(hash)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, errors.New("failed to upsert import")
	}
	return row.ID, nil
}

func (d *DB) GetImportByHash(hash string) (*internal.ImportRow, error) {
	var row internal.ImportRow
	err := d.conn.QueryRow(`
SELECT id, file, hash, status, sheets, rows, kept, createdAt
FROM imports WHERE hash = ?
`, hash).Scan(&row.ID, &row.File, &row.Hash, &row.Status, &row.Sheets, &row.Rows, &row.Kept, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) FinishImport(id int64, status string, sheets, rowCount, kept int, errs []string) error {
	errsJSON, _ := json.Marshal(errs)
	_, err := d.conn.Exec(`
UPDATE imports SET status = ?, sheets = ?, rows = ?, kept = ?, errorsJson = ?, updatedAt = CURRENT_TIMESTAMP
WHERE id = ?
`, status, sheets, rowCount, kept, string(errsJSON), id)
	return err
}

// SaveGroups replaces the stored groups of an import with the given set,
// one transaction for the whole document.
func (d *DB) SaveGroups(importID int64, groups []internal.PositionGroup) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := clearImportGroups(tx, importID); err != nil {
		return err
	}

	groupStmt, err := tx.Prepare(`
INSERT INTO position_groups (importId, documentReference, positionType, sourceSheet, internalPositionId, positionName, mappingFound)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer groupStmt.Close()

	compStmt, err := tx.Prepare(`
INSERT INTO components (
  groupId, seq, componentType, subtype, rawDescription,
  manufacturer, trackingNumber, partNumber,
  weightKg, lengthM, diameterMm, capacityT,
  installDate, quantity, confidence, resolution, sourceRow,
  matchedProductId, matchConfidence, matchReason, candidatesJson
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer compStmt.Close()

	for _, g := range groups {
		mapping := 0
		if g.MappingFound {
			mapping = 1
		}
		res, err := groupStmt.Exec(
			importID, g.DocumentReference, string(g.PositionType), g.SourceSheet,
			g.InternalPositionID, g.PositionName, mapping,
		)
		if err != nil {
			return err
		}
		groupID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for _, c := range g.Components {
			var matchedID *int
			var matchConf *float64
			var matchReason *string
			candidatesJSON := "[]"
			if c.Match != nil {
				matchedID = c.Match.ProductID
				conf := c.Match.Confidence
				matchConf = &conf
				reason := string(c.Match.Reason)
				matchReason = &reason
				if blob, err := json.Marshal(c.Match.Candidates); err == nil {
					candidatesJSON = string(blob)
				}
			}
			if _, err := compStmt.Exec(
				groupID, c.Sequence, string(c.ComponentType), c.Subtype, c.RawDescription,
				c.Manufacturer, c.TrackingNumber, c.PartNumber,
				c.Specs.WeightKg, c.Specs.LengthM, c.Specs.DiameterMm, c.Specs.CapacityT,
				c.InstallDate, c.Quantity, c.Confidence, string(c.Resolution), c.SourceRow,
				matchedID, matchConf, matchReason, candidatesJSON,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func clearImportGroups(tx *sql.Tx, importID int64) error {
	rows, err := tx.Query(`SELECT id FROM position_groups WHERE importId = ?`, importID)
	if err != nil {
		return err
	}
	var groupIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		groupIDs = append(groupIDs, id)
	}
	_ = rows.Close()

	for _, id := range groupIDs {
		if _, err := tx.Exec(`DELETE FROM components WHERE groupId = ?`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM position_groups WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) GetExportRows(importID int64) ([]internal.ComponentExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  g.documentReference,
  g.positionType,
  g.sourceSheet,
  g.internalPositionId,
  g.positionName,
  g.mappingFound,
  c.seq,
  c.componentType,
  c.subtype,
  c.rawDescription,
  c.manufacturer,
  c.trackingNumber,
  c.partNumber,
  c.weightKg,
  c.lengthM,
  c.diameterMm,
  c.capacityT,
  c.installDate,
  c.quantity,
  c.confidence,
  c.resolution,
  c.matchedProductId,
  p.name,
  c.matchConfidence,
  c.matchReason
FROM components c
JOIN position_groups g ON g.id = c.groupId
LEFT JOIN products p ON p.id = c.matchedProductId
WHERE g.importId = ?
ORDER BY g.id ASC, c.id ASC
`, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ComponentExportRow
	for rows.Next() {
		var row internal.ComponentExportRow
		var mapping int
		if err := rows.Scan(
			&row.DocumentReference,
			&row.PositionType,
			&row.SourceSheet,
			&row.InternalPositionID,
			&row.PositionName,
			&mapping,
			&row.Sequence,
			&row.ComponentType,
			&row.Subtype,
			&row.RawDescription,
			&row.Manufacturer,
			&row.TrackingNumber,
			&row.PartNumber,
			&row.WeightKg,
			&row.LengthM,
			&row.DiameterMm,
			&row.CapacityT,
			&row.InstallDate,
			&row.Quantity,
			&row.Confidence,
			&row.Resolution,
			&row.MatchedProductID,
			&row.MatchedProductName,
			&row.MatchConfidence,
			&row.MatchReason,
		); err != nil {
			return nil, err
		}
		row.MappingFound = mapping != 0
		out = append(out, row)
	}

	return out, rows.Err()
}

func (d *DB) InsertRun(traceID string, importID int64, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, importId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, importID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// ListImports returns recent imports, newest first.
func (d *DB) ListImports(limit int) ([]internal.ImportRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(`
SELECT id, file, hash, status, sheets, rows, kept, createdAt
FROM imports ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ImportRow
	for rows.Next() {
		var row internal.ImportRow
		if err := rows.Scan(&row.ID, &row.File, &row.Hash, &row.Status, &row.Sheets, &row.Rows, &row.Kept, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LatestImportID returns the most recent import id, or 0 when none exist.
func (d *DB) LatestImportID() (int64, error) {
	var id int64
	err := d.conn.QueryRow(`SELECT id FROM imports ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ReviewRows returns stored components whose confidence sits below the
// threshold, for manual follow-up.
func (d *DB) ReviewRows(importID int64, maxConfidence float64) ([]internal.ComponentExportRow, error) {
	all, err := d.GetExportRows(importID)
	if err != nil {
		return nil, err
	}
	out := make([]internal.ComponentExportRow, 0, len(all))
	for _, row := range all {
		if row.Confidence <= maxConfidence || strings.EqualFold(row.Resolution, string(internal.ResolvedFallback)) {
			out = append(out, row)
		}
	}
	return out, nil
}
