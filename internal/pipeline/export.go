package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/Maggerino21/ai-component-extractor/internal"
)

var exportHeaders = []string{
	"document_reference", "position_type", "source_sheet",
	"internal_position_id", "position_name", "mapping_found",
	"sequence", "component_type", "subtype", "raw_description",
	"manufacturer", "tracking_number", "part_number",
	"weight_kg", "length_m", "diameter_mm", "capacity_t",
	"install_date", "quantity", "confidence", "resolution",
	"matched_product_id", "matched_product_name", "match_confidence", "match_reason",
}

// ExportRowsToXLSX writes the review workbook, one row per component.
func ExportRowsToXLSX(rows []internal.ComponentExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.DocumentReference)
		set(2, row.PositionType)
		set(3, row.SourceSheet)
		set(4, derefInt(row.InternalPositionID))
		set(5, derefString(row.PositionName))
		set(6, row.MappingFound)
		set(7, derefInt(row.Sequence))
		set(8, row.ComponentType)
		set(9, derefString(row.Subtype))
		set(10, row.RawDescription)
		set(11, derefString(row.Manufacturer))
		set(12, derefString(row.TrackingNumber))
		set(13, derefString(row.PartNumber))
		set(14, derefFloat(row.WeightKg))
		set(15, derefFloat(row.LengthM))
		set(16, derefFloat(row.DiameterMm))
		set(17, derefFloat(row.CapacityT))
		set(18, derefString(row.InstallDate))
		set(19, row.Quantity)
		set(20, row.Confidence)
		set(21, row.Resolution)
		set(22, derefInt(row.MatchedProductID))
		set(23, derefString(row.MatchedProductName))
		set(24, derefFloat(row.MatchConfidence))
		set(25, derefString(row.MatchReason))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportRowsToCSV writes the same columns as the workbook export.
func ExportRowsToCSV(rows []internal.ComponentExportRow, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeaders); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.DocumentReference,
			row.PositionType,
			row.SourceSheet,
			intField(row.InternalPositionID),
			derefString(row.PositionName),
			strconv.FormatBool(row.MappingFound),
			intField(row.Sequence),
			row.ComponentType,
			derefString(row.Subtype),
			row.RawDescription,
			derefString(row.Manufacturer),
			derefString(row.TrackingNumber),
			derefString(row.PartNumber),
			floatField(row.WeightKg),
			floatField(row.LengthM),
			floatField(row.DiameterMm),
			floatField(row.CapacityT),
			derefString(row.InstallDate),
			strconv.FormatFloat(row.Quantity, 'f', -1, 64),
			strconv.FormatFloat(row.Confidence, 'f', -1, 64),
			row.Resolution,
			intField(row.MatchedProductID),
			derefString(row.MatchedProductName),
			floatField(row.MatchConfidence),
			derefString(row.MatchReason),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
