package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/Maggerino21/ai-component-extractor/internal"
)

var (
	reWhitespaceRun = regexp.MustCompile(`\s+`)
	reCellSplit     = regexp.MustCompile(`\t+|\s{2,}`)
)

// ReadFile parses a document into sheets of raw positional rows. The
// format is picked by extension; header detection happens downstream.
func ReadFile(path string) ([]internal.Sheet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadBytes(filepath.Base(path), content)
}

func ReadBytes(name string, content []byte) ([]internal.Sheet, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return ReadXLSX(content)
	case ".pdf":
		return ReadPDF(content)
	case ".html", ".htm":
		return ReadHTML(content)
	case ".csv":
		return ReadCSV(name, content)
	default:
		return nil, fmt.Errorf("unsupported document type: %s", name)
	}
}

func ReadXLSX(content []byte) ([]internal.Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make([]internal.Sheet, 0)
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		sheet := internal.Sheet{Name: name}
		for i, row := range rows {
			cells := normalizeCells(row)
			if allEmpty(cells) {
				continue
			}
			sheet.Rows = append(sheet.Rows, internal.RawRow{Number: i + 1, Cells: cells})
		}
		if len(sheet.Rows) > 0 {
			out = append(out, sheet)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no readable sheets")
	}
	return out, nil
}

// ReadPDF extracts page text and splits lines into cells on tab runs or
// two-plus spaces, which is how tabular PDFs render columns.
func ReadPDF(content []byte) ([]internal.Sheet, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := make([]internal.Sheet, 0)
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sheet := internal.Sheet{Name: fmt.Sprintf("page-%d", i)}
		for n, line := range splitLines(text) {
			sheet.Rows = append(sheet.Rows, internal.RawRow{Number: n + 1, Cells: splitCells(line)})
		}
		if len(sheet.Rows) > 0 {
			out = append(out, sheet)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no text pages")
	}
	return out, nil
}

func ReadHTML(content []byte) ([]internal.Sheet, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	out := make([]internal.Sheet, 0)
	doc.Find("table").Each(func(tableIdx int, table *goquery.Selection) {
		sheet := internal.Sheet{Name: fmt.Sprintf("table-%d", tableIdx+1)}
		table.Find("tr").Each(func(rowIdx int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			if allEmpty(cells) {
				return
			}
			sheet.Rows = append(sheet.Rows, internal.RawRow{Number: rowIdx + 1, Cells: cells})
		})
		if len(sheet.Rows) > 0 {
			out = append(out, sheet)
		}
	})
	if len(out) == 0 {
		return nil, errors.New("no tables found")
	}
	return out, nil
}

// ReadCSV sniffs the delimiter from the first line; Norwegian exports
// usually use semicolons since comma is the decimal separator.
func ReadCSV(name string, content []byte) ([]internal.Sheet, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	head := content
	if idx := bytes.IndexByte(head, '\n'); idx >= 0 {
		head = head[:idx]
	}
	if bytes.Count(head, []byte(";")) > bytes.Count(head, []byte(",")) {
		reader.Comma = ';'
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	sheet := internal.Sheet{Name: strings.TrimSuffix(name, filepath.Ext(name))}
	for i, rec := range records {
		cells := normalizeCells(rec)
		if allEmpty(cells) {
			continue
		}
		sheet.Rows = append(sheet.Rows, internal.RawRow{Number: i + 1, Cells: cells})
	}
	if len(sheet.Rows) == 0 {
		return nil, errors.New("empty csv")
	}
	return []internal.Sheet{sheet}, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitCells(line string) []string {
	parts := reCellSplit.Split(line, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(reWhitespaceRun.ReplaceAllString(input, " "))
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, normalizeSpaces(c))
	}
	return out
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
