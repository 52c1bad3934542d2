package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lox/hoteldash/internal/models"
)

// Column names every snapshot file must carry.
const (
	ColName        = "name"
	ColNights      = "nights"
	ColPersons     = "persons"
	ColPrice       = "price"
	ColReviewScore = "review_score"
	ColDistance    = "distance"
	ColPriceDate   = "price_date"
)

var requiredColumns = []string{ColName, ColNights, ColPersons, ColPrice, ColReviewScore, ColDistance, ColPriceDate}

var (
	ErrEmptyFile       = errors.New("file has no header row")
	ErrMissingColumns  = errors.New("missing required columns")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// parseFile decodes the contents of one snapshot file. The format is chosen
// by the file extension.
func parseFile(path string, data []byte) ([]models.RawRecord, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSVRows(data)
	case ".xlsx":
		rows, err = readXLSXRows(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return rowsToRecords(rows, ScrapeTimeFromName(path), path)
}

func readCSVRows(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readXLSXRows reads the first sheet as raw cell values, so numbers arrive
// unformatted. Date-typed price_date cells hold a serial number and are
// rewritten as ISO dates; text cells are left for the day-first parser.
func readXLSXRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return rows, nil
	}

	col := -1
	for i, h := range rows[0] {
		if strings.ToLower(strings.TrimSpace(h)) == ColPriceDate {
			col = i
			break
		}
	}
	if col < 0 {
		return rows, nil
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	for _, row := range rows[1:] {
		if col < len(row) {
			row[col] = serialToISODate(row[col], date1904)
		}
	}
	return rows, nil
}

// serialToISODate converts an Excel date serial to YYYY-MM-DD. Values that
// are not a positive number are returned unchanged.
func serialToISODate(v string, date1904 bool) string {
	serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || serial <= 0 {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return v
	}
	return t.Format("2006-01-02")
}

// rowsToRecords maps a header row plus data rows onto raw records. Extra
// columns are ignored; short rows (trailing empty xlsx cells) read as empty.
func rowsToRecords(rows [][]string, st models.ScrapeTime, source string) ([]models.RawRecord, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	cell := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]models.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		records = append(records, models.RawRecord{
			Name:        cell(row, ColName),
			Nights:      cell(row, ColNights),
			Persons:     cell(row, ColPersons),
			Price:       cell(row, ColPrice),
			ReviewScore: cell(row, ColReviewScore),
			Distance:    cell(row, ColDistance),
			PriceDate:   cell(row, ColPriceDate),
			ScrapeTime:  st,
			SourceFile:  source,
		})
	}
	return records, nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
