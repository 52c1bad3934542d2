package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/lox/hoteldash/internal/models"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// exportHeader starts with the loader's required columns so exported files
// can be fed straight back into Load.
var exportHeader = []string{
	ColName, ColNights, ColPersons, ColPrice, ColReviewScore, ColDistance, ColPriceDate,
	"scrape_time", "weekday",
}

func exportRow(rec models.Record) []string {
	raw := Denormalize(rec)
	return []string{
		raw.Name, raw.Nights, raw.Persons, raw.Price, raw.ReviewScore, raw.Distance, raw.PriceDate,
		string(rec.ScrapeTime), rec.Weekday.String,
	}
}

// EncodeCSV writes records as CSV with a header row.
func EncodeCSV(w io.Writer, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(exportRow(rec)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeXLSX writes records to a single-sheet workbook. Numeric fields are
// stored as numbers, everything else as text.
func EncodeXLSX(w io.Writer, records []models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, rec := range records {
		row := []interface{}{
			rec.HotelName,
			countCell(rec.Nights),
			countCell(rec.Persons),
			decimalCell(rec.Price.Float64, rec.Price.Valid),
			decimalCell(rec.ReviewScore.Float64, rec.ReviewScore.Valid),
			decimalCell(rec.Distance.Float64, rec.Distance.Valid),
			rec.PriceDateRaw,
			string(rec.ScrapeTime),
			rec.Weekday.String,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func countCell(n int) interface{} {
	if n == 0 {
		return ""
	}
	return n
}

func decimalCell(v float64, valid bool) interface{} {
	if !valid {
		return ""
	}
	return v
}

// ExportTable writes the table to dir, one file per scrape time, named so
// ScrapeTimeFromName recovers each file's scrape time. It returns the paths written.
func ExportTable(table *models.BaseTable, dir, prefix, format string) ([]string, error) {
	if format != FormatCSV && format != FormatXLSX {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, format)
	}
	if ScrapeTimeFromName(prefix) != models.ScrapeUnknown {
		return nil, fmt.Errorf("export prefix %q must not contain Mor or Eve", prefix)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	groups := make(map[models.ScrapeTime][]models.Record)
	for _, rec := range table.Records {
		groups[rec.ScrapeTime] = append(groups[rec.ScrapeTime], rec)
	}

	var written []string
	for _, st := range models.ScrapeTimes {
		records, ok := groups[st]
		if !ok {
			continue
		}
		path := filepath.Join(dir, exportName(prefix, st, format))
		if err := writeFile(path, records, format); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func exportName(prefix string, st models.ScrapeTime, format string) string {
	switch st {
	case models.ScrapeMorning:
		return prefix + "_Mor." + format
	case models.ScrapeEvening:
		return prefix + "_Eve." + format
	}
	return prefix + "." + format
}

func writeFile(path string, records []models.Record, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if format == FormatXLSX {
		err = EncodeXLSX(f, records)
	} else {
		err = EncodeCSV(f, records)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
