package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/lox/hoteldash/internal/analytics"
	"github.com/lox/hoteldash/internal/ingest"
)

var exportContentTypes = map[string]string{
	ingest.FormatCSV:  "text/csv; charset=utf-8",
	ingest.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// handleExport streams the filtered rows, sorted by date, as a download.
func (s *Server) handleExport(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, _, sel, ok := s.selection(w, r)
		if !ok {
			return
		}
		_, rows := analytics.Build(table, sel)

		var buf bytes.Buffer
		var err error
		switch format {
		case ingest.FormatXLSX:
			err = ingest.EncodeXLSX(&buf, rows)
		default:
			err = ingest.EncodeCSV(&buf, rows)
		}
		if err != nil {
			writeError(w, fmt.Errorf("export %s: %w", format, err))
			return
		}

		w.Header().Set("Content-Type", exportContentTypes[format])
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="hotel_prices.%s"`, format))
		w.Write(buf.Bytes())
	}
}
