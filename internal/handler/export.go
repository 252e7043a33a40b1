package handler

import (
	"net/http"
	"strings"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// GetExport handles GET /export.
// It returns every request as CSV by default; ?format=json returns the same
// rows as objects keyed by column name.
func (s *Server) GetExport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.export.Export(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, exportObjects(rows))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+domain.ExportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(EncodeCSV(rows)))
}

// EncodeCSV renders the bare header line, then the rows with every field
// double-quoted and inner quotes doubled. Lines are joined by "\n" with no
// trailing newline.
func EncodeCSV(rows []domain.ExportRow) string {
	var b strings.Builder
	b.WriteString(strings.Join(domain.ExportColumns, ","))
	for _, row := range rows {
		b.WriteByte('\n')
		writeCSVLine(&b, row.Fields())
	}
	return b.String()
}

func writeCSVLine(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
}

func exportObjects(rows []domain.ExportRow) []map[string]string {
	out := make([]map[string]string, len(rows))
	for i, row := range rows {
		m := make(map[string]string, len(domain.ExportColumns))
		for j, v := range row.Fields() {
			m[domain.ExportColumns[j]] = v
		}
		out[i] = m
	}
	return out
}
