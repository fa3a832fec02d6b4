package httpapi

import (
	"net/http"

	"github.com/WestonJN/venueaccess/internal/audit"
	"github.com/WestonJN/venueaccess/internal/csvio"
	"github.com/WestonJN/venueaccess/internal/obs"
	"github.com/WestonJN/venueaccess/internal/reconcile"
)

type importRequest struct {
	Rows []reconcile.RawRow `json:"rows"`
}

func (a *API) importRows(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, r, http.StatusBadRequest, "rows are required")
		return
	}

	a.runImport(w, r, req.Rows)
}

// importCSV accepts a raw CSV body, typically piped straight from a
// spreadsheet export.
func (a *API) importCSV(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	rows, err := csvio.Decode(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	a.runImport(w, r, rows)
}

func (a *API) importTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="roster-import-template.csv"`)
	_, _ = w.Write(csvio.Template())
}

func (a *API) runImport(w http.ResponseWriter, r *http.Request, rows []reconcile.RawRow) {
	report, err := reconcile.Run(r.Context(), a.roster, rows)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	obs.CountImportRows("added", len(report.Added))
	obs.CountImportRows("skipped", len(report.Skipped))
	obs.CountImportRows("invalid", report.Invalid)
	a.refreshRosterGauge(r.Context())

	_ = audit.LogEvent(r.Context(), "roster.import_completed", map[string]any{
		"total":   report.Total,
		"valid":   report.Valid,
		"invalid": report.Invalid,
		"added":   len(report.Added),
		"skipped": len(report.Skipped),
	})

	writeJSON(w, http.StatusOK, report)
}
