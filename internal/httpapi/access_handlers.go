package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/WestonJN/venueaccess/internal/access"
	"github.com/WestonJN/venueaccess/internal/accesslog"
	"github.com/WestonJN/venueaccess/internal/audit"
	"github.com/WestonJN/venueaccess/internal/obs"
	"github.com/WestonJN/venueaccess/internal/stream"
)

type scanRequest struct {
	Payload string `json:"payload"`
}

type grantRequest struct {
	PersonID string `json:"person_id"`
}

type listLogResponse struct {
	Items []accesslog.Entry `json:"items"`
	Total int               `json:"total"`
	AsOf  time.Time         `json:"as_of"`
}

func (a *API) resolveScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Payload) == "" {
		writeError(w, r, http.StatusBadRequest, "payload is required")
		return
	}

	claim := a.engine.DecodeScan(req.Payload)
	result, err := a.engine.ResolveScan(r.Context(), claim)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.publishDecision(result)
	obs.ObserveDecision(string(result.Verdict), accesslog.MethodScan)
	_ = audit.LogEvent(r.Context(), "access.scan_resolved", map[string]any{
		"person_id": result.Entry.PersonID,
		"verdict":   string(result.Verdict),
		"degraded":  claim.Degraded,
	})

	writeJSON(w, http.StatusOK, result)
}

func (a *API) grantManual(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	personID := strings.TrimSpace(req.PersonID)
	if personID == "" {
		writeError(w, r, http.StatusBadRequest, "person_id is required")
		return
	}

	result, err := a.engine.GrantManual(r.Context(), personID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.publishDecision(result)
	obs.ObserveDecision(string(result.Verdict), accesslog.MethodManual)
	_ = audit.LogEvent(r.Context(), "access.manual_grant", map[string]any{
		"person_id": personID,
	})

	writeJSON(w, http.StatusOK, result)
}

func (a *API) listLog(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, err := a.log.List(r.Context(), limit)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	total, err := a.log.Count(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listLogResponse{
		Items: items,
		Total: total,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) clearLog(w http.ResponseWriter, r *http.Request) {
	if err := a.log.Clear(r.Context()); err != nil {
		handleStoreError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "access.log_cleared", nil)

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) publishDecision(result access.Result) {
	if a.stream == nil {
		return
	}
	a.stream.Publish(stream.DecisionEvent{
		PersonID:   result.Entry.PersonID,
		PersonName: result.Entry.PersonName,
		Verdict:    string(result.Verdict),
		Method:     result.Entry.Method,
		Timestamp:  result.Entry.Timestamp,
	})
}
