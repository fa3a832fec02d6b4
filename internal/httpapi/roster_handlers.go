package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/WestonJN/venueaccess/internal/audit"
	"github.com/WestonJN/venueaccess/internal/obs"
	"github.com/WestonJN/venueaccess/internal/roster"
)

type createPersonRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	HasAccess *bool  `json:"has_access"`
}

type updatePersonRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	HasAccess *bool   `json:"has_access"`
}

type listPeopleResponse struct {
	Items []roster.PersonRecord `json:"items"`
	Total int                   `json:"total"`
	AsOf  time.Time             `json:"as_of"`
}

func (a *API) createPerson(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// New entries default to having access unless explicitly revoked.
	hasAccess := true
	if req.HasAccess != nil {
		hasAccess = *req.HasAccess
	}

	person, err := a.roster.Create(r.Context(), roster.Candidate{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		HasAccess: hasAccess,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.refreshRosterGauge(r.Context())
	_ = audit.LogEvent(r.Context(), "roster.person_created", map[string]any{
		"person_id":  person.ID,
		"has_access": person.HasAccess,
	})

	w.Header().Set("Location", "/v1/people/"+person.ID)
	writeJSON(w, http.StatusCreated, person)
}

func (a *API) listPeople(w http.ResponseWriter, r *http.Request) {
	records, err := a.roster.List(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		filtered := records[:0]
		for _, p := range records {
			if roster.Match(p, q) {
				filtered = append(filtered, p)
			}
		}
		records = filtered
	}

	writeJSON(w, http.StatusOK, listPeopleResponse{
		Items: records,
		Total: len(records),
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) getPerson(w http.ResponseWriter, r *http.Request) {
	person, err := a.roster.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (a *API) updatePerson(w http.ResponseWriter, r *http.Request) {
	var req updatePersonRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	person, err := a.roster.Update(r.Context(), r.PathValue("id"), roster.Patch{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		HasAccess: req.HasAccess,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.refreshRosterGauge(r.Context())
	_ = audit.LogEvent(r.Context(), "roster.person_updated", map[string]any{
		"person_id": person.ID,
	})

	writeJSON(w, http.StatusOK, person)
}

func (a *API) deletePerson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.roster.Delete(r.Context(), id); err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.refreshRosterGauge(r.Context())
	_ = audit.LogEvent(r.Context(), "roster.person_deleted", map[string]any{
		"person_id": id,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) toggleAccess(w http.ResponseWriter, r *http.Request) {
	person, err := a.roster.ToggleAccess(r.Context(), r.PathValue("id"))
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.refreshRosterGauge(r.Context())
	_ = audit.LogEvent(r.Context(), "roster.access_toggled", map[string]any{
		"person_id":  person.ID,
		"has_access": person.HasAccess,
	})

	writeJSON(w, http.StatusOK, person)
}

func (a *API) exportRoster(w http.ResponseWriter, r *http.Request) {
	records, err := a.roster.List(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "roster.exported", map[string]any{
		"count": len(records),
	})

	w.Header().Set("Content-Disposition", `attachment; filename="roster-export.json"`)
	writeJSON(w, http.StatusOK, roster.Export(records))
}

func (a *API) rosterStats(w http.ResponseWriter, r *http.Request) {
	records, err := a.roster.List(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	stats := roster.Tally(records)
	obs.SetRosterSize(stats.WithAccess, stats.WithoutAccess)
	writeJSON(w, http.StatusOK, stats)
}
