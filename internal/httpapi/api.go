// Package httpapi is the HTTP surface of the venue access service:
// roster management, scan resolution, the access log, bulk import and
// the live scan feed.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/WestonJN/venueaccess/internal/access"
	"github.com/WestonJN/venueaccess/internal/accesslog"
	"github.com/WestonJN/venueaccess/internal/obs"
	"github.com/WestonJN/venueaccess/internal/roster"
	"github.com/WestonJN/venueaccess/internal/stream"
)

// ReadyProbe checks readiness, pinging the database when one is wired.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	roster roster.Store
	log    accesslog.Store
	engine *access.Engine
	stream *stream.Stream

	rateBurst    int
	ratePerSec   float64
	maxBodyBytes int64
}

func New(rp ReadyProbe, version string, rs roster.Store, ls accesslog.Store, eng *access.Engine, st *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,

		roster: rs,
		log:    ls,
		engine: eng,
		stream: st,

		rateBurst:    100,
		ratePerSec:   50,
		maxBodyBytes: 4 << 20,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// operator tokens
	a.mux.HandleFunc("POST /v1/auth/token", a.handleAuthToken)

	// roster
	a.mux.HandleFunc("POST /v1/people", a.createPerson)
	a.mux.HandleFunc("GET /v1/people", a.listPeople)
	a.mux.HandleFunc("GET /v1/people/{id}", a.getPerson)
	a.mux.HandleFunc("PATCH /v1/people/{id}", a.updatePerson)
	a.mux.HandleFunc("DELETE /v1/people/{id}", a.deletePerson)
	a.mux.HandleFunc("POST /v1/people/{id}/access", a.toggleAccess)
	a.mux.HandleFunc("GET /v1/roster/export", a.exportRoster)
	a.mux.HandleFunc("GET /v1/roster/stats", a.rosterStats)

	// decisions
	a.mux.HandleFunc("POST /v1/scans", a.resolveScan)
	a.mux.HandleFunc("POST /v1/grants", a.grantManual)
	a.mux.HandleFunc("GET /v1/scans/stream", a.Stream)

	// access log
	a.mux.HandleFunc("GET /v1/log", a.listLog)
	a.mux.Handle("DELETE /v1/log", RequireRole("admin")(http.HandlerFunc(a.clearLog)))

	// bulk import
	a.mux.HandleFunc("POST /v1/import", a.importRows)
	a.mux.HandleFunc("POST /v1/import/csv", a.importCSV)
	a.mux.HandleFunc("GET /v1/import/template", a.importTemplate)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Tune overrides the middleware limits. Call before Handler.
func (a *API) Tune(rateBurst int, ratePerSec float64, maxBodyBytes int64) {
	if rateBurst > 0 {
		a.rateBurst = rateBurst
	}
	if ratePerSec > 0 {
		a.ratePerSec = ratePerSec
	}
	if maxBodyBytes > 0 {
		a.maxBodyBytes = maxBodyBytes
	}
}

// Handler wraps the mux in the full middleware chain.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "venueaccess-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "venueaccess-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// decodeJSON reads a request body using the same cap as the MaxBodyBytes
// middleware, so bulk imports sized by VENUE_MAX_BODY_BYTES decode whole.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, a.maxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *roster.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, verr.Error())
	case errors.Is(err, roster.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, access.ErrAccessNotPermitted):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}

// refreshRosterGauge recomputes the roster size gauges after a
// mutation. Failures are ignored; the gauges self-heal on the next
// successful refresh.
func (a *API) refreshRosterGauge(ctx context.Context) {
	records, err := a.roster.List(ctx)
	if err != nil {
		return
	}
	stats := roster.Tally(records)
	obs.SetRosterSize(stats.WithAccess, stats.WithoutAccess)
}
