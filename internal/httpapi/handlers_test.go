package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/WestonJN/venueaccess/internal/access"
	"github.com/WestonJN/venueaccess/internal/accesslog"
	"github.com/WestonJN/venueaccess/internal/auth"
	"github.com/WestonJN/venueaccess/internal/roster"
	"github.com/WestonJN/venueaccess/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

const testOperatorKey = "front-desk-key"

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("VENUE_AUTH_SECRET", "test-secret")
	t.Setenv("VENUE_OPERATOR_KEY", testOperatorKey)
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	rs := roster.NewInMemory()
	ls := accesslog.NewInMemory()
	api := New(ReadyProbe{}, "test", rs, ls, access.New(rs, ls), stream.New())
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) obtainToken(operator string, roles []string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"operator": operator,
		"key":      testOperatorKey,
		"roles":    roles,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func (c *apiClient) authHeader(roles ...string) map[string]string {
	c.t.Helper()
	if len(roles) == 0 {
		roles = []string{"operator"}
	}
	return map[string]string{"Authorization": "Bearer " + c.obtainToken("op-test", roles)}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestScanFlow(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	// Register a person; the response carries the minted token.
	resp := api.post("/v1/people", map[string]any{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
	}, hdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Header.Get("Location") == "" {
		t.Fatal("expected Location header")
	}
	person := decode[roster.PersonRecord](t, resp)
	if person.Token == "" {
		t.Fatal("expected minted token")
	}

	// Scanning the minted token admits the person.
	resp = api.post("/v1/scans", map[string]any{"payload": person.Token}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	result := decode[access.Result](t, resp)
	if result.Verdict != access.VerdictGranted {
		t.Fatalf("expected granted, got %s", result.Verdict)
	}
	if result.Person == nil || result.Person.LastAccessAt == nil {
		t.Fatal("expected last access stamp")
	}

	// The decision lands in the log.
	resp = api.get("/v1/log", nil, hdr)
	logPage := decode[listLogResponse](t, resp)
	if logPage.Total != 1 || len(logPage.Items) != 1 {
		t.Fatalf("expected one log entry, got %d", logPage.Total)
	}
	if logPage.Items[0].PersonID != person.ID || !logPage.Items[0].Granted {
		t.Fatalf("unexpected entry: %+v", logPage.Items[0])
	}
}

func TestScanDeniedWithoutPermission(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	resp := api.post("/v1/people", map[string]any{
		"name":       "Grace Hopper",
		"has_access": false,
	}, hdr)
	person := decode[roster.PersonRecord](t, resp)

	resp = api.post("/v1/scans", map[string]any{"payload": person.Token}, hdr)
	result := decode[access.Result](t, resp)
	if result.Verdict != access.VerdictDenied {
		t.Fatalf("expected denied, got %s", result.Verdict)
	}
	if result.Person == nil || result.Person.LastAccessAt != nil {
		t.Fatal("denied scan must not stamp last access")
	}
}

func TestScanUnknownPayload(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	resp := api.post("/v1/scans", map[string]any{"payload": "garbled-qr-text"}, hdr)
	result := decode[access.Result](t, resp)
	if result.Verdict != access.VerdictUnknown {
		t.Fatalf("expected unknown, got %s", result.Verdict)
	}
	if result.Entry.PersonID != "garbled-qr-text" {
		t.Fatalf("entry must keep the raw payload as id, got %q", result.Entry.PersonID)
	}
}

func TestManualGrant(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	resp := api.post("/v1/people", map[string]any{"name": "Joan Clarke"}, hdr)
	person := decode[roster.PersonRecord](t, resp)

	resp = api.post("/v1/grants", map[string]any{"person_id": person.ID}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	result := decode[access.Result](t, resp)
	if result.Verdict != access.VerdictGranted || result.Entry.Method != accesslog.MethodManual {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestManualGrantConflicts(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	resp := api.post("/v1/people", map[string]any{
		"name":       "Revoked Person",
		"has_access": false,
	}, hdr)
	person := decode[roster.PersonRecord](t, resp)

	resp = api.post("/v1/grants", map[string]any{"person_id": person.ID}, hdr)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/grants", map[string]any{"person_id": "missing"}, hdr)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	// A rejected grant leaves no trace in the log.
	resp = api.get("/v1/log", nil, hdr)
	logPage := decode[listLogResponse](t, resp)
	if logPage.Total != 0 {
		t.Fatalf("expected empty log, got %d entries", logPage.Total)
	}
}

func TestPersonLifecycle(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	resp := api.post("/v1/people", map[string]any{"name": "Alan Turing"}, hdr)
	person := decode[roster.PersonRecord](t, resp)

	// Rename; the token must survive the update.
	newName := "Alan M. Turing"
	resp = api.do(http.MethodPatch, "/v1/people/"+person.ID, map[string]any{"name": newName}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	updated := decode[roster.PersonRecord](t, resp)
	if updated.Name != newName || updated.Token != person.Token {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	// Toggle access off.
	resp = api.post("/v1/people/"+person.ID+"/access", nil, hdr)
	toggled := decode[roster.PersonRecord](t, resp)
	if toggled.HasAccess {
		t.Fatal("expected access off after toggle")
	}

	// Delete twice; both converge on 204.
	for i := 0; i < 2; i++ {
		resp = api.do(http.MethodDelete, "/v1/people/"+person.ID, nil, hdr)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("expected 204 on delete %d, got %d", i+1, resp.StatusCode)
		}
	}

	resp = api.get("/v1/people/"+person.ID, nil, hdr)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestListPeopleSearch(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	for _, name := range []string{"Ada Lovelace", "Grace Hopper"} {
		resp := api.post("/v1/people", map[string]any{"name": name}, hdr)
		resp.Body.Close()
	}

	resp := api.get("/v1/people", url.Values{"q": []string{"ada"}}, hdr)
	page := decode[listPeopleResponse](t, resp)
	if page.Total != 1 || page.Items[0].Name != "Ada Lovelace" {
		t.Fatalf("unexpected search result: %+v", page)
	}
}

func TestImportFlow(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	resp := api.post("/v1/people", map[string]any{"name": "Existing Member"}, hdr)
	resp.Body.Close()

	resp = api.post("/v1/import", map[string]any{
		"rows": []map[string]any{
			{"name": "Existing Member"},
			{"name": "Fresh Face", "email": "fresh@example.com"},
			{"name": "", "email": "orphan@example.com"},
			{"name": "Bad Email", "email": "not-an-email"},
		},
	}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	report := decode[map[string]any](t, resp)
	if report["valid"].(float64) != 2 || report["invalid"].(float64) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report["added"].([]any)) != 1 || len(report["skipped"].([]any)) != 1 {
		t.Fatalf("unexpected merge outcome: %+v", report)
	}
	errs := report["errors"].([]any)
	if len(errs) != 2 || !strings.Contains(errs[0].(string), "row 3") {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestImportCSVAndTemplate(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	resp := api.get("/v1/import/template", nil, hdr)
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if resp.Header.Get("Content-Disposition") == "" {
		t.Fatal("expected attachment disposition")
	}

	csv := "Full Name,Email Address,Phone,Has Access\nNora Night,nora@example.com,555-0100,yes\n"
	req, err := http.NewRequest(http.MethodPost, api.baseURL+"/v1/import/csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "text/csv")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	csvResp, err := api.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	report := decode[map[string]any](t, csvResp)
	if len(report["added"].([]any)) != 1 {
		t.Fatalf("expected one person added, got %+v", report)
	}
}

func TestExportRoster(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	resp := api.post("/v1/people", map[string]any{"name": "Export Me"}, hdr)
	resp.Body.Close()

	resp = api.get("/v1/roster/export", nil, hdr)
	if resp.Header.Get("Content-Disposition") == "" {
		t.Fatal("expected attachment disposition")
	}
	records := decode[[]roster.ExportRecord](t, resp)
	if len(records) != 1 || records[0].Name != "Export Me" {
		t.Fatalf("unexpected export: %+v", records)
	}
	if records[0].CreatedAt == "" {
		t.Fatal("expected formatted created_at")
	}
}

func TestRosterStats(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	resp := api.post("/v1/people", map[string]any{"name": "A"}, hdr)
	resp.Body.Close()
	resp = api.post("/v1/people", map[string]any{"name": "B", "has_access": false}, hdr)
	resp.Body.Close()

	resp = api.get("/v1/roster/stats", nil, hdr)
	stats := decode[roster.Stats](t, resp)
	if stats.Total != 2 || stats.WithAccess != 1 || stats.WithoutAccess != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestClearLogRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	resp := api.do(http.MethodDelete, "/v1/log", nil, hdr)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.StatusCode)
	}

	admin := api.authHeader("admin")
	resp = api.do(http.MethodDelete, "/v1/log", nil, admin)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for admin, got %d", resp.StatusCode)
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/people", map[string]any{"name": "No Auth"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var errBody map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestTokenEndpointValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/token", map[string]any{"operator": ""}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestTokenEndpointRequiresOperatorKey(t *testing.T) {
	api := newTestAPI(t)

	// Without the configured key nobody mints a token, admin or not.
	for _, key := range []string{"", "guessed-key"} {
		resp := api.post("/v1/auth/token", map[string]any{
			"operator": "stranger",
			"key":      key,
			"roles":    []string{"admin"},
		}, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("key %q: expected 401, got %d", key, resp.StatusCode)
		}
	}

	// The admin-gated log wipe stays out of reach for the anonymous caller.
	resp := api.do(http.MethodDelete, "/v1/log", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.StatusCode)
	}

	// The right key still works end to end.
	admin := api.authHeader("admin")
	resp = api.do(http.MethodDelete, "/v1/log", nil, admin)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 with the configured key, got %d", resp.StatusCode)
	}
}

func TestImportAcceptsLargeBatch(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.authHeader()

	// A roster-sized batch pushes the request body past one megabyte;
	// the import must still decode under the configured body cap.
	pad := strings.Repeat("x", 400)
	rows := make([]map[string]any, 3000)
	for i := range rows {
		rows[i] = map[string]any{"name": fmt.Sprintf("Guest %06d %s", i, pad)}
	}

	resp := api.post("/v1/import", map[string]any{"rows": rows}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	report := decode[map[string]any](t, resp)
	if report["valid"].(float64) != 3000 {
		t.Fatalf("unexpected report: valid=%v invalid=%v", report["valid"], report["invalid"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := api.get(path, nil, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unexpected status for %s: %d", path, resp.StatusCode)
		}
	}
}
