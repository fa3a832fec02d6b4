// Command smoke drives a running venueaccess-api through the core door
// flow: issue an operator token, register a person, scan the minted
// code and verify the grant landed in the access log.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

type tokenResponse struct {
	Token string `json:"token"`
}

type personResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type scanResponse struct {
	Verdict string `json:"verdict"`
}

type logResponse struct {
	Total int `json:"total"`
	Items []struct {
		PersonID string `json:"person_id"`
		Granted  bool   `json:"granted"`
	} `json:"items"`
}

func main() {
	base := os.Getenv("VENUE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 5 * time.Second}

	var tok tokenResponse
	call(client, base, "", http.MethodPost, "/v1/auth/token", map[string]any{
		"operator": "smoke",
		"key":      os.Getenv("VENUE_OPERATOR_KEY"),
		"roles":    []string{"admin"},
	}, &tok)

	var person personResponse
	call(client, base, tok.Token, http.MethodPost, "/v1/people", map[string]any{
		"name": fmt.Sprintf("Smoke Visitor %d", time.Now().Unix()),
	}, &person)
	if person.Token == "" {
		log.Fatal("no token minted for person")
	}

	var scan scanResponse
	call(client, base, tok.Token, http.MethodPost, "/v1/scans", map[string]any{
		"payload": person.Token,
	}, &scan)
	if scan.Verdict != "granted" {
		log.Fatalf("expected granted verdict, got %q", scan.Verdict)
	}

	var entries logResponse
	call(client, base, tok.Token, http.MethodGet, "/v1/log?limit=10", nil, &entries)
	found := false
	for _, item := range entries.Items {
		if item.PersonID == person.ID && item.Granted {
			found = true
			break
		}
	}
	if !found {
		log.Fatalf("grant for %s not found in access log", person.ID)
	}

	fmt.Printf("smoke test passed: person=%s verdict=%s\n", person.ID, scan.Verdict)
}

func call(client *http.Client, base, token, method, path string, body any, out any) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal %s body: %v", path, err)
		}
	}
	req, err := http.NewRequest(method, base+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("new request %s: %v", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Fatalf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s response: %v", path, err)
		}
	}
}
