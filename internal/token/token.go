// Package token serializes identity claims to and from the transport
// string carried by a scannable code. Claims are structured identity
// assertions, not credentials: nothing here is signed, and any party
// able to craft the payload can present any id.
package token

import (
	"encoding/json"
	"strings"
	"time"
)

// Claim is the decoded form of a scanned token.
type Claim struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	MintedAt time.Time `json:"minted_at"`

	// Degraded marks a claim recovered from a payload that did not parse
	// as a structured token. The raw payload is carried in ID so the
	// caller can still attempt a roster lookup by value.
	Degraded bool `json:"-"`
}

type wireClaim struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MintedAt string `json:"minted_at"`
}

// Mint encodes an identity claim for the given person. It performs no
// uniqueness check; the roster store owns id uniqueness.
func Mint(id, name string, mintedAt time.Time) string {
	data, err := json.Marshal(wireClaim{
		ID:       id,
		Name:     name,
		MintedAt: mintedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		// Marshalling a struct of strings cannot fail; keep the
		// signature honest for callers anyway.
		return ""
	}
	return string(data)
}

// Decode parses a transport string back into a Claim. Malformed
// payloads never fail: they degrade to a claim whose ID is the raw
// payload, so non-conforming scan sources still resolve to an
// "unknown person" decision instead of aborting the flow.
func Decode(payload string) Claim {
	var wire wireClaim
	if err := json.Unmarshal([]byte(payload), &wire); err != nil || strings.TrimSpace(wire.ID) == "" {
		return Claim{
			ID:       payload,
			Name:     "Unknown",
			MintedAt: time.Now().UTC(),
			Degraded: true,
		}
	}

	claim := Claim{ID: wire.ID, Name: wire.Name}
	if ts, err := parseTimestamp(wire.MintedAt); err == nil {
		claim.MintedAt = ts
	}
	return claim
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
