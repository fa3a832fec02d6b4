package csvio

import (
	"bytes"
	"strings"
	"testing"
)

func TestDecodeNormalizesHeaders(t *testing.T) {
	input := "Full Name,Email Address,Phone Number,Access Granted\n" +
		"Ada Lovelace,ada@example.com,+44 20 7946,yes\n" +
		"Bob,, ,no\n"

	rows, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Name != "Ada Lovelace" || rows[0].Email != "ada@example.com" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if !rows[0].HasAccess.Present() || !rows[0].HasAccess.Value() {
		t.Fatal("'yes' should parse as granted")
	}
	if rows[1].HasAccess.Value() {
		t.Fatal("'no' should parse as denied")
	}
}

func TestDecodeIgnoresUnknownColumns(t *testing.T) {
	input := "badge,name,notes\n" +
		"B-1,Carol,likes jazz\n"

	rows, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Name != "Carol" {
		t.Fatalf("unexpected name: %q", rows[0].Name)
	}
	if rows[0].Email != "" || rows[0].Phone != "" {
		t.Fatalf("unknown columns leaked into row: %+v", rows[0])
	}
	if rows[0].HasAccess.Present() {
		t.Fatal("missing access column should read as absent")
	}
}

func TestDecodeShortRows(t *testing.T) {
	input := "name,email,phone,has_access\n" +
		"Solo\n"

	rows, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Name != "Solo" || rows[0].Email != "" {
		t.Fatalf("short row not padded: %+v", rows[0])
	}
}

func TestDecodeRejectsUnusableInput(t *testing.T) {
	if _, err := Decode(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty file")
	}
	if _, err := Decode(strings.NewReader("foo,bar\n1,2\n")); err == nil {
		t.Fatal("expected error when no column is recognized")
	}
}

func TestTemplateRoundTrips(t *testing.T) {
	rows, err := Decode(bytes.NewReader(Template()))
	if err != nil {
		t.Fatalf("template should decode through our own reader: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 sample rows, got %d", len(rows))
	}
	if rows[0].Name != "John Doe" {
		t.Fatalf("unexpected sample row: %+v", rows[0])
	}
	if rows[2].HasAccess.Value() {
		t.Fatal("third sample row should be a denied example")
	}
}
