// Package audit emits structured records of every mutating operation so the
// venue has a trail of who changed the roster and who cleared the scan log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/WestonJN/venueaccess/internal/auth"
	"github.com/WestonJN/venueaccess/internal/obs"
)

type requestIDKey struct{}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LogEvent writes one audit record as a JSON line. The request id and
// operator id are taken from the context when present, so handlers only
// supply the event name and its domain fields.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"type":   "audit",
		"event":  event,
		"fields": map[string]any{},
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if operatorID, ok := auth.OperatorIDFromContext(ctx); ok {
		entry["operator_id"] = operatorID
	}
	if len(fields) > 0 {
		entry["fields"] = maps.Clone(fields)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(line))
	return nil
}
