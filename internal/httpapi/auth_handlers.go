package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/WestonJN/venueaccess/internal/audit"
	"github.com/WestonJN/venueaccess/internal/auth"
)

type tokenRequest struct {
	Operator string   `json:"operator"`
	Key      string   `json:"key"`
	Roles    []string `json:"roles"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	operator := strings.TrimSpace(req.Operator)
	if operator == "" {
		writeError(w, r, http.StatusBadRequest, "operator is required")
		return
	}
	if err := auth.VerifyOperatorKey(req.Key); err != nil {
		if errors.Is(err, auth.ErrInvalidOperatorKey) {
			writeError(w, r, http.StatusUnauthorized, "invalid operator key")
		} else {
			writeError(w, r, http.StatusInternalServerError, "token issuance unavailable")
		}
		return
	}
	roles := make([]string, 0, len(req.Roles))
	for _, role := range req.Roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		writeError(w, r, http.StatusBadRequest, "roles are required")
		return
	}

	token, err := auth.GenerateToken(operator, roles, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"operator":   operator,
		"roles":      roles,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
