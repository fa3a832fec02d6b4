package auth

import (
	"context"
	"slices"
	"strings"
)

type operatorIDKey struct{}
type rolesKey struct{}

// ContextWithOperator stores the authenticated operator identity in the context.
func ContextWithOperator(ctx context.Context, operatorID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, operatorIDKey{}, strings.TrimSpace(operatorID))
	if roles = dedupeRoles(roles); len(roles) > 0 {
		ctx = context.WithValue(ctx, rolesKey{}, roles)
	}
	return ctx
}

// OperatorIDFromContext extracts the authenticated operator ID from context.
func OperatorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(operatorIDKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// RolesFromContext returns a copy of the roles stored in context, already
// deduplicated and lower-cased.
func RolesFromContext(ctx context.Context) []string {
	roles, ok := ctx.Value(rolesKey{}).([]string)
	if !ok || len(roles) == 0 {
		return nil
	}
	return slices.Clone(roles)
}

// HasRole reports whether the context carries the given role.
func HasRole(ctx context.Context, role string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return false
	}
	return slices.Contains(RolesFromContext(ctx), role)
}
