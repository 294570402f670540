package v1

import (
	"context"

	"github.com/filedepot/filedepot/pkg/security"
)

const (
	TOKEN_CONTEXT_KEY = "__depot.access_token"
	LANGUAGE_KEY      = "__depot.accept_language"
	TENANT_KEY        = "__depot.tenant"
)

// InjectTokenClaim get user token claims from context
func InjectTokenClaim(ctx context.Context) (security.TokenClaims, bool) {
	val, ok := ctx.Value(TOKEN_CONTEXT_KEY).(security.TokenClaims)
	return val, ok
}

func InjectTenantID(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(TENANT_KEY).(string)
	return val, ok
}

func InjectLanguage(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(LANGUAGE_KEY).(string)
	return val, ok
}
