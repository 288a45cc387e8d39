package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"emargement/models"
)

var (
	ErrMissingToken     = errors.New("missing token")
	ErrInvalidToken     = errors.New("invalid token")
	ErrUnknownIdentity  = errors.New("unknown identity")
	ErrRoleMismatch     = errors.New("role not permitted")
	ErrStoreUnavailable = errors.New("identity store unavailable")
)

// UserLookup resolves a token subject to its live account.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	AuthDecision(ctx context.Context, outcome string)
}

// Authorizer turns an Authorization header into a role-checked Principal.
type Authorizer struct {
	tokens  *TokenService
	users   UserLookup
	metrics DecisionRecorder
}

// NewAuthorizer wires token verification to the user store. rec may be nil.
func NewAuthorizer(tokens *TokenService, users UserLookup, rec DecisionRecorder) *Authorizer {
	return &Authorizer{tokens: tokens, users: users, metrics: rec}
}

// Authorize verifies the token in header, loads the identity it names and, if
// roles are given, requires the stored role to be one of them. The role in the
// token is never trusted. With no roles any authenticated user passes.
func (a *Authorizer) Authorize(ctx context.Context, header string, roles ...models.Role) (*Principal, error) {
	p, err := a.authorize(ctx, header, roles)
	if a.metrics != nil {
		a.metrics.AuthDecision(ctx, Outcome(err))
	}
	return p, err
}

func (a *Authorizer) authorize(ctx context.Context, header string, roles []models.Role) (*Principal, error) {
	raw := bearerToken(header)
	if raw == "" {
		return nil, ErrMissingToken
	}
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	u, err := a.users.GetByID(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if u == nil {
		return nil, ErrUnknownIdentity
	}
	if len(roles) > 0 && !hasRole(u.Role, roles) {
		return nil, ErrRoleMismatch
	}
	return &Principal{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}, nil
}

// Outcome names the decision for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "allowed"
	case errors.Is(err, ErrMissingToken):
		return "missing_token"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUnknownIdentity):
		return "unknown_identity"
	case errors.Is(err, ErrRoleMismatch):
		return "role_mismatch"
	default:
		return "store_error"
	}
}

// bearerToken accepts both a raw token and the "Bearer <token>" form.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return header
}

func hasRole(role models.Role, allowed []models.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
