package auth

import (
	"context"
	"log/slog"

	lambctx "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
)

// Builder resolves a bearer token into an AuthContext. It is constructed
// once at process start with its dependencies injected (verifier chain,
// stores, accessors) and is safe for concurrent use by many requests; it
// holds no per-request state itself.
type Builder struct {
	verifiers  TokenVerifier
	users      UserStore
	orgs       OrganizationStore
	assistants AssistantAccessor
	kb         KBAccessor
	log        *slog.Logger
}

// NewBuilder wires a Builder from its dependencies.
func NewBuilder(verifiers TokenVerifier, users UserStore, orgs OrganizationStore, assistants AssistantAccessor, kb KBAccessor, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		verifiers:  verifiers,
		users:      users,
		orgs:       orgs,
		assistants: assistants,
		kb:         kb,
		log:        log,
	}
}

// Build runs the AuthContext algorithm: verify the token, resolve the
// creator user, reject disabled accounts, resolve organization and role,
// and decode feature flags.
func (b *Builder) Build(ctx context.Context, bearerToken string) (*AuthContext, error) {
	payload, err := b.verifiers.Verify(ctx, bearerToken)
	if err != nil {
		return nil, lambctx.Wrap(lambctx.Unauthenticated, "invalid or expired token", err)
	}

	user, err := b.users.GetUserByEmail(ctx, payload.Email)
	if err != nil {
		return nil, lambctx.Wrap(lambctx.Internal, "failed to resolve user", err)
	}
	if user == nil {
		return nil, lambctx.New(lambctx.Unauthenticated, "no account for this token")
	}
	if !user.Enabled {
		return nil, lambctx.New(lambctx.AccountDisabled, "account disabled")
	}

	effectiveRole := payload.Role
	if effectiveRole == "" {
		effectiveRole = user.Role
	}

	org, err := b.orgs.GetOrganizationForUser(ctx, user.Email)
	if err != nil {
		return nil, lambctx.Wrap(lambctx.Internal, "failed to resolve organization", err)
	}
	if org == nil {
		b.log.Warn("user has no organization on record", "email", user.Email)
		org = &Organization{}
	}

	orgRole := ""
	if org.ID != 0 {
		orgRole, err = b.orgs.GetOrganizationRole(ctx, user.Email, org.ID)
		if err != nil {
			return nil, lambctx.Wrap(lambctx.Internal, "failed to resolve organization role", err)
		}
	}

	config := DecodeOrganizationConfig(org.Config)

	authCtx := &AuthContext{
		User:             CreatorUser{Email: user.Email, Role: effectiveRole, Enabled: user.Enabled},
		TokenClaims:      payload.Raw,
		IsSystemAdmin:    effectiveRole == "admin",
		Organization:     *org,
		OrganizationRole: orgRole,
		IsOrgAdmin:       orgRole == "owner" || orgRole == "admin",
		Features:         extractFeatures(config),
		assistants:       b.assistants,
		kb:               b.kb,
	}

	return authCtx, nil
}
