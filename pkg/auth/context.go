package auth

import (
	"context"
	"encoding/json"

	lambctx "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
)

// AuthContext is the immutable, per-request permission snapshot produced
// once by Builder.Build. It is never cached across requests and never
// mutated after construction; every downstream component that needs to
// know who is asking reads it, rather than re-decoding the bearer token.
type AuthContext struct {
	User             CreatorUser
	TokenClaims      map[string]any
	IsSystemAdmin    bool
	Organization     Organization
	OrganizationRole string
	IsOrgAdmin       bool
	Features         map[string]bool

	assistants AssistantAccessor
	kb         KBAccessor
}

// ToMap renders the context the way the legacy pipeline expects it when
// handed to prompt processors and tools that still read a dict-shaped
// auth payload (see DESIGN NOTES on the dict-passing legacy surface).
func (a *AuthContext) ToMap() map[string]any {
	return map[string]any{
		"email":            a.User.Email,
		"role":             a.effectiveRole(),
		"is_system_admin":  a.IsSystemAdmin,
		"organization_role": a.OrganizationRole,
		"is_org_admin":     a.IsOrgAdmin,
		"organization":     a.Organization.Slug,
		"features":         a.Features,
	}
}

func (a *AuthContext) effectiveRole() string {
	if a.IsSystemAdmin {
		return "admin"
	}
	return a.User.Role
}

// CanAccessAssistant implements the access ladder from the AuthContext
// contract: owner beats system-admin beats org-admin-same-org beats
// explicit share beats same-organization-for-usage beats none.
func (a *AuthContext) CanAccessAssistant(ctx context.Context, assistantID int64) (AccessLevel, error) {
	ownerEmail, found, err := a.assistants.OwnerEmail(ctx, assistantID)
	if err != nil {
		return AccessNone, err
	}
	if !found {
		return AccessNone, nil
	}
	if ownerEmail == a.User.Email {
		return AccessOwner, nil
	}
	if a.IsSystemAdmin {
		return AccessOrgAdmin, nil
	}

	orgID, hasOrg, err := a.assistants.OrganizationID(ctx, assistantID)
	if err != nil {
		return AccessNone, err
	}
	sameOrg := hasOrg && a.Organization.ID != 0 && orgID == a.Organization.ID

	if a.IsOrgAdmin && sameOrg {
		return AccessOrgAdmin, nil
	}

	shared, err := a.assistants.IsSharedWith(ctx, assistantID, a.User.Email)
	if err != nil {
		return AccessNone, err
	}
	if shared {
		return AccessShared, nil
	}

	if sameOrg {
		published, err := a.assistants.IsPublished(ctx, assistantID)
		if err != nil {
			return AccessNone, err
		}
		if published {
			return AccessShared, nil
		}
	}

	return AccessNone, nil
}

// CanModifyAssistant reports whether the caller may edit or delete the
// assistant: only the owner, or a system admin, may.
func (a *AuthContext) CanModifyAssistant(ctx context.Context, assistantID int64) (bool, error) {
	level, err := a.CanAccessAssistant(ctx, assistantID)
	if err != nil {
		return false, err
	}
	return level == AccessOwner || a.IsSystemAdmin, nil
}

// CanAccessKB consults the knowledge-base access table; a system admin
// always resolves to owner-level access.
func (a *AuthContext) CanAccessKB(ctx context.Context, kbID int64) (AccessLevel, error) {
	if a.IsSystemAdmin {
		return AccessOwner, nil
	}
	return a.kb.AccessLevel(ctx, kbID, a.User.Email)
}

// RequireSystemAdmin fails with PermissionDenied unless the caller is a
// system admin.
func (a *AuthContext) RequireSystemAdmin() error {
	if !a.IsSystemAdmin {
		return lambctx.New(lambctx.PermissionDenied, "system admin required")
	}
	return nil
}

// RequireOrgAdmin fails with PermissionDenied unless the caller is an
// organization admin (or system admin, who always qualifies).
func (a *AuthContext) RequireOrgAdmin() error {
	if !a.IsOrgAdmin && !a.IsSystemAdmin {
		return lambctx.New(lambctx.PermissionDenied, "organization admin required")
	}
	return nil
}

// RequireAssistantAccess fails with NotFound (never PermissionDenied) so
// that an unauthorized caller cannot distinguish "does not exist" from
// "exists but you may not see it".
func (a *AuthContext) RequireAssistantAccess(ctx context.Context, assistantID int64) (AccessLevel, error) {
	level, err := a.CanAccessAssistant(ctx, assistantID)
	if err != nil {
		return AccessNone, err
	}
	if level == AccessNone {
		return AccessNone, lambctx.New(lambctx.NotFound, "assistant not found")
	}
	return level, nil
}

// RequireAssistantModify fails with NotFound if the caller cannot see the
// assistant at all, and PermissionDenied if they can see it but may not
// modify it — existence is revealed only once access of any level is
// already established.
func (a *AuthContext) RequireAssistantModify(ctx context.Context, assistantID int64) error {
	level, err := a.RequireAssistantAccess(ctx, assistantID)
	if err != nil {
		return err
	}
	if level != AccessOwner && !a.IsSystemAdmin {
		return lambctx.New(lambctx.PermissionDenied, "insufficient permissions to modify assistant")
	}
	return nil
}

// RequireKBAccess fails with NotFound if the caller has no access to the
// knowledge base collection.
func (a *AuthContext) RequireKBAccess(ctx context.Context, kbID int64) (AccessLevel, error) {
	level, err := a.CanAccessKB(ctx, kbID)
	if err != nil {
		return AccessNone, err
	}
	if level == AccessNone {
		return AccessNone, lambctx.New(lambctx.NotFound, "knowledge base not found")
	}
	return level, nil
}

// DecodeOrganizationConfig tolerates the organization config column being
// stored either as a JSON object, or as a JSON string that itself
// contains a JSON object (a quirk inherited from the original storage
// layer). It always returns a map, defaulting to empty.
func DecodeOrganizationConfig(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}

	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return asMap
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var nested map[string]any
		if err := json.Unmarshal([]byte(asString), &nested); err == nil {
			return nested
		}
	}

	return map[string]any{}
}

// extractFeatures pulls the "features" section out of a decoded
// organization config, tolerating both {"features": ["x","y"]} and
// {"features": {"x": true, "y": false}} shapes.
func extractFeatures(config map[string]any) map[string]bool {
	features := map[string]bool{}

	raw, ok := config["features"]
	if !ok {
		return features
	}

	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if name, ok := item.(string); ok {
				features[name] = true
			}
		}
	case map[string]any:
		for name, enabled := range v {
			switch e := enabled.(type) {
			case bool:
				features[name] = e
			case string:
				features[name] = e == "true" || e == "enabled"
			default:
				features[name] = true
			}
		}
	}

	return features
}
