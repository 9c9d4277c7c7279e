package auth

import "context"

// CreatorUser is the subset of the creator-user record the auth builder
// needs. pkg/store's implementation carries more columns; only what the
// builder reads is declared here to avoid a dependency cycle between
// pkg/auth and pkg/store.
type CreatorUser struct {
	Email   string
	Role    string
	Enabled bool
}

// Organization is the subset of organization data the builder and the
// resolver need. Config is kept as raw JSON because the source data is
// "string-or-map tolerant": some rows store a JSON string, others a
// native JSON object, in the same column.
type Organization struct {
	ID       int64
	Slug     string
	IsSystem bool
	Config   []byte
}

// UserStore resolves creator users by email.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*CreatorUser, error)
}

// OrganizationStore resolves organization membership for a user.
type OrganizationStore interface {
	// GetOrganizationForUser returns the organization a user belongs to.
	// A nil organization (no error) means the user has no organization on
	// record; the builder treats that as logged, not fatal.
	GetOrganizationForUser(ctx context.Context, email string) (*Organization, error)

	// GetOrganizationRole returns the user's role within orgID ("owner",
	// "admin", "member", ...), or "" if the user has no membership row.
	GetOrganizationRole(ctx context.Context, email string, orgID int64) (string, error)
}

// AccessLevel is the result of a resource-access predicate.
type AccessLevel string

const (
	AccessOwner    AccessLevel = "owner"
	AccessOrgAdmin AccessLevel = "org_admin"
	AccessShared   AccessLevel = "shared"
	AccessNone     AccessLevel = "none"
)

// AssistantAccessor answers the ownership/sharing questions AuthContext's
// assistant predicates need. Implemented directly by *store.Store; kept as
// a narrow interface here so pkg/auth never imports the assistant or store
// packages.
type AssistantAccessor interface {
	// OwnerEmail returns the email of the assistant's owning creator user.
	OwnerEmail(ctx context.Context, assistantID int64) (string, bool, error)
	// OrganizationID returns the organization the assistant belongs to.
	OrganizationID(ctx context.Context, assistantID int64) (int64, bool, error)
	// IsSharedWith reports whether the assistant has an explicit share
	// record naming this email.
	IsSharedWith(ctx context.Context, assistantID int64, email string) (bool, error)
	// IsPublished reports whether the assistant is visible to same-
	// organization members for usage (not modification).
	IsPublished(ctx context.Context, assistantID int64) (bool, error)
}

// KBAccessor answers knowledge-base access questions the same way
// AssistantAccessor answers assistant ones.
type KBAccessor interface {
	AccessLevel(ctx context.Context, kbID int64, email string) (AccessLevel, error)
}
