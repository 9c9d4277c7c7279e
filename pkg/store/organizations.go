package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lamb-project/lamb-core/pkg/auth"
)

// GetOrganizationForUser implements auth.OrganizationStore. A user with no
// organization membership row returns (nil, nil) — the builder logs a
// warning and continues with a zero-value Organization (spec §4.1), it
// does not fail the request.
func (s *Store) GetOrganizationForUser(ctx context.Context, email string) (*auth.Organization, error) {
	row := s.queryRow(ctx, `
SELECT o.id, o.slug, o.is_system, o.config
FROM organizations o
JOIN organization_roles r ON r.org_id = o.id
WHERE r.email = ?
LIMIT 1`, email)

	var org auth.Organization
	var config string
	if err := row.Scan(&org.ID, &org.Slug, &org.IsSystem, &config); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query organization for %q: %w", email, err)
	}
	org.Config = []byte(config)
	return &org, nil
}

// GetSystemOrganization returns the single root organization (is_system =
// true), used by pkg/orgconfig as the fallback when an assistant owner has
// no organization on record (spec §4.2: "the resolver behaves as though
// the system organization were the owner").
func (s *Store) GetSystemOrganization(ctx context.Context) (*auth.Organization, error) {
	row := s.queryRow(ctx, `SELECT id, slug, is_system, config FROM organizations WHERE is_system = true LIMIT 1`)

	var org auth.Organization
	var config string
	if err := row.Scan(&org.ID, &org.Slug, &org.IsSystem, &config); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query system organization: %w", err)
	}
	org.Config = []byte(config)
	return &org, nil
}

// GetOrganizationRole implements auth.OrganizationStore.
func (s *Store) GetOrganizationRole(ctx context.Context, email string, orgID int64) (string, error) {
	row := s.queryRow(ctx, `SELECT role FROM organization_roles WHERE email = ? AND org_id = ?`, email, orgID)

	var role string
	if err := row.Scan(&role); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("query organization role for %q in org %d: %w", email, orgID, err)
	}
	return role, nil
}

// CreateOrganization inserts a new organization with raw JSON config.
func (s *Store) CreateOrganization(ctx context.Context, slug string, isSystem bool, config []byte) (int64, error) {
	if len(config) == 0 {
		config = []byte("{}")
	}
	res, err := s.exec(ctx,
		`INSERT INTO organizations (slug, is_system, config, created_at) VALUES (?, ?, ?, ?)`,
		slug, isSystem, string(config), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("create organization %q: %w", slug, err)
	}
	return res.LastInsertId()
}

// SetOrganizationRole upserts a user's role within an organization.
func (s *Store) SetOrganizationRole(ctx context.Context, email string, orgID int64, role string) error {
	_, err := s.exec(ctx, `DELETE FROM organization_roles WHERE email = ? AND org_id = ?`, email, orgID)
	if err != nil {
		return fmt.Errorf("clear organization role for %q: %w", email, err)
	}
	_, err = s.exec(ctx, `INSERT INTO organization_roles (email, org_id, role) VALUES (?, ?, ?)`, email, orgID, role)
	if err != nil {
		return fmt.Errorf("set organization role for %q: %w", email, err)
	}
	return nil
}

// UpdateOrganizationConfig replaces an organization's stored config blob,
// the mutation path the Organization Config Resolver's cache invalidation
// (spec §4.2) reacts to.
func (s *Store) UpdateOrganizationConfig(ctx context.Context, orgID int64, config []byte) error {
	_, err := s.exec(ctx, `UPDATE organizations SET config = ? WHERE id = ?`, string(config), orgID)
	if err != nil {
		return fmt.Errorf("update organization %d config: %w", orgID, err)
	}
	return nil
}
