package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lamb-project/lamb-core/pkg/auth"
)

// GetUserByEmail implements auth.UserStore. A missing row is reported as
// (nil, nil): the builder treats "no such user" as Unauthenticated, not as
// a store-layer error.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.CreatorUser, error) {
	row := s.queryRow(ctx, `SELECT email, role, enabled FROM creator_users WHERE email = ?`, email)

	var u auth.CreatorUser
	if err := row.Scan(&u.Email, &u.Role, &u.Enabled); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query creator user %q: %w", email, err)
	}
	return &u, nil
}

// CreateUser inserts a new creator user, defaulting to enabled/"user".
func (s *Store) CreateUser(ctx context.Context, email, role string) error {
	if role == "" {
		role = "user"
	}
	_, err := s.exec(ctx,
		`INSERT INTO creator_users (email, role, enabled, created_at) VALUES (?, ?, true, ?)`,
		email, role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create creator user %q: %w", email, err)
	}
	return nil
}

// SetEnabled flips the disabled flag used by AuthContext's AccountDisabled
// check (spec §4.1, testable property 8).
func (s *Store) SetEnabled(ctx context.Context, email string, enabled bool) error {
	res, err := s.exec(ctx, `UPDATE creator_users SET enabled = ? WHERE email = ?`, enabled, email)
	if err != nil {
		return fmt.Errorf("set enabled for %q: %w", email, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set enabled for %q: %w", email, err)
	}
	if n == 0 {
		return fmt.Errorf("no such creator user %q", email)
	}
	return nil
}
