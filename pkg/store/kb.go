package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lamb-project/lamb-core/pkg/auth"
)

// AccessLevel implements auth.KBAccessor, mirroring the same owner >
// explicit-share > same-org-published > none ladder CanAccessAssistant
// applies, since knowledge bases share the assistant sharing model (spec
// §4.1's CanAccessKB delegates here; system-admin short-circuit happens
// in pkg/auth, not here).
func (s *Store) AccessLevel(ctx context.Context, kbID int64, email string) (auth.AccessLevel, error) {
	row := s.queryRow(ctx, `SELECT owner_email, org_id, published FROM knowledge_bases WHERE id = ?`, kbID)

	var ownerEmail string
	var orgID int64
	var published bool
	if err := row.Scan(&ownerEmail, &orgID, &published); err != nil {
		if err == sql.ErrNoRows {
			return auth.AccessNone, nil
		}
		return auth.AccessNone, fmt.Errorf("query knowledge base %d: %w", kbID, err)
	}

	if ownerEmail == email {
		return auth.AccessOwner, nil
	}

	shareRow := s.queryRow(ctx, `SELECT 1 FROM kb_shares WHERE kb_id = ? AND email = ?`, kbID, email)
	var one int
	if err := shareRow.Scan(&one); err == nil {
		return auth.AccessShared, nil
	} else if err != sql.ErrNoRows {
		return auth.AccessNone, fmt.Errorf("query share of knowledge base %d for %q: %w", kbID, email, err)
	}

	if published {
		memberRow := s.queryRow(ctx, `SELECT 1 FROM organization_roles WHERE email = ? AND org_id = ?`, email, orgID)
		if err := memberRow.Scan(&one); err == nil {
			return auth.AccessShared, nil
		} else if err != sql.ErrNoRows {
			return auth.AccessNone, fmt.Errorf("query membership of %q in org %d: %w", email, orgID, err)
		}
	}
	return auth.AccessNone, nil
}

// CreateKnowledgeBase inserts a knowledge base row and returns its id.
func (s *Store) CreateKnowledgeBase(ctx context.Context, ownerEmail string, orgID int64, name string) (int64, error) {
	res, err := s.exec(ctx, `
INSERT INTO knowledge_bases (owner_email, org_id, name, published, created_at)
VALUES (?, ?, ?, false, CURRENT_TIMESTAMP)`, ownerEmail, orgID, name)
	if err != nil {
		return 0, fmt.Errorf("create knowledge base %q for %q: %w", name, ownerEmail, err)
	}
	return res.LastInsertId()
}

// ShareKnowledgeBase records an explicit share grant for a knowledge base.
func (s *Store) ShareKnowledgeBase(ctx context.Context, kbID int64, email string) error {
	_, err := s.exec(ctx, `INSERT INTO kb_shares (kb_id, email) VALUES (?, ?)`, kbID, email)
	if err != nil {
		return fmt.Errorf("share knowledge base %d with %q: %w", kbID, email, err)
	}
	return nil
}
