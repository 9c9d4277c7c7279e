package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// OwnerEmail implements auth.AssistantAccessor.
func (s *Store) OwnerEmail(ctx context.Context, assistantID int64) (string, bool, error) {
	row := s.queryRow(ctx, `SELECT owner_email FROM assistants WHERE id = ?`, assistantID)
	var email string
	if err := row.Scan(&email); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query owner of assistant %d: %w", assistantID, err)
	}
	return email, true, nil
}

// OrganizationID implements auth.AssistantAccessor.
func (s *Store) OrganizationID(ctx context.Context, assistantID int64) (int64, bool, error) {
	row := s.queryRow(ctx, `SELECT org_id FROM assistants WHERE id = ?`, assistantID)
	var orgID int64
	if err := row.Scan(&orgID); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("query org of assistant %d: %w", assistantID, err)
	}
	return orgID, true, nil
}

// IsSharedWith implements auth.AssistantAccessor.
func (s *Store) IsSharedWith(ctx context.Context, assistantID int64, email string) (bool, error) {
	row := s.queryRow(ctx, `SELECT 1 FROM assistant_shares WHERE assistant_id = ? AND email = ?`, assistantID, email)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("query share of assistant %d for %q: %w", assistantID, email, err)
	}
	return true, nil
}

// IsPublished implements auth.AssistantAccessor.
func (s *Store) IsPublished(ctx context.Context, assistantID int64) (bool, error) {
	row := s.queryRow(ctx, `SELECT published FROM assistants WHERE id = ?`, assistantID)
	var published bool
	if err := row.Scan(&published); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("query published flag of assistant %d: %w", assistantID, err)
	}
	return published, nil
}

// AssistantRow is the persisted shape of an assistant row. pkg/assistant
// wraps this with the domain-level Assistant/Metadata types.
type AssistantRow struct {
	ID             int64
	OwnerEmail     string
	OrgID          int64
	Name           string
	Description    string
	SystemPrompt   string
	PromptTemplate string
	RAGCollections []string
	RAGTopK        int
	Published      bool
	Metadata       []byte // JSON-encoded assistant.Metadata
	CreatedAt      time.Time
}

// NewAssistantParams groups the fields CreateAssistant needs beyond the
// identifying (owner, org, name) triple.
type NewAssistantParams struct {
	Description    string
	SystemPrompt   string
	PromptTemplate string
	RAGCollections []string
	RAGTopK        int
	Metadata       []byte
}

// CreateAssistant inserts a new assistant row and returns its id.
func (s *Store) CreateAssistant(ctx context.Context, ownerEmail string, orgID int64, name string, params *NewAssistantParams) (int64, error) {
	if params == nil {
		params = &NewAssistantParams{}
	}
	metadata := params.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	ragCollections, err := json.Marshal(params.RAGCollections)
	if err != nil {
		return 0, fmt.Errorf("encode rag collections for assistant %q: %w", name, err)
	}

	res, err := s.exec(ctx, `
INSERT INTO assistants (owner_email, org_id, name, description, system_prompt, prompt_template, rag_collections, rag_top_k, published, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, false, ?, ?)`,
		ownerEmail, orgID, name, params.Description, params.SystemPrompt, params.PromptTemplate,
		string(ragCollections), params.RAGTopK, string(metadata), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("create assistant %q for %q: %w", name, ownerEmail, err)
	}
	return res.LastInsertId()
}

func scanAssistantRow(scan func(dest ...any) error) (*AssistantRow, error) {
	var a AssistantRow
	var metadata, ragCollections string
	if err := scan(&a.ID, &a.OwnerEmail, &a.OrgID, &a.Name, &a.Description, &a.SystemPrompt,
		&a.PromptTemplate, &ragCollections, &a.RAGTopK, &a.Published, &metadata, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Metadata = []byte(metadata)
	if ragCollections != "" {
		if err := json.Unmarshal([]byte(ragCollections), &a.RAGCollections); err != nil {
			return nil, fmt.Errorf("decode rag collections for assistant %d: %w", a.ID, err)
		}
	}
	return &a, nil
}

const assistantColumns = `id, owner_email, org_id, name, description, system_prompt, prompt_template, rag_collections, rag_top_k, published, metadata, created_at`

// GetAssistant loads a single assistant row by id.
func (s *Store) GetAssistant(ctx context.Context, id int64) (*AssistantRow, error) {
	row := s.queryRow(ctx, `SELECT `+assistantColumns+` FROM assistants WHERE id = ?`, id)

	a, err := scanAssistantRow(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query assistant %d: %w", id, err)
	}
	return a, nil
}

// SetPublished flips an assistant's published flag.
func (s *Store) SetPublished(ctx context.Context, id int64, published bool) error {
	_, err := s.exec(ctx, `UPDATE assistants SET published = ? WHERE id = ?`, published, id)
	if err != nil {
		return fmt.Errorf("set published for assistant %d: %w", id, err)
	}
	return nil
}

// UpdateAssistantMetadata replaces an assistant's metadata blob (the
// pipeline declaration pkg/assistant decodes).
func (s *Store) UpdateAssistantMetadata(ctx context.Context, id int64, metadata []byte) error {
	_, err := s.exec(ctx, `UPDATE assistants SET metadata = ? WHERE id = ?`, string(metadata), id)
	if err != nil {
		return fmt.Errorf("update metadata for assistant %d: %w", id, err)
	}
	return nil
}

// ShareAssistant records an explicit share grant.
func (s *Store) ShareAssistant(ctx context.Context, id int64, email string) error {
	_, err := s.exec(ctx, `INSERT INTO assistant_shares (assistant_id, email) VALUES (?, ?)`, id, email)
	if err != nil {
		return fmt.Errorf("share assistant %d with %q: %w", id, email, err)
	}
	return nil
}

// ExistsByName reports whether an assistant with this (owner, name) pair
// already exists, used by pkg/assistant.SanitizeWithDuplicateCheck.
func (s *Store) ExistsByName(ctx context.Context, ownerEmail, name string) (bool, error) {
	row := s.queryRow(ctx, `SELECT 1 FROM assistants WHERE owner_email = ? AND name = ?`, ownerEmail, name)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check assistant name %q for %q: %w", name, ownerEmail, err)
	}
	return true, nil
}

// ListAssistantsForOrg lists every assistant in an organization, newest
// first. It applies no owner, share or published filter.
func (s *Store) ListAssistantsForOrg(ctx context.Context, orgID int64) ([]*AssistantRow, error) {
	rows, err := s.query(ctx, `SELECT `+assistantColumns+` FROM assistants WHERE org_id = ? ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list assistants for org %d: %w", orgID, err)
	}
	defer rows.Close()

	var out []*AssistantRow
	for rows.Next() {
		a, err := scanAssistantRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan assistant row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
