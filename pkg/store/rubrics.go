package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RubricRow is the persisted form of an assessment rubric (spec §12
// supplemented feature, grounded on completions/rag/rubric_rag.py). The
// criteria column holds the same JSON shape pkg/tools/rubricrag.Criterion
// decodes, kept here as raw bytes so this package has no dependency on a
// tools subpackage.
type RubricRow struct {
	ID          string
	OwnerEmail  string
	Title       string
	Description string
	Criteria    []byte // JSON-encoded []rubricrag.Criterion
	CreatedAt   time.Time
}

// CreateRubric inserts a new rubric owned by ownerEmail and returns its id.
func (s *Store) CreateRubric(ctx context.Context, ownerEmail, title, description string, criteriaJSON []byte) (string, error) {
	id := uuid.NewString()
	_, err := s.exec(ctx,
		`INSERT INTO rubrics (id, owner_email, title, description, criteria, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, ownerEmail, title, description, criteriaJSON, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("create rubric: %w", err)
	}
	return id, nil
}

// GetRubricByID loads a rubric, restricted to its owner (rubrics are not
// shared or published the way assistants and knowledge bases are).
func (s *Store) GetRubricByID(ctx context.Context, rubricID, ownerEmail string) (*RubricRow, error) {
	row := s.queryRow(ctx,
		`SELECT id, owner_email, title, description, criteria, created_at FROM rubrics WHERE id = ? AND owner_email = ?`,
		rubricID, ownerEmail,
	)
	var r RubricRow
	if err := row.Scan(&r.ID, &r.OwnerEmail, &r.Title, &r.Description, &r.Criteria, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query rubric %s: %w", rubricID, err)
	}
	return &r, nil
}
