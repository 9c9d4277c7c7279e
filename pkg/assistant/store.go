package assistant

import (
	"fmt"

	"github.com/lamb-project/lamb-core/pkg/store"
)

// FromRow decodes a store.AssistantRow's metadata blob and assembles the
// domain-level Assistant view pkg/orchestration and pkg/promptprocessor
// consume.
func FromRow(row *store.AssistantRow) (Assistant, error) {
	meta, err := DecodeMetadata(row.Metadata)
	if err != nil {
		return Assistant{}, fmt.Errorf("decode metadata for assistant %d: %w", row.ID, err)
	}
	return Assistant{
		ID:             row.ID,
		OwnerEmail:     row.OwnerEmail,
		OrganizationID: row.OrgID,
		Name:           row.Name,
		Description:    row.Description,
		SystemPrompt:   row.SystemPrompt,
		PromptTemplate: row.PromptTemplate,
		Metadata:       meta,
		RAGCollections: row.RAGCollections,
		RAGTopK:        row.RAGTopK,
		Published:      row.Published,
	}, nil
}
