// Package persistence implements the chat persistence hook (spec §4.8):
// resolving or creating a chat row for an exchange, appending the turn
// to its JSON history document, and the supplemented chat listing
// feature (SPEC_FULL.md §12 item 4) built on top of pkg/store's chat
// repository.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lamb-project/lamb-core/pkg/auth"
	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/store"
)

const maxTitleRunes = 50

// Message is one turn in a chat's history document (spec §4.8 step 3).
type Message struct {
	ID          string   `json:"id"`
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Timestamp   int64    `json:"timestamp"`
	ParentID    string   `json:"parentId"`
	ChildrenIDs []string `json:"childrenIds"`
}

// historyDocument is the OWI-compatible chat document shape spec §3
// specifies: "history.messages is a mapping from message id to
// {id, role, content, timestamp, parentId, childrenIds}" — a JSON object
// keyed by message id, not an array (original_source confirms: the
// Python service iterates `messages_raw.values()`).
type historyDocument struct {
	Messages map[string]Message `json:"messages"`
}

// Store is the subset of pkg/store.Store the persistence hook needs.
// Narrowed to an interface so this package can be tested against a fake
// without a real database.
type Store interface {
	CreateChatIfNotExists(ctx context.Context, id, ownerEmail string, assistantID int64, title string) error
	GetChat(ctx context.Context, id string) (*store.ChatRow, error)
	UpdateChatHistory(ctx context.Context, id string, history []byte) error
	ListChatsForOwner(ctx context.Context, ownerEmail string) ([]*store.ChatRow, error)
}

// ChatSummary is a lightweight view of a chat for listing, without its
// full history document (SPEC_FULL.md §12 item 4).
type ChatSummary struct {
	ID          string
	AssistantID int64
	Title       string
	UpdatedAt   time.Time
}

// Hook is the chat persistence hook.
type Hook struct {
	store Store
}

// New builds a persistence hook over the given store.
func New(s Store) *Hook {
	return &Hook{store: s}
}

// AppendTurn records one message turn for an exchange (spec §4.8). When
// chatID is empty a chat is created: a UUIDv4 id, an auto-generated title
// from the turn's content, and an empty history document. Returns the
// chat id used, generated if chatID was empty, so the caller can report
// it back to the client.
func (h *Hook) AppendTurn(ctx context.Context, ac *auth.AuthContext, chatID string, assistantID int64, role, content, parentID string) (string, error) {
	if chatID != "" {
		if err := h.checkAccess(ctx, ac, chatID, assistantID); err != nil {
			return "", err
		}
	} else {
		chatID = uuid.NewString()
		if err := h.store.CreateChatIfNotExists(ctx, chatID, ac.User.Email, assistantID, autoTitle(content)); err != nil {
			return "", lambcoreerrors.Wrap(lambcoreerrors.Internal, "create chat", err)
		}
	}

	row, err := h.store.GetChat(ctx, chatID)
	if err != nil {
		return "", lambcoreerrors.Wrap(lambcoreerrors.Internal, "load chat", err)
	}
	if row == nil {
		return "", lambcoreerrors.New(lambcoreerrors.NotFound, "chat not found")
	}

	doc, err := decodeHistory(row.History)
	if err != nil {
		return "", lambcoreerrors.Wrap(lambcoreerrors.Internal, "decode chat history", err)
	}

	if doc.Messages == nil {
		doc.Messages = make(map[string]Message, 1)
	}
	msgID := uuid.NewString()
	doc.Messages[msgID] = Message{
		ID:          msgID,
		Role:        role,
		Content:     content,
		Timestamp:   time.Now().Unix(),
		ParentID:    parentID,
		ChildrenIDs: []string{},
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", lambcoreerrors.Wrap(lambcoreerrors.Internal, "encode chat history", err)
	}
	if err := h.store.UpdateChatHistory(ctx, chatID, encoded); err != nil {
		return "", lambcoreerrors.Wrap(lambcoreerrors.Internal, "update chat history", err)
	}
	return chatID, nil
}

// checkAccess validates that the caller owns the chat or has access to
// the assistant the caller claims it belongs to, failing with NotFound
// either way (never PermissionDenied) so a prober cannot distinguish
// "not yours" from "doesn't exist" (spec §4.8 step 1).
func (h *Hook) checkAccess(ctx context.Context, ac *auth.AuthContext, chatID string, assistantID int64) error {
	row, err := h.store.GetChat(ctx, chatID)
	if err != nil {
		return lambcoreerrors.Wrap(lambcoreerrors.Internal, "load chat", err)
	}
	if row != nil && row.OwnerEmail == ac.User.Email {
		return nil
	}
	if _, err := ac.RequireAssistantAccess(ctx, assistantID); err != nil {
		return lambcoreerrors.New(lambcoreerrors.NotFound, "chat not found")
	}
	if row == nil {
		return lambcoreerrors.New(lambcoreerrors.NotFound, "chat not found")
	}
	return nil
}

// GetChat loads one chat's row and its messages, ascending by timestamp,
// enforcing the same ownership-or-assistant-access rule as AppendTurn.
func (h *Hook) GetChat(ctx context.Context, ac *auth.AuthContext, chatID string) (*store.ChatRow, []Message, error) {
	row, err := h.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, nil, lambcoreerrors.Wrap(lambcoreerrors.Internal, "load chat", err)
	}
	if row == nil {
		return nil, nil, lambcoreerrors.New(lambcoreerrors.NotFound, "chat not found")
	}
	if row.OwnerEmail != ac.User.Email {
		if _, err := ac.RequireAssistantAccess(ctx, row.AssistantID); err != nil {
			return nil, nil, lambcoreerrors.New(lambcoreerrors.NotFound, "chat not found")
		}
	}

	doc, err := decodeHistory(row.History)
	if err != nil {
		return nil, nil, lambcoreerrors.Wrap(lambcoreerrors.Internal, "decode chat history", err)
	}
	messages := messagesSortedByTimestamp(doc.Messages)
	return row, messages, nil
}

// ListChats lists an owner's chats newest-first (SPEC_FULL.md §12 item 4).
func (h *Hook) ListChats(ctx context.Context, ownerEmail string) ([]ChatSummary, error) {
	rows, err := h.store.ListChatsForOwner(ctx, ownerEmail)
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.Internal, "list chats", err)
	}
	out := make([]ChatSummary, len(rows))
	for i, r := range rows {
		out[i] = ChatSummary{ID: r.ID, AssistantID: r.AssistantID, Title: r.Title, UpdatedAt: r.UpdatedAt}
	}
	return out, nil
}

// messagesSortedByTimestamp flattens the id-keyed history document into
// the reader-facing ascending-by-timestamp order (spec §4.8 step 4); a
// zero (missing) timestamp sorts first.
func messagesSortedByTimestamp(byID map[string]Message) []Message {
	out := make([]Message, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

func decodeHistory(raw []byte) (historyDocument, error) {
	if len(raw) == 0 {
		return historyDocument{}, nil
	}
	var doc historyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return historyDocument{}, fmt.Errorf("unmarshal chat history: %w", err)
	}
	return doc, nil
}

// autoTitle derives a chat title from its first user message, truncated
// to maxTitleRunes, falling back to a timestamped default when the
// message has no usable text (spec §4.8 step 2).
func autoTitle(firstMessage string) string {
	trimmed := strings.TrimSpace(firstMessage)
	if trimmed == "" {
		return fmt.Sprintf("Chat %s", time.Now().UTC().Format("2006-01-02 15:04"))
	}
	runes := []rune(trimmed)
	if len(runes) > maxTitleRunes {
		return string(runes[:maxTitleRunes])
	}
	return trimmed
}
