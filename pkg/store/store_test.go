package store

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/auth"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := OpenDB(db, "sqlite")
	require.NoError(t, err)
	return s
}

func TestUsers_CreateAndGetByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, "alice@example.com", "admin"))

	u, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "admin", u.Role)
	require.True(t, u.Enabled)
}

func TestUsers_GetByEmail_MissingReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	u, err := s.GetUserByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestUsers_SetEnabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, "bob@example.com", "user"))

	require.NoError(t, s.SetEnabled(ctx, "bob@example.com", false))

	u, err := s.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.False(t, u.Enabled)
}

func TestUsers_SetEnabled_UnknownUserErrors(t *testing.T) {
	s := newTestStore(t)
	err := s.SetEnabled(context.Background(), "ghost@example.com", true)
	require.Error(t, err)
}

func TestOrganizations_CreateAndResolveForUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	orgID, err := s.CreateOrganization(ctx, "acme", false, []byte(`{"features":["rag_enabled"]}`))
	require.NoError(t, err)

	require.NoError(t, s.SetOrganizationRole(ctx, "carol@example.com", orgID, "owner"))

	org, err := s.GetOrganizationForUser(ctx, "carol@example.com")
	require.NoError(t, err)
	require.NotNil(t, org)
	require.Equal(t, "acme", org.Slug)

	role, err := s.GetOrganizationRole(ctx, "carol@example.com", orgID)
	require.NoError(t, err)
	require.Equal(t, "owner", role)
}

func TestOrganizations_GetOrganizationForUser_NoneIsNilNotError(t *testing.T) {
	s := newTestStore(t)
	org, err := s.GetOrganizationForUser(context.Background(), "solo@example.com")
	require.NoError(t, err)
	require.Nil(t, org)
}

func TestAssistants_OwnershipAndSharing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	orgID, err := s.CreateOrganization(ctx, "acme", false, nil)
	require.NoError(t, err)

	id, err := s.CreateAssistant(ctx, "owner@example.com", orgID, "tutor", nil)
	require.NoError(t, err)

	email, ok, err := s.OwnerEmail(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "owner@example.com", email)

	shared, err := s.IsSharedWith(ctx, id, "other@example.com")
	require.NoError(t, err)
	require.False(t, shared)

	require.NoError(t, s.ShareAssistant(ctx, id, "other@example.com"))

	shared, err = s.IsSharedWith(ctx, id, "other@example.com")
	require.NoError(t, err)
	require.True(t, shared)

	published, err := s.IsPublished(ctx, id)
	require.NoError(t, err)
	require.False(t, published)

	require.NoError(t, s.SetPublished(ctx, id, true))
	published, err = s.IsPublished(ctx, id)
	require.NoError(t, err)
	require.True(t, published)
}

func TestAssistants_OwnerEmail_UnknownAssistant(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.OwnerEmail(context.Background(), 9999)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKnowledgeBases_AccessLevel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	orgID, err := s.CreateOrganization(ctx, "acme", false, nil)
	require.NoError(t, err)

	kbID, err := s.CreateKnowledgeBase(ctx, "owner@example.com", orgID, "docs")
	require.NoError(t, err)

	level, err := s.AccessLevel(ctx, kbID, "owner@example.com")
	require.NoError(t, err)
	require.Equal(t, auth.AccessOwner, level)

	level, err = s.AccessLevel(ctx, kbID, "stranger@example.com")
	require.NoError(t, err)
	require.Equal(t, auth.AccessNone, level)

	require.NoError(t, s.ShareKnowledgeBase(ctx, kbID, "stranger@example.com"))
	level, err = s.AccessLevel(ctx, kbID, "stranger@example.com")
	require.NoError(t, err)
	require.Equal(t, auth.AccessShared, level)
}

func TestChats_CreateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	orgID, err := s.CreateOrganization(ctx, "acme", false, nil)
	require.NoError(t, err)
	assistantID, err := s.CreateAssistant(ctx, "owner@example.com", orgID, "tutor", nil)
	require.NoError(t, err)

	require.NoError(t, s.CreateChatIfNotExists(ctx, "chat-1", "owner@example.com", assistantID, "Hello"))
	require.NoError(t, s.CreateChatIfNotExists(ctx, "chat-1", "owner@example.com", assistantID, "Different title"))

	chat, err := s.GetChat(ctx, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, chat)
	require.Equal(t, "Hello", chat.Title) // second insert was ignored
}

func TestChats_UpdateHistoryAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	orgID, err := s.CreateOrganization(ctx, "acme", false, nil)
	require.NoError(t, err)
	assistantID, err := s.CreateAssistant(ctx, "owner@example.com", orgID, "tutor", nil)
	require.NoError(t, err)

	require.NoError(t, s.CreateChatIfNotExists(ctx, "chat-2", "owner@example.com", assistantID, "Hi"))
	require.NoError(t, s.UpdateChatHistory(ctx, "chat-2", []byte(`{"messages":[{"role":"user","content":"hi"}]}`)))

	chats, err := s.ListChatsForOwner(ctx, "owner@example.com")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Contains(t, string(chats[0].History), "hi")
}
