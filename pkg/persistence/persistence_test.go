package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/auth"
	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/store"
)

type fakeUserStore struct{ users map[string]*auth.CreatorUser }

func (s *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*auth.CreatorUser, error) {
	return s.users[email], nil
}

type fakeOrgStore struct{}

func (fakeOrgStore) GetOrganizationForUser(context.Context, string) (*auth.Organization, error) {
	return nil, nil
}
func (fakeOrgStore) GetOrganizationRole(context.Context, string, int64) (string, error) { return "", nil }

type fakeAssistantAccessor struct {
	ownerByID map[int64]string
}

func (a fakeAssistantAccessor) OwnerEmail(_ context.Context, id int64) (string, bool, error) {
	owner, ok := a.ownerByID[id]
	return owner, ok, nil
}
func (a fakeAssistantAccessor) OrganizationID(context.Context, int64) (int64, bool, error) {
	return 0, false, nil
}
func (a fakeAssistantAccessor) IsSharedWith(context.Context, int64, string) (bool, error) {
	return false, nil
}
func (a fakeAssistantAccessor) IsPublished(context.Context, int64) (bool, error) { return false, nil }

type fakeKBAccessor struct{}

func (fakeKBAccessor) AccessLevel(context.Context, int64, string) (auth.AccessLevel, error) {
	return auth.AccessNone, nil
}

// newAuthContext builds a real *auth.AuthContext through the same
// Builder/NativeVerifier path pkg/auth's own tests use, so this package's
// tests never poke at AuthContext's unexported fields directly.
func newAuthContext(t *testing.T, email string, assistantOwners map[int64]string) *auth.AuthContext {
	t.Helper()
	native := auth.NewNativeVerifier([]byte("test-secret"))
	users := &fakeUserStore{users: map[string]*auth.CreatorUser{
		email: {Email: email, Role: "member", Enabled: true},
	}}
	builder := auth.NewBuilder(auth.NewVerifierChain(native), users, fakeOrgStore{}, fakeAssistantAccessor{ownerByID: assistantOwners}, fakeKBAccessor{}, nil)

	token, err := native.Sign("u1", email, "", time.Hour)
	require.NoError(t, err)

	ac, err := builder.Build(context.Background(), token)
	require.NoError(t, err)
	return ac
}

// fakeStore is an in-memory stand-in for pkg/store's chat repository.
type fakeStore struct {
	chats map[string]*store.ChatRow
}

func newFakeStore() *fakeStore { return &fakeStore{chats: map[string]*store.ChatRow{}} }

func (s *fakeStore) CreateChatIfNotExists(_ context.Context, id, ownerEmail string, assistantID int64, title string) error {
	if _, exists := s.chats[id]; exists {
		return nil
	}
	s.chats[id] = &store.ChatRow{
		ID: id, OwnerEmail: ownerEmail, AssistantID: assistantID, Title: title,
		History: []byte(`{"messages":{}}`), CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	return nil
}

func (s *fakeStore) GetChat(_ context.Context, id string) (*store.ChatRow, error) {
	return s.chats[id], nil
}

func (s *fakeStore) UpdateChatHistory(_ context.Context, id string, history []byte) error {
	row, ok := s.chats[id]
	if !ok {
		return nil
	}
	row.History = history
	row.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) ListChatsForOwner(_ context.Context, ownerEmail string) ([]*store.ChatRow, error) {
	var out []*store.ChatRow
	for _, row := range s.chats {
		if row.OwnerEmail == ownerEmail {
			out = append(out, row)
		}
	}
	return out, nil
}

func TestAppendTurn_CreatesChatWhenNoIDGiven(t *testing.T) {
	s := newFakeStore()
	h := New(s)
	ac := newAuthContext(t, "alice@example.com", nil)

	chatID, err := h.AppendTurn(context.Background(), ac, "", 7, "user", "what is the capital of France?", "")
	require.NoError(t, err)
	require.NotEmpty(t, chatID)

	row := s.chats[chatID]
	require.NotNil(t, row)
	require.Equal(t, "what is the capital of France?", row.Title)

	var doc historyDocument
	require.NoError(t, json.Unmarshal(row.History, &doc))
	require.Len(t, doc.Messages, 1)
	for _, m := range doc.Messages {
		require.Equal(t, "user", m.Role)
	}
}

func TestAppendTurn_AppendsToExistingChatOwnedByCaller(t *testing.T) {
	s := newFakeStore()
	h := New(s)
	ac := newAuthContext(t, "alice@example.com", nil)

	chatID, err := h.AppendTurn(context.Background(), ac, "", 7, "user", "hi", "")
	require.NoError(t, err)

	time.Sleep(time.Second) // message timestamps have one-second resolution
	_, err = h.AppendTurn(context.Background(), ac, chatID, 7, "assistant", "hello!", "")
	require.NoError(t, err)

	var doc historyDocument
	require.NoError(t, json.Unmarshal(s.chats[chatID].History, &doc))
	require.Len(t, doc.Messages, 2)
	ordered := messagesSortedByTimestamp(doc.Messages)
	require.Equal(t, "assistant", ordered[1].Role)
}

func TestAppendTurn_RejectsChatOwnedBySomeoneElseWithoutAssistantAccess(t *testing.T) {
	s := newFakeStore()
	h := New(s)
	owner := newAuthContext(t, "alice@example.com", nil)

	chatID, err := h.AppendTurn(context.Background(), owner, "", 7, "user", "hi", "")
	require.NoError(t, err)

	stranger := newAuthContext(t, "mallory@example.com", map[int64]string{7: "alice@example.com"})
	_, err = h.AppendTurn(context.Background(), stranger, chatID, 7, "user", "snoop", "")
	require.True(t, lambcoreerrors.Is(err, lambcoreerrors.NotFound))
}

func TestAppendTurn_UnknownChatIDReturnsNotFound(t *testing.T) {
	s := newFakeStore()
	h := New(s)
	ac := newAuthContext(t, "alice@example.com", map[int64]string{7: "alice@example.com"})

	_, err := h.AppendTurn(context.Background(), ac, "does-not-exist", 7, "user", "hi", "")
	require.True(t, lambcoreerrors.Is(err, lambcoreerrors.NotFound))
}

func TestGetChat_SortsMessagesAscendingByTimestamp(t *testing.T) {
	s := newFakeStore()
	ac := newAuthContext(t, "alice@example.com", nil)
	s.chats["chat-1"] = &store.ChatRow{
		ID: "chat-1", OwnerEmail: "alice@example.com",
		History: []byte(`{"messages":{"m2":{"id":"m2","role":"assistant","content":"second","timestamp":200},"m1":{"id":"m1","role":"user","content":"first","timestamp":100}}}`),
	}
	h := New(s)

	_, msgs, err := h.GetChat(context.Background(), ac, "chat-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "second", msgs[1].Content)
}

func TestListChats_FiltersToOwner(t *testing.T) {
	s := newFakeStore()
	s.chats["c1"] = &store.ChatRow{ID: "c1", OwnerEmail: "alice@example.com", Title: "A"}
	s.chats["c2"] = &store.ChatRow{ID: "c2", OwnerEmail: "bob@example.com", Title: "B"}
	h := New(s)

	chats, err := h.ListChats(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, "c1", chats[0].ID)
}

func TestAutoTitle_TruncatesLongMessageAndFallsBackWhenEmpty(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	require.Len(t, []rune(autoTitle(long)), maxTitleRunes)
	require.Contains(t, autoTitle("   "), "Chat ")
}
