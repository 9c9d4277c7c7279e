package auth

import (
	"context"
	"fmt"
)

// fakeUserStore, fakeOrgStore, fakeAssistantAccessor, and fakeKBAccessor
// are in-memory stand-ins for pkg/store used across this package's tests,
// mirroring the fake-provider-over-HTTP-mock pattern the teacher uses in
// pkg/llms/registry_test.go: implement the real interface directly rather
// than mocking at a lower layer.

type fakeUserStore struct {
	users map[string]*CreatorUser
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*CreatorUser{}}
}

func (s *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*CreatorUser, error) {
	return s.users[email], nil
}

type fakeOrgStore struct {
	orgsByEmail map[string]*Organization
	rolesByKey  map[string]string
}

func newFakeOrgStore() *fakeOrgStore {
	return &fakeOrgStore{
		orgsByEmail: map[string]*Organization{},
		rolesByKey:  map[string]string{},
	}
}

func (s *fakeOrgStore) GetOrganizationForUser(_ context.Context, email string) (*Organization, error) {
	return s.orgsByEmail[email], nil
}

func (s *fakeOrgStore) GetOrganizationRole(_ context.Context, email string, orgID int64) (string, error) {
	return s.rolesByKey[roleKey(email, orgID)], nil
}

func roleKey(email string, orgID int64) string {
	return fmt.Sprintf("%s|%d", email, orgID)
}

type fakeAssistant struct {
	ownerEmail string
	orgID      int64
	published  bool
	sharedWith map[string]bool
}

type fakeAssistantAccessor struct {
	assistants map[int64]fakeAssistant
}

func newFakeAssistantAccessor() *fakeAssistantAccessor {
	return &fakeAssistantAccessor{assistants: map[int64]fakeAssistant{}}
}

func (a *fakeAssistantAccessor) OwnerEmail(_ context.Context, id int64) (string, bool, error) {
	as, ok := a.assistants[id]
	return as.ownerEmail, ok, nil
}

func (a *fakeAssistantAccessor) OrganizationID(_ context.Context, id int64) (int64, bool, error) {
	as, ok := a.assistants[id]
	return as.orgID, ok, nil
}

func (a *fakeAssistantAccessor) IsSharedWith(_ context.Context, id int64, email string) (bool, error) {
	as, ok := a.assistants[id]
	if !ok {
		return false, nil
	}
	return as.sharedWith[email], nil
}

func (a *fakeAssistantAccessor) IsPublished(_ context.Context, id int64) (bool, error) {
	as, ok := a.assistants[id]
	if !ok {
		return false, nil
	}
	return as.published, nil
}

type fakeKBAccessor struct {
	levels map[int64]map[string]AccessLevel
}

func newFakeKBAccessor() *fakeKBAccessor {
	return &fakeKBAccessor{levels: map[int64]map[string]AccessLevel{}}
}

func (k *fakeKBAccessor) AccessLevel(_ context.Context, kbID int64, email string) (AccessLevel, error) {
	byEmail, ok := k.levels[kbID]
	if !ok {
		return AccessNone, nil
	}
	level, ok := byEmail[email]
	if !ok {
		return AccessNone, nil
	}
	return level, nil
}
