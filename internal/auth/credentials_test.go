package auth

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTokens struct {
	tokens   map[uuid.UUID]database.Token
	accounts map[uuid.UUID]database.Account
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: map[uuid.UUID]database.Token{}, accounts: map[uuid.UUID]database.Account{}}
}

func (m *memTokens) CreateToken(_ context.Context, arg database.CreateTokenParams) (database.Token, error) {
	t := database.Token{
		ID:                   arg.ID,
		AccountID:            arg.AccountID,
		EncryptedAccessToken: arg.EncryptedAccessToken,
		Nonce:                arg.Nonce,
		ProfileID:            arg.ProfileID,
		CreatedAt:            arg.CreatedAt,
		UpdatedAt:            arg.UpdatedAt,
	}
	m.tokens[arg.AccountID] = t
	return t, nil
}

func (m *memTokens) GetTokenByAccount(_ context.Context, id uuid.UUID) (database.Token, error) {
	t, ok := m.tokens[id]
	if !ok {
		return database.Token{}, fmt.Errorf("get token: %w", database.ErrNotFound)
	}
	return t, nil
}

func (m *memTokens) ListAccountTokens(_ context.Context) ([]database.ListAccountTokensRow, error) {
	var rows []database.ListAccountTokensRow
	for id, t := range m.tokens {
		a := m.accounts[id]
		rows = append(rows, database.ListAccountTokensRow{
			AccountID:            id,
			Username:             a.Username,
			IgUserID:             a.IgUserID,
			PageID:               a.PageID,
			EncryptedAccessToken: t.EncryptedAccessToken,
			Nonce:                t.Nonce,
		})
	}
	return rows, nil
}

var testKey = bytes.Repeat([]byte{7}, 32)

func TestNewCredentialStoreRejectsShortKey(t *testing.T) {
	_, err := NewCredentialStore(newMemTokens(), []byte("short"))
	assert.Error(t, err)
}

func TestInsertAndGet(t *testing.T) {
	mem := newMemTokens()
	s, err := NewCredentialStore(mem, testKey)
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, s.Insert(context.Background(), id, "EAAG-plain", "1784"))
	assert.NotContains(t, string(mem.tokens[id].EncryptedAccessToken), "EAAG-plain")

	tok, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "EAAG-plain", tok)

	require.NoError(t, s.Insert(context.Background(), id, `{"access_token":"EAAG-json"}`, ""))
	tok, err = s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "EAAG-json", tok)
}

func TestGetMissing(t *testing.T) {
	s, err := NewCredentialStore(newMemTokens(), testKey)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestListSkipsUndecryptable(t *testing.T) {
	mem := newMemTokens()
	s, err := NewCredentialStore(mem, testKey)
	require.NoError(t, err)

	good := uuid.New()
	mem.accounts[good] = database.Account{ID: good, Username: "good", IgUserID: 11, PageID: "p"}
	require.NoError(t, s.Insert(context.Background(), good, "tok-good", ""))

	other, err := NewCredentialStore(mem, bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	bad := uuid.New()
	require.NoError(t, other.Insert(context.Background(), bad, "tok-bad", ""))

	creds, undecryptable, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, undecryptable)
	require.Len(t, creds, 1)
	assert.Equal(t, Credential{AccountID: good, Username: "good", IgUserID: 11, PageID: "p", AccessToken: "tok-good"}, creds[0])

	_, err = s.Get(context.Background(), bad)
	assert.ErrorIs(t, err, ErrMissingCredential)
}
