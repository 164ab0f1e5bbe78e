package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var ErrMissingCredential = errors.New("no stored credential for account")

type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Credential is a decrypted account token together with the ids needed to use it.
type Credential struct {
	AccountID   uuid.UUID
	Username    string
	IgUserID    int64
	PageID      string
	AccessToken string
}

type TokenStore interface {
	CreateToken(ctx context.Context, arg database.CreateTokenParams) (database.Token, error)
	GetTokenByAccount(ctx context.Context, accountID uuid.UUID) (database.Token, error)
	ListAccountTokens(ctx context.Context) ([]database.ListAccountTokensRow, error)
}

// CredentialStore keeps per-account bearer tokens encrypted with AES-GCM.
type CredentialStore struct {
	db  TokenStore
	key []byte
}

func NewCredentialStore(db TokenStore, encryptionKey []byte) (*CredentialStore, error) {
	if len(encryptionKey) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}
	return &CredentialStore{db: db, key: encryptionKey}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

func open(ciphertext, nonce, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, errors.New("nonce has wrong size")
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Insert stores or replaces the token for an account.
func (s *CredentialStore) Insert(ctx context.Context, accountID uuid.UUID, accessToken, profileID string) error {
	payload, err := normalizeAccessTokenPayload(accessToken)
	if err != nil {
		return err
	}

	ciphertext, nonce, err := seal(payload, s.key)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.CreateToken(ctx, database.CreateTokenParams{
		ID:                   uuid.New(),
		AccountID:            accountID,
		EncryptedAccessToken: ciphertext,
		Nonce:                nonce,
		ProfileID:            sql.NullString{String: profileID, Valid: profileID != ""},
		CreatedAt:            now,
		UpdatedAt:            now,
	})
	return err
}

// Get returns the decrypted token for an account, or ErrMissingCredential.
func (s *CredentialStore) Get(ctx context.Context, accountID uuid.UUID) (string, error) {
	dbToken, err := s.db.GetTokenByAccount(ctx, accountID)
	if err != nil {
		if database.IsNotFound(err) {
			return "", fmt.Errorf("account %s: %w", accountID, ErrMissingCredential)
		}
		return "", err
	}

	token, err := s.decryptToken(dbToken.EncryptedAccessToken, dbToken.Nonce)
	if err != nil {
		return "", fmt.Errorf("account %s: undecryptable token: %w", accountID, ErrMissingCredential)
	}
	return token, nil
}

// List decrypts every stored credential. Tokens that no longer decrypt with
// the current key are counted and left out.
func (s *CredentialStore) List(ctx context.Context) ([]Credential, int, error) {
	rows, err := s.db.ListAccountTokens(ctx)
	if err != nil {
		return nil, 0, err
	}

	var (
		creds         []Credential
		undecryptable int
	)
	for _, row := range rows {
		token, err := s.decryptToken(row.EncryptedAccessToken, row.Nonce)
		if err != nil {
			undecryptable++
			logging.Warn().Str("account", row.AccountID.String()).Msg("Auth: skipping undecryptable token")
			continue
		}
		creds = append(creds, Credential{
			AccountID:   row.AccountID,
			Username:    row.Username,
			IgUserID:    row.IgUserID,
			PageID:      row.PageID,
			AccessToken: token,
		})
	}
	return creds, undecryptable, nil
}

func (s *CredentialStore) decryptToken(ciphertext, nonce []byte) (string, error) {
	plaintext, err := open(ciphertext, nonce, s.key)
	if err != nil {
		return "", err
	}

	var tr TokenResponse
	if err := json.Unmarshal(plaintext, &tr); err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		return "", errors.New("access token is empty")
	}

	return tr.AccessToken, nil
}

func normalizeAccessTokenPayload(input string) ([]byte, error) {
	if input == "" {
		return nil, errors.New("access token is empty")
	}

	var tr TokenResponse
	if err := json.Unmarshal([]byte(input), &tr); err == nil && tr.AccessToken != "" {
		return json.Marshal(tr)
	}

	return json.Marshal(TokenResponse{
		AccessToken: input,
	})
}
