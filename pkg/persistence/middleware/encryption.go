package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/jmorenobl/soni-sub003/pkg/ports"
)

// envelopeSlot is the reserved slot-table key the ciphertext hides in.
const envelopeSlot = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new data. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are old keys tried when decryption fails, enabling
	// zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.CheckpointStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts state with
// AES-GCM before it reaches the underlying store.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &encryptionMiddleware{next: next, config: config}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, state *domain.State) error {
	plainText, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	cipherText, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("encrypt state: %w", err)
	}

	// The envelope is an opaque state that hides stack, slots, and
	// pending prompt alike.
	envelope := domain.NewState(sessionID)
	envelope.Slots[envelopeSlot] = map[string]any{
		"blob": base64.StdEncoding.EncodeToString(cipherText),
	}

	return m.next.Save(ctx, sessionID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	envelope, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	wrapped, ok := envelope.Slots[envelopeSlot]
	if !ok {
		// Fail secure: with encryption configured, a plaintext blob is
		// not something we should silently accept.
		return nil, errors.New("state is missing the encrypted envelope")
	}
	blob, _ := wrapped["blob"].(string)
	if blob == "" {
		return nil, errors.New("encrypted envelope carries no payload")
	}

	cipherText, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	plainText, err := decryptWithRotation(cipherText, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("decrypt state: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(plainText, &state); err != nil {
		return nil, fmt.Errorf("unmarshal decrypted state: %w", err)
	}
	return &state, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func encrypt(plainText, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plainText, nil), nil
}

func decrypt(cipherText, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(cipherText) < gcm.NonceSize() {
		return nil, errors.New("ciphertext shorter than nonce")
	}
	nonce, sealed := cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func decryptWithRotation(cipherText, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	plainText, err := decrypt(cipherText, activeKey)
	if err == nil {
		return plainText, nil
	}
	for _, key := range fallbackKeys {
		if plainText, err := decrypt(cipherText, key); err == nil {
			return plainText, nil
		}
	}
	return nil, errors.New("no configured key decrypts this state")
}
