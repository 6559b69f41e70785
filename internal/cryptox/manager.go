// Package cryptox holds the server keypair and implements the hybrid
// decryption used for plant uploads: RSA-OAEP(SHA-256) unwraps a per-upload
// AES key which then opens an AES-GCM ciphertext.
//
// It also contains the client half of the scheme (Seal) used by the
// reference client and by tests, and bcrypt password helpers.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/filex"
)

// KeyBits is the RSA modulus size used for generated keys.
const KeyBits = 2048

// Manager owns the process keypair. It is immutable after construction and
// safe for concurrent use.
type Manager struct {
	priv      *rsa.PrivateKey
	publicPEM string
}

// NewManager wraps an existing private key.
func NewManager(priv *rsa.PrivateKey) (*Manager, error) {
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return &Manager{priv: priv, publicPEM: string(block)}, nil
}

// GenerateManager creates a fresh keypair of the given size.
func GenerateManager(bits int) (*Manager, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewManager(priv)
}

// LoadOrGenerateManager reads a PEM private key from path. When path is
// empty an ephemeral key is generated; when the file does not exist a key is
// generated and written there with 0600 permissions.
func LoadOrGenerateManager(path string) (*Manager, error) {
	if path == "" {
		return GenerateManager(KeyBits)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		m, err := GenerateManager(KeyBits)
		if err != nil {
			return nil, err
		}
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, m.PrivateKeyPEM(), 0o600); err != nil {
			return nil, fmt.Errorf("write key: %w", err)
		}
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	priv, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, err
	}
	return NewManager(priv)
}

// ParsePrivateKeyPEM accepts PKCS#1 ("RSA PRIVATE KEY") and PKCS#8 ("PRIVATE KEY") blocks.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		priv, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not RSA")
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}
}

// ParsePublicKeyPEM parses the SubjectPublicKeyInfo PEM served by PublicKeyPEM.
func ParsePublicKeyPEM(data string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	k, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return pub, nil
}

// PublicKeyPEM returns the public key as a SubjectPublicKeyInfo PEM block.
func (m *Manager) PublicKeyPEM() string {
	return m.publicPEM
}

// PublicKey returns the RSA public key.
func (m *Manager) PublicKey() *rsa.PublicKey {
	return &m.priv.PublicKey
}

// PrivateKeyPEM serialises the private key as PKCS#8.
func (m *Manager) PrivateKeyPEM() []byte {
	der, err := x509.MarshalPKCS8PrivateKey(m.priv)
	if err != nil {
		// only fails for unsupported key types
		panic(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// Decrypt decodes three base64 fields and opens them. See Open.
func (m *Manager) Decrypt(encryptedKeyB64, ivB64, ciphertextB64 string) ([]byte, error) {
	env, err := DecodeEnvelope(encryptedKeyB64, ivB64, ciphertextB64)
	if err != nil {
		return nil, err
	}
	return m.Open(env)
}

// Open unwraps the AES key with RSA-OAEP(SHA-256) and opens the AES-GCM
// ciphertext. It returns either the full plaintext or a *DecryptionError,
// never partial output.
func (m *Manager) Open(env *Envelope) ([]byte, error) {
	if len(env.IV) != NonceSize {
		return nil, fail(MalformedEncoding, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(env.IV)))
	}

	key, err := rsa.DecryptOAEP(sha256.New(), nil, m.priv, env.EncryptedKey, nil)
	if err != nil {
		return nil, fail(KeyRecoveryFailed, err)
	}
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fail(KeyRecoveryFailed, err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fail(KeyRecoveryFailed, err)
	}

	plaintext, err := aesgcm.Open(nil, env.IV, env.Ciphertext, nil)
	if err != nil {
		return nil, fail(AuthenticationFailed, err)
	}
	return plaintext, nil
}
