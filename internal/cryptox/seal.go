package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"

	"github.com/dmitrijs2005/plantgate/internal/common"
)

// Seal is the client half of the scheme: it encrypts plaintext under a fresh
// AES-256 key and random 12-byte nonce, then wraps the key for pub.
func Seal(pub *rsa.PublicKey, plaintext []byte) (*Envelope, error) {
	key := common.GenerateRandByteArray(32)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(NonceSize)
	ciphertext := aesgcm.Seal(nil, nonce, plaintext, nil)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, err
	}

	return &Envelope{EncryptedKey: wrapped, IV: nonce, Ciphertext: ciphertext}, nil
}
