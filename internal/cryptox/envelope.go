package cryptox

import (
	"encoding/base64"
	"fmt"
)

// NonceSize is the AES-GCM nonce length the clients must use.
const NonceSize = 12

// Envelope is one hybrid-encrypted upload: an RSA-OAEP wrapped AES key,
// the GCM nonce and the GCM ciphertext (tag appended).
type Envelope struct {
	EncryptedKey []byte
	IV           []byte
	Ciphertext   []byte
}

// DecodeEnvelope decodes the three standard base64 fields sent by clients.
func DecodeEnvelope(encryptedKeyB64, ivB64, ciphertextB64 string) (*Envelope, error) {
	ct, err := decodeField("ciphertext", ciphertextB64)
	if err != nil {
		return nil, err
	}
	return Raw{EncryptedKey: encryptedKeyB64, IV: ivB64, Ciphertext: ct}.Decode()
}

func decodeField(name, s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fail(MalformedEncoding, fmt.Errorf("%s: %w", name, err))
	}
	return b, nil
}

// Source yields an Envelope. The wire forms decode lazily, so a caller can
// authorize a request before touching its ciphertext.
type Source interface {
	Decode() (*Envelope, error)
}

func (e *Envelope) Decode() (*Envelope, error) { return e, nil }

// Encoded is the JSON upload form: every field base64.
type Encoded struct {
	EncryptedKey string
	IV           string
	Ciphertext   string
}

func (e Encoded) Decode() (*Envelope, error) {
	return DecodeEnvelope(e.EncryptedKey, e.IV, e.Ciphertext)
}

// Raw is the large upload form: binary ciphertext, base64 key and nonce.
type Raw struct {
	EncryptedKey string
	IV           string
	Ciphertext   []byte
}

func (r Raw) Decode() (*Envelope, error) {
	key, err := decodeField("encrypted key", r.EncryptedKey)
	if err != nil {
		return nil, err
	}
	iv, err := decodeField("iv", r.IV)
	if err != nil {
		return nil, err
	}
	return &Envelope{EncryptedKey: key, IV: iv, Ciphertext: r.Ciphertext}, nil
}

// Encode returns the base64 form of the envelope fields.
func (e *Envelope) Encode() (encryptedKey, iv, ciphertext string) {
	return base64.StdEncoding.EncodeToString(e.EncryptedKey),
		base64.StdEncoding.EncodeToString(e.IV),
		base64.StdEncoding.EncodeToString(e.Ciphertext)
}
