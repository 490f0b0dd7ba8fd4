package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	EnvelopeVersion = 1      // Current envelope format version
	SaltSize        = 32     // Salt size in bytes
	KeySize         = 32     // AES-256 key size
	IVSize          = 12     // GCM nonce size
	TagSize         = 16     // GCM authentication tag size
	DefaultIters    = 100000 // Default PBKDF2 iterations

	kdfAlgorithm = "PBKDF2"
	kdfHash      = "SHA-256"
)

// DecryptionError reports a failed decryption: unsupported version,
// malformed envelope fields, or an authentication failure from a wrong
// passphrase or corrupted ciphertext. Recoverable by re-prompting.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decryption failed: %s", e.Reason)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// KDFParams are the public key-derivation parameters stored alongside
// the ciphertext. The salt is base64-encoded.
type KDFParams struct {
	Algorithm  string `json:"algorithm"`
	Hash       string `json:"hash"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`
}

// Envelope is a versioned, self-describing authenticated-encryption
// container. Ciphertext includes the GCM tag; the ciphertext is
// meaningless without the accompanying salt and IV.
type Envelope struct {
	Version    int       `json:"version"`
	KDF        KDFParams `json:"kdf"`
	IV         string    `json:"iv"`
	Ciphertext string    `json:"ciphertext"`
}

// DeriveKey derives a 32-byte encryption key from a passphrase.
func DeriveKey(passphrase, salt []byte, iterations int) []byte {
	return pbkdf2.Key(passphrase, salt, iterations, KeySize, sha256.New)
}

// Encrypt encrypts a payload under a passphrase with the default KDF
// iteration count. Salt and IV are freshly random per call; reuse would
// defeat the scheme.
func Encrypt(payload, passphrase []byte) (*Envelope, error) {
	return EncryptWithIterations(payload, passphrase, DefaultIters)
}

// EncryptWithIterations is Encrypt with an explicit KDF iteration count,
// for callers honoring a configured work factor.
func EncryptWithIterations(payload, passphrase []byte, iterations int) (*Envelope, error) {
	if iterations <= 0 {
		iterations = DefaultIters
	}

	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, err
	}

	key := DeriveKey(passphrase, salt, iterations)
	defer ClearBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv, err := GenerateRandom(IVSize)
	if err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, iv, payload, nil)

	return &Envelope{
		Version: EnvelopeVersion,
		KDF: KDFParams{
			Algorithm:  kdfAlgorithm,
			Hash:       kdfHash,
			Iterations: iterations,
			Salt:       base64.StdEncoding.EncodeToString(salt),
		},
		IV:         base64.StdEncoding.EncodeToString(iv),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt recovers the payload from an envelope. All failures surface as
// *DecryptionError.
func Decrypt(env *Envelope, passphrase []byte) ([]byte, error) {
	if env == nil {
		return nil, &DecryptionError{Reason: "missing envelope"}
	}
	if env.Version != EnvelopeVersion {
		return nil, &DecryptionError{Reason: fmt.Sprintf("unsupported envelope version %d", env.Version)}
	}
	if env.KDF.Algorithm != kdfAlgorithm || env.KDF.Hash != kdfHash {
		return nil, &DecryptionError{Reason: fmt.Sprintf("unsupported KDF %s/%s", env.KDF.Algorithm, env.KDF.Hash)}
	}
	if env.KDF.Iterations <= 0 {
		return nil, &DecryptionError{Reason: "invalid KDF iteration count"}
	}

	salt, err := base64.StdEncoding.DecodeString(env.KDF.Salt)
	if err != nil {
		return nil, &DecryptionError{Reason: "malformed salt", Err: err}
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, &DecryptionError{Reason: "malformed iv", Err: err}
	}
	if len(iv) != IVSize {
		return nil, &DecryptionError{Reason: fmt.Sprintf("iv must be %d bytes, got %d", IVSize, len(iv))}
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, &DecryptionError{Reason: "malformed ciphertext", Err: err}
	}
	if len(ciphertext) < TagSize {
		return nil, &DecryptionError{Reason: "ciphertext too short"}
	}

	key := DeriveKey(passphrase, salt, env.KDF.Iterations)
	defer ClearBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	payload, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, &DecryptionError{Reason: "authentication failed (wrong passphrase or corrupted data)"}
	}
	return payload, nil
}

// VerifyPassphrase reports whether a passphrase can open the envelope.
// Implemented as decrypt-and-discard; never returns an error.
func VerifyPassphrase(env *Envelope, passphrase []byte) bool {
	payload, err := Decrypt(env, passphrase)
	if err != nil {
		return false
	}
	ClearBytes(payload)
	return true
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
