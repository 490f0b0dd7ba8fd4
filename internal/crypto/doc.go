// Package crypto provides the authenticated-encryption envelope for
// loopvault.
//
// Encryption uses AES-256-GCM with:
//   - 32-byte key derived from the passphrase via PBKDF2
//   - 12-byte random IV per encryption operation
//   - authenticated encryption prevents tampering
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - 32-byte random salt, fresh per Encrypt call
//   - 100,000 iterations by default; the count travels inside the
//     envelope so future strengthening never breaks old data
//
// The derived key is never persisted. An envelope stores only the public
// KDF parameters, IV and ciphertext, so all trust reduces to the
// passphrase supplied at use time.
//
// Memory safety:
//   - use ClearBytes() to zero sensitive data after use
package crypto
