package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{
			name:    "plain text",
			payload: []byte("hello loopvault"),
		},
		{
			name:    "empty payload",
			payload: []byte{},
		},
		{
			name:    "binary payload",
			payload: []byte{0x00, 0xFF, 0x10, 0x80, 0x7F},
		},
		{
			name:    "json payload",
			payload: []byte(`{"schemaVersion":1,"laneTemplates":[{"id":"lt-1"}]}`),
		},
	}

	passphrase := []byte("correct horse battery staple")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Encrypt(tt.payload, passphrase)
			if err != nil {
				t.Fatalf("Encrypt() failed: %v", err)
			}

			got, err := Decrypt(env, passphrase)
			if err != nil {
				t.Fatalf("Decrypt() failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("round trip mismatch: got %q, want %q", got, tt.payload)
			}
		})
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	env, err := Encrypt([]byte("secret"), []byte("passphrase-one"))
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	_, err = Decrypt(env, []byte("passphrase-two"))
	if err == nil {
		t.Fatal("Decrypt() with wrong passphrase should fail")
	}

	var decErr *DecryptionError
	if !errors.As(err, &decErr) {
		t.Errorf("expected *DecryptionError, got %T", err)
	}
}

func TestEncryptEnvelopeUniqueness(t *testing.T) {
	payload := []byte("same payload")
	passphrase := []byte("same passphrase")

	env1, err := Encrypt(payload, passphrase)
	if err != nil {
		t.Fatalf("first Encrypt() failed: %v", err)
	}
	env2, err := Encrypt(payload, passphrase)
	if err != nil {
		t.Fatalf("second Encrypt() failed: %v", err)
	}

	if env1.KDF.Salt == env2.KDF.Salt {
		t.Error("two encryptions reused the same salt")
	}
	if env1.IV == env2.IV {
		t.Error("two encryptions reused the same IV")
	}
	if env1.Ciphertext == env2.Ciphertext {
		t.Error("two encryptions produced identical ciphertext")
	}
}

func TestEnvelopeShape(t *testing.T) {
	env, err := Encrypt([]byte("payload"), []byte("pw"))
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	if env.Version != EnvelopeVersion {
		t.Errorf("Version = %d, want %d", env.Version, EnvelopeVersion)
	}
	if env.KDF.Algorithm != "PBKDF2" {
		t.Errorf("KDF.Algorithm = %q, want PBKDF2", env.KDF.Algorithm)
	}
	if env.KDF.Hash != "SHA-256" {
		t.Errorf("KDF.Hash = %q, want SHA-256", env.KDF.Hash)
	}
	if env.KDF.Iterations != DefaultIters {
		t.Errorf("KDF.Iterations = %d, want %d", env.KDF.Iterations, DefaultIters)
	}
}

func TestEncryptWithIterations(t *testing.T) {
	env, err := EncryptWithIterations([]byte("payload"), []byte("pw"), 250000)
	if err != nil {
		t.Fatalf("EncryptWithIterations() failed: %v", err)
	}
	if env.KDF.Iterations != 250000 {
		t.Errorf("KDF.Iterations = %d, want 250000", env.KDF.Iterations)
	}

	got, err := Decrypt(env, []byte("pw"))
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Error("round trip mismatch with custom iteration count")
	}

	// A non-positive count falls back to the default
	env, err = EncryptWithIterations([]byte("payload"), []byte("pw"), 0)
	if err != nil {
		t.Fatalf("EncryptWithIterations(0) failed: %v", err)
	}
	if env.KDF.Iterations != DefaultIters {
		t.Errorf("KDF.Iterations = %d, want %d", env.KDF.Iterations, DefaultIters)
	}
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	passphrase := []byte("pw")
	valid, err := Encrypt([]byte("payload"), passphrase)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(env *Envelope)
	}{
		{
			name:   "unsupported version",
			mutate: func(env *Envelope) { env.Version = 99 },
		},
		{
			name:   "unknown kdf algorithm",
			mutate: func(env *Envelope) { env.KDF.Algorithm = "scrypt" },
		},
		{
			name:   "zero iterations",
			mutate: func(env *Envelope) { env.KDF.Iterations = 0 },
		},
		{
			name:   "garbage salt",
			mutate: func(env *Envelope) { env.KDF.Salt = "!!!not-base64!!!" },
		},
		{
			name:   "garbage iv",
			mutate: func(env *Envelope) { env.IV = "!!!not-base64!!!" },
		},
		{
			name:   "wrong iv length",
			mutate: func(env *Envelope) { env.IV = "QUJD" },
		},
		{
			name:   "truncated ciphertext",
			mutate: func(env *Envelope) { env.Ciphertext = "QUJD" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := *valid
			tt.mutate(&env)

			_, err := Decrypt(&env, passphrase)
			if err == nil {
				t.Fatal("Decrypt() should fail for malformed envelope")
			}
			var decErr *DecryptionError
			if !errors.As(err, &decErr) {
				t.Errorf("expected *DecryptionError, got %T (%v)", err, err)
			}
		})
	}
}

func TestVerifyPassphrase(t *testing.T) {
	env, err := Encrypt([]byte("payload"), []byte("right"))
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	if !VerifyPassphrase(env, []byte("right")) {
		t.Error("VerifyPassphrase() should accept the correct passphrase")
	}
	if VerifyPassphrase(env, []byte("wrong")) {
		t.Error("VerifyPassphrase() should reject a wrong passphrase")
	}
	if VerifyPassphrase(nil, []byte("right")) {
		t.Error("VerifyPassphrase() should reject a nil envelope")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")

	key1 := DeriveKey([]byte("pw"), salt, 1000)
	key2 := DeriveKey([]byte("pw"), salt, 1000)
	if !bytes.Equal(key1, key2) {
		t.Error("DeriveKey() should be deterministic for fixed inputs")
	}

	key3 := DeriveKey([]byte("other"), salt, 1000)
	if bytes.Equal(key1, key3) {
		t.Error("DeriveKey() should differ for different passphrases")
	}

	if len(key1) != KeySize {
		t.Errorf("key length = %d, want %d", len(key1), KeySize)
	}
}

func TestClearBytes(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	ClearBytes(data)
	for i, b := range data {
		if b != 0 {
			t.Errorf("byte %d not cleared: %d", i, b)
		}
	}
}
