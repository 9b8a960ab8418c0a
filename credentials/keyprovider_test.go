package credentials

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

func TestEnvKeyProvider(t *testing.T) {
	const envVar = "NTK_TEST_ENCRYPTION_KEY"

	t.Run("valid key", func(t *testing.T) {
		t.Setenv(envVar, testEncryptionKey)

		provider := NewEnvKeyProvider(envVar)
		key, err := provider.GetKey()
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
		if len(key) != keyLength {
			t.Errorf("key length = %d, want %d", len(key), keyLength)
		}

		expected, _ := hex.DecodeString(testEncryptionKey)
		if !bytes.Equal(key, expected) {
			t.Error("key does not match env value")
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		t.Setenv(envVar, "")

		provider := NewEnvKeyProvider(envVar)
		if _, err := provider.GetKey(); err == nil {
			t.Error("GetKey() with unset env var should fail")
		}
	})

	t.Run("invalid hex", func(t *testing.T) {
		t.Setenv(envVar, "not-hex-at-all")

		provider := NewEnvKeyProvider(envVar)
		if _, err := provider.GetKey(); err == nil {
			t.Error("GetKey() with invalid hex should fail")
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		t.Setenv(envVar, "abcdef")

		provider := NewEnvKeyProvider(envVar)
		if _, err := provider.GetKey(); err == nil {
			t.Error("GetKey() with 3-byte key should fail")
		}
	})

	t.Run("description names env var", func(t *testing.T) {
		provider := NewEnvKeyProvider(envVar)
		if !strings.Contains(provider.Description(), envVar) {
			t.Errorf("Description() = %q, want it to mention %s", provider.Description(), envVar)
		}
	})
}

func TestPassphraseKeyProvider(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}

	t.Run("deterministic for same passphrase and salt", func(t *testing.T) {
		p1 := NewPassphraseKeyProvider("correct horse battery staple", salt)
		p2 := NewPassphraseKeyProvider("correct horse battery staple", salt)

		k1, err := p1.GetKey()
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
		k2, err := p2.GetKey()
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}

		if len(k1) != keyLength {
			t.Errorf("key length = %d, want %d", len(k1), keyLength)
		}
		if !bytes.Equal(k1, k2) {
			t.Error("same passphrase and salt should derive the same key")
		}
	})

	t.Run("different passphrases derive different keys", func(t *testing.T) {
		k1, err := NewPassphraseKeyProvider("passphrase-one", salt).GetKey()
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
		k2, err := NewPassphraseKeyProvider("passphrase-two", salt).GetKey()
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
		if bytes.Equal(k1, k2) {
			t.Error("different passphrases should derive different keys")
		}
	})

	t.Run("different salts derive different keys", func(t *testing.T) {
		salt2, err := GenerateSalt()
		if err != nil {
			t.Fatalf("GenerateSalt() error = %v", err)
		}

		k1, err := NewPassphraseKeyProvider("same passphrase", salt).GetKey()
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
		k2, err := NewPassphraseKeyProvider("same passphrase", salt2).GetKey()
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
		if bytes.Equal(k1, k2) {
			t.Error("different salts should derive different keys")
		}
	})

	t.Run("empty passphrase rejected", func(t *testing.T) {
		if _, err := NewPassphraseKeyProvider("", salt).GetKey(); err == nil {
			t.Error("GetKey() with empty passphrase should fail")
		}
	})

	t.Run("missing salt rejected", func(t *testing.T) {
		if _, err := NewPassphraseKeyProvider("passphrase", nil).GetKey(); err == nil {
			t.Error("GetKey() with nil salt should fail")
		}
	})
}

func TestGenerateSalt(t *testing.T) {
	s1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	if len(s1) != 16 {
		t.Errorf("salt length = %d, want 16", len(s1))
	}

	s2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	if bytes.Equal(s1, s2) {
		t.Error("consecutive salts should differ")
	}
}

func TestGetDefaultKeyProviderPrefersEnv(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, testEncryptionKey)

	provider, err := GetDefaultKeyProvider()
	if err != nil {
		t.Fatalf("GetDefaultKeyProvider() error = %v", err)
	}

	if _, ok := provider.(*EnvKeyProvider); !ok {
		t.Errorf("provider type = %T, want *EnvKeyProvider", provider)
	}
}
