package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// testEncryptionKey is a fixed 32-byte key for testing (hex-encoded to 64 chars)
const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// setupTestEnv points the store at a temp dir with a fixed encryption key.
func setupTestEnv(t *testing.T, tempDir string) {
	t.Helper()

	t.Setenv("NTK_CONFIG_DIR", tempDir)
	t.Setenv(EncryptionKeyEnvVar, testEncryptionKey)
}

func TestCredentialsDir(t *testing.T) {
	t.Setenv("NTK_CONFIG_DIR", "")
	os.Unsetenv("NTK_CONFIG_DIR")

	dir, err := CredentialsDir()
	if err != nil {
		t.Fatalf("CredentialsDir() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, DefaultCredentialsDir)
	if dir != expected {
		t.Errorf("CredentialsDir() = %v, want %v", dir, expected)
	}

	customDir := "/tmp/test-notetakerd-creds"
	t.Setenv("NTK_CONFIG_DIR", customDir)

	dir, err = CredentialsDir()
	if err != nil {
		t.Fatalf("CredentialsDir() with env error = %v", err)
	}
	if dir != customDir {
		t.Errorf("CredentialsDir() with env = %v, want %v", dir, customDir)
	}
}

func TestCredentialsPath(t *testing.T) {
	t.Setenv("NTK_CONFIG_DIR", "/tmp/test-notetakerd-path")

	path, err := CredentialsPath()
	if err != nil {
		t.Fatalf("CredentialsPath() error = %v", err)
	}
	expected := filepath.Join("/tmp/test-notetakerd-path", DefaultCredentialsFile)
	if path != expected {
		t.Errorf("CredentialsPath() = %v, want %v", path, expected)
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tempDir := t.TempDir()
	setupTestEnv(t, tempDir)

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	creds := &Credentials{
		RecallAPIKey:      "recall-secret-key-12345",
		MeetingBaasAPIKey: "baas-secret-key-67890",
		OpenAIAPIKey:      "sk-openai-secret-abcdef",
	}

	if err := store.Save(creds); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.RecallAPIKey != creds.RecallAPIKey {
		t.Errorf("RecallAPIKey = %v, want %v", loaded.RecallAPIKey, creds.RecallAPIKey)
	}
	if loaded.MeetingBaasAPIKey != creds.MeetingBaasAPIKey {
		t.Errorf("MeetingBaasAPIKey = %v, want %v", loaded.MeetingBaasAPIKey, creds.MeetingBaasAPIKey)
	}
	if loaded.OpenAIAPIKey != creds.OpenAIAPIKey {
		t.Errorf("OpenAIAPIKey = %v, want %v", loaded.OpenAIAPIKey, creds.OpenAIAPIKey)
	}
	if loaded.LastUpdated.IsZero() {
		t.Error("LastUpdated should be set on save")
	}
}

func TestStoreEncryptsAtRest(t *testing.T) {
	tempDir := t.TempDir()
	setupTestEnv(t, tempDir)

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	secret := "recall-plaintext-should-not-appear"
	if err := store.Save(&Credentials{RecallAPIKey: secret}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tempDir, DefaultCredentialsFile))
	if err != nil {
		t.Fatalf("reading credentials file: %v", err)
	}

	if strings.Contains(string(data), secret) {
		t.Error("credentials file contains plaintext secret")
	}

	// The file is still valid YAML with the expected fields.
	var onDisk Credentials
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("credentials file is not valid YAML: %v", err)
	}
	if onDisk.RecallAPIKey == "" {
		t.Error("recall_api_key missing from stored file")
	}
}

func TestStoreLoadMissing(t *testing.T) {
	tempDir := t.TempDir()
	setupTestEnv(t, tempDir)

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	_, err = store.Load()
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Load() error = %v, want ErrNoCredentials", err)
	}
}

func TestStoreLoadWrongKey(t *testing.T) {
	tempDir := t.TempDir()
	setupTestEnv(t, tempDir)

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Save(&Credentials{OpenAIAPIKey: "sk-secret"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Reload with a different key; decryption must fail.
	t.Setenv(EncryptionKeyEnvVar, "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210")
	store2, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	_, err = store2.Load()
	if err == nil {
		t.Fatal("Load() with wrong key should fail")
	}
	if !errors.Is(err, ErrEncryptionFailed) {
		t.Errorf("Load() error = %v, want ErrEncryptionFailed", err)
	}
}

func TestStoreSetKey(t *testing.T) {
	tempDir := t.TempDir()
	setupTestEnv(t, tempDir)

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	// SetKey on an empty store creates the file.
	if err := store.SetKey(ServiceRecall, "recall-key"); err != nil {
		t.Fatalf("SetKey(recall) error = %v", err)
	}
	// A second SetKey preserves the first.
	if err := store.SetKey(ServiceOpenAI, "sk-key"); err != nil {
		t.Fatalf("SetKey(openai) error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.RecallAPIKey != "recall-key" {
		t.Errorf("RecallAPIKey = %v, want recall-key", loaded.RecallAPIKey)
	}
	if loaded.OpenAIAPIKey != "sk-key" {
		t.Errorf("OpenAIAPIKey = %v, want sk-key", loaded.OpenAIAPIKey)
	}

	if err := store.SetKey("bogus", "x"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("SetKey(bogus) error = %v, want ErrUnknownService", err)
	}
}

func TestStoreDeleteExists(t *testing.T) {
	tempDir := t.TempDir()
	setupTestEnv(t, tempDir)

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if store.Exists() {
		t.Error("Exists() = true before any save")
	}

	if err := store.Save(&Credentials{RecallAPIKey: "k"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !store.Exists() {
		t.Error("Exists() = false after save")
	}

	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Exists() {
		t.Error("Exists() = true after delete")
	}

	// Deleting again is not an error.
	if err := store.Delete(); err != nil {
		t.Errorf("Delete() on missing file error = %v", err)
	}
}

func TestGetActiveCredentials(t *testing.T) {
	tempDir := t.TempDir()
	setupTestEnv(t, tempDir)

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	// No stored credentials and no env: empty, not an error.
	creds, err := store.GetActiveCredentials()
	if err != nil {
		t.Fatalf("GetActiveCredentials() error = %v", err)
	}
	if creds.RecallAPIKey != "" {
		t.Errorf("RecallAPIKey = %v, want empty", creds.RecallAPIKey)
	}

	if err := store.Save(&Credentials{RecallAPIKey: "stored-recall"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	creds, err = store.GetActiveCredentials()
	if err != nil {
		t.Fatalf("GetActiveCredentials() error = %v", err)
	}
	if creds.RecallAPIKey != "stored-recall" {
		t.Errorf("RecallAPIKey = %v, want stored-recall", creds.RecallAPIKey)
	}

	// Environment overrides stored values.
	t.Setenv("NTK_RECALL_API_KEY", "env-recall")
	t.Setenv("NTK_OPENAI_API_KEY", "env-openai")

	creds, err = store.GetActiveCredentials()
	if err != nil {
		t.Fatalf("GetActiveCredentials() error = %v", err)
	}
	if creds.RecallAPIKey != "env-recall" {
		t.Errorf("RecallAPIKey = %v, want env-recall", creds.RecallAPIKey)
	}
	if creds.OpenAIAPIKey != "env-openai" {
		t.Errorf("OpenAIAPIKey = %v, want env-openai", creds.OpenAIAPIKey)
	}
}

func TestCredentialsGetSet(t *testing.T) {
	var c Credentials

	for _, service := range Services() {
		if err := c.Set(service, "key-"+service); err != nil {
			t.Fatalf("Set(%s) error = %v", service, err)
		}
		got, err := c.Get(service)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", service, err)
		}
		if got != "key-"+service {
			t.Errorf("Get(%s) = %v, want key-%s", service, got, service)
		}
	}

	if _, err := c.Get("unknown"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("Get(unknown) error = %v, want ErrUnknownService", err)
	}
}

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"short", "abc", "***"},
		{"exactly eight", "12345678", "********"},
		{"long", "recall-secret-key-12345", "reca***************2345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskCredential(tt.input); got != tt.want {
				t.Errorf("MaskCredential(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
