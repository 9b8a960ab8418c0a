// Package credentials provides secure storage for the vendor API keys
// notetakerd talks to (Recall.ai, Meeting BaaS, OpenAI). Keys are stored
// in ~/.notetakerd/credentials.yaml, encrypted at rest with AES-GCM.
//
// Encryption Key Storage:
// The encryption key is stored securely using the system keyring:
// - macOS: Keychain
// - Windows: Credential Manager
// - Linux: Secret Service (libsecret)
//
// For CI/testing environments, set NTK_ENCRYPTION_KEY to a 64-character
// hex string (32 bytes).
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential storage constants.
const (
	DefaultCredentialsDir  = ".notetakerd"
	DefaultCredentialsFile = "credentials.yaml"

	// ServiceRecall identifies the Recall.ai API key.
	ServiceRecall = "recall"
	// ServiceMeetingBaas identifies the Meeting BaaS API key.
	ServiceMeetingBaas = "meeting_baas"
	// ServiceOpenAI identifies the OpenAI API key.
	ServiceOpenAI = "openai"
)

// Common errors.
var (
	// ErrNoCredentials is returned when no credentials are stored.
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrUnknownService is returned for a service name this store does not manage.
	ErrUnknownService = errors.New("unknown service")
	// ErrEncryptionFailed is returned when encryption/decryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
)

// Credentials holds the stored vendor API keys.
type Credentials struct {
	// RecallAPIKey is the Recall.ai API key (encrypted at rest).
	RecallAPIKey string `yaml:"recall_api_key,omitempty"`
	// MeetingBaasAPIKey is the Meeting BaaS API key (encrypted at rest).
	MeetingBaasAPIKey string `yaml:"meeting_baas_api_key,omitempty"`
	// OpenAIAPIKey is the OpenAI API key (encrypted at rest).
	OpenAIAPIKey string `yaml:"openai_api_key,omitempty"`
	// LastUpdated is when the credentials were last updated.
	LastUpdated time.Time `yaml:"last_updated"`
}

// Get returns the key for the named service.
func (c *Credentials) Get(service string) (string, error) {
	switch service {
	case ServiceRecall:
		return c.RecallAPIKey, nil
	case ServiceMeetingBaas:
		return c.MeetingBaasAPIKey, nil
	case ServiceOpenAI:
		return c.OpenAIAPIKey, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
}

// Set stores the key for the named service.
func (c *Credentials) Set(service, key string) error {
	switch service {
	case ServiceRecall:
		c.RecallAPIKey = key
	case ServiceMeetingBaas:
		c.MeetingBaasAPIKey = key
	case ServiceOpenAI:
		c.OpenAIAPIKey = key
	default:
		return fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	return nil
}

// Services lists the service names this store manages.
func Services() []string {
	return []string{ServiceRecall, ServiceMeetingBaas, ServiceOpenAI}
}

// Store manages credential storage operations.
type Store struct {
	// credentialsDir is the directory containing credentials.
	credentialsDir string
	// encryptionKey is the key used for encrypting/decrypting credentials.
	encryptionKey []byte
	// keyProvider is the source of the encryption key.
	keyProvider KeyProvider
}

// NewStore creates a new credential store with default settings.
// It uses the system keyring (macOS Keychain, Windows Credential Manager,
// or Linux Secret Service) to store the encryption key securely.
func NewStore() (*Store, error) {
	keyProvider, err := GetDefaultKeyProvider()
	if err != nil {
		return nil, fmt.Errorf("initializing key provider: %w", err)
	}
	return NewStoreWithKeyProvider(keyProvider)
}

// NewStoreWithKeyProvider creates a new credential store with a custom key provider.
func NewStoreWithKeyProvider(keyProvider KeyProvider) (*Store, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return nil, fmt.Errorf("getting credentials directory: %w", err)
	}

	key, err := keyProvider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}

	return &Store{
		credentialsDir: dir,
		encryptionKey:  key,
		keyProvider:    keyProvider,
	}, nil
}

// KeyProviderDescription describes where the encryption key lives.
func (s *Store) KeyProviderDescription() string {
	return s.keyProvider.Description()
}

// CredentialsDir returns the credentials directory path.
// Uses $NTK_CONFIG_DIR if set, otherwise ~/.notetakerd
func CredentialsDir() (string, error) {
	if dir := os.Getenv("NTK_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultCredentialsDir), nil
}

// CredentialsPath returns the full path to the credentials file.
func CredentialsPath() (string, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultCredentialsFile), nil
}

// Save stores credentials to the credentials file.
func (s *Store) Save(creds *Credentials) error {
	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	// Encrypt sensitive fields
	storageCreds := *creds
	storageCreds.LastUpdated = time.Now()

	for _, field := range []*string{
		&storageCreds.RecallAPIKey,
		&storageCreds.MeetingBaasAPIKey,
		&storageCreds.OpenAIAPIKey,
	} {
		if *field == "" {
			continue
		}
		encrypted, err := s.encrypt(*field)
		if err != nil {
			return fmt.Errorf("encrypting credential: %w", err)
		}
		*field = encrypted
	}

	// Marshal to YAML
	data, err := yaml.Marshal(&storageCreds)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	// Write with restrictive permissions
	credPath := filepath.Join(s.credentialsDir, DefaultCredentialsFile)
	if err := os.WriteFile(credPath, data, 0600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}

	return nil
}

// Load reads credentials from the credentials file.
func (s *Store) Load() (*Credentials, error) {
	credPath := filepath.Join(s.credentialsDir, DefaultCredentialsFile)

	data, err := os.ReadFile(credPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	for _, field := range []*string{
		&creds.RecallAPIKey,
		&creds.MeetingBaasAPIKey,
		&creds.OpenAIAPIKey,
	} {
		if *field == "" {
			continue
		}
		decrypted, err := s.decrypt(*field)
		if err != nil {
			return nil, fmt.Errorf("decrypting credential: %w", err)
		}
		*field = decrypted
	}

	return &creds, nil
}

// SetKey updates a single service key, preserving the others.
func (s *Store) SetKey(service, key string) error {
	creds, err := s.Load()
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) {
			return err
		}
		creds = &Credentials{}
	}

	if err := creds.Set(service, key); err != nil {
		return err
	}
	return s.Save(creds)
}

// Delete removes stored credentials.
func (s *Store) Delete() error {
	credPath := filepath.Join(s.credentialsDir, DefaultCredentialsFile)

	if err := os.Remove(credPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("removing credentials file: %w", err)
	}

	return nil
}

// Exists checks if credentials file exists.
func (s *Store) Exists() bool {
	credPath := filepath.Join(s.credentialsDir, DefaultCredentialsFile)
	_, err := os.Stat(credPath)
	return err == nil
}

// ensureDir creates the credentials directory if it doesn't exist.
func (s *Store) ensureDir() error {
	return os.MkdirAll(s.credentialsDir, 0700)
}

// encrypt encrypts a string using AES-GCM.
func (s *Store) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", ErrEncryptionFailed, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts an AES-GCM encrypted string.
func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrEncryptionFailed, err)
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrEncryptionFailed)
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decryption failed: %v", ErrEncryptionFailed, err)
	}

	return string(plaintext), nil
}

// envOverrides maps service names to environment variables that take
// precedence over the stored credentials.
var envOverrides = map[string]string{
	ServiceRecall:      "NTK_RECALL_API_KEY",
	ServiceMeetingBaas: "NTK_MEETING_BAAS_API_KEY",
	ServiceOpenAI:      "NTK_OPENAI_API_KEY",
}

// GetActiveCredentials returns the effective vendor keys.
// Environment variables take precedence over stored credentials, and
// missing stored credentials are not an error: daemons that only use
// one provider should not need keys for the others.
func (s *Store) GetActiveCredentials() (*Credentials, error) {
	creds, err := s.Load()
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) {
			return nil, err
		}
		creds = &Credentials{}
	}

	for service, envVar := range envOverrides {
		if v := os.Getenv(envVar); v != "" {
			if err := creds.Set(service, v); err != nil {
				return nil, err
			}
		}
	}

	return creds, nil
}

// MaskCredential returns a masked version of the credential for display.
func MaskCredential(cred string) string {
	if len(cred) <= 8 {
		return strings.Repeat("*", len(cred))
	}
	return cred[:4] + strings.Repeat("*", len(cred)-8) + cred[len(cred)-4:]
}
