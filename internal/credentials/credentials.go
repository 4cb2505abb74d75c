// Package credentials keeps model API keys and the git token in the OS
// keyring (macOS Keychain, Windows Credential Manager, Linux Secret Service).
package credentials

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/zalando/go-keyring"
)

const credentialService = "kbmcp"

// Credential names.
const (
	OpenAI = "openai"
	Gemini = "gemini"
	Git    = "git"
)

// Names lists every credential the manager knows about.
var Names = []string{OpenAI, Gemini, Git}

// envVars are consulted before the keyring.
var envVars = map[string]string{
	OpenAI: "OPENAI_API_KEY",
	Gemini: "GOOGLE_API_KEY",
	Git:    "KBMCP_GIT_TOKEN",
}

var (
	ErrUnknownCredential = errors.New("unknown credential")
	ErrNotFound          = errors.New("credential not found")
	ErrEmptySecret       = errors.New("secret cannot be empty")
)

// Source tells where a resolved secret came from.
type Source string

const (
	SourceNone    Source = "none"
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
)

// Manager reads and writes secrets under one keyring service.
type Manager struct {
	service string
	getenv  func(string) string
}

func NewManager() *Manager {
	return &Manager{service: credentialService, getenv: os.Getenv}
}

// EnvVar returns the environment variable that overrides name.
func EnvVar(name string) string {
	return envVars[name]
}

func checkName(name string) error {
	if !slices.Contains(Names, name) {
		return fmt.Errorf("%w: %q (expected one of %s)", ErrUnknownCredential, name, strings.Join(Names, ", "))
	}
	return nil
}

// Set stores secret for name in the keyring.
func (m *Manager) Set(name, secret string) error {
	if err := checkName(name); err != nil {
		return err
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrEmptySecret
	}
	if err := validateFormat(name, secret); err != nil {
		return fmt.Errorf("invalid %s secret: %w", name, err)
	}

	if err := keyring.Set(m.service, name, secret); err != nil {
		return fmt.Errorf("failed to store %s secret in credential store: %w", name, err)
	}
	return nil
}

// Get resolves name from the environment first, then the keyring.
func (m *Manager) Get(name string) (string, error) {
	secret, _, err := m.Resolve(name)
	return secret, err
}

// Resolve is Get that also reports where the secret was found.
func (m *Manager) Resolve(name string) (string, Source, error) {
	if err := checkName(name); err != nil {
		return "", SourceNone, err
	}

	if v := strings.TrimSpace(m.getenv(envVars[name])); v != "" {
		return v, SourceEnv, nil
	}

	secret, err := keyring.Get(m.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", SourceNone, fmt.Errorf("%w: set %s or run `kbmcp auth set %s`", ErrNotFound, envVars[name], name)
		}
		return "", SourceNone, fmt.Errorf("failed to retrieve %s secret from credential store: %w", name, err)
	}

	if strings.TrimSpace(secret) == "" {
		return "", SourceNone, fmt.Errorf("%w: stored %s secret is empty", ErrNotFound, name)
	}
	return secret, SourceKeyring, nil
}

// Delete removes name from the keyring. Deleting a missing secret is not an
// error.
func (m *Manager) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := keyring.Delete(m.service, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s secret from credential store: %w", name, err)
	}
	return nil
}

// Has reports whether name resolves to a secret.
func (m *Manager) Has(name string) bool {
	_, err := m.Get(name)
	return err == nil
}

// GitToken satisfies knowledge.TokenSource.
func (m *Manager) GitToken() (string, error) {
	return m.Get(Git)
}

// Status describes one credential for `kbmcp auth status`.
type Status struct {
	Name   string
	Source Source
	// Masked shows only the last four characters.
	Masked string
}

// Statuses reports every known credential in Names order.
func (m *Manager) Statuses() []Status {
	out := make([]Status, 0, len(Names))
	for _, name := range Names {
		secret, source, err := m.Resolve(name)
		st := Status{Name: name, Source: source}
		if err == nil {
			st.Masked = Mask(secret)
		}
		out = append(out, st)
	}
	return out
}

// Mask hides all but the last four characters of secret.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}

// validateFormat applies cheap prefix checks for known vendors.
func validateFormat(name, secret string) error {
	switch name {
	case OpenAI:
		if !strings.HasPrefix(secret, "sk-") {
			return fmt.Errorf("OpenAI keys start with sk-")
		}
	case Git:
		if len(secret) < 20 {
			return fmt.Errorf("token too short (minimum 20 characters)")
		}
	}
	return nil
}
