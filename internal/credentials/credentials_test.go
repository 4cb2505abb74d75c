package credentials

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// newTestManager uses the in-memory keyring mock and an empty environment.
func newTestManager(t *testing.T, env map[string]string) *Manager {
	t.Helper()
	keyring.MockInit()
	return &Manager{
		service: "kbmcp-test",
		getenv:  func(k string) string { return env[k] },
	}
}

func TestManager_SetGetDelete(t *testing.T) {
	m := newTestManager(t, nil)

	require.NoError(t, m.Set(Gemini, "  AIza-test-key  "))

	got, source, err := m.Resolve(Gemini)
	require.NoError(t, err)
	assert.Equal(t, "AIza-test-key", got)
	assert.Equal(t, SourceKeyring, source)
	assert.True(t, m.Has(Gemini))

	require.NoError(t, m.Delete(Gemini))
	_, err = m.Get(Gemini)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, m.Has(Gemini))

	// deleting twice is fine
	assert.NoError(t, m.Delete(Gemini))
}

func TestManager_EnvTakesPrecedence(t *testing.T) {
	m := newTestManager(t, map[string]string{"OPENAI_API_KEY": "sk-from-env"})
	require.NoError(t, m.Set(OpenAI, "sk-from-keyring"))

	got, source, err := m.Resolve(OpenAI)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", got)
	assert.Equal(t, SourceEnv, source)
}

func TestManager_Validation(t *testing.T) {
	m := newTestManager(t, nil)

	tests := []struct {
		name    string
		key     string
		secret  string
		wantErr error
	}{
		{name: "unknown credential", key: "anthropic", secret: "x", wantErr: ErrUnknownCredential},
		{name: "empty secret", key: Gemini, secret: "   ", wantErr: ErrEmptySecret},
		{name: "bad openai prefix", key: OpenAI, secret: "pk-123"},
		{name: "short git token", key: Git, secret: "ghp_short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Set(tt.key, tt.secret)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}

	_, err := m.Get("anthropic")
	assert.ErrorIs(t, err, ErrUnknownCredential)
	assert.ErrorIs(t, m.Delete("anthropic"), ErrUnknownCredential)
}

func TestManager_GitToken(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.GitToken()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(Git, "ghp_abcdefghijklmnopqrstuvwxyz"))
	token, err := m.GitToken()
	require.NoError(t, err)
	assert.Equal(t, "ghp_abcdefghijklmnopqrstuvwxyz", token)
}

func TestManager_Statuses(t *testing.T) {
	m := newTestManager(t, map[string]string{"GOOGLE_API_KEY": "AIzaSecret1234"})
	require.NoError(t, m.Set(OpenAI, "sk-abcdef9876"))

	statuses := m.Statuses()
	require.Len(t, statuses, 3)

	assert.Equal(t, Status{Name: OpenAI, Source: SourceKeyring, Masked: "********9876"}, statuses[0])
	assert.Equal(t, Status{Name: Gemini, Source: SourceEnv, Masked: "********1234"}, statuses[1])
	assert.Equal(t, Status{Name: Git, Source: SourceNone}, statuses[2])
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "***", Mask("abc"))
	assert.Equal(t, "********cdef", Mask("sk-abcdef"))
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", EnvVar(OpenAI))
	assert.Equal(t, "GOOGLE_API_KEY", EnvVar(Gemini))
	assert.Equal(t, "", EnvVar("other"))
}
