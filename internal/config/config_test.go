package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DUETCHAT_API_URL", "https://api.chat.test/api/v1")
	t.Setenv("DUETCHAT_WS_URL", "wss://api.chat.test/ws/chat")
	t.Setenv("DUETCHAT_TOKEN", "secret")
	t.Setenv("DUETCHAT_USER_ID", "7")
	t.Setenv("DUETCHAT_PARTNER_ID", "9")
}

func TestNew(t *testing.T) {
	setValidEnv(t)

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "https://api.chat.test/api/v1", cfg.APIBaseURL)
	assert.Equal(t, "wss://api.chat.test/ws/chat", cfg.WSBaseURL)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, int64(7), cfg.UserID)
	assert.Equal(t, int64(9), cfg.PartnerID)
}

func TestNew_MissingToken(t *testing.T) {
	setValidEnv(t)
	t.Setenv("DUETCHAT_TOKEN", "")

	_, err := New()
	assert.Error(t, err)
}

func TestNew_BadUserID(t *testing.T) {
	setValidEnv(t)
	t.Setenv("DUETCHAT_USER_ID", "seven")

	_, err := New()
	assert.Error(t, err)
}

func TestNew_PartnerMustDiffer(t *testing.T) {
	setValidEnv(t)
	t.Setenv("DUETCHAT_PARTNER_ID", "7")

	_, err := New()
	assert.Error(t, err)
}
