package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pohodnya/mtchat/internal/config"
)

func TestSignMatchesStandardHMAC(t *testing.T) {
	s := New(config.WebhookConfig{URL: "https://example.com/hook", Secret: "topsecret"})
	body := []byte(`{"event":"message_sent"}`)

	got := s.sign(body)

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, got)
}

func TestNotConfiguredWithoutURL(t *testing.T) {
	s := New(config.WebhookConfig{})
	assert.False(t, s.Configured())
}

func TestConfiguredWithURL(t *testing.T) {
	s := New(config.WebhookConfig{URL: "https://example.com/hook"})
	assert.True(t, s.Configured())
}
