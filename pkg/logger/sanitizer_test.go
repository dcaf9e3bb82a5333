package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLogMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"password pair", "login failed password=hunter2 for bob", "login failed password=[REDACTED] for bob"},
		{"bearer token", "authorization: bearer abc.def.ghi", "authorization: bearer=[REDACTED]"},
		{"api key", "api_key=sk-12345", "api_key=[REDACTED]"},
		{"clean message", "asset 42 transitioned to uploading", "asset 42 transitioned to uploading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeLogMessage(tt.in))
		})
	}
}

func TestSanitizeMap(t *testing.T) {
	got := SanitizeMap(map[string]any{
		"owner_type":    "user",
		"token":         "eyJhbGciOiJIUzI1NiJ9.x.y",
		"VAULT_API_KEY": "sk-12345",
		"count":         3,
	})

	assert.Equal(t, "user", got["owner_type"])
	assert.Equal(t, redactedPlaceholder, got["token"])
	assert.Equal(t, redactedPlaceholder, got["VAULT_API_KEY"])
	assert.Equal(t, 3, got["count"])
}
