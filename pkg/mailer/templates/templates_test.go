package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_ResetPassword(t *testing.T) {
	exp := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)
	data := NewResetPasswordData(
		Brand{AppName: "authsvc", SupportURL: "https://help.example.com"},
		"Ann", "ann@example.com", "http://localhost:8080/api/v1/auth/resetpassword/abc123",
		WithExpiresAt(exp),
		WithIP("10.0.0.1"),
		WithUserAgent("curl/8"),
	)
	assert.Equal(t, ResetPassword, data.Type)

	subject, text, html, err := Render(ResetPassword, data)
	require.NoError(t, err)
	assert.Equal(t, "Password reset token", subject)
	assert.Contains(t, text, "Hi Ann,")
	assert.Contains(t, text, "http://localhost:8080/api/v1/auth/resetpassword/abc123")
	assert.Contains(t, text, "01 May 2026, 10:30 UTC")
	assert.Contains(t, text, "10.0.0.1 (curl/8)")
	assert.Contains(t, html, `href="http://localhost:8080/api/v1/auth/resetpassword/abc123"`)
	assert.Contains(t, html, "https://help.example.com")
}

func TestRender_MapData(t *testing.T) {
	_, text, _, err := Render(ResetPassword, map[string]any{"ResetURL": "http://x/reset/t"})
	require.NoError(t, err)
	assert.Contains(t, text, "Hi there,")
	assert.Contains(t, text, "http://x/reset/t")
	assert.Contains(t, text, "The team")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, _, _, err := Render("nope", EmailData{})
	assert.Error(t, err)
}

func TestDefaultFn(t *testing.T) {
	assert.Equal(t, "fb", defaultFn("fb", ""))
	assert.Equal(t, "fb", defaultFn("fb", "  "))
	assert.Equal(t, "fb", defaultFn("fb", nil))
	assert.Equal(t, "fb", defaultFn("fb", 0))
	assert.Equal(t, "x", defaultFn("fb", "x"))
	assert.Equal(t, 3, defaultFn("fb", 3))
}
