package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-auth-service/pkg/mailer"
	mailtpl "github.com/oksasatya/go-auth-service/pkg/mailer/templates"
)

func TestRenderJob_Rendered(t *testing.T) {
	msg, err := RenderJob(mailer.EmailJob{To: "a@x.com", Subject: "s", Text: "t"})
	require.NoError(t, err)
	assert.Equal(t, mailer.Message{To: "a@x.com", Subject: "s", Text: "t"}, msg)
}

func TestRenderJob_Template(t *testing.T) {
	msg, err := RenderJob(mailer.EmailJob{
		To:       "a@x.com",
		Template: mailtpl.ResetPassword,
		Data:     map[string]any{"Name": "Ann", "ResetURL": "http://h/api/v1/auth/resetpassword/t"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "Password reset token", msg.Subject)
	assert.Contains(t, msg.Text, "http://h/api/v1/auth/resetpassword/t")
	assert.NotEmpty(t, msg.HTML)
}

func TestRenderJob_Invalid(t *testing.T) {
	_, err := RenderJob(mailer.EmailJob{Subject: "s", Text: "t"})
	assert.ErrorIs(t, err, ErrEmptyJob)

	_, err = RenderJob(mailer.EmailJob{To: "a@x.com", Subject: "s"})
	assert.ErrorIs(t, err, ErrEmptyJob)

	_, err = RenderJob(mailer.EmailJob{To: "a@x.com", Template: "missing"})
	assert.Error(t, err)
}

func TestEnsureRecipientAndEmail(t *testing.T) {
	job := mailer.EmailJob{To: "a@x.com"}
	EnsureRecipientAndEmail(&job)
	assert.Equal(t, "a@x.com", job.Data["Email"])

	job = mailer.EmailJob{To: "a@x.com", Data: map[string]any{"Email": "b@x.com"}}
	EnsureRecipientAndEmail(&job)
	assert.Equal(t, "b@x.com", job.Data["Email"])
}
