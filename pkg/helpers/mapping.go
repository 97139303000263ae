package helpers

import (
	"errors"
	"fmt"

	"github.com/oksasatya/go-auth-service/pkg/mailer"
	mailtpl "github.com/oksasatya/go-auth-service/pkg/mailer/templates"
)

var ErrEmptyJob = errors.New("email job has no recipient or body")

// EnsureRecipientAndEmail fills the template's Email field from the job recipient.
func EnsureRecipientAndEmail(job *mailer.EmailJob) {
	if job.Data == nil {
		job.Data = map[string]any{}
	}
	if v, ok := job.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["Email"] = job.To
	}
}

// RenderJob turns a queued job into a deliverable message, rendering its template if set.
func RenderJob(job mailer.EmailJob) (mailer.Message, error) {
	if job.To == "" {
		return mailer.Message{}, ErrEmptyJob
	}
	if job.Template == "" {
		if job.Subject == "" || (job.Text == "" && job.HTML == "") {
			return mailer.Message{}, ErrEmptyJob
		}
		return mailer.Message{To: job.To, Subject: job.Subject, Text: job.Text, HTML: job.HTML}, nil
	}
	EnsureRecipientAndEmail(&job)
	subject, text, html, err := mailtpl.Render(job.Template, job.Data)
	if err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{To: job.To, Subject: subject, Text: text, HTML: html}, nil
}
