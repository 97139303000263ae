package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
	"io"
	"reflect"
	"strings"
	"sync"
	texttpl "text/template"
	"time"
)

//go:embed *.tmpl
var FS embed.FS

// ResetPassword is the base name of the password reset mail.
const ResetPassword = "reset_password"

// EmailData is the data every mail template can rely on.
type EmailData struct {
	Name  string `json:"Name"`
	Email string `json:"Email"`
	Type  string `json:"Type"`

	AppName     string `json:"AppName"`
	CompanyName string `json:"CompanyName"`
	SupportURL  string `json:"SupportURL"`

	ResetURL      string    `json:"ResetURL"`
	ExpiresAt     time.Time `json:"ExpiresAt"`
	ExpiresAtText string    `json:"ExpiresAtText"`

	IP        string `json:"IP"`
	UserAgent string `json:"UserAgent"`
	Time      string `json:"Time"`
}

// defaultFn backs {{ .Value | default "Fallback" }}.
func defaultFn(fallback any, value any) any {
	if s, ok := value.(string); ok {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.IsZero() {
		return fallback
	}
	return value
}

type parsed struct {
	text *texttpl.Template
	html *htmpl.Template
}

// load parses the embedded set once: *.html.tmpl with html/template, the rest with text/template.
var load = sync.OnceValues(func() (parsed, error) {
	funcs := map[string]any{"default": defaultFn}
	text, err := texttpl.New("mail").Funcs(funcs).ParseFS(FS, "*.subject.tmpl", "*.text.tmpl")
	if err != nil {
		return parsed{}, fmt.Errorf("parse text templates: %w", err)
	}
	html, err := htmpl.New("mail").Funcs(funcs).ParseFS(FS, "*.html.tmpl")
	if err != nil {
		return parsed{}, fmt.Errorf("parse html templates: %w", err)
	}
	return parsed{text: text, html: html}, nil
})

type executor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

func execute(e executor, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := e.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Render produces subject, text and html bodies from <name>.subject.tmpl,
// <name>.text.tmpl and <name>.html.tmpl.
func Render(name string, data any) (subject, text, html string, err error) {
	p, err := load()
	if err != nil {
		return "", "", "", err
	}
	if subject, err = execute(p.text, name+".subject.tmpl", data); err != nil {
		return "", "", "", err
	}
	if text, err = execute(p.text, name+".text.tmpl", data); err != nil {
		return "", "", "", err
	}
	if html, err = execute(p.html, name+".html.tmpl", data); err != nil {
		return "", "", "", err
	}
	return strings.TrimSpace(subject), text, html, nil
}
