package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

//go:embed templates/*.html
var templatesFS embed.FS

var runFailedTmpl = template.Must(template.ParseFS(templatesFS, "templates/run_failed.html"))

var _ usecase.RunNotifier = (*EmailSender)(nil)

func NewEmailSender(host string, port int, user, password, from, to string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		To:       to,
		dialer:   gomail.NewDialer(host, port, user, password),
	}
}

// WithDialer swaps the SMTP transport.
func (s *EmailSender) WithDialer(d Dialer) *EmailSender {
	s.dialer = d
	return s
}

// NotifyRunCompleted mails an alert when at least one phase failed and does
// nothing otherwise.
func (s *EmailSender) NotifyRunCompleted(_ context.Context, summary usecase.RunSummary) error {
	failed := summary.FailedPhases()
	if len(failed) == 0 {
		return nil
	}

	body, err := renderRunFailed(summary)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", fmt.Sprintf("[crmsync] %d phase(s) failed in run %s", len(failed), summary.RunID))
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return eris.Wrap(err, "send alert email")
	}
	return nil
}

func renderRunFailed(summary usecase.RunSummary) (string, error) {
	data := RunFailedEmailData{
		RunID:      summary.RunID,
		StartedAt:  summary.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: summary.FinishedAt.UTC().Format(time.RFC3339),
	}
	for _, p := range summary.Phases {
		if p.Failed() {
			data.Failed = append(data.Failed, FailedPhase{
				Entity: string(p.Entity),
				Step:   string(p.Step),
				Error:  p.Error,
			})
			continue
		}
		data.Succeeded = append(data.Succeeded, string(p.Entity))
	}

	var body bytes.Buffer
	if err := runFailedTmpl.Execute(&body, data); err != nil {
		return "", eris.Wrap(err, "render alert template")
	}
	return body.String(), nil
}
