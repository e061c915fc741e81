package mail

import (
	"gopkg.in/gomail.v2"
)

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type FailedPhase struct {
	Entity string
	Step   string
	Error  string
}

type RunFailedEmailData struct {
	RunID      string
	StartedAt  string
	FinishedAt string
	Failed     []FailedPhase
	Succeeded  []string
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string

	dialer Dialer
}
