// Package jobs holds the background jobs the demo app registers with
// the queue.
package jobs

import (
	"context"
	"html"

	"github.com/setulabs/setu/config"
	"github.com/setulabs/setu/pkg/logger"
	"github.com/setulabs/setu/pkg/mail"
)

// WelcomeEmailName is the wire name the job is registered under.
const WelcomeEmailName = "mail.welcome"

// WelcomeEmail greets a newly created user.
type WelcomeEmail struct {
	Email    string `json:"email"`
	UserName string `json:"name"`
}

func (WelcomeEmail) Name() string { return WelcomeEmailName }

// Handle sends the greeting when mail is configured, and logs instead
// when it is not, so local development needs no SMTP server.
func (j WelcomeEmail) Handle(ctx context.Context) error {
	if !mail.Enabled() {
		logger.Info("welcome mail skipped, MAIL_HOST not set", "email", j.Email)
		return nil
	}
	return mail.To(j.Email).
		Subject("Welcome to " + config.AppName()).
		Body("<p>Hi " + html.EscapeString(j.UserName) + ", your account is ready.</p>").
		Send()
}
