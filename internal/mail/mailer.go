// Package mail delivers confirmation links. Only a logging sender exists;
// templated SMTP delivery lives outside this service.
package mail

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// LogMailer writes the confirmation link to the log instead of sending it.
type LogMailer struct {
	from       string
	confirmURL string
	log        *zap.Logger
}

func NewLogMailer(from, confirmURL string, log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{
		from:       from,
		confirmURL: confirmURL,
		log:        log.With(zap.String("component", "mail")),
	}
}

// ConfirmLink joins the configured prefix and the escaped token.
func (m *LogMailer) ConfirmLink(token string) string {
	prefix := m.confirmURL
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + url.PathEscape(token)
}

func (m *LogMailer) SendConfirmation(ctx context.Context, to, username, token string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("mail: recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.log.Info("confirmation email",
		zap.String("from", m.from),
		zap.String("to", to),
		zap.String("username", username),
		zap.String("link", m.ConfirmLink(token)),
	)
	return nil
}
