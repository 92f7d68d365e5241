// Package notify sends outcome e-mails through shoutrrr's smtp service.
package notify

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"
	"go.uber.org/zap"
)

// Mailer sends success and failure notifications for update runs.
type Mailer struct {
	router *router.ServiceRouter
	logger *zap.Logger
}

// NewMailer builds a mailer for the given SMTP endpoint.
// Mail is sent from and to the username, which keeps the configuration
// surface down to host, username, and password.
func NewMailer(host string, username string, password string, logger *zap.Logger) (*Mailer, error) {
	if host == "" || username == "" || password == "" {
		return nil, errors.New("notify: smtp host, username, and password are all required")
	}
	sender, err := shoutrrr.CreateSender(ServiceURL(host, username, password))
	if err != nil {
		return nil, fmt.Errorf("notify: error creating sender: %w", err)
	}
	return &Mailer{router: sender, logger: logger}, nil
}

// ServiceURL builds the shoutrrr smtp URL for the given endpoint.
func ServiceURL(host string, username string, password string) string {
	u := &url.URL{
		Scheme: "smtp",
		User:   url.UserPassword(username, password),
		Host:   host,
		Path:   "/",
	}
	q := url.Values{}
	q.Set("from", username)
	q.Set("to", username)
	u.RawQuery = q.Encode()
	return u.String()
}

// Send delivers one message. Failures are logged and returned;
// callers treat them as non-fatal.
func (m *Mailer) Send(title string, body string) error {
	errs := m.router.Send(body, &types.Params{"title": title})
	if err := errors.Join(errs...); err != nil {
		m.logger.Error("failed to send notification", zap.String("title", title), zap.Error(err))
		return err
	}
	m.logger.Info("notification sent", zap.String("title", title))
	return nil
}
