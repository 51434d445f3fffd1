package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// transportTimeout is the fixed outbound timeout for every Notifier send.
const transportTimeout = 10 * time.Second

// Mailgun posts alerts to a Mailgun-compatible messages endpoint:
// form-encoded POST with from/to/subject/html fields, HTTP basic auth of
// ("api", apiKey).
type Mailgun struct {
	MessagesEndpoint string
	APIKey           string

	client *http.Client
}

// NewMailgun builds a Mailgun notifier with the fixed transport timeout.
func NewMailgun(messagesEndpoint, apiKey string) *Mailgun {
	return &Mailgun{
		MessagesEndpoint: messagesEndpoint,
		APIKey:           apiKey,
		client:           &http.Client{Timeout: transportTimeout},
	}
}

// Send implements Notifier.
func (m *Mailgun) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, transportTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("from", msg.From)
	form.Set("to", strings.Join(msg.To, ", "))
	form.Set("subject", "[ALERT] "+msg.Subject)
	form.Set("html", msg.HTMLBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.MessagesEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building mailgun request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending mailgun request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mailgun returned status %d", resp.StatusCode)
	}
	return nil
}
