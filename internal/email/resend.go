package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const resendURL = "https://api.resend.com/emails"

type Client struct {
	apiKey     string
	fromEmail  string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(apiKey, fromEmail string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		httpClient: http.DefaultClient,
		logger:     logger.With("component", "email"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// SendMagicLink mails the login link and its 6-digit code. When no API key
// is configured the link is logged instead so local development still works
// without a Resend account.
func (c *Client) SendMagicLink(toEmail, link, code string) error {
	if !c.Configured() {
		c.logger.Info("email not configured, logging magic link instead",
			"to", toEmail, "link", link, "code", code)
		return nil
	}

	textBody := fmt.Sprintf(
		"Sign in to Filamentory\n\nClick the link below to sign in:\n\n%s\n\nOr enter this code: %s\n\nThis link expires in 15 minutes. If you didn't request it, you can ignore this email.",
		link, code,
	)
	htmlBody := fmt.Sprintf(
		`<h2>Sign in to Filamentory</h2><p>Click the link below to sign in:</p><p><a href="%s">Sign in</a></p><p>Or enter this code: <strong>%s</strong></p><p>This link expires in 15 minutes. If you didn't request it, you can ignore this email.</p>`,
		link, code,
	)

	return c.send(resendEmail{
		From:    c.fromEmail,
		To:      []string{toEmail},
		Subject: "Sign in to Filamentory",
		HTML:    htmlBody,
		Text:    textBody,
	})
}

// SendWelcome mails a one-time greeting after the first successful login.
func (c *Client) SendWelcome(toEmail string) error {
	if !c.Configured() {
		c.logger.Info("email not configured, skipping welcome email", "to", toEmail)
		return nil
	}

	textBody := "Welcome to Filamentory!\n\nYour account is ready. Add your first spool and start tracking your filament inventory."
	htmlBody := `<h2>Welcome to Filamentory!</h2><p>Your account is ready. Add your first spool and start tracking your filament inventory.</p>`

	return c.send(resendEmail{
		From:    c.fromEmail,
		To:      []string{toEmail},
		Subject: "Welcome to Filamentory",
		HTML:    htmlBody,
		Text:    textBody,
	})
}

func (c *Client) send(payload resendEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", resendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}

	return nil
}
