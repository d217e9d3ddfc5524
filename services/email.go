package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/LovationAdmin/expense-api/utils"
)

const resendEndpoint = "https://api.resend.com/emails"

// EmailService sends confirmation links through the Resend API.
type EmailService struct {
	apiKey     string
	fromEmail  string
	endpoint   string
	httpClient *http.Client
}

func NewEmailService(apiKey, fromEmail string) *EmailService {
	return &EmailService{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		endpoint:   resendEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoint points the service at another base URL, for tests.
func (s *EmailService) WithEndpoint(endpoint string) *EmailService {
	s.endpoint = endpoint
	return s
}

func (s *EmailService) SendConfirmation(ctx context.Context, to, link string) error {
	if s.apiKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Confirm your email</h1>
        <p>Click the link below to activate your expense tracker account.</p>
        <a href="%s" style="display: inline-block; background: #667eea; color: white; padding: 15px 30px; text-decoration: none; border-radius: 8px;">Confirm email</a>
        <p style="color: #e74c3c; margin-top: 30px;">This link expires in 24 hours.</p>
    </div>
</body>
</html>
	`, html.EscapeString(link))

	payload := map[string]interface{}{
		"from":    fmt.Sprintf("Expense Tracker <%s>", s.fromEmail),
		"to":      []string{to},
		"subject": "Confirm your email",
		"html":    htmlBody,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("failed to send email: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// LogSender writes the confirmation link to the log instead of mailing it.
// Used when no mail API key is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) SendConfirmation(_ context.Context, to, link string) error {
	s.Logger.Info("confirmation link (mail delivery disabled)",
		zap.String("to", utils.MaskEmail(to)),
		zap.String("link", link))
	return nil
}
