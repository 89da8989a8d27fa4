package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGrid struct {
	client *sendgrid.Client
	from   *mail.Email
	to     *mail.Email
}

func NewSendGrid(apiKey, from, to string) (*SendGrid, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("sendgrid api key is empty")
	}
	if from == "" || to == "" {
		return nil, errors.New("sendgrid from and to addresses are required")
	}
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("visasched", from),
		to:     mail.NewEmail("", to),
	}, nil
}

// WithEndpoint points the client at another mail/send URL.
func (s *SendGrid) WithEndpoint(url string) *SendGrid {
	s.client.Request.BaseURL = url
	return s
}

func (s *SendGrid) Name() string { return "sendgrid" }

func (s *SendGrid) Send(ctx context.Context, title Title, msg string) error {
	subject := "VISA - " + string(title)
	m := mail.NewSingleEmail(s.from, subject, s.to, msg, strings.ReplaceAll(msg, "\n", "<br>"))
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
