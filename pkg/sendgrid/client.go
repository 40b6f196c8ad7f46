package sendgrid

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

// Attachment is a file sent alongside a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single-recipient transactional email.
type Message struct {
	ToEmail     string
	ToName      string
	ReplyTo     string
	Subject     string
	Text        string
	HTML        string
	Categories  []string
	Attachments []Attachment
}

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Client delivers mail through the SendGrid v3 API.
type Client struct {
	sender sender
	from   *mail.Email
	logg   *logger.Logger
}

var _ Mailer = (*Client)(nil)

func New(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, errors.New("sendgrid from email is required")
	}
	return newWithSender(sg.NewSendClient(cfg.APIKey), cfg, logg), nil
}

func newWithSender(s sender, cfg config.SendgridConfig, logg *logger.Logger) *Client {
	return &Client{
		sender: s,
		from:   mail.NewEmail(strings.TrimSpace(cfg.FromName), strings.TrimSpace(cfg.DefaultFrom)),
		logg:   logg,
	}
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	m, err := c.build(msg)
	if err != nil {
		return err
	}
	resp, err := c.sender.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, truncate(resp.Body, 512))
	}
	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"email_subject": msg.Subject,
			"status_code":   resp.StatusCode,
		})
		c.logg.Info(logCtx, "email accepted by sendgrid")
	}
	return nil
}

func (c *Client) build(msg Message) (*mail.SGMailV3, error) {
	to := strings.TrimSpace(msg.ToEmail)
	if to == "" {
		return nil, errors.New("recipient email is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return nil, errors.New("subject is required")
	}
	if msg.Text == "" && msg.HTML == "" {
		return nil, errors.New("message body is required")
	}

	m := mail.NewV3Mail()
	m.SetFrom(c.from)
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, to))
	m.AddPersonalizations(p)

	if msg.Text != "" {
		m.AddContent(mail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	if reply := strings.TrimSpace(msg.ReplyTo); reply != "" {
		m.SetReplyTo(mail.NewEmail("", reply))
	}
	if len(msg.Categories) > 0 {
		m.AddCategories(msg.Categories...)
	}
	for _, att := range msg.Attachments {
		a := mail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		a.SetType(att.ContentType)
		a.SetFilename(att.Filename)
		a.SetDisposition("attachment")
		m.AddAttachment(a)
	}
	return m, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
