package signing

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/angelmondragon/ledgerly-backend/pkg/sendgrid"
)

const emailDateLayout = "January 2, 2006 at 15:04 MST"

var signingRequestHTML = template.Must(template.New("signing_request").Parse(`<p>Hi {{.ClientName}},</p>
<p>{{.ProviderName}} has sent you a service agreement for {{.ServiceType}} to review and sign.</p>
<p><a href="{{.URL}}">Review and sign the agreement</a></p>
<p>This link expires on {{.ExpiresAt}}.</p>`))

var signedCopyHTML = template.Must(template.New("signed_copy").Parse(`<p>Hi {{.Name}},</p>
<p>{{.SignerName}} signed the {{.ServiceType}} agreement with {{.ProviderName}}. A copy of the signed agreement is attached.</p>
{{if .DocumentURL}}<p><a href="{{.DocumentURL}}">Download the signed agreement</a></p>{{end}}
<p>Document reference: {{.DocumentID}}</p>`))

// SigningRequest is the invitation sent for one issued link.
type SigningRequest struct {
	ClientName   string
	ClientEmail  string
	ProviderName string
	ServiceType  string
	URL          string
	ExpiresAt    time.Time
}

// SignedCopy delivers the rendered agreement after a client signs.
type SignedCopy struct {
	Name         string
	Email        string
	SignerName   string
	ProviderName string
	ServiceType  string
	DocumentID   string
	DocumentURL  string
	PDF          []byte
}

// Notifier renders signing emails and hands them to the mailer.
type Notifier struct {
	mailer  sendgrid.Mailer
	replyTo string
}

func NewNotifier(mailer sendgrid.Mailer, replyTo string) (*Notifier, error) {
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	return &Notifier{mailer: mailer, replyTo: strings.TrimSpace(replyTo)}, nil
}

func (n *Notifier) SendSigningRequest(ctx context.Context, req SigningRequest) error {
	expires := req.ExpiresAt.UTC().Format(emailDateLayout)
	var html bytes.Buffer
	if err := signingRequestHTML.Execute(&html, map[string]string{
		"ClientName":   req.ClientName,
		"ProviderName": req.ProviderName,
		"ServiceType":  req.ServiceType,
		"URL":          req.URL,
		"ExpiresAt":    expires,
	}); err != nil {
		return err
	}
	text := fmt.Sprintf("Hi %s,\n\n%s has sent you a service agreement for %s to review and sign:\n%s\n\nThis link expires on %s.\n",
		req.ClientName, req.ProviderName, req.ServiceType, req.URL, expires)
	return n.mailer.Send(ctx, sendgrid.Message{
		ToEmail:    req.ClientEmail,
		ToName:     req.ClientName,
		ReplyTo:    n.replyTo,
		Subject:    fmt.Sprintf("%s sent you an agreement to sign", req.ProviderName),
		Text:       text,
		HTML:       html.String(),
		Categories: []string{"agreement_signing_request"},
	})
}

func (n *Notifier) SendSignedCopy(ctx context.Context, c SignedCopy) error {
	var html bytes.Buffer
	if err := signedCopyHTML.Execute(&html, c); err != nil {
		return err
	}
	text := fmt.Sprintf("Hi %s,\n\n%s signed the %s agreement with %s. A copy of the signed agreement is attached.\n\nDocument reference: %s\n",
		c.Name, c.SignerName, c.ServiceType, c.ProviderName, c.DocumentID)
	if c.DocumentURL != "" {
		text += "\nDownload: " + c.DocumentURL + "\n"
	}
	msg := sendgrid.Message{
		ToEmail:    c.Email,
		ToName:     c.Name,
		ReplyTo:    n.replyTo,
		Subject:    "Signed agreement: " + c.ServiceType,
		Text:       text,
		HTML:       html.String(),
		Categories: []string{"agreement_signed_copy"},
	}
	if len(c.PDF) > 0 {
		msg.Attachments = []sendgrid.Attachment{{
			Filename:    "agreement-" + c.DocumentID + ".pdf",
			ContentType: "application/pdf",
			Content:     c.PDF,
		}}
	}
	return n.mailer.Send(ctx, msg)
}
