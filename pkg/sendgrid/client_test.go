package sendgrid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

type stubSender struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (s *stubSender) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	s.sent = append(s.sent, m)
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	if status == 0 {
		status = 202
	}
	return &rest.Response{StatusCode: status, Body: "nope"}, nil
}

func testClient(s sender) *Client {
	return newWithSender(s, config.SendgridConfig{DefaultFrom: "no-reply@ledgerly.test", FromName: "Ledgerly"},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
}

func TestSendBuildsMailWithAttachment(t *testing.T) {
	stub := &stubSender{}
	client := testClient(stub)

	err := client.Send(context.Background(), Message{
		ToEmail: "client@example.com",
		ToName:  "Dana Client",
		Subject: "Your signed agreement",
		Text:    "Attached.",
		Attachments: []Attachment{{
			Filename:    "agreement.pdf",
			ContentType: "application/pdf",
			Content:     []byte("%PDF-1.3"),
		}},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(stub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(stub.sent))
	}

	var body struct {
		From             struct{ Email string } `json:"from"`
		Personalizations []struct {
			To []struct{ Email string } `json:"to"`
		} `json:"personalizations"`
		Attachments []struct {
			Content  string `json:"content"`
			Filename string `json:"filename"`
		} `json:"attachments"`
	}
	if err := json.Unmarshal(mail.GetRequestBody(stub.sent[0]), &body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if body.From.Email != "no-reply@ledgerly.test" {
		t.Fatalf("unexpected from %q", body.From.Email)
	}
	if len(body.Personalizations) != 1 || body.Personalizations[0].To[0].Email != "client@example.com" {
		t.Fatalf("unexpected recipients %+v", body.Personalizations)
	}
	if len(body.Attachments) != 1 || body.Attachments[0].Filename != "agreement.pdf" {
		t.Fatalf("unexpected attachments %+v", body.Attachments)
	}
	if body.Attachments[0].Content != "JVBERi0xLjM=" {
		t.Fatalf("expected base64 content, got %q", body.Attachments[0].Content)
	}
}

func TestSendRejectsMissingRecipient(t *testing.T) {
	stub := &stubSender{}
	if err := testClient(stub).Send(context.Background(), Message{Subject: "s", Text: "t"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
	if len(stub.sent) != 0 {
		t.Fatal("nothing should be sent when validation fails")
	}
}

func TestSendSurfacesNon2xx(t *testing.T) {
	stub := &stubSender{status: 401}
	err := testClient(stub).Send(context.Background(), Message{ToEmail: "a@b.c", Subject: "s", Text: "t"})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestSendSurfacesTransportError(t *testing.T) {
	stub := &stubSender{err: errors.New("dial tcp: timeout")}
	err := testClient(stub).Send(context.Background(), Message{ToEmail: "a@b.c", Subject: "s", Text: "t"})
	if err == nil {
		t.Fatal("expected transport error")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(config.SendgridConfig{DefaultFrom: "x@y.z"}, nil); err == nil {
		t.Fatal("expected missing api key to fail")
	}
}
