package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/payloads"
)

func signedDecoders() *Decoders[string] {
	d := NewDecoders[string]()
	d.Register(enums.EventAgreementSigned, 1, JSON(func(evt payloads.AgreementSignedEvent) string {
		return evt.DocumentID
	}))
	return d
}

func TestDecodersProjectPayload(t *testing.T) {
	d := signedDecoders()
	data, _ := json.Marshal(payloads.AgreementSignedEvent{
		AgreementID: uuid.New(),
		DocumentID:  "AGR-20260302-0A1B2C3D",
		Status:      enums.AgreementStatusCompleted,
	})

	got, err := d.Decode(enums.EventAgreementSigned, 1, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "AGR-20260302-0A1B2C3D" {
		t.Fatalf("unexpected projection %q", got)
	}
}

func TestDecodersRejectUnknownVersion(t *testing.T) {
	d := signedDecoders()
	if _, err := d.Decode(enums.EventAgreementSigned, 2, json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected unregistered version to fail")
	}
}

func TestDecodersSurfaceMalformedPayload(t *testing.T) {
	d := signedDecoders()
	if _, err := d.Decode(enums.EventAgreementSigned, 1, json.RawMessage(`{"document_id":`)); err == nil {
		t.Fatal("expected malformed payload to fail")
	}
}

func TestDecodersHandles(t *testing.T) {
	d := signedDecoders()
	if !d.Handles(enums.EventAgreementSigned) {
		t.Fatal("expected signed events to be handled")
	}
	if d.Handles(enums.EventLinksExpired) {
		t.Fatal("did not expect links_expired to be handled")
	}
}
