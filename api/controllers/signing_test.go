package controllers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/internal/signing"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
)

type stubValidator struct {
	result *signing.Validation
	err    error
	token  string
}

func (s *stubValidator) Validate(_ context.Context, token string) (*signing.Validation, error) {
	s.token = token
	return s.result, s.err
}

type stubCollector struct {
	receipt *signing.Receipt
	err     error

	calls []string
	input agreements.SignatureInput
	ip    string
}

func (s *stubCollector) Submit(_ context.Context, token string, input agreements.SignatureInput, ip string) (*signing.Receipt, error) {
	s.calls = append(s.calls, "submit:"+token)
	s.input, s.ip = input, ip
	return s.receipt, s.err
}

func (s *stubCollector) Update(_ context.Context, token string, input agreements.SignatureInput, ip string) (*signing.Receipt, error) {
	s.calls = append(s.calls, "update:"+token)
	s.input, s.ip = input, ip
	return s.receipt, s.err
}

func sampleReceipt() *signing.Receipt {
	agg := sampleAggregate()
	clientID := agg.Links[0].ClientID
	return &signing.Receipt{
		Aggregate: agg,
		Signature: models.Signature{
			ID:          uuid.New(),
			AgreementID: agg.Agreement.ID,
			SignerType:  enums.SignerTypeClient,
			ClientID:    &clientID,
			SignerName:  "Grace",
			ImagePath:   "signatures/" + clientID.String() + "/sig.png",
			DocumentID:  "AGR-20260302-0A1B2C3D",
			SignedAt:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
		Status:      enums.AgreementStatusCompleted,
		DocumentURL: "https://storage.test/agreements/doc.pdf",
	}
}

func TestSigningGetValidToken(t *testing.T) {
	agg := sampleAggregate()
	org := "Hopper Labs"
	v := &stubValidator{result: &signing.Validation{
		Valid:     true,
		Aggregate: agg,
		Link:      &agg.Links[0],
		Client:    &models.Client{ID: agg.Links[0].ClientID, Name: "Grace", Email: "grace@example.com", Organization: &org},
	}}
	req := httptest.NewRequest(http.MethodGet, "/sign/tok123", nil)
	rec := serve(t, http.MethodGet, "/sign/{token}", SigningGet(v, nil), req, uuid.Nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if v.token != "tok123" {
		t.Fatalf("expected token passed through, got %q", v.token)
	}
	raw := rec.Body.String()
	for _, secret := range []string{"secret-token", "grace@example.com"} {
		if bytes.Contains([]byte(raw), []byte(secret)) {
			t.Fatalf("public view leaked %q", secret)
		}
	}

	var view signingView
	decodeData(t, rec, &view)
	if !view.Valid || view.Agreement == nil || view.Client == nil || view.Link == nil {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Client.Name != "Grace" || view.Client.Organization == nil || *view.Client.Organization != org {
		t.Fatalf("unexpected client %+v", view.Client)
	}
	if len(view.Agreement.Links) != 0 {
		t.Fatal("public view must not list signing links")
	}
}

func TestSigningGetExpiredToken(t *testing.T) {
	v := &stubValidator{result: &signing.Validation{Expired: true}}
	req := httptest.NewRequest(http.MethodGet, "/sign/old", nil)
	rec := serve(t, http.MethodGet, "/sign/{token}", SigningGet(v, nil), req, uuid.Nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var view signingView
	decodeData(t, rec, &view)
	if view.Valid || !view.Expired || view.Agreement != nil {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestSigningGetHidesInternalFailure(t *testing.T) {
	v := &stubValidator{err: errors.New("dial tcp 10.0.0.5:5432: connection refused")}
	req := httptest.NewRequest(http.MethodGet, "/sign/x", nil)
	rec := serve(t, http.MethodGet, "/sign/{token}", SigningGet(v, nil), req, uuid.Nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("10.0.0.5")) {
		t.Fatal("internal detail leaked on public endpoint")
	}
}

func TestSigningSubmitReturnsReceipt(t *testing.T) {
	c := &stubCollector{receipt: sampleReceipt()}
	body := `{"signer_name": "Grace", "signature_image": "data:image/png;base64,aGVsbG8="}`
	req := httptest.NewRequest(http.MethodPost, "/sign/tok123", bytes.NewBufferString(body))
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := serve(t, http.MethodPost, "/sign/{token}", SigningSubmit(c, nil), req, uuid.Nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(c.calls) != 1 || c.calls[0] != "submit:tok123" {
		t.Fatalf("unexpected calls %v", c.calls)
	}
	if c.input.SignerName != "Grace" || c.input.Image == "" {
		t.Fatalf("input not mapped: %+v", c.input)
	}
	if c.ip != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %q", c.ip)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("signatures/")) {
		t.Fatal("storage path leaked into receipt")
	}

	var view signatureReceiptView
	decodeData(t, rec, &view)
	if view.Status != enums.AgreementStatusCompleted || view.DocumentURL == "" {
		t.Fatalf("unexpected receipt %+v", view)
	}
	if view.Signature.DocumentID != "AGR-20260302-0A1B2C3D" {
		t.Fatalf("unexpected document id %s", view.Signature.DocumentID)
	}
}

func TestSigningUpdateRoutesToUpdate(t *testing.T) {
	c := &stubCollector{receipt: sampleReceipt()}
	body := `{"signer_name": "Grace H", "signature_image": "aGVsbG8="}`
	req := httptest.NewRequest(http.MethodPut, "/sign/tok123", bytes.NewBufferString(body))
	rec := serve(t, http.MethodPut, "/sign/{token}", SigningUpdate(c, nil), req, uuid.Nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if len(c.calls) != 1 || c.calls[0] != "update:tok123" {
		t.Fatalf("unexpected calls %v", c.calls)
	}
}

func TestSigningSubmitMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"already signed", pkgerrors.New(pkgerrors.CodeConflict, "agreement already signed"), http.StatusConflict},
		{"expired", pkgerrors.New(pkgerrors.CodeExpired, "signing link expired"), http.StatusGone},
		{"unknown", pkgerrors.New(pkgerrors.CodeNotFound, "signing link not found"), http.StatusNotFound},
		{"bad image", pkgerrors.New(pkgerrors.CodeValidation, "unsupported image type"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		c := &stubCollector{err: tt.err}
		body := `{"signer_name": "Grace", "signature_image": "aGVsbG8="}`
		req := httptest.NewRequest(http.MethodPost, "/sign/tok", bytes.NewBufferString(body))
		rec := serve(t, http.MethodPost, "/sign/{token}", SigningSubmit(c, nil), req, uuid.Nil)
		if rec.Code != tt.status {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.status, rec.Code)
		}
	}
}

func TestSigningSubmitRejectsMalformedBody(t *testing.T) {
	c := &stubCollector{receipt: sampleReceipt()}
	req := httptest.NewRequest(http.MethodPost, "/sign/tok", bytes.NewBufferString(`{"signer_name":`))
	rec := serve(t, http.MethodPost, "/sign/{token}", SigningSubmit(c, nil), req, uuid.Nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if len(c.calls) != 0 {
		t.Fatal("collector must not run on malformed body")
	}
}
