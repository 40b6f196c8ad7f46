package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ledgerly-backend/api/middleware"
	"github.com/angelmondragon/ledgerly-backend/api/responses"
	"github.com/angelmondragon/ledgerly-backend/api/validators"
	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/internal/signing"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

type tokenValidator interface {
	Validate(ctx context.Context, token string) (*signing.Validation, error)
}

type signatureCollector interface {
	Submit(ctx context.Context, token string, input agreements.SignatureInput, ip string) (*signing.Receipt, error)
	Update(ctx context.Context, token string, input agreements.SignatureInput, ip string) (*signing.Receipt, error)
}

type signingClientView struct {
	Name         string  `json:"name"`
	Organization *string `json:"organization,omitempty"`
}

type signingLinkView struct {
	Status    enums.LinkStatus `json:"status"`
	ExpiresAt time.Time        `json:"expires_at"`
	SignedAt  *time.Time       `json:"signed_at,omitempty"`
}

// signingView is the public signing page payload. Only the agreement, the
// addressed client's display identity and the link state are exposed.
type signingView struct {
	Valid     bool                     `json:"valid"`
	Expired   bool                     `json:"expired,omitempty"`
	Agreement *agreements.AgreementDTO `json:"agreement,omitempty"`
	Client    *signingClientView       `json:"client,omitempty"`
	Link      *signingLinkView         `json:"link,omitempty"`
}

type signatureReceiptView struct {
	Agreement   *agreements.AgreementDTO `json:"agreement"`
	Signature   agreements.SignatureDTO  `json:"signature"`
	Status      enums.AgreementStatus    `json:"status"`
	DocumentURL string                   `json:"document_url,omitempty"`
}

type signRequest struct {
	SignerName     string `json:"signer_name" validate:"max=200"`
	SignatureImage string `json:"signature_image"`
}

func (r signRequest) toInput() agreements.SignatureInput {
	return agreements.SignatureInput{SignerName: r.SignerName, Image: r.SignatureImage}
}

func toSigningView(v *signing.Validation) signingView {
	if v == nil || !v.Valid {
		out := signingView{}
		if v != nil {
			out.Expired = v.Expired
		}
		return out
	}
	out := signingView{
		Valid:     true,
		Agreement: agreements.ToDTO(v.Aggregate, false),
	}
	if v.Client != nil {
		out.Client = &signingClientView{Name: v.Client.Name, Organization: v.Client.Organization}
	}
	if v.Link != nil {
		out.Link = &signingLinkView{Status: v.Link.Status, ExpiresAt: v.Link.ExpiresAt, SignedAt: v.Link.SignedAt}
	}
	return out
}

// SigningGet resolves a public signing token. Unknown and expired tokens
// answer 200 with valid=false so the page can explain the state.
func SigningGet(validator tokenValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if validator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signing service unavailable"))
			return
		}

		result, err := validator.Validate(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSigningView(result))
	}
}

// SigningSubmit records the client's first signature.
func SigningSubmit(collector signatureCollector, logg *logger.Logger) http.HandlerFunc {
	return signHandler(collector, logg, http.StatusCreated, func(c signatureCollector) signFunc { return c.Submit })
}

// SigningUpdate replaces the client's signature while the link is live.
func SigningUpdate(collector signatureCollector, logg *logger.Logger) http.HandlerFunc {
	return signHandler(collector, logg, http.StatusOK, func(c signatureCollector) signFunc { return c.Update })
}

type signFunc func(ctx context.Context, token string, input agreements.SignatureInput, ip string) (*signing.Receipt, error)

func signHandler(collector signatureCollector, logg *logger.Logger, status int, pick func(signatureCollector) signFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if collector == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signing service unavailable"))
			return
		}
		token := strings.TrimSpace(chi.URLParam(r, "token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "signing link not found"))
			return
		}

		var payload signRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := pick(collector)(r.Context(), token, payload.toInput(), middleware.ClientIP(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, signatureReceiptView{
			Agreement:   agreements.ToDTO(receipt.Aggregate, false),
			Signature:   agreements.SignatureToDTO(receipt.Signature),
			Status:      receipt.Status,
			DocumentURL: receipt.DocumentURL,
		})
	}
}
