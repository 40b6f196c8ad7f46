package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerly-backend/api/middleware"
	"github.com/angelmondragon/ledgerly-backend/api/responses"
	"github.com/angelmondragon/ledgerly-backend/api/validators"
	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/internal/signing"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/pagination"
	"github.com/angelmondragon/ledgerly-backend/pkg/types"
)

type linkSender interface {
	SendToClients(ctx context.Context, ownerID, agreementID uuid.UUID, clientIDs []uuid.UUID, baseURL string) (*signing.SendResult, error)
}

type documentRenderer interface {
	Render(ctx context.Context, ownerID, agreementID uuid.UUID) ([]byte, error)
}

type createAgreementRequest struct {
	ProjectID           uuid.UUID                    `json:"project_id"`
	ServiceProviderName string                       `json:"service_provider_name" validate:"max=200"`
	AgreementDate       types.Date                   `json:"agreement_date"`
	ServiceType         string                       `json:"service_type" validate:"max=200"`
	StartDate           *types.Date                  `json:"start_date,omitempty"`
	EndDate             *types.Date                  `json:"end_date,omitempty"`
	Duration            *int                         `json:"duration,omitempty"`
	DurationUnit        *enums.DurationUnit          `json:"duration_unit,omitempty"`
	RevisionCount       int                          `json:"revision_count" validate:"min=0"`
	Jurisdiction        string                       `json:"jurisdiction" validate:"max=200"`
	Deliverables        []string                     `json:"deliverables"`
	PaymentTerms        agreements.PaymentTermsInput `json:"payment_terms"`
	ProviderSignature   agreements.SignatureInput    `json:"provider_signature"`
}

func (r createAgreementRequest) toInput() agreements.CreateInput {
	return agreements.CreateInput{
		ProjectID:           r.ProjectID,
		ServiceProviderName: r.ServiceProviderName,
		AgreementDate:       r.AgreementDate,
		ServiceType:         r.ServiceType,
		StartDate:           r.StartDate,
		EndDate:             r.EndDate,
		Duration:            r.Duration,
		DurationUnit:        r.DurationUnit,
		RevisionCount:       r.RevisionCount,
		Jurisdiction:        r.Jurisdiction,
		Deliverables:        r.Deliverables,
		PaymentTerms:        r.PaymentTerms,
		ProviderSignature:   r.ProviderSignature,
	}
}

// updateAgreementRequest distinguishes absent fields from explicit nulls.
type updateAgreementRequest struct {
	ServiceProviderName types.Optional[string]                       `json:"service_provider_name"`
	AgreementDate       types.Optional[types.Date]                   `json:"agreement_date"`
	ServiceType         types.Optional[string]                       `json:"service_type"`
	StartDate           types.Optional[types.Date]                   `json:"start_date"`
	EndDate             types.Optional[types.Date]                   `json:"end_date"`
	Duration            types.Optional[int]                          `json:"duration"`
	DurationUnit        types.Optional[enums.DurationUnit]           `json:"duration_unit"`
	RevisionCount       types.Optional[int]                          `json:"revision_count"`
	Jurisdiction        types.Optional[string]                       `json:"jurisdiction"`
	Deliverables        types.Optional[[]string]                     `json:"deliverables"`
	PaymentTerms        types.Optional[agreements.PaymentTermsInput] `json:"payment_terms"`
	ProviderSignature   types.Optional[agreements.SignatureInput]    `json:"provider_signature"`
}

func (r updateAgreementRequest) toPatch() agreements.Patch {
	return agreements.Patch{
		ServiceProviderName: r.ServiceProviderName,
		AgreementDate:       r.AgreementDate,
		ServiceType:         r.ServiceType,
		StartDate:           r.StartDate,
		EndDate:             r.EndDate,
		Duration:            r.Duration,
		DurationUnit:        r.DurationUnit,
		RevisionCount:       r.RevisionCount,
		Jurisdiction:        r.Jurisdiction,
		Deliverables:        r.Deliverables,
		PaymentTerms:        r.PaymentTerms,
		ProviderSignature:   r.ProviderSignature,
	}
}

type sendAgreementRequest struct {
	ClientIDs []uuid.UUID `json:"client_ids" validate:"required,min=1,max=50"`
}

func ownerFromRequest(r *http.Request) (uuid.UUID, error) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return ownerID, nil
}

// AgreementCreate creates an agreement with the provider's signature.
func AgreementCreate(svc agreements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agreement service unavailable"))
			return
		}
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createAgreementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agg, err := svc.Create(r.Context(), ownerID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, agreements.ToDTO(agg, true))
	}
}

// AgreementList returns the owner's agreements, newest first.
func AgreementList(svc agreements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agreement service unavailable"))
			return
		}
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), ownerID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AgreementGet returns one aggregate including its signing links.
func AgreementGet(svc agreements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agreement service unavailable"))
			return
		}
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agreementID, err := validators.ParseUUIDParam(r, "agreementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agg, err := svc.Get(r.Context(), ownerID, agreementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, agreements.ToDTO(agg, true))
	}
}

// AgreementGetByProject returns the agreement attached to a project.
func AgreementGetByProject(svc agreements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agreement service unavailable"))
			return
		}
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		projectID, err := validators.ParseUUIDParam(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agg, err := svc.GetByProject(r.Context(), ownerID, projectID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, agreements.ToDTO(agg, true))
	}
}

// AgreementUpdate applies a partial update inside the edit window.
func AgreementUpdate(svc agreements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agreement service unavailable"))
			return
		}
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agreementID, err := validators.ParseUUIDParam(r, "agreementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateAgreementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agg, err := svc.Update(r.Context(), ownerID, agreementID, payload.toPatch())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, agreements.ToDTO(agg, true))
	}
}

// AgreementDelete removes the aggregate and its stored signatures.
func AgreementDelete(svc agreements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agreement service unavailable"))
			return
		}
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agreementID, err := validators.ParseUUIDParam(r, "agreementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), ownerID, agreementID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": agreementID, "deleted": true})
	}
}

// AgreementSend issues or rotates signing links for the listed clients.
// The signing URL uses the caller's Origin when it is an allowed origin,
// otherwise the configured public app URL.
func AgreementSend(sender linkSender, allowedOrigins []string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sender == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signing service unavailable"))
			return
		}
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agreementID, err := validators.ParseUUIDParam(r, "agreementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sendAgreementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := sender.SendToClients(r.Context(), ownerID, agreementID, payload.ClientIDs, trustedOrigin(r, allowedOrigins))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AgreementPDF renders the current agreement document. download=1 asks the
// browser to save it instead of displaying it.
func AgreementPDF(renderer documentRenderer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if renderer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "document renderer unavailable"))
			return
		}
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agreementID, err := validators.ParseUUIDParam(r, "agreementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		download, err := validators.ParseQueryFlag(r, "download")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pdf, err := renderer.Render(r.Context(), ownerID, agreementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteFile(w, "application/pdf", fmt.Sprintf("agreement-%s.pdf", agreementID), pdf, download)
	}
}

func trustedOrigin(r *http.Request, allowed []string) string {
	origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if origin == "" {
		return ""
	}
	if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	for _, candidate := range allowed {
		if strings.EqualFold(strings.TrimRight(strings.TrimSpace(candidate), "/"), origin) {
			return origin
		}
	}
	return ""
}
