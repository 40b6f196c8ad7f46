package agreements

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	"github.com/angelmondragon/ledgerly-backend/pkg/types"
)

// AgreementDTO is the API view of an aggregate. Signing tokens and storage
// paths are never exposed.
type AgreementDTO struct {
	ID                  uuid.UUID             `json:"id"`
	ProjectID           uuid.UUID             `json:"project_id"`
	ServiceProviderName string                `json:"service_provider_name"`
	AgreementDate       types.Date            `json:"agreement_date"`
	ServiceType         string                `json:"service_type"`
	StartDate           *types.Date           `json:"start_date,omitempty"`
	EndDate             *types.Date           `json:"end_date,omitempty"`
	Duration            *int                  `json:"duration,omitempty"`
	DurationUnit        *enums.DurationUnit   `json:"duration_unit,omitempty"`
	RevisionCount       int                   `json:"revision_count"`
	Jurisdiction        string                `json:"jurisdiction"`
	Status              enums.AgreementStatus `json:"status"`
	Deliverables        []DeliverableDTO      `json:"deliverables"`
	PaymentTerms        *PaymentTermsDTO      `json:"payment_terms,omitempty"`
	Signatures          []SignatureDTO        `json:"signatures"`
	Links               []LinkDTO             `json:"links,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

type DeliverableDTO struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Position    int       `json:"position"`
}

type PaymentTermsDTO struct {
	Structure     enums.PaymentStructure `json:"structure"`
	PaymentMethod *string                `json:"payment_method,omitempty"`
	Milestones    []MilestoneDTO         `json:"milestones"`
}

type MilestoneDTO struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Position    int             `json:"position"`
	DueDate     *types.Date     `json:"due_date,omitempty"`
}

type SignatureDTO struct {
	ID          uuid.UUID        `json:"id"`
	SignerType  enums.SignerType `json:"signer_type"`
	ClientID    *uuid.UUID       `json:"client_id,omitempty"`
	SignerName  string           `json:"signer_name"`
	DocumentID  string           `json:"document_id"`
	ImageSHA256 string           `json:"image_sha256"`
	SignedAt    time.Time        `json:"signed_at"`
}

type LinkDTO struct {
	ID         uuid.UUID        `json:"id"`
	ClientID   uuid.UUID        `json:"client_id"`
	Status     enums.LinkStatus `json:"status"`
	ExpiresAt  time.Time        `json:"expires_at"`
	SignedAt   *time.Time       `json:"signed_at,omitempty"`
	LastSentAt time.Time        `json:"last_sent_at"`
}

// SummaryDTO is one row of the owner's agreement list.
type SummaryDTO struct {
	ID                  uuid.UUID             `json:"id"`
	ProjectID           uuid.UUID             `json:"project_id"`
	ServiceProviderName string                `json:"service_provider_name"`
	ServiceType         string                `json:"service_type"`
	AgreementDate       types.Date            `json:"agreement_date"`
	Status              enums.AgreementStatus `json:"status"`
	CreatedAt           time.Time             `json:"created_at"`
}

// ToDTO maps the aggregate. Links are included only when withLinks is set;
// the public signing view omits them.
func ToDTO(agg *Aggregate, withLinks bool) *AgreementDTO {
	if agg == nil {
		return nil
	}
	a := agg.Agreement
	dto := &AgreementDTO{
		ID:                  a.ID,
		ProjectID:           a.ProjectID,
		ServiceProviderName: a.ServiceProviderName,
		AgreementDate:       types.NewDate(a.AgreementDate),
		ServiceType:         a.ServiceType,
		StartDate:           datePtr(a.StartDate),
		EndDate:             datePtr(a.EndDate),
		Duration:            a.Duration,
		DurationUnit:        a.DurationUnit,
		RevisionCount:       a.RevisionCount,
		Jurisdiction:        a.Jurisdiction,
		Status:              a.Status,
		Deliverables:        make([]DeliverableDTO, 0, len(agg.Deliverables)),
		Signatures:          make([]SignatureDTO, 0, len(agg.Signatures)),
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
	for _, d := range agg.Deliverables {
		dto.Deliverables = append(dto.Deliverables, DeliverableDTO{ID: d.ID, Description: d.Description, Position: d.Position})
	}
	if agg.PaymentTerm != nil {
		terms := &PaymentTermsDTO{
			Structure:     agg.PaymentTerm.Structure,
			PaymentMethod: agg.PaymentTerm.PaymentMethod,
			Milestones:    make([]MilestoneDTO, 0, len(agg.PaymentTerm.Milestones)),
		}
		for _, m := range agg.PaymentTerm.Milestones {
			terms.Milestones = append(terms.Milestones, MilestoneDTO{
				ID:          m.ID,
				Description: m.Description,
				Amount:      m.Amount,
				Position:    m.Position,
				DueDate:     datePtr(m.DueDate),
			})
		}
		dto.PaymentTerms = terms
	}
	for _, s := range agg.Signatures {
		dto.Signatures = append(dto.Signatures, SignatureToDTO(s))
	}
	if withLinks {
		dto.Links = make([]LinkDTO, 0, len(agg.Links))
		for _, l := range agg.Links {
			dto.Links = append(dto.Links, LinkDTO{
				ID:         l.ID,
				ClientID:   l.ClientID,
				Status:     l.Status,
				ExpiresAt:  l.ExpiresAt,
				SignedAt:   l.SignedAt,
				LastSentAt: l.LastSentAt,
			})
		}
	}
	return dto
}

// SignatureToDTO maps one signature row without its storage path.
func SignatureToDTO(s models.Signature) SignatureDTO {
	return SignatureDTO{
		ID:          s.ID,
		SignerType:  s.SignerType,
		ClientID:    s.ClientID,
		SignerName:  s.SignerName,
		DocumentID:  s.DocumentID,
		ImageSHA256: s.ImageSHA256,
		SignedAt:    s.SignedAt,
	}
}

func toSummary(a models.Agreement) SummaryDTO {
	return SummaryDTO{
		ID:                  a.ID,
		ProjectID:           a.ProjectID,
		ServiceProviderName: a.ServiceProviderName,
		ServiceType:         a.ServiceType,
		AgreementDate:       types.NewDate(a.AgreementDate),
		Status:              a.Status,
		CreatedAt:           a.CreatedAt,
	}
}

func datePtr(t *time.Time) *types.Date {
	if t == nil {
		return nil
	}
	d := types.NewDate(*t)
	return &d
}
