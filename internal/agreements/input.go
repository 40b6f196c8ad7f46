package agreements

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/types"
)

// SignatureInput is a signer name plus a base64 (or data URL) image.
type SignatureInput struct {
	SignerName string `json:"signer_name"`
	Image      string `json:"signature_image"`
}

type MilestoneInput struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     *types.Date     `json:"due_date,omitempty"`
}

type PaymentTermsInput struct {
	Structure     enums.PaymentStructure `json:"structure"`
	PaymentMethod *string                `json:"payment_method,omitempty"`
	Milestones    []MilestoneInput       `json:"milestones,omitempty"`
}

// CreateInput carries everything needed to create an aggregate.
type CreateInput struct {
	ProjectID           uuid.UUID
	ServiceProviderName string
	AgreementDate       types.Date
	ServiceType         string
	StartDate           *types.Date
	EndDate             *types.Date
	Duration            *int
	DurationUnit        *enums.DurationUnit
	RevisionCount       int
	Jurisdiction        string
	Deliverables        []string
	PaymentTerms        PaymentTermsInput
	ProviderSignature   SignatureInput
}

// Patch is a partial update. Absent fields are untouched, present fields
// replace the stored value and explicit nulls clear nullable columns.
type Patch struct {
	ServiceProviderName types.Optional[string]
	AgreementDate       types.Optional[types.Date]
	ServiceType         types.Optional[string]
	StartDate           types.Optional[types.Date]
	EndDate             types.Optional[types.Date]
	Duration            types.Optional[int]
	DurationUnit        types.Optional[enums.DurationUnit]
	RevisionCount       types.Optional[int]
	Jurisdiction        types.Optional[string]
	Deliverables        types.Optional[[]string]
	PaymentTerms        types.Optional[PaymentTermsInput]
	ProviderSignature   types.Optional[SignatureInput]
}

// IsEmpty reports whether the patch carries no fields at all.
func (p Patch) IsEmpty() bool {
	return !p.ServiceProviderName.Set && !p.AgreementDate.Set && !p.ServiceType.Set &&
		!p.StartDate.Set && !p.EndDate.Set && !p.Duration.Set && !p.DurationUnit.Set &&
		!p.RevisionCount.Set && !p.Jurisdiction.Set && !p.Deliverables.Set &&
		!p.PaymentTerms.Set && !p.ProviderSignature.Set
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid agreement: %s", strings.Join(keys, ", "))).
		WithDetails(map[string]string(f))
}

func (in CreateInput) toModel(ownerID uuid.UUID) models.Agreement {
	a := models.Agreement{
		UserID:              ownerID,
		ProjectID:           in.ProjectID,
		ServiceProviderName: strings.TrimSpace(in.ServiceProviderName),
		AgreementDate:       in.AgreementDate.Time,
		ServiceType:         strings.TrimSpace(in.ServiceType),
		Duration:            in.Duration,
		DurationUnit:        in.DurationUnit,
		RevisionCount:       in.RevisionCount,
		Jurisdiction:        strings.TrimSpace(in.Jurisdiction),
		Status:              enums.AgreementStatusDraft,
	}
	if in.StartDate != nil {
		a.StartDate = in.StartDate.Ptr()
	}
	if in.EndDate != nil {
		a.EndDate = in.EndDate.Ptr()
	}
	return a
}

func (in CreateInput) validate() error {
	errs := fieldErrors{}
	if in.ProjectID == uuid.Nil {
		errs.add("project_id", "is required")
	}
	a := in.toModel(uuid.Nil)
	validateAgreement(a, errs)
	validateDeliverables(in.Deliverables, errs)
	validatePaymentTerms(in.PaymentTerms, errs)
	in.ProviderSignature.check("provider_signature", errs)
	return errs.err()
}

// Validate checks the signer fields; field prefixes the detail keys.
func (in SignatureInput) Validate(field string) error {
	errs := fieldErrors{}
	in.check(field, errs)
	return errs.err()
}

func (in SignatureInput) check(field string, errs fieldErrors) {
	if strings.TrimSpace(in.SignerName) == "" {
		errs.add(field+".signer_name", "is required")
	}
	if strings.TrimSpace(in.Image) == "" {
		errs.add(field+".signature_image", "is required")
	}
}

func validateAgreement(a models.Agreement, errs fieldErrors) {
	if a.ServiceProviderName == "" {
		errs.add("service_provider_name", "is required")
	}
	if a.AgreementDate.IsZero() {
		errs.add("agreement_date", "is required")
	}
	if a.ServiceType == "" {
		errs.add("service_type", "is required")
	}
	if a.Jurisdiction == "" {
		errs.add("jurisdiction", "is required")
	}
	if a.RevisionCount < 0 {
		errs.add("revision_count", "must not be negative")
	}
	if a.Duration != nil && *a.Duration <= 0 {
		errs.add("duration", "must be positive")
	}
	switch {
	case a.Duration != nil && a.DurationUnit == nil:
		errs.add("duration_unit", "is required when duration is set")
	case a.Duration == nil && a.DurationUnit != nil:
		errs.add("duration", "is required when duration_unit is set")
	case a.DurationUnit != nil && !a.DurationUnit.IsValid():
		errs.add("duration_unit", "must be one of days, weeks, months")
	}
	if a.StartDate != nil && a.EndDate != nil && a.EndDate.Before(*a.StartDate) {
		errs.add("end_date", "must not be before start_date")
	}
}

func validateDeliverables(items []string, errs fieldErrors) {
	if len(items) == 0 {
		errs.add("deliverables", "at least one deliverable is required")
		return
	}
	for i, item := range items {
		if strings.TrimSpace(item) == "" {
			errs.add(fmt.Sprintf("deliverables[%d]", i), "must not be blank")
		}
	}
}

func validatePaymentTerms(in PaymentTermsInput, errs fieldErrors) {
	if !in.Structure.IsValid() {
		errs.add("payment_terms.structure", "must be one of 50-50, 100-upfront, 100-completion, milestone-based")
		return
	}
	if !in.Structure.RequiresMilestones() {
		if len(in.Milestones) > 0 {
			errs.add("payment_terms.milestones", "only allowed for milestone-based payment")
		}
		return
	}
	if len(in.Milestones) == 0 {
		errs.add("payment_terms.milestones", "at least one milestone is required")
		return
	}
	for i, m := range in.Milestones {
		if strings.TrimSpace(m.Description) == "" {
			errs.add(fmt.Sprintf("payment_terms.milestones[%d].description", i), "is required")
		}
		if !m.Amount.IsPositive() {
			errs.add(fmt.Sprintf("payment_terms.milestones[%d].amount", i), "must be positive")
		}
		if m.Amount.Exponent() < -2 {
			errs.add(fmt.Sprintf("payment_terms.milestones[%d].amount", i), "must have at most two decimal places")
		}
	}
}

// apply writes the scalar fields of the patch onto a and returns the names
// of the sections it touched. Child collections are handled by the caller.
func (p Patch) apply(a *models.Agreement) ([]string, error) {
	errs := fieldErrors{}
	changed := []string{}

	requireString := func(field string, opt types.Optional[string], dst *string) {
		if !opt.Set {
			return
		}
		changed = append(changed, field)
		v, ok := opt.Get()
		if !ok {
			errs.add(field, "must not be null")
			return
		}
		*dst = strings.TrimSpace(v)
	}
	requireString("service_provider_name", p.ServiceProviderName, &a.ServiceProviderName)
	requireString("service_type", p.ServiceType, &a.ServiceType)
	requireString("jurisdiction", p.Jurisdiction, &a.Jurisdiction)

	if p.AgreementDate.Set {
		changed = append(changed, "agreement_date")
		if d, ok := p.AgreementDate.Get(); ok {
			a.AgreementDate = d.Time
		} else {
			errs.add("agreement_date", "must not be null")
		}
	}
	if p.RevisionCount.Set {
		changed = append(changed, "revision_count")
		if n, ok := p.RevisionCount.Get(); ok {
			a.RevisionCount = n
		} else {
			errs.add("revision_count", "must not be null")
		}
	}
	if p.StartDate.Set {
		changed = append(changed, "start_date")
		a.StartDate = optionalDate(p.StartDate)
	}
	if p.EndDate.Set {
		changed = append(changed, "end_date")
		a.EndDate = optionalDate(p.EndDate)
	}
	if p.Duration.Set {
		changed = append(changed, "duration")
		if n, ok := p.Duration.Get(); ok {
			a.Duration = &n
		} else {
			a.Duration = nil
		}
	}
	if p.DurationUnit.Set {
		changed = append(changed, "duration_unit")
		if u, ok := p.DurationUnit.Get(); ok {
			a.DurationUnit = &u
		} else {
			a.DurationUnit = nil
		}
	}

	validateAgreement(*a, errs)

	if p.Deliverables.Set {
		changed = append(changed, "deliverables")
		items, ok := p.Deliverables.Get()
		if !ok {
			errs.add("deliverables", "must not be null")
		} else {
			validateDeliverables(items, errs)
		}
	}
	if p.PaymentTerms.Set {
		changed = append(changed, "payment_terms")
		terms, ok := p.PaymentTerms.Get()
		if !ok {
			errs.add("payment_terms", "must not be null")
		} else {
			validatePaymentTerms(terms, errs)
		}
	}
	if p.ProviderSignature.Set {
		changed = append(changed, "provider_signature")
	}
	return changed, errs.err()
}

func optionalDate(opt types.Optional[types.Date]) *time.Time {
	if d, ok := opt.Get(); ok {
		return d.Ptr()
	}
	return nil
}

func deliverableRows(agreementID uuid.UUID, items []string) []models.Deliverable {
	rows := make([]models.Deliverable, 0, len(items))
	for i, item := range items {
		rows = append(rows, models.Deliverable{
			AgreementID: agreementID,
			Description: strings.TrimSpace(item),
			Position:    i,
		})
	}
	return rows
}

func paymentRows(agreementID uuid.UUID, in PaymentTermsInput) (*models.PaymentTerm, []models.Milestone) {
	term := &models.PaymentTerm{
		ID:            uuid.New(),
		AgreementID:   agreementID,
		Structure:     in.Structure,
		PaymentMethod: in.PaymentMethod,
	}
	if !in.Structure.RequiresMilestones() {
		return term, nil
	}
	milestones := make([]models.Milestone, 0, len(in.Milestones))
	for i, m := range in.Milestones {
		row := models.Milestone{
			PaymentTermID: term.ID,
			Description:   strings.TrimSpace(m.Description),
			Amount:        m.Amount,
			Position:      i,
		}
		if m.DueDate != nil {
			row.DueDate = m.DueDate.Ptr()
		}
		milestones = append(milestones, row)
	}
	return term, milestones
}
