package enums

import "slices"

// AgreementStatus is derived from signing link state and never accepted
// from callers.
type AgreementStatus string

const (
	AgreementStatusDraft     AgreementStatus = "draft"
	AgreementStatusPending   AgreementStatus = "pending"
	AgreementStatusCompleted AgreementStatus = "completed"
)

var agreementStatuses = []AgreementStatus{AgreementStatusDraft, AgreementStatusPending, AgreementStatusCompleted}

func (s AgreementStatus) String() string { return string(s) }
func (s AgreementStatus) IsValid() bool { return slices.Contains(agreementStatuses, s) }

func ParseAgreementStatus(raw string) (AgreementStatus, error) {
	return parse(agreementStatuses, "agreement status", raw)
}

type DurationUnit string

const (
	DurationUnitDays   DurationUnit = "days"
	DurationUnitWeeks  DurationUnit = "weeks"
	DurationUnitMonths DurationUnit = "months"
)

var durationUnits = []DurationUnit{DurationUnitDays, DurationUnitWeeks, DurationUnitMonths}

func (u DurationUnit) String() string { return string(u) }
func (u DurationUnit) IsValid() bool { return slices.Contains(durationUnits, u) }

// Singular is the unit name for a duration of exactly one.
func (u DurationUnit) Singular() string {
	if u.IsValid() {
		return string(u[:len(u)-1])
	}
	return string(u)
}

func ParseDurationUnit(raw string) (DurationUnit, error) {
	return parse(durationUnits, "duration unit", raw)
}

type PaymentStructure string

const (
	PaymentStructureSplit50        PaymentStructure = "50-50"
	PaymentStructureUpfront        PaymentStructure = "100-upfront"
	PaymentStructureOnCompletion   PaymentStructure = "100-completion"
	PaymentStructureMilestoneBased PaymentStructure = "milestone-based"
)

var paymentStructures = []PaymentStructure{
	PaymentStructureSplit50,
	PaymentStructureUpfront,
	PaymentStructureOnCompletion,
	PaymentStructureMilestoneBased,
}

func (p PaymentStructure) String() string { return string(p) }
func (p PaymentStructure) IsValid() bool { return slices.Contains(paymentStructures, p) }

func (p PaymentStructure) RequiresMilestones() bool {
	return p == PaymentStructureMilestoneBased
}

func ParsePaymentStructure(raw string) (PaymentStructure, error) {
	return parse(paymentStructures, "payment structure", raw)
}
