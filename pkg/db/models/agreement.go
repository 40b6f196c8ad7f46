package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

// Agreement is the root of the service agreement aggregate.
type Agreement struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	ProjectID           uuid.UUID             `gorm:"column:project_id;type:uuid;not null"`
	ServiceProviderName string                `gorm:"column:service_provider_name;not null"`
	AgreementDate       time.Time             `gorm:"column:agreement_date;type:date;not null"`
	ServiceType         string                `gorm:"column:service_type;not null"`
	StartDate           *time.Time            `gorm:"column:start_date;type:date"`
	EndDate             *time.Time            `gorm:"column:end_date;type:date"`
	Duration            *int                  `gorm:"column:duration"`
	DurationUnit        *enums.DurationUnit   `gorm:"column:duration_unit;type:duration_unit_enum"`
	RevisionCount       int                   `gorm:"column:revision_count;not null;default:0"`
	Jurisdiction        string                `gorm:"column:jurisdiction;not null"`
	Status              enums.AgreementStatus `gorm:"column:status;type:agreement_status_enum;not null;default:draft"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Agreement) TableName() string { return "agreements" }

func (a *Agreement) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = enums.AgreementStatusDraft
	}
	return nil
}

// Deliverable is an ordered scope-of-work line on an agreement.
type Deliverable struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AgreementID uuid.UUID `gorm:"column:agreement_id;type:uuid;not null"`
	Description string    `gorm:"column:description;not null"`
	Position    int       `gorm:"column:position;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Deliverable) TableName() string { return "agreement_deliverables" }

func (d *Deliverable) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// PaymentTerm holds the single payment arrangement of an agreement.
type PaymentTerm struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AgreementID   uuid.UUID              `gorm:"column:agreement_id;type:uuid;not null;uniqueIndex"`
	Structure     enums.PaymentStructure `gorm:"column:structure;type:payment_structure_enum;not null"`
	PaymentMethod *string                `gorm:"column:payment_method"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentTerm) TableName() string { return "agreement_payment_terms" }

func (p *PaymentTerm) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Milestone is an ordered payment installment under a milestone-based term.
type Milestone struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentTermID uuid.UUID       `gorm:"column:payment_term_id;type:uuid;not null"`
	Description   string          `gorm:"column:description;not null"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Position      int             `gorm:"column:position;not null"`
	DueDate       *time.Time      `gorm:"column:due_date;type:date"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Milestone) TableName() string { return "agreement_milestones" }

func (m *Milestone) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
