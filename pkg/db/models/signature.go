package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

// Signature records one party's acceptance of an agreement. At most one
// provider row and one row per client exist per agreement; partial unique
// indexes enforce both.
type Signature struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AgreementID uuid.UUID        `gorm:"column:agreement_id;type:uuid;not null"`
	SignerType  enums.SignerType `gorm:"column:signer_type;type:signer_type_enum;not null"`
	ClientID    *uuid.UUID       `gorm:"column:client_id;type:uuid"`
	SignerName  string           `gorm:"column:signer_name;not null"`
	ImagePath   string           `gorm:"column:image_path;not null"`
	ImageSHA256 string           `gorm:"column:image_sha256;not null"`
	IPAddress   *string          `gorm:"column:ip_address"`
	DocumentID  string           `gorm:"column:document_id;not null"`
	SignedAt    time.Time        `gorm:"column:signed_at;not null"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (Signature) TableName() string { return "agreement_signatures" }

func (s *Signature) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SignatureLink is a per-client, time-limited signing invitation.
type SignatureLink struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AgreementID uuid.UUID        `gorm:"column:agreement_id;type:uuid;not null"`
	ClientID    uuid.UUID        `gorm:"column:client_id;type:uuid;not null"`
	Token       string           `gorm:"column:token;not null;uniqueIndex"`
	ExpiresAt   time.Time        `gorm:"column:expires_at;not null"`
	Status      enums.LinkStatus `gorm:"column:status;type:signature_link_status_enum;not null;default:pending"`
	SignedAt    *time.Time       `gorm:"column:signed_at"`
	LastSentAt  time.Time        `gorm:"column:last_sent_at;not null"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (SignatureLink) TableName() string { return "client_signature_links" }

func (l *SignatureLink) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
