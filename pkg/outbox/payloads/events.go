package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

// AgreementCreatedEvent is emitted once the aggregate and the provider
// signature are stored.
type AgreementCreatedEvent struct {
	AgreementID uuid.UUID             `json:"agreement_id"`
	UserID      uuid.UUID             `json:"user_id"`
	ProjectID   uuid.UUID             `json:"project_id"`
	Status      enums.AgreementStatus `json:"status"`
}

// AgreementUpdatedEvent lists the top-level sections an owner edit touched.
type AgreementUpdatedEvent struct {
	AgreementID   uuid.UUID `json:"agreement_id"`
	UserID        uuid.UUID `json:"user_id"`
	ChangedFields []string  `json:"changed_fields"`
}

// AgreementDeletedEvent carries every object store path owned by the deleted
// aggregate so the asset reaper can retry cleanup.
type AgreementDeletedEvent struct {
	AgreementID uuid.UUID `json:"agreement_id"`
	UserID      uuid.UUID `json:"user_id"`
	AssetPaths  []string  `json:"asset_paths"`
}

// AgreementSentEvent is emitted when signing links are issued or rotated.
type AgreementSentEvent struct {
	AgreementID uuid.UUID   `json:"agreement_id"`
	UserID      uuid.UUID   `json:"user_id"`
	ClientIDs   []uuid.UUID `json:"client_ids"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// AgreementSignedEvent is emitted when a client signs through their link.
type AgreementSignedEvent struct {
	AgreementID uuid.UUID             `json:"agreement_id"`
	ClientID    uuid.UUID             `json:"client_id"`
	SignatureID uuid.UUID             `json:"signature_id"`
	DocumentID  string                `json:"document_id"`
	Status      enums.AgreementStatus `json:"status"`
	SignedAt    time.Time             `json:"signed_at"`
}

// SignatureReplacedEvent is emitted when a stored signature image is
// superseded. OldImagePath is deleted after commit and again by the reaper.
type SignatureReplacedEvent struct {
	AgreementID  uuid.UUID        `json:"agreement_id"`
	SignerType   enums.SignerType `json:"signer_type"`
	ClientID     *uuid.UUID       `json:"client_id,omitempty"`
	SignatureID  uuid.UUID        `json:"signature_id"`
	OldImagePath string           `json:"old_image_path"`
}

// LinkExpiredEvent is emitted when a pending link moves to expired.
type LinkExpiredEvent struct {
	LinkID      uuid.UUID `json:"link_id"`
	AgreementID uuid.UUID `json:"agreement_id"`
	ClientID    uuid.UUID `json:"client_id"`
	ExpiredAt   time.Time `json:"expired_at"`
}
