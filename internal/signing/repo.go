package signing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

// LinkRepository persists client signing links and reads client signatures.
type LinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// FindByToken returns gorm.ErrRecordNotFound for unknown tokens.
func (r *LinkRepository) FindByToken(dbc dbctx.Context, token string) (*models.SignatureLink, error) {
	var link models.SignatureLink
	if err := dbc.DB(r.db).Where("token = ?", token).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// LockByID reads the link under a row lock.
func (r *LinkRepository) LockByID(dbc dbctx.Context, linkID uuid.UUID) (*models.SignatureLink, error) {
	var link models.SignatureLink
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", linkID).
		First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *LinkRepository) FindByAgreementAndClient(dbc dbctx.Context, agreementID, clientID uuid.UUID) (*models.SignatureLink, error) {
	var link models.SignatureLink
	if err := dbc.DB(r.db).
		Where("agreement_id = ? AND client_id = ?", agreementID, clientID).
		First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *LinkRepository) Create(dbc dbctx.Context, link *models.SignatureLink) error {
	return dbc.DB(r.db).Create(link).Error
}

// Rotate writes a fresh token and expiry and resets the link to pending.
func (r *LinkRepository) Rotate(dbc dbctx.Context, link *models.SignatureLink) error {
	return dbc.DB(r.db).
		Model(&models.SignatureLink{}).
		Where("id = ?", link.ID).
		Updates(map[string]any{
			"token":        link.Token,
			"expires_at":   link.ExpiresAt,
			"status":       link.Status,
			"signed_at":    link.SignedAt,
			"last_sent_at": link.LastSentAt,
			"updated_at":   link.UpdatedAt,
		}).Error
}

// MarkExpired moves a pending link to expired. It reports false when the
// link was not pending, so repeated calls write nothing.
func (r *LinkRepository) MarkExpired(dbc dbctx.Context, linkID uuid.UUID, now time.Time) (bool, error) {
	res := dbc.DB(r.db).
		Model(&models.SignatureLink{}).
		Where("id = ? AND status = ?", linkID, enums.LinkStatusPending).
		Updates(map[string]any{
			"status":     enums.LinkStatusExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *LinkRepository) MarkSigned(dbc dbctx.Context, linkID uuid.UUID, signedAt time.Time) error {
	return dbc.DB(r.db).
		Model(&models.SignatureLink{}).
		Where("id = ?", linkID).
		Updates(map[string]any{
			"status":     enums.LinkStatusClientSigned,
			"signed_at":  signedAt,
			"updated_at": signedAt,
		}).Error
}

// ListOverdue locks up to limit pending links whose expiry is before now.
// Rows locked by another sweeper are skipped.
func (r *LinkRepository) ListOverdue(dbc dbctx.Context, now time.Time, limit int) ([]models.SignatureLink, error) {
	var links []models.SignatureLink
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND expires_at < ?", enums.LinkStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// FindClientSignature returns the live signature clientID left on the
// agreement, if any.
func (r *LinkRepository) FindClientSignature(dbc dbctx.Context, agreementID, clientID uuid.UUID) (*models.Signature, error) {
	var sig models.Signature
	if err := dbc.DB(r.db).
		Where("agreement_id = ? AND client_id = ? AND signer_type = ?", agreementID, clientID, enums.SignerTypeClient).
		First(&sig).Error; err != nil {
		return nil, err
	}
	return &sig, nil
}
