package agreements

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	"github.com/angelmondragon/ledgerly-backend/pkg/pagination"
)

// Repository persists the agreement aggregate. Every method takes a
// dbctx.Context so writes join the caller's transaction.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a repository to the provided connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateAgreement(dbc dbctx.Context, agreement *models.Agreement) error {
	return dbc.DB(r.db).Create(agreement).Error
}

func (r *Repository) InsertDeliverables(dbc dbctx.Context, rows []models.Deliverable) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&rows).Error
}

// ReplaceDeliverables drops the current list and inserts rows in order.
func (r *Repository) ReplaceDeliverables(dbc dbctx.Context, agreementID uuid.UUID, rows []models.Deliverable) error {
	if err := dbc.DB(r.db).Where("agreement_id = ?", agreementID).Delete(&models.Deliverable{}).Error; err != nil {
		return err
	}
	return r.InsertDeliverables(dbc, rows)
}

// ReplacePaymentTerm removes any existing term with its milestones and
// inserts the new term.
func (r *Repository) ReplacePaymentTerm(dbc dbctx.Context, agreementID uuid.UUID, term *models.PaymentTerm, milestones []models.Milestone) error {
	conn := dbc.DB(r.db)
	existing := conn.Model(&models.PaymentTerm{}).Select("id").Where("agreement_id = ?", agreementID)
	if err := conn.Where("payment_term_id IN (?)", existing).Delete(&models.Milestone{}).Error; err != nil {
		return err
	}
	if err := dbc.DB(r.db).Where("agreement_id = ?", agreementID).Delete(&models.PaymentTerm{}).Error; err != nil {
		return err
	}
	return r.InsertPaymentTerm(dbc, term, milestones)
}

func (r *Repository) InsertPaymentTerm(dbc dbctx.Context, term *models.PaymentTerm, milestones []models.Milestone) error {
	if err := dbc.DB(r.db).Create(term).Error; err != nil {
		return err
	}
	if len(milestones) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&milestones).Error
}

func (r *Repository) InsertSignature(dbc dbctx.Context, sig *models.Signature) error {
	return dbc.DB(r.db).Create(sig).Error
}

func (r *Repository) DeleteSignature(dbc dbctx.Context, signatureID uuid.UUID) error {
	return dbc.DB(r.db).Where("id = ?", signatureID).Delete(&models.Signature{}).Error
}

// FindOwned loads an agreement scoped to its owner. Returns
// gorm.ErrRecordNotFound when the id is unknown or belongs to someone else.
func (r *Repository) FindOwned(dbc dbctx.Context, ownerID, agreementID uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	if err := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", agreementID, ownerID).
		First(&agreement).Error; err != nil {
		return nil, err
	}
	return &agreement, nil
}

// FindByID loads an agreement without owner scoping. Only the token path
// uses it, where the link row already names the agreement.
func (r *Repository) FindByID(dbc dbctx.Context, agreementID uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	if err := dbc.DB(r.db).Where("id = ?", agreementID).First(&agreement).Error; err != nil {
		return nil, err
	}
	return &agreement, nil
}

// LockOwned is FindOwned with a row lock held until the transaction ends.
func (r *Repository) LockOwned(dbc dbctx.Context, ownerID, agreementID uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", agreementID, ownerID).
		First(&agreement).Error; err != nil {
		return nil, err
	}
	return &agreement, nil
}

// Lock takes a row lock on the agreement without owner scoping. The signing
// path uses it after the token has bound the caller to the agreement.
func (r *Repository) Lock(dbc dbctx.Context, agreementID uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", agreementID).
		First(&agreement).Error; err != nil {
		return nil, err
	}
	return &agreement, nil
}

// FindOwnedByProject returns the newest agreement on the project.
func (r *Repository) FindOwnedByProject(dbc dbctx.Context, ownerID, projectID uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	if err := dbc.DB(r.db).
		Where("project_id = ? AND user_id = ?", projectID, ownerID).
		Order("created_at DESC").
		Order("id DESC").
		First(&agreement).Error; err != nil {
		return nil, err
	}
	return &agreement, nil
}

// LoadAggregate reads every child collection of agreement in stored order.
func (r *Repository) LoadAggregate(dbc dbctx.Context, agreement models.Agreement) (*Aggregate, error) {
	conn := dbc.DB(r.db)
	agg := &Aggregate{Agreement: agreement}

	if err := conn.Where("agreement_id = ?", agreement.ID).
		Order("position ASC").
		Find(&agg.Deliverables).Error; err != nil {
		return nil, err
	}

	var term models.PaymentTerm
	err := conn.Where("agreement_id = ?", agreement.ID).First(&term).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, err
	default:
		agg.PaymentTerm = &PaymentTerms{PaymentTerm: term}
		if err := conn.Where("payment_term_id = ?", term.ID).
			Order("position ASC").
			Find(&agg.PaymentTerm.Milestones).Error; err != nil {
			return nil, err
		}
	}

	if err := conn.Where("agreement_id = ?", agreement.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&agg.Signatures).Error; err != nil {
		return nil, err
	}
	if err := conn.Where("agreement_id = ?", agreement.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&agg.Links).Error; err != nil {
		return nil, err
	}
	return agg, nil
}

// ListOwned returns up to limit+1 agreements, newest first, strictly after
// cursor when one is given.
func (r *Repository) ListOwned(dbc dbctx.Context, ownerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Agreement, error) {
	var rows []models.Agreement
	err := dbc.DB(r.db).
		Where("user_id = ?", ownerID).
		Scopes(pagination.Keyset(cursor, limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateFields writes the editable scalar columns of agreement.
func (r *Repository) UpdateFields(dbc dbctx.Context, agreement *models.Agreement, now time.Time) error {
	agreement.UpdatedAt = now.UTC()
	return dbc.DB(r.db).
		Model(&models.Agreement{}).
		Where("id = ?", agreement.ID).
		Updates(map[string]any{
			"service_provider_name": agreement.ServiceProviderName,
			"agreement_date":        agreement.AgreementDate,
			"service_type":          agreement.ServiceType,
			"start_date":            agreement.StartDate,
			"end_date":              agreement.EndDate,
			"duration":              agreement.Duration,
			"duration_unit":         agreement.DurationUnit,
			"revision_count":        agreement.RevisionCount,
			"jurisdiction":          agreement.Jurisdiction,
			"updated_at":            agreement.UpdatedAt,
		}).Error
}

func (r *Repository) UpdateStatus(dbc dbctx.Context, agreementID uuid.UUID, status enums.AgreementStatus, now time.Time) error {
	return dbc.DB(r.db).
		Model(&models.Agreement{}).
		Where("id = ?", agreementID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": now.UTC(),
		}).Error
}

// ListLinkStatuses reads the current status of every link on the agreement.
func (r *Repository) ListLinkStatuses(dbc dbctx.Context, agreementID uuid.UUID) ([]enums.LinkStatus, error) {
	var statuses []enums.LinkStatus
	if err := dbc.DB(r.db).
		Model(&models.SignatureLink{}).
		Where("agreement_id = ?", agreementID).
		Pluck("status", &statuses).Error; err != nil {
		return nil, err
	}
	return statuses, nil
}

// RecomputeStatus derives the status from the stored links and persists it
// when it differs from current.
func (r *Repository) RecomputeStatus(dbc dbctx.Context, agreementID uuid.UUID, current enums.AgreementStatus, now time.Time) (enums.AgreementStatus, error) {
	statuses, err := r.ListLinkStatuses(dbc, agreementID)
	if err != nil {
		return current, err
	}
	next := DeriveStatus(statuses)
	if next == current {
		return current, nil
	}
	if err := r.UpdateStatus(dbc, agreementID, next, now); err != nil {
		return current, err
	}
	return next, nil
}

// ListAssetPaths returns the image path of every signature on the agreement.
func (r *Repository) ListAssetPaths(dbc dbctx.Context, agreementID uuid.UUID) ([]string, error) {
	var paths []string
	if err := dbc.DB(r.db).
		Model(&models.Signature{}).
		Where("agreement_id = ?", agreementID).
		Order("created_at ASC").
		Pluck("image_path", &paths).Error; err != nil {
		return nil, err
	}
	return paths, nil
}

// Delete removes the agreement; child rows go with it through ON DELETE
// CASCADE.
func (r *Repository) Delete(dbc dbctx.Context, agreementID uuid.UUID) error {
	return dbc.DB(r.db).Where("id = ?", agreementID).Delete(&models.Agreement{}).Error
}

// FindProviderSignature returns the service provider's signature row.
func (r *Repository) FindProviderSignature(dbc dbctx.Context, agreementID uuid.UUID) (*models.Signature, error) {
	var sig models.Signature
	if err := dbc.DB(r.db).
		Where("agreement_id = ? AND signer_type = ?", agreementID, enums.SignerTypeServiceProvider).
		First(&sig).Error; err != nil {
		return nil, err
	}
	return &sig, nil
}
