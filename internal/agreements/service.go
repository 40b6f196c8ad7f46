package agreements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/internal/assets"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ledgerly-backend/pkg/pagination"
	"github.com/angelmondragon/ledgerly-backend/pkg/security"
	"github.com/angelmondragon/ledgerly-backend/pkg/storage"
)

// DefaultEditWindow bounds how long after creation an agreement stays editable.
const DefaultEditWindow = 48 * time.Hour

// EditWindowClosedReason is reported in the error details when an update
// arrives after the edit window.
const EditWindowClosedReason = "EDIT_WINDOW_CLOSED"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type projectDirectory interface {
	ProjectOwnedBy(dbc dbctx.Context, ownerID, projectID uuid.UUID) (bool, error)
}

// Service manages the agreement aggregate on behalf of its owner.
type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input CreateInput) (*Aggregate, error)
	Get(ctx context.Context, ownerID, agreementID uuid.UUID) (*Aggregate, error)
	GetByProject(ctx context.Context, ownerID, projectID uuid.UUID) (*Aggregate, error)
	List(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (pagination.Page[SummaryDTO], error)
	Update(ctx context.Context, ownerID, agreementID uuid.UUID, patch Patch) (*Aggregate, error)
	Delete(ctx context.Context, ownerID, agreementID uuid.UUID) error
}

// ServiceParams bundles the dependencies of the agreement service.
type ServiceParams struct {
	Repo              *Repository
	Directory         projectDirectory
	Tx                txRunner
	Store             storage.Store
	Outbox            outbox.Emitter
	Logger            *logger.Logger
	Metrics           *metrics.SigningMetrics
	EditWindow        time.Duration
	MaxSignatureBytes int
	Clock             func() time.Time
}

type service struct {
	repo       *Repository
	directory  projectDirectory
	tx         txRunner
	store      storage.Store
	outbox     outbox.Emitter
	logg       *logger.Logger
	metrics    *metrics.SigningMetrics
	editWindow time.Duration
	maxImage   int
	now        func() time.Time
}

// NewService validates dependencies and builds the agreement service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("agreements repository required")
	}
	if params.Directory == nil {
		return nil, fmt.Errorf("directory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	window := params.EditWindow
	if window <= 0 {
		window = DefaultEditWindow
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:       params.Repo,
		directory:  params.Directory,
		tx:         params.Tx,
		store:      params.Store,
		outbox:     params.Outbox,
		logg:       params.Logger,
		metrics:    params.Metrics,
		editWindow: window,
		maxImage:   params.MaxSignatureBytes,
		now:        clock,
	}, nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input CreateInput) (*Aggregate, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	img, err := assets.DecodeSignatureImage(input.ProviderSignature.Image, s.maxImage)
	if err != nil {
		return nil, err
	}

	owned, err := s.directory.ProjectOwnedBy(dbctx.Background(ctx), ownerID, input.ProjectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup project")
	}
	if !owned {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}

	saga := assets.NewSaga(s.store, s.logg, s.metrics)
	imagePath, err := saga.Upload(ctx, storage.UploadRequest{
		Data:        img.Data,
		Filename:    img.Filename("provider-signature"),
		Category:    enums.AssetCategorySignature,
		OwnerID:     ownerID.String(),
		ContentType: img.ContentType,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload signature image")
	}

	now := s.now().UTC()
	agreement := input.toModel(ownerID)
	agreement.ID = uuid.New()
	agreement.CreatedAt = now
	agreement.UpdatedAt = now

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)
		if err := s.repo.CreateAgreement(dbc, &agreement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert agreement")
		}
		if err := s.repo.InsertDeliverables(dbc, deliverableRows(agreement.ID, input.Deliverables)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert deliverables")
		}
		term, milestones := paymentRows(agreement.ID, input.PaymentTerms)
		if err := s.repo.InsertPaymentTerm(dbc, term, milestones); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment terms")
		}
		if _, err := s.insertProviderSignature(dbc, agreement.ID, input.ProviderSignature, img, imagePath, now); err != nil {
			return err
		}
		return s.emit(dbc, ownerID, agreement.ID, enums.EventAgreementCreated, payloads.AgreementCreatedEvent{
			AgreementID: agreement.ID,
			UserID:      ownerID,
			ProjectID:   agreement.ProjectID,
			Status:      agreement.Status,
		})
	})
	if err != nil {
		saga.Compensate(ctx)
		return nil, asServiceError(err, "create agreement")
	}

	s.metrics.IncSignature("provider_create")
	s.logg.Info(s.logg.WithAgreementID(ctx, agreement.ID.String()), "agreement created")
	return s.Get(ctx, ownerID, agreement.ID)
}

func (s *service) Get(ctx context.Context, ownerID, agreementID uuid.UUID) (*Aggregate, error) {
	dbc := dbctx.Background(ctx)
	agreement, err := s.repo.FindOwned(dbc, ownerID, agreementID)
	if err != nil {
		return nil, lookupError(err, "agreement not found")
	}
	agg, err := s.repo.LoadAggregate(dbc, *agreement)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agreement")
	}
	return agg, nil
}

func (s *service) GetByProject(ctx context.Context, ownerID, projectID uuid.UUID) (*Aggregate, error) {
	dbc := dbctx.Background(ctx)
	agreement, err := s.repo.FindOwnedByProject(dbc, ownerID, projectID)
	if err != nil {
		return nil, lookupError(err, "agreement not found")
	}
	agg, err := s.repo.LoadAggregate(dbc, *agreement)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agreement")
	}
	return agg, nil
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (pagination.Page[SummaryDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[SummaryDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListOwned(dbctx.Background(ctx), ownerID, params.Limit, cursor)
	if err != nil {
		return pagination.Page[SummaryDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agreements")
	}
	page := pagination.Trim(rows, params.Limit, func(a models.Agreement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})
	out := pagination.Page[SummaryDTO]{
		Items:      make([]SummaryDTO, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for _, row := range page.Items {
		out.Items = append(out.Items, toSummary(row))
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, ownerID, agreementID uuid.UUID, patch Patch) (*Aggregate, error) {
	if patch.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	var (
		sigInput SignatureInput
		img      *assets.Image
	)
	if patch.ProviderSignature.Set {
		in, ok := patch.ProviderSignature.Get()
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider_signature must not be null")
		}
		if err := in.Validate("provider_signature"); err != nil {
			return nil, err
		}
		decoded, err := assets.DecodeSignatureImage(in.Image, s.maxImage)
		if err != nil {
			return nil, err
		}
		sigInput, img = in, decoded
	}

	// Fail fast before touching the object store; the check is repeated
	// under the row lock.
	current, err := s.repo.FindOwned(dbctx.Background(ctx), ownerID, agreementID)
	if err != nil {
		return nil, lookupError(err, "agreement not found")
	}
	if err := s.checkEditWindow(current); err != nil {
		return nil, err
	}

	saga := assets.NewSaga(s.store, s.logg, s.metrics)
	var imagePath string
	if img != nil {
		imagePath, err = saga.Upload(ctx, storage.UploadRequest{
			Data:        img.Data,
			Filename:    img.Filename("provider-signature"),
			Category:    enums.AssetCategorySignature,
			OwnerID:     ownerID.String(),
			ContentType: img.ContentType,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload signature image")
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)
		agreement, err := s.repo.LockOwned(dbc, ownerID, agreementID)
		if err != nil {
			return lookupError(err, "agreement not found")
		}
		if err := s.checkEditWindow(agreement); err != nil {
			return err
		}

		changed, err := patch.apply(agreement)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateFields(dbc, agreement, s.now()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update agreement")
		}
		if items, ok := patch.Deliverables.Get(); ok {
			if err := s.repo.ReplaceDeliverables(dbc, agreement.ID, deliverableRows(agreement.ID, items)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace deliverables")
			}
		}
		if terms, ok := patch.PaymentTerms.Get(); ok {
			term, milestones := paymentRows(agreement.ID, terms)
			if err := s.repo.ReplacePaymentTerm(dbc, agreement.ID, term, milestones); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace payment terms")
			}
		}
		if img != nil {
			if err := s.replaceProviderSignature(dbc, saga, ownerID, agreement.ID, sigInput, img, imagePath); err != nil {
				return err
			}
		}
		return s.emit(dbc, ownerID, agreement.ID, enums.EventAgreementUpdated, payloads.AgreementUpdatedEvent{
			AgreementID:   agreement.ID,
			UserID:        ownerID,
			ChangedFields: changed,
		})
	})
	if err != nil {
		saga.Compensate(ctx)
		return nil, asServiceError(err, "update agreement")
	}

	logCtx := s.logg.WithAgreementID(ctx, agreementID.String())
	if err := saga.Commit(ctx); err != nil {
		s.logg.Warn(logCtx, "agreement updated with orphaned assets")
	}
	s.logg.Info(logCtx, "agreement updated")
	return s.Get(ctx, ownerID, agreementID)
}

func (s *service) Delete(ctx context.Context, ownerID, agreementID uuid.UUID) error {
	saga := assets.NewSaga(s.store, s.logg, s.metrics)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)
		agreement, err := s.repo.LockOwned(dbc, ownerID, agreementID)
		if err != nil {
			return lookupError(err, "agreement not found")
		}
		paths, err := s.repo.ListAssetPaths(dbc, agreement.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agreement assets")
		}
		if err := s.repo.Delete(dbc, agreement.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete agreement")
		}
		if err := s.emit(dbc, ownerID, agreement.ID, enums.EventAgreementDeleted, payloads.AgreementDeletedEvent{
			AgreementID: agreement.ID,
			UserID:      ownerID,
			AssetPaths:  paths,
		}); err != nil {
			return err
		}
		saga.DeleteAfterCommit(paths...)
		return nil
	})
	if err != nil {
		return asServiceError(err, "delete agreement")
	}

	logCtx := s.logg.WithAgreementID(ctx, agreementID.String())
	if err := saga.Commit(ctx); err != nil {
		s.logg.Warn(logCtx, "agreement deleted with orphaned assets")
		return nil
	}
	s.logg.Info(logCtx, "agreement deleted")
	return nil
}

func (s *service) checkEditWindow(agreement *models.Agreement) error {
	if s.now().Sub(agreement.CreatedAt) <= s.editWindow {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "agreement can no longer be edited").
		WithDetails(map[string]any{
			"reason":     EditWindowClosedReason,
			"created_at": agreement.CreatedAt.UTC(),
			"window":     s.editWindow.String(),
		})
}

func (s *service) insertProviderSignature(dbc dbctx.Context, agreementID uuid.UUID, in SignatureInput, img *assets.Image, imagePath string, now time.Time) (*models.Signature, error) {
	documentID, err := security.NewDocumentID(now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate document id")
	}
	sig := &models.Signature{
		AgreementID: agreementID,
		SignerType:  enums.SignerTypeServiceProvider,
		SignerName:  strings.TrimSpace(in.SignerName),
		ImagePath:   imagePath,
		ImageSHA256: img.SHA256,
		DocumentID:  documentID,
		SignedAt:    now,
	}
	if err := s.repo.InsertSignature(dbc, sig); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert provider signature")
	}
	return sig, nil
}

func (s *service) replaceProviderSignature(dbc dbctx.Context, saga *assets.Saga, ownerID, agreementID uuid.UUID, in SignatureInput, img *assets.Image, imagePath string) error {
	old, err := s.repo.FindProviderSignature(dbc, agreementID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load provider signature")
	}
	if old != nil {
		if err := s.repo.DeleteSignature(dbc, old.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete provider signature")
		}
	}
	sig, err := s.insertProviderSignature(dbc, agreementID, in, img, imagePath, s.now().UTC())
	if err != nil {
		return err
	}
	if old == nil {
		return nil
	}
	saga.DeleteAfterCommit(old.ImagePath)
	s.metrics.IncSignature("provider_replace")
	return s.emit(dbc, ownerID, agreementID, enums.EventSignatureReplaced, payloads.SignatureReplacedEvent{
		AgreementID:  agreementID,
		SignerType:   enums.SignerTypeServiceProvider,
		SignatureID:  sig.ID,
		OldImagePath: old.ImagePath,
	})
}

func (s *service) emit(dbc dbctx.Context, ownerID, agreementID uuid.UUID, eventType enums.OutboxEventType, data any) error {
	if err := s.outbox.Emit(dbc, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAgreement,
		AggregateID:   agreementID,
		Actor:         outbox.OwnerActor(ownerID),
		Data:          data,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue "+string(eventType))
	}
	return nil
}

func lookupError(err error, notFoundMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup agreement")
}

// asServiceError keeps typed errors raised inside a transaction and wraps
// anything else (commit failures) as a dependency error.
func asServiceError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
