package signing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/internal/assets"
	"github.com/angelmondragon/ledgerly-backend/internal/documents"
	"github.com/angelmondragon/ledgerly-backend/pkg/db"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ledgerly-backend/pkg/security"
	"github.com/angelmondragon/ledgerly-backend/pkg/storage"
)

type mode int

const (
	modeSubmit mode = iota
	modeUpdate
)

func (m mode) operation() string {
	if m == modeUpdate {
		return "client_update"
	}
	return "client_submit"
}

// Receipt is returned once a client signature is stored. DocumentURL is
// empty when post-signature delivery did not produce a document.
type Receipt struct {
	Aggregate   *agreements.Aggregate
	Signature   models.Signature
	Status      enums.AgreementStatus
	DocumentURL string
}

// Collector stores client signatures submitted through a signing link.
type Collector struct {
	agreements    *agreements.Repository
	links         *LinkRepository
	directory     partyDirectory
	tx            txRunner
	store         storage.Store
	outbox        outbox.Emitter
	expirer       *Expirer
	notifier      *Notifier
	renderer      documentRenderer
	logg          *logger.Logger
	metrics       *metrics.SigningMetrics
	maxImage      int
	documentTTL   time.Duration
	renderTimeout time.Duration
	now           func() time.Time
}

func NewCollector(p Params) (*Collector, error) {
	if err := p.checkBase(); err != nil {
		return nil, err
	}
	if p.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if p.Renderer == nil {
		return nil, fmt.Errorf("document renderer required")
	}
	return &Collector{
		agreements:    p.Agreements,
		links:         p.Links,
		directory:     p.Directory,
		tx:            p.Tx,
		store:         p.Store,
		outbox:        p.Outbox,
		expirer:       p.Expirer,
		notifier:      p.Notifier,
		renderer:      p.Renderer,
		logg:          p.Logger,
		metrics:       p.Metrics,
		maxImage:      p.MaxSignatureBytes,
		documentTTL:   orDefault(p.DocumentURLTTL, DefaultDocumentURLTTL),
		renderTimeout: orDefault(p.RenderTimeout, DefaultRenderTimeout),
		now:           p.clock(),
	}, nil
}

// Submit records the client's first signature. A link that is already
// client_signed is a conflict.
func (c *Collector) Submit(ctx context.Context, token string, input agreements.SignatureInput, ip string) (*Receipt, error) {
	return c.collect(ctx, token, input, ip, modeSubmit)
}

// Update replaces the client's signature while the link is unexpired. On a
// link that was never signed it behaves like Submit.
func (c *Collector) Update(ctx context.Context, token string, input agreements.SignatureInput, ip string) (*Receipt, error) {
	return c.collect(ctx, token, input, ip, modeUpdate)
}

func (c *Collector) collect(ctx context.Context, token string, input agreements.SignatureInput, ip string, m mode) (*Receipt, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "signing link not found")
	}
	if err := input.Validate("signature"); err != nil {
		return nil, err
	}
	img, err := assets.DecodeSignatureImage(input.Image, c.maxImage)
	if err != nil {
		return nil, err
	}

	link, err := c.links.FindByToken(dbctx.Background(ctx), token)
	if err != nil {
		return nil, notFoundOr(err, "signing link not found", "lookup signing link")
	}
	now := c.now().UTC()
	if err := c.checkLink(ctx, link, m, now); err != nil {
		return nil, err
	}

	saga := assets.NewSaga(c.store, c.logg, c.metrics)
	imagePath, err := saga.Upload(ctx, storage.UploadRequest{
		Data:        img.Data,
		Filename:    img.Filename("client-signature"),
		Category:    enums.AssetCategorySignature,
		OwnerID:     link.ClientID.String(),
		ContentType: img.ContentType,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload signature image")
	}

	var (
		receipt Receipt
		ownerID uuid.UUID
	)
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)
		agreement, err := c.agreements.Lock(dbc, link.AgreementID)
		if err != nil {
			return notFoundOr(err, "agreement not found", "lookup agreement")
		}
		ownerID = agreement.UserID
		locked, err := c.links.LockByID(dbc, link.ID)
		if err != nil {
			return notFoundOr(err, "signing link not found", "lookup signing link")
		}
		if locked.Token != token {
			return pkgerrors.New(pkgerrors.CodeNotFound, "signing link not found")
		}
		if IsExpired(*locked, now) {
			return pkgerrors.New(pkgerrors.CodeExpired, "signing link has expired")
		}
		if m == modeSubmit && locked.Status == enums.LinkStatusClientSigned {
			return alreadySigned()
		}

		old, err := c.links.FindClientSignature(dbc, agreement.ID, locked.ClientID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load client signature")
		}
		if old != nil {
			if err := c.agreements.DeleteSignature(dbc, old.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete client signature")
			}
		}

		documentID, err := security.NewDocumentID(now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate document id")
		}
		clientID := locked.ClientID
		sig := models.Signature{
			AgreementID: agreement.ID,
			SignerType:  enums.SignerTypeClient,
			ClientID:    &clientID,
			SignerName:  strings.TrimSpace(input.SignerName),
			ImagePath:   imagePath,
			ImageSHA256: img.SHA256,
			IPAddress:   optionalIP(ip),
			DocumentID:  documentID,
			SignedAt:    now,
		}
		if err := c.agreements.InsertSignature(dbc, &sig); err != nil {
			if db.IsUniqueViolation(err, "") {
				return alreadySigned()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert client signature")
		}
		if err := c.links.MarkSigned(dbc, locked.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark link signed")
		}
		status, err := c.agreements.RecomputeStatus(dbc, agreement.ID, agreement.Status, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute agreement status")
		}

		if locked.Status != enums.LinkStatusClientSigned {
			if err := c.emit(dbc, clientID, agreement.ID, enums.EventAgreementSigned, payloads.AgreementSignedEvent{
				AgreementID: agreement.ID,
				ClientID:    clientID,
				SignatureID: sig.ID,
				DocumentID:  documentID,
				Status:      status,
				SignedAt:    now,
			}); err != nil {
				return err
			}
		}
		if old != nil {
			saga.DeleteAfterCommit(old.ImagePath)
			if err := c.emit(dbc, clientID, agreement.ID, enums.EventSignatureReplaced, payloads.SignatureReplacedEvent{
				AgreementID:  agreement.ID,
				SignerType:   enums.SignerTypeClient,
				ClientID:     &clientID,
				SignatureID:  sig.ID,
				OldImagePath: old.ImagePath,
			}); err != nil {
				return err
			}
		}
		receipt.Signature = sig
		receipt.Status = status
		return nil
	})
	if err != nil {
		saga.Compensate(ctx)
		return nil, asServiceError(err, "store client signature")
	}
	logCtx := c.logg.WithClientID(c.logg.WithAgreementID(ctx, link.AgreementID.String()), link.ClientID.String())
	if err := saga.Commit(ctx); err != nil {
		c.logg.Warn(logCtx, "client signature stored with orphaned assets")
	}
	c.metrics.IncSignature(m.operation())
	c.logg.Info(c.logg.WithField(logCtx, "status", receipt.Status), "client signature stored")

	agg, err := c.loadAggregate(dbctx.Background(ctx), link.AgreementID)
	if err != nil {
		return nil, err
	}
	receipt.Aggregate = agg
	receipt.DocumentURL = c.deliver(ctx, ownerID, agg, link.ClientID, receipt.Signature)
	return &receipt, nil
}

// checkLink rejects unusable links before anything is uploaded. The checks
// are repeated under the row lock.
func (c *Collector) checkLink(ctx context.Context, link *models.SignatureLink, m mode, now time.Time) error {
	if IsExpired(*link, now) {
		if err := expireLink(ctx, c.expirer, link, now); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeExpired, "signing link has expired")
	}
	if m == modeSubmit && link.Status == enums.LinkStatusClientSigned {
		return alreadySigned()
	}
	return nil
}

func (c *Collector) loadAggregate(dbc dbctx.Context, agreementID uuid.UUID) (*agreements.Aggregate, error) {
	agreement, err := c.agreements.FindByID(dbc, agreementID)
	if err != nil {
		return nil, notFoundOr(err, "agreement not found", "lookup agreement")
	}
	agg, err := c.agreements.LoadAggregate(dbc, *agreement)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agreement")
	}
	return agg, nil
}

// deliver renders the signed document, stores it and mails it to the
// client and the owner. Every step is best effort.
func (c *Collector) deliver(ctx context.Context, ownerID uuid.UUID, agg *agreements.Aggregate, clientID uuid.UUID, sig models.Signature) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.renderTimeout)
	defer cancel()
	logCtx := c.logg.WithClientID(c.logg.WithAgreementID(ctx, agg.Agreement.ID.String()), clientID.String())
	dbc := dbctx.Background(ctx)

	client, err := c.directory.FindClient(dbc, clientID)
	if err != nil {
		c.logg.Error(logCtx, "load signing client", err)
		client = nil
	}
	party := documents.PartyFromClient(client)

	pdf, err := c.renderer.RenderAggregate(ctx, agg, party)
	if err != nil {
		c.metrics.IncSideEffectFailure(metrics.SideEffectDocument)
		c.logg.Error(logCtx, "render signed agreement", err)
		pdf = nil
	}

	var documentURL string
	if pdf != nil {
		documentURL, err = c.storeDocument(ctx, ownerID, agg.Agreement.ID, pdf)
		if err != nil {
			c.metrics.IncSideEffectFailure(metrics.SideEffectDocument)
			c.logg.Error(logCtx, "store signed agreement", err)
		}
	}

	copyFor := func(name, email string) SignedCopy {
		return SignedCopy{
			Name:         name,
			Email:        email,
			SignerName:   sig.SignerName,
			ProviderName: agg.Agreement.ServiceProviderName,
			ServiceType:  agg.Agreement.ServiceType,
			DocumentID:   sig.DocumentID,
			DocumentURL:  documentURL,
			PDF:          pdf,
		}
	}
	if client != nil {
		if err := c.notifier.SendSignedCopy(ctx, copyFor(client.Name, client.Email)); err != nil {
			c.metrics.IncSideEffectFailure(metrics.SideEffectEmail)
			c.logg.Error(logCtx, "signed copy email to client failed", err)
		}
	}
	owner, err := c.directory.FindUser(dbc, ownerID)
	if err != nil {
		c.logg.Error(logCtx, "load agreement owner", err)
		return documentURL
	}
	if err := c.notifier.SendSignedCopy(ctx, copyFor(owner.FullName, owner.Email)); err != nil {
		c.metrics.IncSideEffectFailure(metrics.SideEffectEmail)
		c.logg.Error(logCtx, "signed copy email to owner failed", err)
	}
	return documentURL
}

func (c *Collector) storeDocument(ctx context.Context, ownerID, agreementID uuid.UUID, pdf []byte) (string, error) {
	objectPath, err := c.store.Upload(ctx, storage.UploadRequest{
		Data:        pdf,
		Filename:    "agreement-" + agreementID.String() + ".pdf",
		Category:    enums.AssetCategoryDocument,
		OwnerID:     ownerID.String(),
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", err
	}
	return c.store.SignedURL(ctx, objectPath, c.documentTTL)
}

func (c *Collector) emit(dbc dbctx.Context, clientID, agreementID uuid.UUID, eventType enums.OutboxEventType, data any) error {
	if err := c.outbox.Emit(dbc, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAgreement,
		AggregateID:   agreementID,
		Actor:         outbox.ClientActor(clientID),
		Data:          data,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue "+string(eventType))
	}
	return nil
}

func alreadySigned() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "agreement already signed by this client")
}

func optionalIP(ip string) *string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil
	}
	return &ip
}
