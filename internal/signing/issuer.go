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
	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ledgerly-backend/pkg/security"
)

// IssuedLink describes one link created or rotated by SendToClients.
type IssuedLink struct {
	LinkID     uuid.UUID `json:"link_id"`
	ClientID   uuid.UUID `json:"client_id"`
	ClientName string    `json:"client_name"`
	Email      string    `json:"email"`
	ExpiresAt  time.Time `json:"expires_at"`
	Rotated    bool      `json:"rotated"`
	EmailSent  bool      `json:"email_sent"`
}

// SendResult reports what SendToClients did. Skipped lists requested ids
// that do not resolve to one of the owner's clients.
type SendResult struct {
	Links         []IssuedLink          `json:"links"`
	Skipped       []uuid.UUID           `json:"skipped"`
	Status        enums.AgreementStatus `json:"status"`
	EmailFailures int                   `json:"email_failures"`
}

// Issuer creates and rotates client signing links.
type Issuer struct {
	agreements *agreements.Repository
	links      *LinkRepository
	directory  partyDirectory
	tx         txRunner
	outbox     outbox.Emitter
	notifier   *Notifier
	logg       *logger.Logger
	metrics    *metrics.SigningMetrics
	baseURL    string
	ttl        time.Duration
	now        func() time.Time
}

func NewIssuer(p Params) (*Issuer, error) {
	if err := p.checkBase(); err != nil {
		return nil, err
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &Issuer{
		agreements: p.Agreements,
		links:      p.Links,
		directory:  p.Directory,
		tx:         p.Tx,
		outbox:     p.Outbox,
		notifier:   p.Notifier,
		logg:       p.Logger,
		metrics:    p.Metrics,
		baseURL:    p.PublicAppURL,
		ttl:        orDefault(p.LinkTTL, DefaultLinkTTL),
		now:        p.clock(),
	}, nil
}

type pendingEmail struct {
	index  int
	client models.Client
	token  string
}

// SendToClients issues a fresh link per resolvable client, rotating the
// token of any existing link, and moves the agreement back to pending.
// Invitations are emailed after commit; send failures are reported in the
// result and never fail the call.
func (s *Issuer) SendToClients(ctx context.Context, ownerID, agreementID uuid.UUID, clientIDs []uuid.UUID, baseURL string) (*SendResult, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(clientIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client_ids must not be empty")
	}
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = s.baseURL
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	result := &SendResult{Status: enums.AgreementStatusPending, Skipped: []uuid.UUID{}}
	var (
		agreement *models.Agreement
		outgoing  []pendingEmail
	)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)
		var err error
		agreement, err = s.agreements.LockOwned(dbc, ownerID, agreementID)
		if err != nil {
			return notFoundOr(err, "agreement not found", "lookup agreement")
		}
		clients, err := s.directory.FindClientsOwnedBy(dbc, ownerID, clientIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup clients")
		}
		result.Skipped = skippedIDs(clientIDs, clients)
		if len(clients) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "no matching clients").
				WithDetails(map[string]any{"skipped": result.Skipped})
		}

		issued := make([]uuid.UUID, 0, len(clients))
		for _, client := range clients {
			link, rotated, err := s.issue(dbc, agreement.ID, client.ID, now, expiresAt)
			if err != nil {
				return err
			}
			issued = append(issued, client.ID)
			outgoing = append(outgoing, pendingEmail{index: len(result.Links), client: client, token: link.Token})
			result.Links = append(result.Links, IssuedLink{
				LinkID:     link.ID,
				ClientID:   client.ID,
				ClientName: client.Name,
				Email:      client.Email,
				ExpiresAt:  link.ExpiresAt,
				Rotated:    rotated,
			})
		}

		if err := s.agreements.UpdateStatus(dbc, agreement.ID, enums.AgreementStatusPending, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update agreement status")
		}
		if err := s.outbox.Emit(dbc, outbox.DomainEvent{
			EventType:     enums.EventAgreementSent,
			AggregateType: enums.AggregateAgreement,
			AggregateID:   agreement.ID,
			Actor:         outbox.OwnerActor(ownerID),
			Data: payloads.AgreementSentEvent{
				AgreementID: agreement.ID,
				UserID:      ownerID,
				ClientIDs:   issued,
				ExpiresAt:   expiresAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue agreement_sent")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "send agreement")
	}
	s.metrics.AddLinksIssued(len(result.Links))

	logCtx := s.logg.WithAgreementID(ctx, agreementID.String())
	providerName := agreement.ServiceProviderName
	if owner, err := s.directory.FindUser(dbctx.Background(ctx), ownerID); err == nil && strings.TrimSpace(owner.FullName) != "" {
		providerName = owner.FullName
	}
	for _, out := range outgoing {
		err := s.notifier.SendSigningRequest(ctx, SigningRequest{
			ClientName:   out.client.Name,
			ClientEmail:  out.client.Email,
			ProviderName: providerName,
			ServiceType:  agreement.ServiceType,
			URL:          SigningURL(base, out.token),
			ExpiresAt:    expiresAt,
		})
		if err != nil {
			result.EmailFailures++
			s.metrics.IncSideEffectFailure(metrics.SideEffectEmail)
			s.logg.Error(s.logg.WithClientID(logCtx, out.client.ID.String()), "signing request email failed", err)
			continue
		}
		result.Links[out.index].EmailSent = true
	}

	s.logg.Info(s.logg.WithField(logCtx, "links", len(result.Links)), "agreement sent to clients")
	return result, nil
}

// issue rotates the existing link for the pair or creates one.
func (s *Issuer) issue(dbc dbctx.Context, agreementID, clientID uuid.UUID, now, expiresAt time.Time) (*models.SignatureLink, bool, error) {
	token, err := security.NewToken()
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate signing token")
	}
	link, err := s.links.FindByAgreementAndClient(dbc, agreementID, clientID)
	switch {
	case err == nil:
		link.Token = token
		link.ExpiresAt = expiresAt
		link.Status = enums.LinkStatusPending
		link.SignedAt = nil
		link.LastSentAt = now
		link.UpdatedAt = now
		if err := s.links.Rotate(dbc, link); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate signing link")
		}
		return link, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		link = &models.SignatureLink{
			AgreementID: agreementID,
			ClientID:    clientID,
			Token:       token,
			ExpiresAt:   expiresAt,
			Status:      enums.LinkStatusPending,
			LastSentAt:  now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.links.Create(dbc, link); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create signing link")
		}
		return link, false, nil
	default:
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup signing link")
	}
}

func skippedIDs(requested []uuid.UUID, resolved []models.Client) []uuid.UUID {
	found := make(map[uuid.UUID]struct{}, len(resolved))
	for _, c := range resolved {
		found[c.ID] = struct{}{}
	}
	out := []uuid.UUID{}
	seen := map[uuid.UUID]struct{}{}
	for _, id := range requested {
		if _, ok := found[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
