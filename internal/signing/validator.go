package signing

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

// Validation is the outcome of checking a signing token. Aggregate, Link
// and Client are set only when Valid.
type Validation struct {
	Valid     bool
	Expired   bool
	Aggregate *agreements.Aggregate
	Link      *models.SignatureLink
	Client    *models.Client
}

// Validator resolves public signing tokens. The token is the credential;
// no owner scoping applies on this path.
type Validator struct {
	agreements *agreements.Repository
	links      *LinkRepository
	directory  partyDirectory
	expirer    *Expirer
	logg       *logger.Logger
	now        func() time.Time
}

func NewValidator(p Params) (*Validator, error) {
	if err := p.checkBase(); err != nil {
		return nil, err
	}
	return &Validator{
		agreements: p.Agreements,
		links:      p.Links,
		directory:  p.Directory,
		expirer:    p.Expirer,
		logg:       p.Logger,
		now:        p.clock(),
	}, nil
}

// Validate never fails for unknown or expired tokens; those come back as
// an invalid result. An overdue pending link is moved to expired once.
func (v *Validator) Validate(ctx context.Context, token string) (*Validation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return &Validation{}, nil
	}
	dbc := dbctx.Background(ctx)
	link, err := v.links.FindByToken(dbc, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Validation{}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup signing link")
	}

	now := v.now().UTC()
	if IsExpired(*link, now) {
		if err := expireLink(ctx, v.expirer, link, now); err != nil {
			return nil, err
		}
		return &Validation{Expired: true}, nil
	}

	agreement, err := v.agreements.FindByID(dbc, link.AgreementID)
	if err != nil {
		return nil, notFoundOr(err, "agreement not found", "lookup agreement")
	}
	agg, err := v.agreements.LoadAggregate(dbc, *agreement)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agreement")
	}
	client, err := v.directory.FindClient(dbc, link.ClientID)
	if err != nil {
		return nil, notFoundOr(err, "client not found", "lookup client")
	}
	return &Validation{Valid: true, Aggregate: agg, Link: link, Client: client}, nil
}

// expireLink re-reads the link under a row lock and stores the expiry. A
// link that was rotated or already expired in the meantime is left alone.
func expireLink(ctx context.Context, expirer *Expirer, link *models.SignatureLink, now time.Time) error {
	if NextStatus(*link, now) == link.Status {
		return nil
	}
	err := expirer.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)
		locked, err := expirer.links.LockByID(dbc, link.ID)
		if err != nil {
			return err
		}
		_, err = expirer.Expire(dbc, *locked, now)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire signing link")
	}
	return nil
}

func notFoundOr(err error, notFoundMsg, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

// asServiceError keeps typed errors raised inside a transaction.
func asServiceError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
