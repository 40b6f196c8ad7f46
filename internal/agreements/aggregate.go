package agreements

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

// Aggregate is an agreement with all of its child rows, each list in its
// stored order.
type Aggregate struct {
	Agreement    models.Agreement
	Deliverables []models.Deliverable
	PaymentTerm  *PaymentTerms
	Signatures   []models.Signature
	Links        []models.SignatureLink
}

// PaymentTerms pairs the payment term with its ordered milestones.
type PaymentTerms struct {
	models.PaymentTerm
	Milestones []models.Milestone
}

// ProviderSignature returns the service provider's signature, if stored.
func (a *Aggregate) ProviderSignature() *models.Signature {
	for i := range a.Signatures {
		if a.Signatures[i].SignerType == enums.SignerTypeServiceProvider {
			return &a.Signatures[i]
		}
	}
	return nil
}

// ClientSignature returns the signature clientID left, if any.
func (a *Aggregate) ClientSignature(clientID uuid.UUID) *models.Signature {
	for i := range a.Signatures {
		sig := &a.Signatures[i]
		if sig.SignerType == enums.SignerTypeClient && sig.ClientID != nil && *sig.ClientID == clientID {
			return sig
		}
	}
	return nil
}

// LatestClientSignature returns the most recent client signature.
func (a *Aggregate) LatestClientSignature() *models.Signature {
	var latest *models.Signature
	for i := range a.Signatures {
		sig := &a.Signatures[i]
		if sig.SignerType != enums.SignerTypeClient {
			continue
		}
		if latest == nil || sig.SignedAt.After(latest.SignedAt) {
			latest = sig
		}
	}
	return latest
}

// LinkStatuses lists the status of every issued link.
func (a *Aggregate) LinkStatuses() []enums.LinkStatus {
	out := make([]enums.LinkStatus, 0, len(a.Links))
	for _, link := range a.Links {
		out = append(out, link.Status)
	}
	return out
}
