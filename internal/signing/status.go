// Package signing issues client signing links, validates their tokens and
// records client signatures.
package signing

import (
	"time"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

// NextStatus is the stored status a link should have at now. Only a pending
// link past its expiry moves, to expired; signed and expired links keep
// their status.
func NextStatus(link models.SignatureLink, now time.Time) enums.LinkStatus {
	if link.Status == enums.LinkStatusPending && now.After(link.ExpiresAt) {
		return enums.LinkStatusExpired
	}
	return link.Status
}

// IsExpired reports whether the link can no longer be used as a credential.
func IsExpired(link models.SignatureLink, now time.Time) bool {
	return link.Status == enums.LinkStatusExpired || now.After(link.ExpiresAt)
}
