package agreements

import "github.com/angelmondragon/ledgerly-backend/pkg/enums"

// DeriveStatus computes the agreement status from the statuses of every link
// ever issued for it. No links means nothing was sent yet. The agreement is
// completed once every link is client_signed; a pending or expired link
// still awaits a signature, so link expiry never changes the result.
func DeriveStatus(links []enums.LinkStatus) enums.AgreementStatus {
	if len(links) == 0 {
		return enums.AgreementStatusDraft
	}
	for _, status := range links {
		if status != enums.LinkStatusClientSigned {
			return enums.AgreementStatusPending
		}
	}
	return enums.AgreementStatusCompleted
}
