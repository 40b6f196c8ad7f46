package enums

import "slices"

type SignerType string

const (
	SignerTypeServiceProvider SignerType = "service_provider"
	SignerTypeClient          SignerType = "client"
)

func (s SignerType) String() string { return string(s) }
func (s SignerType) IsValid() bool { return s == SignerTypeServiceProvider || s == SignerTypeClient }

// LinkStatus is the signature_link_status column. Only pending links can
// be signed; client_signed and expired are terminal for the token.
type LinkStatus string

const (
	LinkStatusPending      LinkStatus = "pending"
	LinkStatusClientSigned LinkStatus = "client_signed"
	LinkStatusExpired      LinkStatus = "expired"
)

var linkStatuses = []LinkStatus{LinkStatusPending, LinkStatusClientSigned, LinkStatusExpired}

func (s LinkStatus) String() string { return string(s) }
func (s LinkStatus) IsValid() bool { return slices.Contains(linkStatuses, s) }

func ParseLinkStatus(raw string) (LinkStatus, error) {
	return parse(linkStatuses, "link status", raw)
}

// AssetCategory is the first path segment of an object in the bucket.
type AssetCategory string

const (
	AssetCategorySignature AssetCategory = "signatures"
	AssetCategoryDocument  AssetCategory = "agreements"
)

func (c AssetCategory) String() string { return string(c) }
