package model

import "time"

// CertificateObjectType is the composite-key object type (and 'docType' for
// CouchDB queries) of certificate records. It lives in the model package
// because both the contract and the view reconstructor stamp it.
const CertificateObjectType = "Certificate"

// RevocationPolicy selects who may revoke an issued certificate.
type RevocationPolicy string

const (
	// RevokeAnyIssuer allows any currently authorized issuer to revoke any
	// certificate, matching the original registry behavior.
	RevokeAnyIssuer RevocationPolicy = "any-issuer"
	// RevokeOriginalIssuer restricts revocation to the identity that issued
	// the certificate.
	RevokeOriginalIssuer RevocationPolicy = "original-issuer"
)

// RegistryConfig is the singleton configuration record created by
// InitRegistry. OwnerID is immutable for the registry's lifetime;
// NextSequence is the monotonic counter shared by event ordering and
// certificate id derivation.
type RegistryConfig struct {
	ObjectType       string           `json:"objectType"`
	OwnerID          string           `json:"ownerId"`
	RevocationPolicy RevocationPolicy `json:"revocationPolicy"`
	NextSequence     uint64           `json:"nextSequence"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Certificate is the authoritative per-id record. Every field except the
// revocation annotations is immutable after issuance; IsValid flips true to
// false at most once and never back.
//
// IssueDate and ExpiryDate are unix seconds. ExpiryDate 0 means the
// certificate never expires.
type Certificate struct {
	ObjectType    string `json:"objectType"`
	ID            string `json:"id"`
	IssuerID      string `json:"issuerId"` // identity that signed the issuance, not the display name
	OwnerID       string `json:"ownerId"`  // recipient/holder identity
	RecipientName string `json:"recipientName"`
	IssuerName    string `json:"issuerName"`
	CourseName    string `json:"courseName"`
	IssueDate     int64  `json:"issueDate"`
	ExpiryDate    int64  `json:"expiryDate"`
	IsValid       bool   `json:"isValid"`
	RevokedBy     string `json:"revokedBy,omitempty"`
	RevokedAt     int64  `json:"revokedAt,omitempty"`
}

// IsCurrent reports whether the certificate is both unrevoked and unexpired
// at the given time (unix seconds). IsValid alone tracks only explicit
// revocation; callers wanting freshness semantics use this instead.
func (c *Certificate) IsCurrent(now int64) bool {
	if !c.IsValid {
		return false
	}
	return c.ExpiryDate == 0 || now < c.ExpiryDate
}
