package model

import "time"

// EventObjectType is the composite-key object type of event log records.
const EventObjectType = "RegistryEvent"

// EventType tags the variants of the registry event log.
type EventType string

const (
	EventIssuerAdded        EventType = "IssuerAdded"
	EventIssuerRemoved      EventType = "IssuerRemoved"
	EventCertificateIssued  EventType = "CertificateIssued"
	EventCertificateRevoked EventType = "CertificateRevoked"
)

// RegistryEvent is one entry of the append-only registry log. Entries are
// immutable and totally ordered by Sequence. Which payload fields are set
// depends on Type: issuer events carry Identity, certificate events carry
// CertificateID, and CertificateIssued additionally carries the full
// issuance payload. Events never carry validity state; validity is derived
// by replay.
type RegistryEvent struct {
	ObjectType string    `json:"objectType"`
	Sequence   uint64    `json:"sequence"`
	Type       EventType `json:"type"`
	TxID       string    `json:"txId"`
	Timestamp  time.Time `json:"timestamp"`

	// IssuerAdded / IssuerRemoved
	Identity string `json:"identity,omitempty"`

	// CertificateIssued / CertificateRevoked
	CertificateID string `json:"certificateId,omitempty"`

	// CertificateIssued only
	IssuerID      string `json:"issuerId,omitempty"`
	OwnerID       string `json:"ownerId,omitempty"`
	RecipientName string `json:"recipientName,omitempty"`
	IssuerName    string `json:"issuerName,omitempty"`
	CourseName    string `json:"courseName,omitempty"`
	IssueDate     int64  `json:"issueDate,omitempty"`
	ExpiryDate    int64  `json:"expiryDate,omitempty"`
}
