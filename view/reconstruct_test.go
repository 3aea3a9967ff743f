package view

import (
	"testing"
	"time"

	"certregistry/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuedEvent(seq uint64, certificateID, issuerID, ownerID, courseName string) model.RegistryEvent {
	return model.RegistryEvent{
		ObjectType:    model.EventObjectType,
		Sequence:      seq,
		Type:          model.EventCertificateIssued,
		TxID:          "tx-issue",
		Timestamp:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		CertificateID: certificateID,
		IssuerID:      issuerID,
		OwnerID:       ownerID,
		RecipientName: "Recipient",
		IssuerName:    "Acme University",
		CourseName:    courseName,
		IssueDate:     1709294400,
	}
}

func revokedEvent(seq uint64, certificateID, issuerID string) model.RegistryEvent {
	return model.RegistryEvent{
		ObjectType:    model.EventObjectType,
		Sequence:      seq,
		Type:          model.EventCertificateRevoked,
		TxID:          "tx-revoke",
		Timestamp:     time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC),
		CertificateID: certificateID,
		IssuerID:      issuerID,
	}
}

func TestRebuildOrderIndependence(t *testing.T) {
	issued := issuedEvent(0, "cert-a", "issuer-1", "owner-1", "CS101")
	revoked := revokedEvent(1, "cert-a", "issuer-2")

	orderings := map[string][]model.RegistryEvent{
		"issue then revoke": {issued, revoked},
		"revoke then issue": {revoked, issued},
	}
	for name, events := range orderings {
		t.Run(name, func(t *testing.T) {
			certs := Rebuild(events)
			require.Len(t, certs, 1)
			cert := certs["cert-a"]
			require.NotNil(t, cert)
			assert.False(t, cert.IsValid)
			assert.Equal(t, "issuer-2", cert.RevokedBy)
			assert.Equal(t, "issuer-1", cert.IssuerID)
			assert.Equal(t, "CS101", cert.CourseName)
		})
	}
}

func TestRebuildUnmatchedRevocationDropped(t *testing.T) {
	certs := Rebuild([]model.RegistryEvent{
		issuedEvent(0, "cert-a", "issuer-1", "owner-1", "CS101"),
		revokedEvent(1, "cert-ghost", "issuer-1"),
	})
	require.Len(t, certs, 1)
	assert.True(t, certs["cert-a"].IsValid, "a revocation for an unknown id must not affect other certificates")
	assert.NotContains(t, certs, "cert-ghost")
}

func TestRebuildDuplicateIssuanceLastWriteWins(t *testing.T) {
	older := issuedEvent(2, "cert-a", "issuer-1", "owner-1", "CS101")
	newer := issuedEvent(5, "cert-a", "issuer-1", "owner-1", "CS201")

	for name, events := range map[string][]model.RegistryEvent{
		"older first": {older, newer},
		"newer first": {newer, older},
	} {
		t.Run(name, func(t *testing.T) {
			certs := Rebuild(events)
			require.Len(t, certs, 1)
			assert.Equal(t, "CS201", certs["cert-a"].CourseName, "the issuance with the highest sequence wins")
		})
	}
}

func TestRebuildIgnoresIssuerEvents(t *testing.T) {
	certs := Rebuild([]model.RegistryEvent{
		{Sequence: 0, Type: model.EventIssuerAdded, Identity: "issuer-1"},
		issuedEvent(1, "cert-a", "issuer-1", "owner-1", "CS101"),
		{Sequence: 2, Type: model.EventIssuerRemoved, Identity: "issuer-1"},
	})
	require.Len(t, certs, 1)
	assert.True(t, certs["cert-a"].IsValid)
}

func TestRebuildEmptyLog(t *testing.T) {
	certs := Rebuild(nil)
	require.NotNil(t, certs)
	assert.Empty(t, certs)
}

func TestListFiltersAndOrdering(t *testing.T) {
	// Events deliberately out of sequence order; List must still return
	// certificates ordered by issuance sequence.
	events := []model.RegistryEvent{
		issuedEvent(4, "cert-c", "issuer-2", "owner-1", "MATH201"),
		revokedEvent(5, "cert-b", "issuer-1"),
		issuedEvent(0, "cert-a", "issuer-1", "owner-1", "CS101"),
		issuedEvent(2, "cert-b", "issuer-1", "owner-2", "CS101"),
	}

	idsOf := func(certs []*model.Certificate) []string {
		ids := make([]string, 0, len(certs))
		for _, c := range certs {
			ids = append(ids, c.ID)
		}
		return ids
	}

	all := List(events, Filter{})
	assert.Equal(t, []string{"cert-a", "cert-b", "cert-c"}, idsOf(all))

	byOwner := List(events, Filter{OwnerID: "owner-1"})
	assert.Equal(t, []string{"cert-a", "cert-c"}, idsOf(byOwner))

	byIssuer := List(events, Filter{IssuerID: "issuer-1"})
	assert.Equal(t, []string{"cert-a", "cert-b"}, idsOf(byIssuer))
	assert.False(t, byIssuer[1].IsValid)

	both := List(events, Filter{OwnerID: "owner-1", IssuerID: "issuer-2"})
	assert.Equal(t, []string{"cert-c"}, idsOf(both))

	none := List(events, Filter{OwnerID: "owner-3"})
	require.NotNil(t, none)
	assert.Empty(t, none)
}
