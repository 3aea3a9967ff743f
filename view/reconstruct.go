// Package view rebuilds current certificate state from the registry event
// log. It is a pure fold over event records: any client with read access to
// the log can run it locally, without touching the certificate store.
//
// The fold is two-pass and commutative over revocation application: a
// certificate is revoked iff a matching CertificateRevoked entry exists
// anywhere in the observed window, so clients replaying a partial or
// out-of-order log converge on the same answer.
package view

import (
	"sort"

	"certregistry/model"
)

// Filter narrows a rebuilt view. Empty fields match everything.
type Filter struct {
	OwnerID  string // match certificates held by this identity
	IssuerID string // match certificates issued by this identity
}

func (f Filter) matches(c *model.Certificate) bool {
	if f.OwnerID != "" && c.OwnerID != f.OwnerID {
		return false
	}
	if f.IssuerID != "" && c.IssuerID != f.IssuerID {
		return false
	}
	return true
}

type entry struct {
	cert *model.Certificate
	seq  uint64
}

// fold runs the issuance pass and the revocation pass over the window.
func fold(events []model.RegistryEvent) map[string]entry {
	issued := make(map[string]entry)
	revoked := make(map[string]*model.RegistryEvent)

	for i := range events {
		ev := &events[i]
		switch ev.Type {
		case model.EventCertificateIssued:
			// Last-write-wins on duplicate ids. Issuance ids are injective
			// by construction, so this branch only matters for pathological
			// logs.
			if prev, ok := issued[ev.CertificateID]; ok && prev.seq > ev.Sequence {
				continue
			}
			issued[ev.CertificateID] = entry{
				cert: &model.Certificate{
					ObjectType:    model.CertificateObjectType,
					ID:            ev.CertificateID,
					IssuerID:      ev.IssuerID,
					OwnerID:       ev.OwnerID,
					RecipientName: ev.RecipientName,
					IssuerName:    ev.IssuerName,
					CourseName:    ev.CourseName,
					IssueDate:     ev.IssueDate,
					ExpiryDate:    ev.ExpiryDate,
					IsValid:       true,
				},
				seq: ev.Sequence,
			}
		case model.EventCertificateRevoked:
			// At most one revocation per id leaves the contract; if a
			// pathological log carries several, keep the earliest so the
			// result stays independent of slice order.
			if prev, ok := revoked[ev.CertificateID]; ok && prev.Sequence < ev.Sequence {
				continue
			}
			revoked[ev.CertificateID] = ev
		}
	}

	for id, e := range issued {
		rev, ok := revoked[id]
		if !ok {
			continue
		}
		e.cert.IsValid = false
		e.cert.RevokedBy = rev.IssuerID
		if !rev.Timestamp.IsZero() {
			e.cert.RevokedAt = rev.Timestamp.Unix()
		}
	}
	return issued
}

// Rebuild folds the event window into a mapping from certificate id to its
// latest known state. Revocations without a matching issuance in the window
// are dropped.
func Rebuild(events []model.RegistryEvent) map[string]*model.Certificate {
	folded := fold(events)
	out := make(map[string]*model.Certificate, len(folded))
	for id, e := range folded {
		out[id] = e.cert
	}
	return out
}

// List rebuilds the window, applies the filter, and returns the matches
// ordered by issuance sequence (oldest first). Result ordering beyond that
// is a presentation concern left to callers.
func List(events []model.RegistryEvent, f Filter) []*model.Certificate {
	folded := fold(events)

	matched := make([]entry, 0, len(folded))
	for _, e := range folded {
		if f.matches(e.cert) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	certs := make([]*model.Certificate, len(matched))
	for i, e := range matched {
		certs[i] = e.cert
	}
	return certs
}
