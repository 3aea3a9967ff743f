package contract

import (
	"encoding/json"
	"fmt"

	"certregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Certificate Operations ---

// IssueCertificate creates a certificate for ownerIdentity and returns its
// derived id. The caller must be an authorized issuer. Dates are unix
// seconds; expiryDate 0 means the certificate never expires, otherwise it
// must be after issueDate. The certificate record and the CertificateIssued
// event commit in the same transaction.
func (s *CertRegistrySmartContract) IssueCertificate(ctx contractapi.TransactionContextInterface,
	ownerIdentity string, recipientName string, issuerName string, courseName string,
	issueDate int64, expiryDate int64) (string, error) {

	am := NewAccessManager(ctx)
	callerFullID, err := am.RequireAuthorized()
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: %w", err)
	}

	if err := s.validateRequiredString(ownerIdentity, "ownerIdentity", maxStringInputLength*2); err != nil {
		return "", fmt.Errorf("IssueCertificate: %w", err)
	}
	if err := s.validateRequiredString(recipientName, "recipientName", maxStringInputLength); err != nil {
		return "", fmt.Errorf("IssueCertificate: %w", err)
	}
	if err := s.validateRequiredString(issuerName, "issuerName", maxStringInputLength); err != nil {
		return "", fmt.Errorf("IssueCertificate: %w", err)
	}
	if err := s.validateRequiredString(courseName, "courseName", maxStringInputLength); err != nil {
		return "", fmt.Errorf("IssueCertificate: %w", err)
	}
	if err := s.validateDates(issueDate, expiryDate); err != nil {
		return "", fmt.Errorf("IssueCertificate: %w", err)
	}

	cfg, err := am.GetConfig()
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: %w", err)
	}

	certificateID := deriveCertificateID(ownerIdentity, issuerName, courseName, issueDate, callerFullID, cfg.NextSequence)

	certificateKey, err := s.createCertificateKey(ctx, certificateID)
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: failed to create key for certificate '%s': %w", certificateID, err)
	}
	existing, err := ctx.GetStub().GetState(certificateKey)
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: failed to check for existing certificate '%s': %w", certificateID, err)
	}
	if existing != nil {
		// The sequence component makes ids unique per issuance, so this
		// indicates a corrupted sequence counter.
		return "", fmt.Errorf("IssueCertificate: certificate id collision on '%s'", certificateID)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: %w", err)
	}

	certificate := model.Certificate{
		ObjectType:    model.CertificateObjectType,
		ID:            certificateID,
		IssuerID:      callerFullID,
		OwnerID:       ownerIdentity,
		RecipientName: recipientName,
		IssuerName:    issuerName,
		CourseName:    courseName,
		IssueDate:     issueDate,
		ExpiryDate:    expiryDate,
		IsValid:       true,
	}
	certificateBytes, err := json.Marshal(certificate)
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: failed to marshal certificate '%s': %w", certificateID, err)
	}
	if err := ctx.GetStub().PutState(certificateKey, certificateBytes); err != nil {
		return "", fmt.Errorf("IssueCertificate: failed to save certificate '%s' to ledger: %w", certificateID, err)
	}

	ev := model.RegistryEvent{
		Type:          model.EventCertificateIssued,
		CertificateID: certificateID,
		IssuerID:      callerFullID,
		OwnerID:       ownerIdentity,
		RecipientName: recipientName,
		IssuerName:    issuerName,
		CourseName:    courseName,
		IssueDate:     issueDate,
		ExpiryDate:    expiryDate,
	}
	if err := s.appendEvent(ctx, am, cfg, &ev, now); err != nil {
		return "", fmt.Errorf("IssueCertificate: %w", err)
	}

	logger.Infof("Certificate '%s' issued by '%s' to '%s' (course '%s')", certificateID, callerFullID, ownerIdentity, courseName)
	return certificateID, nil
}

// RevokeCertificate flips the certificate's isValid flag to false, exactly
// once. The caller must be an authorized issuer; under the original-issuer
// revocation policy the caller must additionally be the identity that issued
// the certificate. Revoking an already-revoked certificate fails with
// ErrAlreadyRevoked so the event log stays replay-meaningful.
func (s *CertRegistrySmartContract) RevokeCertificate(ctx contractapi.TransactionContextInterface, certificateID string) error {
	am := NewAccessManager(ctx)
	callerFullID, err := am.RequireAuthorized()
	if err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}
	if err := s.validateRequiredString(certificateID, "certificateID", maxStringInputLength); err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}

	certificate, err := s.getCertificateByID(ctx, certificateID)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}
	if !certificate.IsValid {
		return fmt.Errorf("RevokeCertificate: certificate '%s': %w", certificateID, ErrAlreadyRevoked)
	}

	cfg, err := am.GetConfig()
	if err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}
	if cfg.RevocationPolicy == model.RevokeOriginalIssuer && certificate.IssuerID != callerFullID {
		return fmt.Errorf("RevokeCertificate: caller '%s' did not issue certificate '%s': %w", callerFullID, certificateID, ErrUnauthorized)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}

	certificate.IsValid = false
	certificate.RevokedBy = callerFullID
	certificate.RevokedAt = now.Unix()

	certificateKey, err := s.createCertificateKey(ctx, certificateID)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: failed to create key for certificate '%s': %w", certificateID, err)
	}
	certificateBytes, err := json.Marshal(certificate)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: failed to marshal certificate '%s': %w", certificateID, err)
	}
	if err := ctx.GetStub().PutState(certificateKey, certificateBytes); err != nil {
		return fmt.Errorf("RevokeCertificate: failed to save certificate '%s' to ledger: %w", certificateID, err)
	}

	ev := model.RegistryEvent{Type: model.EventCertificateRevoked, CertificateID: certificateID, IssuerID: callerFullID}
	if err := s.appendEvent(ctx, am, cfg, &ev, now); err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}

	logger.Infof("Certificate '%s' revoked by '%s'", certificateID, callerFullID)
	return nil
}

// VerifyCertificate returns the full certificate record, including its
// current isValid flag. Public, pure read. isValid tracks explicit
// revocation only; callers wanting freshness semantics use
// IsCertificateCurrentlyValid or check expiryDate themselves.
func (s *CertRegistrySmartContract) VerifyCertificate(ctx contractapi.TransactionContextInterface, certificateID string) (*model.Certificate, error) {
	logger.Debugf("Chaincode Call: VerifyCertificate for '%s'", certificateID)
	if err := s.validateRequiredString(certificateID, "certificateID", maxStringInputLength); err != nil {
		return nil, fmt.Errorf("VerifyCertificate: %w", err)
	}
	return s.getCertificateByID(ctx, certificateID)
}

// IsCertificateCurrentlyValid reports whether the certificate is unrevoked
// and unexpired at the transaction timestamp. A 0 expiryDate never expires.
func (s *CertRegistrySmartContract) IsCertificateCurrentlyValid(ctx contractapi.TransactionContextInterface, certificateID string) (bool, error) {
	certificate, err := s.getCertificateByID(ctx, certificateID)
	if err != nil {
		return false, fmt.Errorf("IsCertificateCurrentlyValid: %w", err)
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return false, fmt.Errorf("IsCertificateCurrentlyValid: %w", err)
	}
	return certificate.IsCurrent(now.Unix()), nil
}
