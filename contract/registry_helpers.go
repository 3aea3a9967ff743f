package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"certregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Core Helper Methods (used across multiple operations) ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func (s *CertRegistrySmartContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// createCertificateKey creates a composite key for a certificate record.
func (s *CertRegistrySmartContract) createCertificateKey(ctx contractapi.TransactionContextInterface, certificateID string) (string, error) {
	certificateID = strings.TrimSpace(certificateID)
	if certificateID == "" {
		return "", errors.New("certificateID cannot be empty")
	}
	return ctx.GetStub().CreateCompositeKey(model.CertificateObjectType, []string{certificateID})
}

// eventSequenceAttr formats an event sequence so that lexical key order
// equals emission order.
func eventSequenceAttr(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}

// createEventKey creates a composite key for an event log record.
func (s *CertRegistrySmartContract) createEventKey(ctx contractapi.TransactionContextInterface, seq uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(model.EventObjectType, []string{eventSequenceAttr(seq)})
}

// --- Validation Helper Functions ---

func (s *CertRegistrySmartContract) validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%s cannot be empty: %w", field, ErrInvalidInput)
	}
	if len(input) > max {
		return fmt.Errorf("%s exceeds max length %d: %w", field, max, ErrInvalidInput)
	}
	return nil
}

// validateDates enforces the issuance date semantics: issueDate must be a
// positive unix timestamp, and expiryDate is either the 0 "never expires"
// sentinel or strictly after issueDate.
func (s *CertRegistrySmartContract) validateDates(issueDate, expiryDate int64) error {
	if issueDate <= 0 {
		return fmt.Errorf("issueDate must be a positive unix timestamp: %w", ErrInvalidInput)
	}
	if expiryDate != 0 && expiryDate <= issueDate {
		return fmt.Errorf("expiryDate must be 0 (never expires) or after issueDate: %w", ErrInvalidInput)
	}
	return nil
}

// --- Identifier Derivation ---

// deriveCertificateID computes the content-addressed certificate id:
// SHA-256 over the recipient identity, descriptive fields, issue date, the
// issuing caller and the per-registry sequence. String fields are length
// prefixed so the encoding is unambiguous; the sequence makes the derivation
// injective even when two issuances share every descriptive field.
func deriveCertificateID(ownerID, issuerName, courseName string, issueDate int64, callerID string, seq uint64) string {
	h := sha256.New()
	for _, field := range []string{ownerID, issuerName, courseName, callerID} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	fmt.Fprintf(h, "%d:%d", issueDate, seq)
	return hex.EncodeToString(h.Sum(nil))
}

// --- Event Log Append ---

// appendEvent assigns the next sequence to ev, stores it as an event log
// record, advances the registry sequence counter, and emits a matching
// chaincode event for block listeners. All writes land in the surrounding
// transaction, so the state change and its event commit or fail together.
func (s *CertRegistrySmartContract) appendEvent(ctx contractapi.TransactionContextInterface, am *AccessManager, cfg *model.RegistryConfig, ev *model.RegistryEvent, now time.Time) error {
	ev.ObjectType = model.EventObjectType
	ev.Sequence = cfg.NextSequence
	ev.TxID = ctx.GetStub().GetTxID()
	ev.Timestamp = now

	eventKey, err := s.createEventKey(ctx, ev.Sequence)
	if err != nil {
		return fmt.Errorf("failed to create event key for sequence %d: %w", ev.Sequence, err)
	}
	eventBytes, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event %d (%s): %w", ev.Sequence, ev.Type, err)
	}
	if err := ctx.GetStub().PutState(eventKey, eventBytes); err != nil {
		return fmt.Errorf("failed to save event %d (%s): %w", ev.Sequence, ev.Type, err)
	}

	cfg.NextSequence++
	if err := am.saveConfig(cfg); err != nil {
		return fmt.Errorf("failed to advance event sequence: %w", err)
	}

	if errSet := ctx.GetStub().SetEvent(string(ev.Type), eventBytes); errSet != nil {
		logger.Warningf("appendEvent: Failed to set chaincode event '%s' (sequence %d): %v", ev.Type, ev.Sequence, errSet)
	}
	return nil
}
