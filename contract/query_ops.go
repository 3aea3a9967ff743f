package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"certregistry/model"
	"certregistry/view"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Query Functions ---

// getCertificateByID is an internal helper to retrieve and unmarshal a
// certificate record from the store.
func (s *CertRegistrySmartContract) getCertificateByID(ctx contractapi.TransactionContextInterface, certificateID string) (*model.Certificate, error) {
	if strings.TrimSpace(certificateID) == "" {
		return nil, fmt.Errorf("getCertificateByID: certificateID cannot be empty: %w", ErrInvalidInput)
	}
	certificateKey, err := s.createCertificateKey(ctx, certificateID)
	if err != nil {
		return nil, fmt.Errorf("getCertificateByID: failed to create key for certificate '%s': %w", certificateID, err)
	}

	certificateBytes, err := ctx.GetStub().GetState(certificateKey)
	if err != nil {
		return nil, fmt.Errorf("getCertificateByID: failed to read certificate '%s' from ledger: %w", certificateID, err)
	}
	if certificateBytes == nil {
		return nil, fmt.Errorf("certificate '%s': %w", certificateID, ErrNotFound)
	}

	var certificate model.Certificate
	if err = json.Unmarshal(certificateBytes, &certificate); err != nil {
		return nil, fmt.Errorf("getCertificateByID: failed to unmarshal certificate '%s' data: %w", certificateID, err)
	}
	return &certificate, nil
}

// readEventLog returns all event records in emission order. Event keys embed
// a zero-padded sequence, so the iterator's lexical key order is the log
// order.
func (s *CertRegistrySmartContract) readEventLog(ctx contractapi.TransactionContextInterface) ([]model.RegistryEvent, error) {
	iterator, err := ctx.GetStub().GetStateByPartialCompositeKey(model.EventObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("readEventLog: failed to get event iterator: %w", err)
	}
	defer iterator.Close()

	events := []model.RegistryEvent{}
	for iterator.HasNext() {
		queryResponse, iterErr := iterator.Next()
		if iterErr != nil {
			logger.Warningf("readEventLog: Failed to get next event from iterator: %v. Skipping.", iterErr)
			continue
		}
		var ev model.RegistryEvent
		if err := json.Unmarshal(queryResponse.Value, &ev); err != nil {
			logger.Warningf("readEventLog: Failed to unmarshal event for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// GetEventLog returns the full registry event log in emission order.
// Public, pure read.
func (s *CertRegistrySmartContract) GetEventLog(ctx contractapi.TransactionContextInterface) ([]model.RegistryEvent, error) {
	logger.Debug("Chaincode Call: GetEventLog")
	return s.readEventLog(ctx)
}

// GetEventLogRange returns events with fromSeq <= sequence <= toSeq, in
// emission order. Sequences are passed as decimal strings.
func (s *CertRegistrySmartContract) GetEventLogRange(ctx contractapi.TransactionContextInterface, fromSeqStr, toSeqStr string) ([]model.RegistryEvent, error) {
	logger.Debugf("Chaincode Call: GetEventLogRange [%s, %s]", fromSeqStr, toSeqStr)

	fromSeq, err := strconv.ParseUint(strings.TrimSpace(fromSeqStr), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("GetEventLogRange: invalid fromSeq '%s': %w", fromSeqStr, ErrInvalidInput)
	}
	toSeq, err := strconv.ParseUint(strings.TrimSpace(toSeqStr), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("GetEventLogRange: invalid toSeq '%s': %w", toSeqStr, ErrInvalidInput)
	}
	if fromSeq > toSeq {
		return nil, fmt.Errorf("GetEventLogRange: fromSeq %d is after toSeq %d: %w", fromSeq, toSeq, ErrInvalidInput)
	}
	if toSeq-fromSeq+1 > maxEventPageSize {
		return nil, fmt.Errorf("GetEventLogRange: range spans %d sequences, exceeding maximum of %d: %w", toSeq-fromSeq+1, maxEventPageSize, ErrInvalidInput)
	}

	// Range scans are not available across composite keys, so iterate the
	// event namespace in key (= emission) order and keep the window. The
	// iterator is already past toSeq once a later sequence appears.
	iterator, err := ctx.GetStub().GetStateByPartialCompositeKey(model.EventObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("GetEventLogRange: failed to get event iterator: %w", err)
	}
	defer iterator.Close()

	events := []model.RegistryEvent{}
	for iterator.HasNext() {
		queryResponse, iterErr := iterator.Next()
		if iterErr != nil {
			logger.Warningf("GetEventLogRange: Failed to get next event from iterator: %v. Skipping.", iterErr)
			continue
		}
		var ev model.RegistryEvent
		if err := json.Unmarshal(queryResponse.Value, &ev); err != nil {
			logger.Warningf("GetEventLogRange: Failed to unmarshal event for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		if ev.Sequence < fromSeq {
			continue
		}
		if ev.Sequence > toSeq {
			break
		}
		events = append(events, ev)
	}
	return events, nil
}

// --- Reconstructed Views (event-sourced read models) ---

// rebuildView reads the event log and folds it through the view
// reconstructor with the given filter.
func (s *CertRegistrySmartContract) rebuildView(ctx contractapi.TransactionContextInterface, f view.Filter) ([]*model.Certificate, error) {
	events, err := s.readEventLog(ctx)
	if err != nil {
		return nil, err
	}
	return view.List(events, f), nil
}

// GetAllCertificates reconstructs every certificate's latest state from the
// event log. Public, pure read.
func (s *CertRegistrySmartContract) GetAllCertificates(ctx contractapi.TransactionContextInterface) ([]*model.Certificate, error) {
	logger.Debug("Chaincode Call: GetAllCertificates")
	return s.rebuildView(ctx, view.Filter{})
}

// GetCertificatesByOwner reconstructs the certificates held by ownerIdentity.
func (s *CertRegistrySmartContract) GetCertificatesByOwner(ctx contractapi.TransactionContextInterface, ownerIdentity string) ([]*model.Certificate, error) {
	logger.Debugf("Chaincode Call: GetCertificatesByOwner for '%s'", ownerIdentity)
	if err := s.validateRequiredString(ownerIdentity, "ownerIdentity", maxStringInputLength*2); err != nil {
		return nil, fmt.Errorf("GetCertificatesByOwner: %w", err)
	}
	return s.rebuildView(ctx, view.Filter{OwnerID: ownerIdentity})
}

// GetCertificatesByIssuer reconstructs the certificates issued by
// issuerIdentity (the signing identity, not the display name).
func (s *CertRegistrySmartContract) GetCertificatesByIssuer(ctx contractapi.TransactionContextInterface, issuerIdentity string) ([]*model.Certificate, error) {
	logger.Debugf("Chaincode Call: GetCertificatesByIssuer for '%s'", issuerIdentity)
	if err := s.validateRequiredString(issuerIdentity, "issuerIdentity", maxStringInputLength*2); err != nil {
		return nil, fmt.Errorf("GetCertificatesByIssuer: %w", err)
	}
	return s.rebuildView(ctx, view.Filter{IssuerID: issuerIdentity})
}

// GetMyCertificates reconstructs the certificates held by the caller.
func (s *CertRegistrySmartContract) GetMyCertificates(ctx contractapi.TransactionContextInterface) ([]*model.Certificate, error) {
	am := NewAccessManager(ctx)
	callerFullID, err := am.GetCurrentIdentityFullID()
	if err != nil {
		return nil, fmt.Errorf("GetMyCertificates: failed to get caller's FullID: %w", err)
	}
	logger.Debugf("Chaincode Call: GetMyCertificates for '%s'", callerFullID)
	return s.rebuildView(ctx, view.Filter{OwnerID: callerFullID})
}
