package contract

import (
	"fmt"

	"certregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("certregistry.contract")

// Constants for input validation and limits
const (
	maxStringInputLength = 256
	maxEventPageSize     = 1000 // cap for event log range reads
)

// CertRegistrySmartContract manages certificate issuance, revocation and
// verification under an owner-controlled authorized-issuer list, and exposes
// the append-only event log the read-side views are derived from.
// @contract:CertRegistrySmartContract
type CertRegistrySmartContract struct {
	contractapi.Contract
}

// Instantiate is called during chaincode instantiation.
func (s *CertRegistrySmartContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("CertRegistrySmartContract Instantiated/Upgraded")
}

// InitRegistry creates the registry: the caller becomes the immutable owner
// and the first authorized issuer. Callable exactly once. revocationPolicy
// is "any-issuer" (default when empty) or "original-issuer".
func (s *CertRegistrySmartContract) InitRegistry(ctx contractapi.TransactionContextInterface, revocationPolicy string) error {
	am := NewAccessManager(ctx)

	existing, err := am.getConfigIfExists()
	if err != nil {
		return fmt.Errorf("InitRegistry: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("InitRegistry: registry is already initialized (owner '%s')", existing.OwnerID)
	}

	callerFullID, err := am.GetCurrentIdentityFullID()
	if err != nil {
		return fmt.Errorf("InitRegistry: failed to get caller's FullID: %w", err)
	}

	policy := model.RevocationPolicy(revocationPolicy)
	switch policy {
	case "":
		policy = model.RevokeAnyIssuer
	case model.RevokeAnyIssuer, model.RevokeOriginalIssuer:
	default:
		return fmt.Errorf("InitRegistry: unknown revocation policy '%s': %w", revocationPolicy, ErrInvalidInput)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("InitRegistry: %w", err)
	}

	cfg := &model.RegistryConfig{
		ObjectType:       configObjectType,
		OwnerID:          callerFullID,
		RevocationPolicy: policy,
		NextSequence:     0,
		CreatedAt:        now,
	}
	if err := am.saveConfig(cfg); err != nil {
		return fmt.Errorf("InitRegistry: %w", err)
	}
	if err := am.setIssuerFlag(callerFullID); err != nil {
		return fmt.Errorf("InitRegistry: failed to authorize owner: %w", err)
	}

	logger.Infof("Registry initialized: owner '%s', revocation policy '%s'", callerFullID, policy)
	return nil
}

// AddIssuer authorizes target to issue and revoke certificates. Owner-only.
// Adding an already-authorized issuer is a no-op success that appends no
// event.
func (s *CertRegistrySmartContract) AddIssuer(ctx contractapi.TransactionContextInterface, target string) error {
	am := NewAccessManager(ctx)
	callerFullID, cfg, err := am.RequireOwner()
	if err != nil {
		return fmt.Errorf("AddIssuer: %w", err)
	}
	if err := s.validateRequiredString(target, "target", maxStringInputLength*2); err != nil {
		return fmt.Errorf("AddIssuer: %w", err)
	}

	already, err := am.IsAuthorized(target)
	if err != nil {
		return fmt.Errorf("AddIssuer: %w", err)
	}
	if already {
		logger.Infof("AddIssuer: '%s' is already authorized. No action needed.", target)
		return nil
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("AddIssuer: %w", err)
	}
	if err := am.setIssuerFlag(target); err != nil {
		return fmt.Errorf("AddIssuer: %w", err)
	}

	ev := model.RegistryEvent{Type: model.EventIssuerAdded, Identity: target}
	if err := s.appendEvent(ctx, am, cfg, &ev, now); err != nil {
		return fmt.Errorf("AddIssuer: %w", err)
	}

	logger.Infof("Issuer '%s' authorized by owner '%s'", target, callerFullID)
	return nil
}

// RemoveIssuer revokes target's issuer authorization. Owner-only. The owner
// itself can never be removed; removing an identity that is not authorized
// is a no-op success that appends no event.
func (s *CertRegistrySmartContract) RemoveIssuer(ctx contractapi.TransactionContextInterface, target string) error {
	am := NewAccessManager(ctx)
	callerFullID, cfg, err := am.RequireOwner()
	if err != nil {
		return fmt.Errorf("RemoveIssuer: %w", err)
	}
	if err := s.validateRequiredString(target, "target", maxStringInputLength*2); err != nil {
		return fmt.Errorf("RemoveIssuer: %w", err)
	}
	if target == cfg.OwnerID {
		return fmt.Errorf("RemoveIssuer: the registry owner cannot be removed from the issuer set: %w", ErrInvalidInput)
	}

	authorized, err := am.IsAuthorized(target)
	if err != nil {
		return fmt.Errorf("RemoveIssuer: %w", err)
	}
	if !authorized {
		logger.Infof("RemoveIssuer: '%s' is not an authorized issuer. No action taken.", target)
		return nil
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RemoveIssuer: %w", err)
	}
	if err := am.clearIssuerFlag(target); err != nil {
		return fmt.Errorf("RemoveIssuer: %w", err)
	}

	ev := model.RegistryEvent{Type: model.EventIssuerRemoved, Identity: target}
	if err := s.appendEvent(ctx, am, cfg, &ev, now); err != nil {
		return fmt.Errorf("RemoveIssuer: %w", err)
	}

	logger.Infof("Issuer '%s' de-authorized by owner '%s'", target, callerFullID)
	return nil
}

// IsAuthorized reports whether identity is currently an authorized issuer.
// Public, pure query.
func (s *CertRegistrySmartContract) IsAuthorized(ctx contractapi.TransactionContextInterface, identity string) (bool, error) {
	logger.Debugf("Chaincode Call: IsAuthorized for '%s'", identity)
	return NewAccessManager(ctx).IsAuthorized(identity)
}

// GetOwner returns the registry owner's identity.
func (s *CertRegistrySmartContract) GetOwner(ctx contractapi.TransactionContextInterface) (string, error) {
	cfg, err := NewAccessManager(ctx).GetConfig()
	if err != nil {
		return "", fmt.Errorf("GetOwner: %w", err)
	}
	return cfg.OwnerID, nil
}

// GetAuthorizedIssuers returns all currently authorized issuer identities.
func (s *CertRegistrySmartContract) GetAuthorizedIssuers(ctx contractapi.TransactionContextInterface) ([]string, error) {
	logger.Debug("Chaincode Call: GetAuthorizedIssuers")
	return NewAccessManager(ctx).GetAuthorizedIssuers()
}
