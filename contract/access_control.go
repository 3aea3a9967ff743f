package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"certregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var aclLogger = flogging.MustGetLogger("certregistry.access")

// Object types for composite keys.
const (
	configObjectType = "RegistryConfig"   // singleton registry configuration
	issuerObjectType = "AuthorizedIssuer" // flag record per authorized issuer. Attribute: FullID.
)

// configKeyAttr is the fixed attribute of the singleton config key.
const configKeyAttr = "singleton"

// AccessManager owns the registry's identity and access-control state: the
// immutable owner, the authorized-issuer set, and the caller's identity as
// presented by the transaction context.
type AccessManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewAccessManager creates a new instance of AccessManager.
func NewAccessManager(ctx contractapi.TransactionContextInterface) *AccessManager {
	return &AccessManager{Ctx: ctx}
}

func isValidIdentity(id string) bool {
	// Fabric client identities are "x509::<subject>::<issuer>", sometimes
	// base64 encoded ("eDUwOTo6" is "x509::" base64 encoded).
	return strings.HasPrefix(id, "x509::") || strings.HasPrefix(id, "eDUwOTo6")
}

// --- Key Creation Helpers (using Composite Keys) ---

func (am *AccessManager) createConfigKey() (string, error) {
	return am.Ctx.GetStub().CreateCompositeKey(configObjectType, []string{configKeyAttr})
}

func (am *AccessManager) createIssuerFlagKey(fullID string) (string, error) {
	return am.Ctx.GetStub().CreateCompositeKey(issuerObjectType, []string{fullID})
}

// --- Registry Configuration ---

// getConfigIfExists returns the registry config, or nil if the registry has
// not been initialized yet.
func (am *AccessManager) getConfigIfExists() (*model.RegistryConfig, error) {
	configKey, err := am.createConfigKey()
	if err != nil {
		return nil, fmt.Errorf("failed to create registry config key: %w", err)
	}
	configBytes, err := am.Ctx.GetStub().GetState(configKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading registry config: %w", err)
	}
	if configBytes == nil {
		return nil, nil
	}
	var cfg model.RegistryConfig
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry config: %w", err)
	}
	return &cfg, nil
}

// GetConfig returns the registry config, failing if InitRegistry has not run.
func (am *AccessManager) GetConfig() (*model.RegistryConfig, error) {
	cfg, err := am.getConfigIfExists()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errors.New("registry is not initialized")
	}
	return cfg, nil
}

func (am *AccessManager) saveConfig(cfg *model.RegistryConfig) error {
	configKey, err := am.createConfigKey()
	if err != nil {
		return fmt.Errorf("failed to create registry config key: %w", err)
	}
	configBytes, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal registry config: %w", err)
	}
	if err := am.Ctx.GetStub().PutState(configKey, configBytes); err != nil {
		return fmt.Errorf("failed to save registry config: %w", err)
	}
	return nil
}

// --- Caller Identity ---

// GetCurrentIdentityFullID retrieves the full X.509 ID of the current transactor.
func (am *AccessManager) GetCurrentIdentityFullID() (string, error) {
	clientIdentity := am.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", errors.New("client identity ID from context is empty")
	}
	if !isValidIdentity(id) {
		aclLogger.Warningf("Current client ID '%s' does not appear to be a standard X.509 format.", id)
	}
	return id, nil
}

// --- Authorization Queries & Guards ---

// IsAuthorized reports whether identity is in the authorized-issuer set.
// The owner is seeded into the set at initialization and can never leave it.
func (am *AccessManager) IsAuthorized(identity string) (bool, error) {
	if strings.TrimSpace(identity) == "" {
		return false, errors.New("identity cannot be empty")
	}
	flagKey, err := am.createIssuerFlagKey(identity)
	if err != nil {
		return false, fmt.Errorf("failed to create issuer flag key for '%s': %w", identity, err)
	}
	flagBytes, err := am.Ctx.GetStub().GetState(flagKey)
	if err != nil {
		return false, fmt.Errorf("ledger error checking issuer flag for '%s': %w", identity, err)
	}
	return flagBytes != nil && string(flagBytes) == "true", nil
}

// RequireAuthorized returns the caller's identity, failing with
// ErrUnauthorized if the caller is not an authorized issuer.
func (am *AccessManager) RequireAuthorized() (string, error) {
	callerFullID, err := am.GetCurrentIdentityFullID()
	if err != nil {
		return "", fmt.Errorf("failed to get caller's FullID: %w", err)
	}
	authorized, err := am.IsAuthorized(callerFullID)
	if err != nil {
		return "", fmt.Errorf("failed to check authorization for '%s': %w", callerFullID, err)
	}
	if !authorized {
		return "", fmt.Errorf("caller '%s': %w", callerFullID, ErrUnauthorized)
	}
	return callerFullID, nil
}

// RequireOwner returns the caller's identity and the registry config,
// failing with ErrUnauthorized if the caller is not the registry owner.
func (am *AccessManager) RequireOwner() (string, *model.RegistryConfig, error) {
	callerFullID, err := am.GetCurrentIdentityFullID()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get caller's FullID: %w", err)
	}
	cfg, err := am.GetConfig()
	if err != nil {
		return "", nil, err
	}
	if callerFullID != cfg.OwnerID {
		return "", nil, fmt.Errorf("caller '%s' is not the registry owner: %w", callerFullID, ErrUnauthorized)
	}
	return callerFullID, cfg, nil
}

// --- Issuer Set Mutations (callers enforce authorization) ---

func (am *AccessManager) setIssuerFlag(fullID string) error {
	flagKey, err := am.createIssuerFlagKey(fullID)
	if err != nil {
		return fmt.Errorf("failed to create issuer flag key for '%s': %w", fullID, err)
	}
	if err := am.Ctx.GetStub().PutState(flagKey, []byte("true")); err != nil {
		return fmt.Errorf("failed to save issuer flag for '%s': %w", fullID, err)
	}
	return nil
}

func (am *AccessManager) clearIssuerFlag(fullID string) error {
	flagKey, err := am.createIssuerFlagKey(fullID)
	if err != nil {
		return fmt.Errorf("failed to create issuer flag key for '%s': %w", fullID, err)
	}
	if err := am.Ctx.GetStub().DelState(flagKey); err != nil {
		return fmt.Errorf("failed to delete issuer flag for '%s': %w", fullID, err)
	}
	return nil
}

// GetAuthorizedIssuers lists all currently authorized issuer identities,
// the owner included.
func (am *AccessManager) GetAuthorizedIssuers() ([]string, error) {
	iterator, err := am.Ctx.GetStub().GetStateByPartialCompositeKey(issuerObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to query issuer flags: %w", err)
	}
	defer iterator.Close()

	issuers := []string{}
	for iterator.HasNext() {
		queryResponse, iterErr := iterator.Next()
		if iterErr != nil {
			aclLogger.Warningf("Failed to get next issuer flag from iterator: %v. Skipping.", iterErr)
			continue
		}
		_, attrs, splitErr := am.Ctx.GetStub().SplitCompositeKey(queryResponse.Key)
		if splitErr != nil || len(attrs) == 0 {
			aclLogger.Warningf("Failed to split issuer flag key '%s': %v. Skipping.", queryResponse.Key, splitErr)
			continue
		}
		issuers = append(issuers, attrs[0])
	}
	return issuers, nil // Will be [] if empty, not null
}
