package contract

import (
	"crypto/x509"
	"fmt"
	"testing"
	"time"

	"certregistry/model"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	ownerID      = "x509::CN=owner::CN=ca.example.com"
	issuerOneID  = "x509::CN=issuer1::CN=ca.example.com"
	issuerTwoID  = "x509::CN=issuer2::CN=ca.example.com"
	strangerID   = "x509::CN=stranger::CN=ca.example.com"
	recipientID  = "x509::CN=alice::CN=ca.example.com"
	recipientBID = "x509::CN=bob::CN=ca.example.com"
)

type mockClientIdentity struct {
	id    string
	mspID string
}

var _ cid.ClientIdentity = (*mockClientIdentity)(nil)

func (m *mockClientIdentity) GetID() (string, error)                         { return m.id, nil }
func (m *mockClientIdentity) GetMSPID() (string, error)                      { return m.mspID, nil }
func (m *mockClientIdentity) GetX509Certificate() (*x509.Certificate, error) { return nil, nil }
func (m *mockClientIdentity) GetAttributeValue(string) (string, bool, error) { return "", false, nil }
func (m *mockClientIdentity) AssertAttributeValue(string, string) error      { return nil }

// registryFixture drives the contract against a MockStub with a
// deterministic clock: every transaction advances it by one minute.
type registryFixture struct {
	t        *testing.T
	stub     *shimtest.MockStub
	contract *CertRegistrySmartContract
	now      time.Time
	txSeq    int
}

func newRegistryFixture(t *testing.T) *registryFixture {
	return &registryFixture{
		t:        t,
		stub:     shimtest.NewMockStub("certregistry", nil),
		contract: &CertRegistrySmartContract{},
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tx runs fn inside a mock transaction invoked by identity.
func (f *registryFixture) tx(identity string, fn func(ctx *contractapi.TransactionContext) error) error {
	f.t.Helper()
	f.txSeq++
	f.now = f.now.Add(time.Minute)
	txID := fmt.Sprintf("tx%04d", f.txSeq)
	f.stub.MockTransactionStart(txID)
	f.stub.TxTimestamp = timestamppb.New(f.now)
	defer f.stub.MockTransactionEnd(txID)

	ctx := &contractapi.TransactionContext{}
	ctx.SetStub(f.stub)
	ctx.SetClientIdentity(&mockClientIdentity{id: identity, mspID: "TestMSP"})
	return fn(ctx)
}

func (f *registryFixture) mustInit(policy string) {
	f.t.Helper()
	require.NoError(f.t, f.tx(ownerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.InitRegistry(ctx, policy)
	}))
}

func (f *registryFixture) mustAddIssuer(target string) {
	f.t.Helper()
	require.NoError(f.t, f.tx(ownerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.AddIssuer(ctx, target)
	}))
}

func (f *registryFixture) isAuthorized(identity string) bool {
	f.t.Helper()
	var authorized bool
	require.NoError(f.t, f.tx(identity, func(ctx *contractapi.TransactionContext) error {
		var err error
		authorized, err = f.contract.IsAuthorized(ctx, identity)
		return err
	}))
	return authorized
}

func (f *registryFixture) issue(caller, owner, recipient, issuer, course string, issueDate, expiryDate int64) (string, error) {
	f.t.Helper()
	var id string
	err := f.tx(caller, func(ctx *contractapi.TransactionContext) error {
		var err error
		id, err = f.contract.IssueCertificate(ctx, owner, recipient, issuer, course, issueDate, expiryDate)
		return err
	})
	return id, err
}

func (f *registryFixture) revoke(caller, certificateID string) error {
	f.t.Helper()
	return f.tx(caller, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RevokeCertificate(ctx, certificateID)
	})
}

func (f *registryFixture) verify(certificateID string) (*model.Certificate, error) {
	f.t.Helper()
	var cert *model.Certificate
	err := f.tx(strangerID, func(ctx *contractapi.TransactionContext) error {
		var err error
		cert, err = f.contract.VerifyCertificate(ctx, certificateID)
		return err
	})
	return cert, err
}

func (f *registryFixture) eventLog() []model.RegistryEvent {
	f.t.Helper()
	var events []model.RegistryEvent
	require.NoError(f.t, f.tx(strangerID, func(ctx *contractapi.TransactionContext) error {
		var err error
		events, err = f.contract.GetEventLog(ctx)
		return err
	}))
	return events
}

func TestInitRegistry(t *testing.T) {
	f := newRegistryFixture(t)
	f.mustInit("")

	require.True(t, f.isAuthorized(ownerID), "owner must be seeded as the first authorized issuer")

	var owner string
	require.NoError(t, f.tx(strangerID, func(ctx *contractapi.TransactionContext) error {
		var err error
		owner, err = f.contract.GetOwner(ctx)
		return err
	}))
	assert.Equal(t, ownerID, owner)

	// Initialization appends no events; the seeded owner is registry
	// construction, not an IssuerAdded occurrence.
	assert.Empty(t, f.eventLog())

	err := f.tx(strangerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.InitRegistry(ctx, "")
	})
	require.Error(t, err, "InitRegistry must be callable exactly once")
	assert.Contains(t, err.Error(), "already initialized")
}

func TestInitRegistryRejectsUnknownPolicy(t *testing.T) {
	f := newRegistryFixture(t)
	err := f.tx(ownerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.InitRegistry(ctx, "whoever-feels-like-it")
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddIssuer(t *testing.T) {
	f := newRegistryFixture(t)
	f.mustInit("")

	require.False(t, f.isAuthorized(issuerOneID))
	f.mustAddIssuer(issuerOneID)
	require.True(t, f.isAuthorized(issuerOneID))

	events := f.eventLog()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventIssuerAdded, events[0].Type)
	assert.Equal(t, issuerOneID, events[0].Identity)
	assert.Equal(t, uint64(0), events[0].Sequence)

	// Re-adding is a no-op success and appends no event.
	f.mustAddIssuer(issuerOneID)
	assert.Len(t, f.eventLog(), 1)
}

func TestAddIssuerOwnerOnly(t *testing.T) {
	f := newRegistryFixture(t)
	f.mustInit("")
	f.mustAddIssuer(issuerOneID)

	// Not even an authorized issuer may change the issuer set.
	for _, caller := range []string{strangerID, issuerOneID} {
		err := f.tx(caller, func(ctx *contractapi.TransactionContext) error {
			return f.contract.AddIssuer(ctx, issuerTwoID)
		})
		require.ErrorIs(t, err, ErrUnauthorized, "caller %s", caller)
	}
	assert.False(t, f.isAuthorized(issuerTwoID))
}

func TestRemoveIssuer(t *testing.T) {
	f := newRegistryFixture(t)
	f.mustInit("")
	f.mustAddIssuer(issuerOneID)

	require.NoError(t, f.tx(ownerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RemoveIssuer(ctx, issuerOneID)
	}))
	assert.False(t, f.isAuthorized(issuerOneID))

	events := f.eventLog()
	require.Len(t, events, 2)
	assert.Equal(t, model.EventIssuerRemoved, events[1].Type)
	assert.Equal(t, issuerOneID, events[1].Identity)

	// Removing an absent issuer is a no-op success with no event.
	require.NoError(t, f.tx(ownerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RemoveIssuer(ctx, issuerOneID)
	}))
	assert.Len(t, f.eventLog(), 2)

	// A removed issuer can no longer issue.
	_, err := f.issue(issuerOneID, recipientID, "Alice", "Acme U", "CS101", f.now.Unix(), 0)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRemoveIssuerNonOwner(t *testing.T) {
	f := newRegistryFixture(t)
	f.mustInit("")
	f.mustAddIssuer(issuerOneID)

	err := f.tx(issuerOneID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RemoveIssuer(ctx, issuerOneID)
	})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, f.isAuthorized(issuerOneID))
}

func TestOwnerCannotBeRemoved(t *testing.T) {
	f := newRegistryFixture(t)
	f.mustInit("")

	err := f.tx(ownerID, func(ctx *contractapi.TransactionContext) error {
		return f.contract.RemoveIssuer(ctx, ownerID)
	})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, f.isAuthorized(ownerID), "owner must always remain authorized")
}

func TestGetAuthorizedIssuers(t *testing.T) {
	f := newRegistryFixture(t)
	f.mustInit("")
	f.mustAddIssuer(issuerOneID)
	f.mustAddIssuer(issuerTwoID)

	var issuers []string
	require.NoError(t, f.tx(strangerID, func(ctx *contractapi.TransactionContext) error {
		var err error
		issuers, err = f.contract.GetAuthorizedIssuers(ctx)
		return err
	}))
	assert.ElementsMatch(t, []string{ownerID, issuerOneID, issuerTwoID}, issuers)
}
