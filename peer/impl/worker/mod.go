package worker

import (
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"go.dedis.ch/syfer/peer"
	"go.dedis.ch/syfer/peer/impl/message"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// WorkerModule stores tensors on behalf of local and remote callers and
// executes commands on them. Every operation it can run is listed in its
// handler table; anything else is a capability error.
type WorkerModule struct {
	*message.MessageModule
	conf *peer.Configuration

	store    *TensorStore
	handlers map[types.Op]opHandler
}

func NewWorkerModule(conf *peer.Configuration, messageModule *message.MessageModule) *WorkerModule {
	m := WorkerModule{
		MessageModule: messageModule,
		conf:          conf,
		store:         NewTensorStore(),
	}
	m.handlers = opHandlers()

	// message registery
	m.conf.MessageRegistry.RegisterMessageCallback(types.CommandMessage{}, m.ProcessCommandMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.StoreMessage{}, m.ProcessStoreMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.FetchMessage{}, m.ProcessFetchMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.ReleaseMessage{}, m.ProcessReleaseMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.LeaseRenewMessage{}, m.ProcessLeaseRenewMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.ShareDepositMessage{}, m.ProcessShareDepositMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.TripleDepositMessage{}, m.ProcessTripleDepositMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.RandMDepositMessage{}, m.ProcessRandMDepositMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.InvalidateMessage{}, m.ProcessInvalidateMsg)

	return &m
}

/** Feature Functions **/

// Address implements peer.Worker
func (m *WorkerModule) Address() string {
	return m.conf.Socket.GetAddress()
}

// IdentityAddress implements peer.Worker
func (m *WorkerModule) IdentityAddress() string {
	return m.Account()
}

// Register implements peer.Worker. It stores the tensor under a fresh id
// owned by the local node.
func (m *WorkerModule) Register(t *ring.Tensor) string {
	return m.registerOwned(t, m.Account())
}

func (m *WorkerModule) registerOwned(t *ring.Tensor, owner string) string {
	id := xid.New().String()
	m.store.add(id, &storedTensor{
		tensor: t,
		owner:  owner,
		expiry: m.leaseExpiry(),
	})
	return id
}

func (m *WorkerModule) leaseExpiry() time.Time {
	if m.conf.LeaseTTL == 0 {
		return time.Time{}
	}
	return time.Now().Add(m.conf.LeaseTTL)
}

// Execute implements peer.Worker. It runs the operation on locally resident
// tensors referenced by plain ids.
func (m *WorkerModule) Execute(op types.Op, operandIDs []string, kwargs map[string]string) (string, error) {
	operands := make([]types.OperandRef, len(operandIDs))
	for i, id := range operandIDs {
		operands[i] = types.OperandRef{TensorID: id}
	}
	res, err := m.execute(op, operands, kwargs, "")
	if err != nil {
		return "", err
	}
	return res, nil
}

// Fetch implements peer.Worker. Local callers see their own store in the
// clear; the permission gate applies to remote fetches.
func (m *WorkerModule) Fetch(id string) (*ring.Tensor, error) {
	entry, ok := m.store.get(id)
	if !ok {
		return nil, xerrors.Errorf("tensor %s: %w", id, types.ErrUnknownReference)
	}
	return entry.tensor.Clone(), nil
}

// Release implements peer.Worker
func (m *WorkerModule) Release(ids ...string) error {
	m.store.remove(ids...)
	return nil
}

// StoreSize returns the number of resident tensors.
func (m *WorkerModule) StoreSize() int {
	return m.store.size()
}

// ShareOf returns the locally held share of a secret, with its index.
func (m *WorkerModule) ShareOf(secretID string) (*ring.Tensor, int, error) {
	if reason, poisoned := m.store.poisonReason(secretID); poisoned {
		return nil, 0, xerrors.Errorf("secret %s (%s): %w", secretID, reason, types.ErrInvalidShared)
	}
	entry, ok := m.store.getBySecret(secretID)
	if !ok {
		return nil, 0, xerrors.Errorf("secret %s: %w", secretID, types.ErrUnknownReference)
	}
	return entry.tensor.Clone(), entry.shareIndex, nil
}

// DepositShare records the local share of a secret.
func (m *WorkerModule) DepositShare(secretID string, index int, owner string,
	participants []string, t *ring.Tensor) {

	id := xid.New().String()
	m.store.add(id, &storedTensor{
		tensor:       t,
		owner:        owner,
		secretID:     secretID,
		shareIndex:   index,
		participants: participants,
		expiry:       m.leaseExpiry(),
	})
}

// ReleaseSecrets frees local share material.
func (m *WorkerModule) ReleaseSecrets(secretIDs ...string) {
	m.store.removeSecrets(secretIDs...)
}

// PoisonSecrets invalidates local share material after an aborted round.
func (m *WorkerModule) PoisonSecrets(reason string, secretIDs ...string) {
	m.store.poison(reason, secretIDs...)
}

// ConsumeTriple hands out a dealt triple exactly once.
func (m *WorkerModule) ConsumeTriple(tripleID string) (types.Op, *ring.Tensor, *ring.Tensor, *ring.Tensor, error) {
	t, err := m.store.consumeTriple(tripleID)
	if err != nil {
		return "", nil, nil, nil, err
	}
	return t.op, t.a, t.b, t.c, nil
}

// OwnerOfSecret returns the account owning the given secret.
func (m *WorkerModule) OwnerOfSecret(secretID string) (string, error) {
	entry, ok := m.store.getBySecret(secretID)
	if !ok {
		return "", xerrors.Errorf("secret %s: %w", secretID, types.ErrUnknownReference)
	}
	return entry.owner, nil
}

// RenewLeases extends the leases of the given tensors.
func (m *WorkerModule) RenewLeases(ids []string) {
	m.store.renew(ids, m.conf.LeaseTTL)
}

// SweepExpiredLeases frees tensors whose lease lapsed. Called by the lease
// daemon.
func (m *WorkerModule) SweepExpiredLeases() {
	expired := m.store.sweepExpired()
	if len(expired) > 0 {
		log.Info().Msgf("%s: lease expired for %d tensors", m.Address(), len(expired))
	}
}

/** Private Helper Functions **/

// execute resolves operands, runs the handler and stores the result. When
// resultSecretID is set the operands reference secrets and the result is
// registered as the local share of that new secret. Results belong to the
// owner of the operands, not to whoever sent the command.
func (m *WorkerModule) execute(op types.Op, operands []types.OperandRef,
	kwargs map[string]string, resultSecretID string) (string, error) {

	handler, ok := m.handlers[op]
	if !ok {
		return "", xerrors.Errorf("op %s: %w", op, types.ErrCapability)
	}

	tensors := make([]*ring.Tensor, len(operands))
	shareIndex := -1
	owner := ""
	sawPlain := false
	var participants []string
	for i, ref := range operands {
		switch {
		case ref.IsShared():
			t, idx, err := m.ShareOf(ref.SecretID)
			if err != nil {
				return "", err
			}
			if shareIndex >= 0 && idx != shareIndex {
				return "", xerrors.Errorf("shares of different index: %w", types.ErrMixedOperand)
			}
			entry, _ := m.store.getBySecret(ref.SecretID)
			shareIndex = idx
			participants = entry.participants
			if owner == "" {
				owner = entry.owner
			}
			tensors[i] = t
		default:
			entry, ok := m.store.get(ref.TensorID)
			if !ok {
				return "", xerrors.Errorf("tensor %s: %w", ref.TensorID, types.ErrUnknownReference)
			}
			if owner == "" {
				owner = entry.owner
			}
			sawPlain = true
			tensors[i] = entry.tensor
		}
	}

	if sawPlain && shareIndex >= 0 {
		return "", xerrors.Errorf("plain and shared operands in one command: %w",
			types.ErrMixedOperand)
	}
	if resultSecretID != "" && shareIndex < 0 {
		return "", xerrors.Errorf("result secret with plain operands: %w", types.ErrMixedOperand)
	}

	res, err := handler(tensors, kwargs, shareIndex)
	if err != nil {
		return "", err
	}

	if resultSecretID != "" {
		id := xid.New().String()
		m.store.add(id, &storedTensor{
			tensor:       res,
			owner:        owner,
			secretID:     resultSecretID,
			shareIndex:   shareIndex,
			participants: participants,
			expiry:       m.leaseExpiry(),
		})
		return id, nil
	}
	return m.registerOwned(res, owner), nil
}
