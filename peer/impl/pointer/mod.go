package pointer

import (
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/xid"
	"go.dedis.ch/syfer/peer"
	"go.dedis.ch/syfer/peer/impl/message"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/transport"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// PointerModule is the caller side of the command protocol. It sends
// commands, stores and fetches to the owning worker and waits for the
// answer, everything over the wire, self included. Every wait is bounded by
// the configured ack timeout.
type PointerModule struct {
	*message.MessageModule
	conf *peer.Configuration

	pendings *SafePendings
	live     *SafeLiveRefs
}

func NewPointerModule(conf *peer.Configuration, messageModule *message.MessageModule) *PointerModule {
	m := PointerModule{
		MessageModule: messageModule,
		conf:          conf,
		pendings:      NewSafePendings(),
		live:          NewSafeLiveRefs(),
	}

	// message registery
	m.conf.MessageRegistry.RegisterMessageCallback(types.ResponseMessage{}, m.ProcessResponseMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.FetchReplyMessage{}, m.ProcessFetchReplyMsg)

	return &m
}

/** Feature Functions **/

// DispatchCommand implements peer.Dispatcher. All operands must live on the
// same worker; crossing workers needs an explicit transfer first.
func (m *PointerModule) DispatchCommand(op types.Op, refs []types.TensorRef,
	kwargs map[string]string) (types.TensorRef, []int, error) {

	if len(refs) == 0 {
		return types.TensorRef{}, nil, xerrors.New("command without operands")
	}
	dest := refs[0].WorkerAddr
	operands := make([]types.OperandRef, len(refs))
	for i, ref := range refs {
		if ref.WorkerAddr != dest {
			return types.TensorRef{}, nil, xerrors.Errorf(
				"operands on %s and %s: %w", dest, ref.WorkerAddr, types.ErrMixedOperand)
		}
		operands[i] = types.OperandRef{TensorID: ref.TensorID}
	}

	resp, err := m.DispatchTo(dest, op, operands, kwargs, "")
	if err != nil {
		return types.TensorRef{}, nil, err
	}
	m.live.track(resp.Result)
	return resp.Result, resp.Shape, nil
}

// DispatchTo sends one command to the given worker and waits for its answer.
// Operands may reference secrets, in which case resultSecretID names the
// secret the result share belongs to.
func (m *PointerModule) DispatchTo(dest string, op types.Op, operands []types.OperandRef,
	kwargs map[string]string, resultSecretID string) (types.ResponseMessage, error) {

	reqID := xid.New().String()
	cmd := types.CommandMessage{
		ReqID:          reqID,
		Op:             op,
		Operands:       operands,
		KWArgs:         kwargs,
		ResultSecretID: resultSecretID,
	}
	msg, err := m.CreateMsg(cmd)
	if err != nil {
		return types.ResponseMessage{}, err
	}

	ch := m.pendings.expectResponse(reqID)
	defer m.pendings.forget(reqID)

	err = m.Unicast(dest, msg)
	if err != nil {
		return types.ResponseMessage{}, unavailable(dest, err)
	}
	return m.awaitResponse(dest, ch)
}

// SendTensor transfers the tensor to the destination worker, registered
// under the local account, and returns a pointer on it. The payload travels
// on the encrypted channel.
func (m *PointerModule) SendTensor(t *ring.Tensor, dest string) (*peer.Pointer, error) {
	reqID := xid.New().String()
	store := types.StoreMessage{
		ReqID:   reqID,
		Owner:   m.Account(),
		Payload: t.ToPayload(),
	}
	msg, err := m.CreateMsg(store)
	if err != nil {
		return nil, err
	}

	ch := m.pendings.expectResponse(reqID)
	defer m.pendings.forget(reqID)

	err = m.SendEncryptedMessage(msg, dest)
	if err != nil {
		return nil, unavailable(dest, err)
	}
	resp, err := m.awaitResponse(dest, ch)
	if err != nil {
		return nil, err
	}

	m.live.track(resp.Result)
	return peer.NewPointer(resp.Result, resp.Shape, t.Mod(), m), nil
}

// FetchRef implements peer.Dispatcher. The request is signed with the
// node's key.
func (m *PointerModule) FetchRef(ref types.TensorRef) (*ring.Tensor, error) {
	fetch := types.FetchMessage{TensorID: ref.TensorID}
	return m.fetch(ref.WorkerAddr, ref.TensorID, fetch)
}

// FetchShare retrieves this node's signed view of one share of a secret
// from the given worker.
func (m *PointerModule) FetchShare(dest, secretID string) (*ring.Tensor, error) {
	fetch := types.FetchMessage{SecretID: secretID}
	return m.fetch(dest, secretID, fetch)
}

// ReleaseRefs implements peer.Dispatcher. Releases are fire and forget: a
// worker that already dropped the tensor has nothing left to do.
func (m *PointerModule) ReleaseRefs(refs ...types.TensorRef) error {
	byWorker := map[string][]string{}
	for _, ref := range refs {
		byWorker[ref.WorkerAddr] = append(byWorker[ref.WorkerAddr], ref.TensorID)
	}
	m.live.untrack(refs...)

	for worker, ids := range byWorker {
		msg, err := m.CreateMsg(types.ReleaseMessage{TensorIDs: ids})
		if err != nil {
			return err
		}
		err = m.Unicast(worker, msg)
		if err != nil {
			return err
		}
	}
	return nil
}

// RenewLiveLeases asks every worker holding tensors we point at to extend
// their leases. Called by the heartbeat daemon.
func (m *PointerModule) RenewLiveLeases() {
	for worker, ids := range m.live.snapshot() {
		msg, err := m.CreateMsg(types.LeaseRenewMessage{TensorIDs: ids})
		if err != nil {
			continue
		}
		// best effort, the next beat retries
		_ = m.Unicast(worker, msg)
	}
}

/** Message Handlers **/

// ProcessResponseMsg is a callback function to hand a worker's answer to
// the goroutine waiting on it.
func (m *PointerModule) ProcessResponseMsg(msg types.Message, pkt transport.Packet) error {
	resp, ok := msg.(*types.ResponseMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	m.pendings.resolveResponse(resp.ReqID, *resp)
	return nil
}

// ProcessFetchReplyMsg is a callback function to hand a fetch answer to the
// goroutine waiting on it.
func (m *PointerModule) ProcessFetchReplyMsg(msg types.Message, pkt transport.Packet) error {
	reply, ok := msg.(*types.FetchReplyMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	m.pendings.resolveFetch(reply.ReqID, *reply)
	return nil
}

/** Private Helper Functions **/

// unavailable tags delivery failures: a worker we cannot reach and a
// worker that does not answer look the same to the caller.
func unavailable(dest string, err error) error {
	if xerrors.Is(err, types.ErrWorkerUnavailable) {
		return err
	}
	return xerrors.Errorf("%s unreachable: %v: %w", dest, err, types.ErrWorkerUnavailable)
}

func (m *PointerModule) awaitResponse(dest string, ch chan types.ResponseMessage) (types.ResponseMessage, error) {
	select {
	case resp := <-ch:
		if resp.Status != "OK" {
			return types.ResponseMessage{}, xerrors.Errorf("%s: %w", dest, types.KindError(resp.ErrorKind))
		}
		return resp, nil
	case <-time.After(m.conf.AckTimeout):
		return types.ResponseMessage{}, xerrors.Errorf("%s did not answer: %w", dest, types.ErrWorkerUnavailable)
	}
}

func (m *PointerModule) fetch(dest, subject string, fetch types.FetchMessage) (*ring.Tensor, error) {
	reqID := xid.New().String()
	nonce := xid.New().String()

	hash := ethcrypto.Keccak256([]byte(subject + "|" + nonce))
	sig, err := ethcrypto.Sign(hash, m.conf.PrivateKey)
	if err != nil {
		return nil, err
	}
	fetch.ReqID = reqID
	fetch.Nonce = nonce
	fetch.Signature = sig

	msg, err := m.CreateMsg(fetch)
	if err != nil {
		return nil, err
	}

	ch := m.pendings.expectFetch(reqID)
	defer m.pendings.forget(reqID)

	err = m.Unicast(dest, msg)
	if err != nil {
		return nil, unavailable(dest, err)
	}

	select {
	case reply := <-ch:
		if reply.Status != "OK" {
			return nil, xerrors.Errorf("%s: %w", dest, types.KindError(reply.ErrorKind))
		}
		return ring.FromPayload(reply.Payload)
	case <-time.After(m.conf.AckTimeout):
		return nil, xerrors.Errorf("%s did not answer: %w", dest, types.ErrWorkerUnavailable)
	}
}
