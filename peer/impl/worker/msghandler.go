package worker

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/transport"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// ProcessCommandMsg is a callback function to handle a received command. It
// executes the operation locally and answers the caller with the result
// reference or the error kind.
func (m *WorkerModule) ProcessCommandMsg(msg types.Message, pkt transport.Packet) error {
	cmd, ok := msg.(*types.CommandMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	resp := types.ResponseMessage{ReqID: cmd.ReqID, Status: "OK"}

	id, err := m.execute(cmd.Op, cmd.Operands, cmd.KWArgs, cmd.ResultSecretID)
	if err != nil {
		log.Error().Msgf("%s: command %s failed: %v", m.Address(), cmd.Op, err)
		resp.Status = "ERROR"
		resp.ErrorKind = types.ErrorKind(err)
	} else {
		entry, _ := m.store.get(id)
		resp.Result = types.TensorRef{WorkerAddr: m.Address(), TensorID: id}
		resp.Shape = entry.tensor.Shape()
		resp.FracBits = entry.tensor.FracBits()
	}

	return m.reply(pkt.Header.Source, resp)
}

// ProcessStoreMsg is a callback function to handle a tensor deposit.
func (m *WorkerModule) ProcessStoreMsg(msg types.Message, pkt transport.Packet) error {
	store, ok := msg.(*types.StoreMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	resp := types.ResponseMessage{ReqID: store.ReqID, Status: "OK"}

	t, err := ring.FromPayload(store.Payload)
	if err != nil {
		resp.Status = "ERROR"
		resp.ErrorKind = types.ErrorKind(err)
	} else {
		id := m.registerOwned(t, store.Owner)
		resp.Result = types.TensorRef{WorkerAddr: m.Address(), TensorID: id}
		resp.Shape = t.Shape()
		resp.FracBits = t.FracBits()
	}

	return m.reply(pkt.Header.Source, resp)
}

// ProcessFetchMsg is a callback function to handle a plaintext fetch. This
// is the only remote call that reveals values, and it only answers when the
// request signature resolves to the recorded owner.
func (m *WorkerModule) ProcessFetchMsg(msg types.Message, pkt transport.Packet) error {
	fetch, ok := msg.(*types.FetchMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	reply := types.FetchReplyMessage{ReqID: fetch.ReqID, Status: "OK"}

	t, err := m.authorizeFetch(fetch)
	if err != nil {
		log.Info().Msgf("%s: refused fetch from %s: %v", m.Address(), pkt.Header.Source, err)
		reply.Status = "ERROR"
		reply.ErrorKind = types.ErrorKind(err)
	} else {
		reply.Payload = t.ToPayload()
	}

	marshaled, err := m.CreateMsg(reply)
	if err != nil {
		return err
	}
	// shares travel encrypted, even on the way back
	return m.SendEncryptedMessage(marshaled, pkt.Header.Source)
}

// ProcessReleaseMsg is a callback function to free resident tensors.
func (m *WorkerModule) ProcessReleaseMsg(msg types.Message, pkt transport.Packet) error {
	release, ok := msg.(*types.ReleaseMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	m.store.remove(release.TensorIDs...)
	m.store.removeSecrets(release.SecretIDs...)

	if release.ReqID == "" {
		return nil
	}
	return m.reply(pkt.Header.Source, types.ResponseMessage{
		ReqID:  release.ReqID,
		Status: "OK",
	})
}

// ProcessLeaseRenewMsg is a callback function to extend leases.
func (m *WorkerModule) ProcessLeaseRenewMsg(msg types.Message, pkt transport.Packet) error {
	renew, ok := msg.(*types.LeaseRenewMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	m.RenewLeases(renew.TensorIDs)
	return nil
}

// ProcessShareDepositMsg is a callback function to record the local share
// of a fresh secret. The message reached us through the encrypted channel.
func (m *WorkerModule) ProcessShareDepositMsg(msg types.Message, pkt transport.Packet) error {
	deposit, ok := msg.(*types.ShareDepositMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	t, err := ring.FromPayload(deposit.Payload)
	if err != nil {
		return err
	}
	m.DepositShare(deposit.SecretID, deposit.ShareIndex, deposit.Owner,
		deposit.Participants, t)
	return nil
}

// ProcessTripleDepositMsg is a callback function to record dealt triple
// shares.
func (m *WorkerModule) ProcessTripleDepositMsg(msg types.Message, pkt transport.Packet) error {
	deposit, ok := msg.(*types.TripleDepositMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	a, err := ring.FromPayload(deposit.A)
	if err != nil {
		return err
	}
	b, err := ring.FromPayload(deposit.B)
	if err != nil {
		return err
	}
	c, err := ring.FromPayload(deposit.C)
	if err != nil {
		return err
	}
	m.store.addTriple(deposit.TripleID, &storedTriple{op: deposit.Op, a: a, b: b, c: c})
	return nil
}

// ProcessRandMDepositMsg is a callback function to record dealt comparison
// randomness. The bundle parts become regular secret shares under ids
// derived from the bundle id.
func (m *WorkerModule) ProcessRandMDepositMsg(msg types.Message, pkt transport.Packet) error {
	deposit, ok := msg.(*types.RandMDepositMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	parts := map[string]types.TensorPayload{
		types.RandSecretR(deposit.RandID):   deposit.R,
		types.RandSecretLow(deposit.RandID): deposit.RLow,
	}
	for j, p := range deposit.RBits {
		parts[types.RandSecretBit(deposit.RandID, j)] = p
	}

	for secretID, payload := range parts {
		t, err := ring.FromPayload(payload)
		if err != nil {
			return err
		}
		m.DepositShare(secretID, deposit.ShareIndex, deposit.Owner,
			deposit.Participants, t)
	}
	return nil
}

// ProcessInvalidateMsg is a callback function to drop share material of an
// aborted protocol round.
func (m *WorkerModule) ProcessInvalidateMsg(msg types.Message, pkt transport.Packet) error {
	inv, ok := msg.(*types.InvalidateMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	m.PoisonSecrets(inv.Reason, inv.SecretIDs...)
	return nil
}

/** Private Helper Functions **/

func (m *WorkerModule) reply(dest string, resp types.ResponseMessage) error {
	marshaled, err := m.CreateMsg(resp)
	if err != nil {
		return err
	}
	return m.Unicast(dest, marshaled)
}

// authorizeFetch verifies the request signature and returns the tensor when
// the signer is the recorded owner.
func (m *WorkerModule) authorizeFetch(fetch *types.FetchMessage) (*ring.Tensor, error) {
	var entry *storedTensor
	var subject string

	switch {
	case fetch.SecretID != "":
		subject = fetch.SecretID
		if reason, poisoned := m.store.poisonReason(fetch.SecretID); poisoned {
			return nil, xerrors.Errorf("secret %s (%s): %w",
				fetch.SecretID, reason, types.ErrInvalidShared)
		}
		e, ok := m.store.getBySecret(fetch.SecretID)
		if !ok {
			return nil, xerrors.Errorf("secret %s: %w", fetch.SecretID, types.ErrUnknownReference)
		}
		entry = e
	default:
		subject = fetch.TensorID
		e, ok := m.store.get(fetch.TensorID)
		if !ok {
			return nil, xerrors.Errorf("tensor %s: %w", fetch.TensorID, types.ErrUnknownReference)
		}
		entry = e
	}

	hash := ethcrypto.Keccak256([]byte(subject + "|" + fetch.Nonce))
	pub, err := ethcrypto.SigToPub(hash, fetch.Signature)
	if err != nil {
		return nil, xerrors.Errorf("bad fetch signature: %w", types.ErrPermission)
	}
	signer := ethcrypto.PubkeyToAddress(*pub).Hex()
	if signer != entry.owner {
		return nil, xerrors.Errorf("%s does not own %s: %w", signer, subject, types.ErrPermission)
	}

	return entry.tensor.Clone(), nil
}
