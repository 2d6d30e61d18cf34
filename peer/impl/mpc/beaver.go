package mpc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/transport"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// MulShared implements peer.MPC. One Beaver round, one consumed triple.
func (m *MPCModule) MulShared(a, b *types.SharedTensor) (types.SharedTensor, error) {
	err := checkPair(a, b)
	if err != nil {
		return types.SharedTensor{}, err
	}
	return m.beaverRound(types.OpMulElem, a, b, a.Shape)
}

// MatMulShared implements peer.MPC.
func (m *MPCModule) MatMulShared(a, b *types.SharedTensor) (types.SharedTensor, error) {
	err := checkOne(a)
	if err != nil {
		return types.SharedTensor{}, err
	}
	err = checkOne(b)
	if err != nil {
		return types.SharedTensor{}, err
	}
	if !a.SameCohort(*b) {
		return types.SharedTensor{}, xerrors.Errorf("secrets %s and %s live on different cohorts: %w",
			a.SecretID, b.SecretID, types.ErrMixedOperand)
	}
	if len(a.Shape) != 2 || len(b.Shape) != 2 || a.Shape[1] != b.Shape[0] {
		return types.SharedTensor{}, xerrors.Errorf("matmul shapes %v and %v: %w",
			a.Shape, b.Shape, types.ErrShapeMismatch)
	}
	return m.beaverRound(types.OpMatMul, a, b, []int{a.Shape[0], b.Shape[1]})
}

/** Private Helper Functions **/

// beaverRound coordinates one multiplication: it spends a dealt triple,
// starts the round on every participant and waits for all of them to report
// back. A round that does not complete leaves no usable result behind: the
// result secret is invalidated everywhere before the error is returned.
func (m *MPCModule) beaverRound(op types.Op, a, b *types.SharedTensor,
	resShape []int) (types.SharedTensor, error) {

	tripleID, ok := m.pool.popTriple(tripleKey(op, a.Shape, b.Shape))
	if !ok {
		return types.SharedTensor{}, xerrors.Errorf("%s on shapes %v, %v: %w",
			op, a.Shape, b.Shape, types.ErrTripleExhausted)
	}

	sessionID := uuid.NewString()
	resultSecret := xid.New().String()
	participants := a.Participants

	init := types.BeaverInitMessage{
		SessionID:    sessionID,
		Coordinator:  m.Address(),
		Participants: participants,
		Op:           op,
		XSecret:      a.SecretID,
		YSecret:      b.SecretID,
		TripleID:     tripleID,
		ResultSecret: resultSecret,
	}
	msg, err := m.CreateMsg(init)
	if err != nil {
		return types.SharedTensor{}, err
	}

	ch := m.sessions.expectDones(sessionID, len(participants))
	defer m.sessions.forgetDones(sessionID)

	err = m.Broadcast(participants, msg)
	if err != nil {
		m.invalidate(participants, resultSecret, "round never started")
		return types.SharedTensor{}, err
	}

	deadline := time.After(m.conf.AckTimeout)
	for remaining := len(participants); remaining > 0; remaining-- {
		select {
		case done := <-ch:
			if done.Status != "OK" {
				m.invalidate(participants, resultSecret,
					fmt.Sprintf("%s failed the round", done.From))
				return types.SharedTensor{}, xerrors.Errorf("%s: %w",
					done.From, types.KindError(done.ErrorKind))
			}
		case <-deadline:
			m.invalidate(participants, resultSecret, "round timed out")
			return types.SharedTensor{}, xerrors.Errorf(
				"beaver round %s timed out: %w", sessionID, types.ErrWorkerUnavailable)
		}
	}

	return types.SharedTensor{
		SecretID:     resultSecret,
		Shape:        resShape,
		Mod:          m.conf.Modulus,
		FracBits:     a.FracBits + b.FracBits,
		Participants: append([]string{}, participants...),
	}, nil
}

// invalidate tells every participant to poison the secret. Replaying a
// partial round with fresh masks from the surviving workers would leak
// information, so an aborted result is unusable for good.
func (m *MPCModule) invalidate(participants []string, secretID, reason string) {
	msg, err := m.CreateMsg(types.InvalidateMessage{
		SecretIDs: []string{secretID},
		Reason:    reason,
	})
	if err != nil {
		return
	}
	err = m.Broadcast(participants, msg)
	if err != nil {
		log.Warn().Msgf("%s: could not invalidate %s: %v", m.Address(), secretID, err)
	}
}

/** Message Handlers **/

// ProcessBeaverInitMsg is a callback function to start the local side of a
// Beaver round: consume the triple, mask the own operand shares and
// broadcast the masked pair to the cohort.
func (m *MPCModule) ProcessBeaverInitMsg(msg types.Message, pkt transport.Packet) error {
	init, ok := msg.(*types.BeaverInitMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	err := m.armSession(init)
	if err != nil {
		log.Info().Msgf("%s: beaver round %s failed locally: %v",
			m.Address(), init.SessionID, err)
		m.sessions.drop(init.SessionID)
		return m.reportDone(init.Coordinator, init.SessionID, err)
	}
	return m.tryFinishSession(init.SessionID)
}

// ProcessMaskedPairMsg is a callback function to collect a cohort member's
// masked pair. The round finishes once all pairs arrived.
func (m *MPCModule) ProcessMaskedPairMsg(msg types.Message, pkt transport.Packet) error {
	pair, ok := msg.(*types.MaskedPairMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	eps, err := ring.FromPayload(pair.Epsilon)
	if err != nil {
		return err
	}
	delta, err := ring.FromPayload(pair.Delta)
	if err != nil {
		return err
	}

	session := m.sessions.getOrCreate(pair.SessionID)
	if session == nil {
		// the round already settled, the pair is a straggler
		return nil
	}
	session.Lock()
	session.pairs[pair.From] = maskedPair{eps: eps, delta: delta}
	session.Unlock()

	return m.tryFinishSession(pair.SessionID)
}

// ProcessBeaverDoneMsg is a callback function to hand a participant's
// report to the coordinating goroutine.
func (m *MPCModule) ProcessBeaverDoneMsg(msg types.Message, pkt transport.Packet) error {
	done, ok := msg.(*types.BeaverDoneMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	m.sessions.resolveDone(done.SessionID, *done)
	return nil
}

/** Participant Side **/

// armSession loads the operand shares and the triple into the session and
// sends out the own masked pair.
func (m *MPCModule) armSession(init *types.BeaverInitMessage) error {
	session := m.sessions.getOrCreate(init.SessionID)
	if session == nil {
		return xerrors.Errorf("beaver round %s already settled", init.SessionID)
	}

	x, idx, err := m.worker.ShareOf(init.XSecret)
	if err != nil {
		return err
	}
	y, _, err := m.worker.ShareOf(init.YSecret)
	if err != nil {
		return err
	}
	owner, err := m.worker.OwnerOfSecret(init.XSecret)
	if err != nil {
		return err
	}

	tripleOp, a, b, c, err := m.worker.ConsumeTriple(init.TripleID)
	if err != nil {
		return err
	}
	if tripleOp != init.Op {
		return xerrors.Errorf("triple %s dealt for %s, round runs %s: %w",
			init.TripleID, tripleOp, init.Op, types.ErrTripleExhausted)
	}

	eps, err := x.Sub(a)
	if err != nil {
		return err
	}
	delta, err := y.Sub(b)
	if err != nil {
		return err
	}

	session.Lock()
	session.init = init
	session.shareIndex = idx
	session.owner = owner
	session.frac = x.FracBits() + y.FracBits()
	session.a, session.b, session.c = a, b, c
	session.Unlock()

	pairMsg, err := m.CreateMsg(types.MaskedPairMessage{
		SessionID: init.SessionID,
		From:      m.Address(),
		Epsilon:   eps.ToPayload(),
		Delta:     delta.ToPayload(),
	})
	if err != nil {
		return err
	}
	return m.Broadcast(init.Participants, pairMsg)
}

// tryFinishSession computes the product share once the init and all n
// masked pairs are in. The barrier is what makes the opened eps and delta
// identical on every participant.
func (m *MPCModule) tryFinishSession(sessionID string) error {
	session := m.sessions.getOrCreate(sessionID)
	if session == nil {
		return nil
	}
	session.Lock()
	defer session.Unlock()

	if session.done || session.init == nil ||
		len(session.pairs) < len(session.init.Participants) {
		return nil
	}
	session.done = true
	init := session.init

	var eps, delta *ring.Tensor
	var err error
	for _, from := range init.Participants {
		pair, ok := session.pairs[from]
		if !ok {
			return nil
		}
		if eps == nil {
			eps, delta = pair.eps, pair.delta
			continue
		}
		eps, err = eps.Add(pair.eps)
		if err == nil {
			delta, err = delta.Add(pair.delta)
		}
		if err != nil {
			break
		}
	}

	var z *ring.Tensor
	if err == nil {
		z, err = productShare(init.Op, session, eps, delta)
	}

	m.sessions.drop(sessionID)

	if err != nil {
		log.Info().Msgf("%s: beaver round %s failed locally: %v", m.Address(), sessionID, err)
		return m.reportDone(init.Coordinator, sessionID, err)
	}

	m.worker.DepositShare(init.ResultSecret, session.shareIndex, session.owner,
		init.Participants, z.WithFracBits(session.frac))
	return m.reportDone(init.Coordinator, sessionID, nil)
}

// productShare computes z_i = c_i + eps*b_i + a_i*delta, plus the public
// eps*delta term folded into share index 0 only.
func productShare(op types.Op, session *beaverSession, eps, delta *ring.Tensor) (*ring.Tensor, error) {
	mul := (*ring.Tensor).MulElem
	if op == types.OpMatMul {
		mul = (*ring.Tensor).MatMul
	}

	epsB, err := mul(eps, session.b)
	if err != nil {
		return nil, err
	}
	aDelta, err := mul(session.a, delta)
	if err != nil {
		return nil, err
	}

	z, err := session.c.Add(epsB)
	if err != nil {
		return nil, err
	}
	z, err = z.Add(aDelta)
	if err != nil {
		return nil, err
	}

	if session.shareIndex == 0 {
		epsDelta, err := mul(eps, delta)
		if err != nil {
			return nil, err
		}
		z, err = z.Add(epsDelta)
		if err != nil {
			return nil, err
		}
	}
	return z, nil
}

func (m *MPCModule) reportDone(coordinator, sessionID string, roundErr error) error {
	done := types.BeaverDoneMessage{
		SessionID: sessionID,
		From:      m.Address(),
		Status:    "OK",
	}
	if roundErr != nil {
		done.Status = "ERROR"
		done.ErrorKind = types.ErrorKind(roundErr)
	}
	msg, err := m.CreateMsg(done)
	if err != nil {
		return err
	}
	return m.Unicast(coordinator, msg)
}
