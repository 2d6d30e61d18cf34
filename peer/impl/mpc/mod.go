package mpc

import (
	"encoding/json"

	"github.com/rs/xid"
	"go.dedis.ch/syfer/peer"
	"go.dedis.ch/syfer/peer/impl/pointer"
	"go.dedis.ch/syfer/peer/impl/worker"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// MPCModule implements the secret-sharing engine. Secrets are n-of-n
// additive shares over the configured ring. The module drives the other
// participants through the regular command protocol for everything linear
// and through the Beaver session messages for multiplications.
type MPCModule struct {
	*pointer.PointerModule
	conf *peer.Configuration

	worker *worker.WorkerModule

	sessions *SafeBeaverSessions
	pool     *SafeDealerPool
}

func NewMPCModule(conf *peer.Configuration, pointerModule *pointer.PointerModule,
	workerModule *worker.WorkerModule) *MPCModule {

	m := MPCModule{
		PointerModule: pointerModule,
		conf:          conf,
		worker:        workerModule,
		sessions:      NewSafeBeaverSessions(),
		pool:          NewSafeDealerPool(),
	}

	// message registery
	m.conf.MessageRegistry.RegisterMessageCallback(types.BeaverInitMessage{}, m.ProcessBeaverInitMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.MaskedPairMessage{}, m.ProcessMaskedPairMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.BeaverDoneMessage{}, m.ProcessBeaverDoneMsg)

	return &m
}

/** Feature Functions **/

// ShareSecret implements peer.MPC. The first n-1 shares are sampled
// uniformly, the last one makes the sum come out to the secret, so any
// subset of fewer than n shares is itself uniform.
func (m *MPCModule) ShareSecret(t *ring.Tensor, participants []string) (types.SharedTensor, error) {
	if len(participants) == 0 {
		return types.SharedTensor{}, xerrors.New("no participants")
	}
	if t.Mod() != m.conf.Modulus {
		return types.SharedTensor{}, xerrors.Errorf("tensor ring %d, node ring %d: %w",
			t.Mod(), m.conf.Modulus, types.ErrMixedOperand)
	}

	shares, err := splitShares(t, len(participants))
	if err != nil {
		return types.SharedTensor{}, err
	}

	secretID := xid.New().String()
	for i, dest := range participants {
		deposit := types.ShareDepositMessage{
			SecretID:     secretID,
			ShareIndex:   i,
			Owner:        m.Account(),
			Participants: participants,
			Payload:      shares[i].ToPayload(),
		}
		msg, err := m.CreateMsg(deposit)
		if err != nil {
			return types.SharedTensor{}, err
		}
		err = m.SendEncryptedMessage(msg, dest)
		if err != nil {
			return types.SharedTensor{}, err
		}
	}

	return types.SharedTensor{
		SecretID:     secretID,
		Shape:        t.Shape(),
		Mod:          t.Mod(),
		FracBits:     t.FracBits(),
		Participants: append([]string{}, participants...),
	}, nil
}

// Reconstruct implements peer.MPC. It needs every share: the sum of any
// strict subset is uniformly random.
func (m *MPCModule) Reconstruct(st *types.SharedTensor) (*ring.Tensor, error) {
	if st.Invalid {
		return nil, xerrors.Errorf("secret %s: %w", st.SecretID, types.ErrInvalidShared)
	}

	var sum *ring.Tensor
	for _, dest := range st.Participants {
		share, err := m.FetchShare(dest, st.SecretID)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = share
			continue
		}
		sum, err = sum.Add(share)
		if err != nil {
			return nil, err
		}
	}
	return sum.WithFracBits(st.FracBits), nil
}

// ReleaseShared implements peer.MPC.
func (m *MPCModule) ReleaseShared(sts ...*types.SharedTensor) error {
	byWorker := map[string][]string{}
	for _, st := range sts {
		for _, dest := range st.Participants {
			byWorker[dest] = append(byWorker[dest], st.SecretID)
		}
	}
	for dest, secretIDs := range byWorker {
		msg, err := m.CreateMsg(types.ReleaseMessage{SecretIDs: secretIDs})
		if err != nil {
			return err
		}
		err = m.Unicast(dest, msg)
		if err != nil {
			return err
		}
	}
	return nil
}

// AddShared implements peer.MPC. Additive shares are linear: every
// participant adds its own shares and the sums are shares of the sum.
func (m *MPCModule) AddShared(a, b *types.SharedTensor) (types.SharedTensor, error) {
	err := checkPair(a, b)
	if err != nil {
		return types.SharedTensor{}, err
	}
	return m.dispatchEach(types.OpAdd,
		[]types.OperandRef{{SecretID: a.SecretID}, {SecretID: b.SecretID}},
		nil, a.Participants, a.Shape, a.FracBits)
}

// SubShared implements peer.MPC.
func (m *MPCModule) SubShared(a, b *types.SharedTensor) (types.SharedTensor, error) {
	err := checkPair(a, b)
	if err != nil {
		return types.SharedTensor{}, err
	}
	return m.dispatchEach(types.OpSub,
		[]types.OperandRef{{SecretID: a.SecretID}, {SecretID: b.SecretID}},
		nil, a.Participants, a.Shape, a.FracBits)
}

// NegShared implements peer.MPC.
func (m *MPCModule) NegShared(a *types.SharedTensor) (types.SharedTensor, error) {
	err := checkOne(a)
	if err != nil {
		return types.SharedTensor{}, err
	}
	return m.dispatchEach(types.OpNeg,
		[]types.OperandRef{{SecretID: a.SecretID}},
		nil, a.Participants, a.Shape, a.FracBits)
}

// ScalarMulShared implements peer.MPC.
func (m *MPCModule) ScalarMulShared(k uint64, a *types.SharedTensor) (types.SharedTensor, error) {
	err := checkOne(a)
	if err != nil {
		return types.SharedTensor{}, err
	}
	kwargs := map[string]string{"k": types.EncodeUint(k % a.Mod)}
	return m.dispatchEach(types.OpMulScalar,
		[]types.OperandRef{{SecretID: a.SecretID}},
		kwargs, a.Participants, a.Shape, a.FracBits)
}

// AddConstShared implements peer.MPC. The constant is folded into the share
// of index 0 only, which shifts the reconstructed sum by exactly the
// constant.
func (m *MPCModule) AddConstShared(c *ring.Tensor, a *types.SharedTensor) (types.SharedTensor, error) {
	err := checkOne(a)
	if err != nil {
		return types.SharedTensor{}, err
	}
	kwargs, err := constKwargs(map[string]*ring.Tensor{"const": c})
	if err != nil {
		return types.SharedTensor{}, err
	}
	return m.dispatchEach(types.OpLinComb,
		[]types.OperandRef{{SecretID: a.SecretID}},
		kwargs, a.Participants, a.Shape, a.FracBits)
}

/** Private Helper Functions **/

// dispatchEach sends the same share-local command to every participant
// under a fresh result secret id and returns the handle of the result.
func (m *MPCModule) dispatchEach(op types.Op, operands []types.OperandRef,
	kwargs map[string]string, participants []string, shape []int,
	frac uint) (types.SharedTensor, error) {

	resultSecret := xid.New().String()
	for _, dest := range participants {
		_, err := m.DispatchTo(dest, op, operands, kwargs, resultSecret)
		if err != nil {
			return types.SharedTensor{}, err
		}
	}
	return types.SharedTensor{
		SecretID:     resultSecret,
		Shape:        append([]int{}, shape...),
		Mod:          m.conf.Modulus,
		FracBits:     frac,
		Participants: append([]string{}, participants...),
	}, nil
}

func checkOne(a *types.SharedTensor) error {
	if a.Invalid {
		return xerrors.Errorf("secret %s: %w", a.SecretID, types.ErrInvalidShared)
	}
	return nil
}

func checkPair(a, b *types.SharedTensor) error {
	err := checkOne(a)
	if err != nil {
		return err
	}
	err = checkOne(b)
	if err != nil {
		return err
	}
	if !a.SameCohort(*b) {
		return xerrors.Errorf("secrets %s and %s live on different cohorts: %w",
			a.SecretID, b.SecretID, types.ErrMixedOperand)
	}
	if !shapeEq(a.Shape, b.Shape) {
		return xerrors.Errorf("shapes %v and %v: %w", a.Shape, b.Shape, types.ErrShapeMismatch)
	}
	return nil
}

func shapeEq(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i, d := range a {
		if b[i] != d {
			return false
		}
	}
	return true
}

// constKwargs encodes public tensor kwargs for a lincomb command.
func constKwargs(tensors map[string]*ring.Tensor) (map[string]string, error) {
	kwargs := map[string]string{}
	for key, t := range tensors {
		raw, err := json.Marshal(t.ToPayload())
		if err != nil {
			return nil, err
		}
		kwargs[key] = string(raw)
	}
	return kwargs, nil
}

// splitShares cuts the tensor into n additive shares.
func splitShares(t *ring.Tensor, n int) ([]*ring.Tensor, error) {
	shares := make([]*ring.Tensor, n)
	rest := t
	for i := 0; i < n-1; i++ {
		share, err := ring.Uniform(t.Shape(), t.Mod())
		if err != nil {
			return nil, err
		}
		shares[i] = share.WithFracBits(t.FracBits())
		rest, err = rest.Sub(share)
		if err != nil {
			return nil, err
		}
	}
	shares[n-1] = rest.WithFracBits(t.FracBits())
	return shares, nil
}
