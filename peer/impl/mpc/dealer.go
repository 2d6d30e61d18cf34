package mpc

import (
	"github.com/rs/xid"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// The dealing node plays the trusted dealer of the offline phase: it knows
// the raw triple and mask values, so it must be a party the cohort accepts
// in that role. Participants only ever see their own shares.

// DealTriples implements peer.MPC.
func (m *MPCModule) DealTriples(participants []string, op types.Op,
	xShape, yShape []int, count int) error {

	if op != types.OpMulElem && op != types.OpMatMul {
		return xerrors.Errorf("no triples for %s: %w", op, types.ErrCapability)
	}

	key := tripleKey(op, xShape, yShape)
	for i := 0; i < count; i++ {
		a, err := ring.Uniform(xShape, m.conf.Modulus)
		if err != nil {
			return err
		}
		b, err := ring.Uniform(yShape, m.conf.Modulus)
		if err != nil {
			return err
		}
		var c *ring.Tensor
		if op == types.OpMatMul {
			c, err = a.MatMul(b)
		} else {
			c, err = a.MulElem(b)
		}
		if err != nil {
			return err
		}

		tripleID := xid.New().String()
		err = m.depositTriple(participants, op, tripleID, a, b, c)
		if err != nil {
			return err
		}
		m.pool.addTriple(key, tripleID)
	}
	return nil
}

// DealCompareRand implements peer.MPC. One bundle masks one comparison: a
// random r below 2^(CompareBits+SecurityBits), its low CompareBits-1 bits
// rlow, and the individual bits of rlow, all dealt as additive shares.
func (m *MPCModule) DealCompareRand(participants []string, shape []int, count int) error {
	mBits := int(m.conf.CompareBits) - 1
	if mBits < 1 {
		return xerrors.New("compare bits not configured")
	}

	key := randKey(shape)
	for i := 0; i < count; i++ {
		randID := xid.New().String()
		err := m.depositCompareRand(participants, randID, shape, mBits)
		if err != nil {
			return err
		}
		m.pool.addRand(key, randID)
	}
	return nil
}

/** Private Helper Functions **/

func (m *MPCModule) depositTriple(participants []string, op types.Op,
	tripleID string, a, b, c *ring.Tensor) error {

	n := len(participants)
	aShares, err := splitShares(a, n)
	if err != nil {
		return err
	}
	bShares, err := splitShares(b, n)
	if err != nil {
		return err
	}
	cShares, err := splitShares(c, n)
	if err != nil {
		return err
	}

	for i, dest := range participants {
		deposit := types.TripleDepositMessage{
			TripleID:     tripleID,
			ShareIndex:   i,
			Owner:        m.Account(),
			Participants: participants,
			Op:           op,
			A:            aShares[i].ToPayload(),
			B:            bShares[i].ToPayload(),
			C:            cShares[i].ToPayload(),
		}
		msg, err := m.CreateMsg(deposit)
		if err != nil {
			return err
		}
		err = m.SendEncryptedMessage(msg, dest)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *MPCModule) depositCompareRand(participants []string, randID string,
	shape []int, mBits int) error {

	mod := m.conf.Modulus

	// rlow bit by bit, so the comparison circuit can work on the bits
	bits := make([]*ring.Tensor, mBits)
	rlow := ring.New(shape, mod)
	for j := 0; j < mBits; j++ {
		bit, err := ring.UniformBits(shape, mod)
		if err != nil {
			return err
		}
		bits[j] = bit
		rlow, err = rlow.Add(bit.MulScalar(pow2Mod(uint(j), mod)))
		if err != nil {
			return err
		}
	}

	// rtop covers the statistical masking range above the low bits
	topBound := pow2Mod(m.conf.CompareBits+m.conf.SecurityBits-uint(mBits), mod)
	rtop, err := ring.UniformBound(shape, topBound, mod)
	if err != nil {
		return err
	}
	r, err := rlow.Add(rtop.MulScalar(pow2Mod(uint(mBits), mod)))
	if err != nil {
		return err
	}

	n := len(participants)
	rShares, err := splitShares(r, n)
	if err != nil {
		return err
	}
	rlowShares, err := splitShares(rlow, n)
	if err != nil {
		return err
	}
	bitShares := make([][]*ring.Tensor, mBits)
	for j, bit := range bits {
		bitShares[j], err = splitShares(bit, n)
		if err != nil {
			return err
		}
	}

	for i, dest := range participants {
		deposit := types.RandMDepositMessage{
			RandID:       randID,
			ShareIndex:   i,
			Owner:        m.Account(),
			Participants: participants,
			M:            uint(mBits),
			R:            rShares[i].ToPayload(),
			RLow:         rlowShares[i].ToPayload(),
			RBits:        make([]types.TensorPayload, mBits),
		}
		for j := range bitShares {
			deposit.RBits[j] = bitShares[j][i].ToPayload()
		}
		msg, err := m.CreateMsg(deposit)
		if err != nil {
			return err
		}
		err = m.SendEncryptedMessage(msg, dest)
		if err != nil {
			return err
		}
	}
	return nil
}
