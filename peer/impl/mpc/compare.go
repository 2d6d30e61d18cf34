package mpc

import (
	"math/big"

	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// Secure comparison with statistically masked opening: the shared value is
// shifted into the non-negative range, masked with a dealt random r whose
// low bits are bit-shared, and opened. The only value ever revealed is
// x + 2^(k-1) + r, which is statistically independent of x. The sign then
// falls out of a shared truncation, whose Mod2m step runs a bitwise
// less-than circuit between the public low bits of the opening and the
// shared low bits of r. Everything here rides on the share-local lincomb
// command plus Beaver multiplications; the round count is linear in the
// bit width, there is no shortcut.

// LessThanZeroShared implements peer.MPC. The caller must own the secret:
// the protocol opens a masked value through the caller's fetch permission.
func (m *MPCModule) LessThanZeroShared(a *types.SharedTensor) (types.SharedTensor, error) {
	err := checkOne(a)
	if err != nil {
		return types.SharedTensor{}, err
	}

	k := m.conf.CompareBits
	if k < 2 {
		return types.SharedTensor{}, xerrors.New("compare bits not configured")
	}
	mBits := int(k) - 1
	mod := m.conf.Modulus

	randID, ok := m.pool.popRand(randKey(a.Shape))
	if !ok {
		return types.SharedTensor{}, xerrors.Errorf("comparison on shape %v: %w",
			a.Shape, types.ErrTripleExhausted)
	}

	// shift into [0, 2^k): the top bit of the shifted value is the sign
	halfRange := fill(a.Shape, pow2Mod(k-1, mod), mod)
	xp, err := m.AddConstShared(halfRange, a)
	if err != nil {
		return types.SharedTensor{}, err
	}

	// open c = xp + r, statistically independent of xp
	rHandle := m.bundleHandle(types.RandSecretR(randID), a)
	masked, err := m.AddShared(&xp, &rHandle)
	if err != nil {
		return types.SharedTensor{}, err
	}
	c, err := m.Reconstruct(&masked)
	if err != nil {
		return types.SharedTensor{}, err
	}

	// public low part of the opening, as a tensor and bit by bit
	lowMask := uint64(1)<<uint(mBits) - 1
	cLowData := make([]uint64, c.Size())
	cBits := make([][]uint64, mBits)
	for j := range cBits {
		cBits[j] = make([]uint64, c.Size())
	}
	for e, v := range c.Data() {
		low := v & lowMask
		cLowData[e] = low
		for j := 0; j < mBits; j++ {
			cBits[j][e] = (low >> uint(j)) & 1
		}
	}
	cLow, err := ring.FromSlice(cLowData, a.Shape, mod)
	if err != nil {
		return types.SharedTensor{}, err
	}

	// u = (c mod 2^m < rlow), one shared bit per element
	u, err := m.bitLT(a, randID, cBits)
	if err != nil {
		return types.SharedTensor{}, err
	}

	// mod2m(xp) = c mod 2^m - rlow + u*2^m
	rlowHandle := m.bundleHandle(types.RandSecretLow(randID), a)
	kwargs, err := constKwargs(map[string]*ring.Tensor{"const": cLow})
	if err != nil {
		return types.SharedTensor{}, err
	}
	kwargs["alpha"] = types.EncodeUint(pow2Mod(uint(mBits), mod))
	kwargs["beta"] = types.EncodeUint(mod - 1)
	mod2m, err := m.dispatchEach(types.OpLinComb,
		[]types.OperandRef{{SecretID: u.SecretID}, {SecretID: rlowHandle.SecretID}},
		kwargs, a.Participants, a.Shape, 0)
	if err != nil {
		return types.SharedTensor{}, err
	}

	// sign bit = (xp - mod2m) / 2^m
	inv2m := invPow2(uint(mBits), mod)
	signBit, err := m.dispatchEach(types.OpLinComb,
		[]types.OperandRef{{SecretID: xp.SecretID}, {SecretID: mod2m.SecretID}},
		map[string]string{
			"alpha": types.EncodeUint(inv2m),
			"beta":  types.EncodeUint(ring.MulMod(mod-1, inv2m, mod)),
		}, a.Participants, a.Shape, 0)
	if err != nil {
		return types.SharedTensor{}, err
	}

	// negative iff the shifted value stayed below 2^(k-1)
	kwargs, err = constKwargs(map[string]*ring.Tensor{"const": fill(a.Shape, 1, mod)})
	if err != nil {
		return types.SharedTensor{}, err
	}
	kwargs["alpha"] = types.EncodeUint(mod - 1)
	kwargs["frac"] = "0"
	return m.dispatchEach(types.OpLinComb,
		[]types.OperandRef{{SecretID: signBit.SecretID}},
		kwargs, a.Participants, a.Shape, 0)
}

// LessThanShared implements peer.MPC.
func (m *MPCModule) LessThanShared(a, b *types.SharedTensor) (types.SharedTensor, error) {
	err := checkPair(a, b)
	if err != nil {
		return types.SharedTensor{}, err
	}
	if a.FracBits != b.FracBits {
		return types.SharedTensor{}, xerrors.Errorf(
			"comparing scales 2^-%d and 2^-%d: %w", a.FracBits, b.FracBits, types.ErrMixedOperand)
	}
	diff, err := m.SubShared(a, b)
	if err != nil {
		return types.SharedTensor{}, err
	}
	return m.LessThanZeroShared(&diff)
}

/** Private Helper Functions **/

// bitLT computes shares of the bit (cpub < r) from the public bits of cpub
// and the bit-shared r of the bundle. Classic most-significant-difference
// scan: u = sum_j r_j*(1-c_j)*prod_{l>j}(r_l == c_l).
func (m *MPCModule) bitLT(a *types.SharedTensor, randID string,
	cBits [][]uint64) (types.SharedTensor, error) {

	mod := m.conf.Modulus
	mBits := len(cBits)

	// q_j = (r_j == c_j) = r_j*(2c_j-1) + (1-c_j), share-local
	q := make([]types.SharedTensor, mBits)
	// s_j = r_j*(1-c_j), share-local
	s := make([]types.SharedTensor, mBits)
	for j := 0; j < mBits; j++ {
		bitHandle := m.bundleHandle(types.RandSecretBit(randID, j), a)

		eqCoef := make([]uint64, len(cBits[j]))
		eqConst := make([]uint64, len(cBits[j]))
		ltCoef := make([]uint64, len(cBits[j]))
		for e, cj := range cBits[j] {
			if cj == 1 {
				eqCoef[e] = 1
			} else {
				eqCoef[e] = mod - 1
				eqConst[e] = 1
				ltCoef[e] = 1
			}
		}

		var err error
		q[j], err = m.lincombPublic(&bitHandle, eqCoef, eqConst, a.Shape)
		if err != nil {
			return types.SharedTensor{}, err
		}
		s[j], err = m.lincombPublic(&bitHandle, ltCoef, nil, a.Shape)
		if err != nil {
			return types.SharedTensor{}, err
		}
	}

	// p_j = prod_{l>j} q_l, scanning from the most significant bit
	var u *types.SharedTensor
	p := &q[mBits-1]
	for j := mBits - 2; j >= 0; j-- {
		t, err := m.MulShared(&s[j], p)
		if err != nil {
			return types.SharedTensor{}, err
		}
		if u == nil {
			u = &t
		} else {
			acc, err := m.AddShared(u, &t)
			if err != nil {
				return types.SharedTensor{}, err
			}
			u = &acc
		}
		if j > 0 {
			next, err := m.MulShared(p, &q[j])
			if err != nil {
				return types.SharedTensor{}, err
			}
			p = &next
		}
	}

	// the most significant bit has an empty prefix
	if u == nil {
		return s[mBits-1], nil
	}
	acc, err := m.AddShared(u, &s[mBits-1])
	if err != nil {
		return types.SharedTensor{}, err
	}
	return acc, nil
}

// lincombPublic applies a public per-element coefficient and constant to a
// shared tensor, share-locally.
func (m *MPCModule) lincombPublic(a *types.SharedTensor, coef, cnst []uint64,
	shape []int) (types.SharedTensor, error) {

	coefT, err := ring.FromSlice(coef, shape, m.conf.Modulus)
	if err != nil {
		return types.SharedTensor{}, err
	}
	tensors := map[string]*ring.Tensor{"xcoef": coefT}
	if cnst != nil {
		constT, err := ring.FromSlice(cnst, shape, m.conf.Modulus)
		if err != nil {
			return types.SharedTensor{}, err
		}
		tensors["const"] = constT
	}
	kwargs, err := constKwargs(tensors)
	if err != nil {
		return types.SharedTensor{}, err
	}
	return m.dispatchEach(types.OpLinComb,
		[]types.OperandRef{{SecretID: a.SecretID}},
		kwargs, a.Participants, shape, 0)
}

// bundleHandle builds the handle of one dealt bundle secret, on the same
// cohort as the compared tensor.
func (m *MPCModule) bundleHandle(secretID string, a *types.SharedTensor) types.SharedTensor {
	return types.SharedTensor{
		SecretID:     secretID,
		Shape:        append([]int{}, a.Shape...),
		Mod:          m.conf.Modulus,
		Participants: append([]string{}, a.Participants...),
	}
}

func fill(shape []int, v, mod uint64) *ring.Tensor {
	return ring.New(shape, mod).AddScalar(v)
}

func pow2Mod(e uint, mod uint64) uint64 {
	res := big.NewInt(0).Exp(big.NewInt(2), big.NewInt(int64(e)), big.NewInt(0).SetUint64(mod))
	return res.Uint64()
}

// invPow2 returns the multiplicative inverse of 2^e. The modulus must be
// prime for the inverse to exist, which both the default 2^61-1 ring and
// the small prime rings used in tests satisfy.
func invPow2(e uint, mod uint64) uint64 {
	big2e := big.NewInt(0).Exp(big.NewInt(2), big.NewInt(int64(e)), big.NewInt(0).SetUint64(mod))
	inv := big.NewInt(0).ModInverse(big2e, big.NewInt(0).SetUint64(mod))
	if inv == nil {
		return 0
	}
	return inv.Uint64()
}
