package unit

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	z "go.dedis.ch/syfer/internal/testing"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/transport/channel"
	"go.dedis.ch/syfer/types"
)

// Splitting a secret and collecting the shares back must be the identity,
// whatever the cohort size.
func Test_mpc_share_and_reconstruct(t *testing.T) {
	for _, n := range []int{2, 3, 5} {
		transp := channel.NewTransport()
		nodes := setupCohort(t, transp, n)

		secret, err := ring.FromSlice([]uint64{3, 1, 4, 1, 5, 9}, []int{2, 3},
			ring.DefaultModulus)
		require.NoError(t, err)

		st, err := nodes[0].ShareSecret(secret, cohortAddrs(nodes))
		require.NoError(t, err)
		require.Equal(t, []int{2, 3}, st.Shape)
		require.Len(t, st.Participants, n)

		got, err := nodes[0].Reconstruct(&st)
		require.NoError(t, err)
		require.True(t, secret.Equal(got))

		stopAll(nodes)
	}
}

// A single worker's share must not be the plaintext. With a uniform share
// the odds of a collision on six elements are negligible.
func Test_mpc_share_hides_value(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3)
	defer stopAll(nodes)

	secret, err := ring.FromSlice([]uint64{3, 1, 4, 1, 5, 9}, []int{6},
		ring.DefaultModulus)
	require.NoError(t, err)

	st, err := nodes[0].ShareSecret(secret, cohortAddrs(nodes))
	require.NoError(t, err)

	share, err := nodes[0].Dispatcher().FetchShare(nodes[1].GetAddr(), st.SecretID)
	require.NoError(t, err)
	require.False(t, secret.Equal(share))
}

// Over repeated sharings the share a worker sees must look the same
// whatever the secret is: spread across the whole ring, with no visible
// difference between the marginals of two different secrets.
func Test_mpc_share_marginals(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 2, z.WithModulus(101))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	const rounds = 128

	marginal := func(value uint64) (low int, distinct int) {
		secret, err := ring.FromSlice([]uint64{value}, []int{1}, 101)
		require.NoError(t, err)

		seen := map[uint64]struct{}{}
		for i := 0; i < rounds; i++ {
			st, err := nodes[0].ShareSecret(secret, addrs)
			require.NoError(t, err)

			share, err := nodes[0].Dispatcher().FetchShare(nodes[1].GetAddr(), st.SecretID)
			require.NoError(t, err)

			v := share.At(0)
			seen[v] = struct{}{}
			if v <= 50 {
				low++
			}
		}
		return low, len(seen)
	}

	for _, value := range []uint64{5, 80} {
		low, distinct := marginal(value)
		// a uniform marginal lands in each half of the ring about half
		// the time and rarely repeats itself
		require.Greater(t, low, rounds/4)
		require.Less(t, low, 3*rounds/4)
		require.Greater(t, distinct, rounds/3)
	}
}

func Test_mpc_linear_ops(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3, z.WithModulus(101))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]

	x, err := ring.FromSlice([]uint64{10, 20, 30}, []int{3}, 101)
	require.NoError(t, err)
	y, err := ring.FromSlice([]uint64{1, 2, 100}, []int{3}, 101)
	require.NoError(t, err)

	sx, err := nodeA.ShareSecret(x, addrs)
	require.NoError(t, err)
	sy, err := nodeA.ShareSecret(y, addrs)
	require.NoError(t, err)

	sum, err := nodeA.AddShared(&sx, &sy)
	require.NoError(t, err)
	got, err := nodeA.Reconstruct(&sum)
	require.NoError(t, err)
	require.Equal(t, []uint64{11, 22, 29}, got.Data())

	diff, err := nodeA.SubShared(&sx, &sy)
	require.NoError(t, err)
	got, err = nodeA.Reconstruct(&diff)
	require.NoError(t, err)
	require.Equal(t, []uint64{9, 18, 31}, got.Data())

	neg, err := nodeA.NegShared(&sy)
	require.NoError(t, err)
	got, err = nodeA.Reconstruct(&neg)
	require.NoError(t, err)
	require.Equal(t, []uint64{100, 99, 1}, got.Data())

	scaled, err := nodeA.ScalarMulShared(3, &sx)
	require.NoError(t, err)
	got, err = nodeA.Reconstruct(&scaled)
	require.NoError(t, err)
	require.Equal(t, []uint64{30, 60, 90}, got.Data())

	c, err := ring.FromSlice([]uint64{5, 5, 5}, []int{3}, 101)
	require.NoError(t, err)
	shifted, err := nodeA.AddConstShared(c, &sx)
	require.NoError(t, err)
	got, err = nodeA.Reconstruct(&shifted)
	require.NoError(t, err)
	require.Equal(t, []uint64{15, 25, 35}, got.Data())
}

// Arithmetic on shares is ring arithmetic: overflow wraps at the modulus,
// by construction and not by accident.
func Test_mpc_wraparound(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 2, z.WithModulus(101))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)

	x, err := ring.FromSlice([]uint64{60, 3}, []int{2}, 101)
	require.NoError(t, err)
	y, err := ring.FromSlice([]uint64{50, 5}, []int{2}, 101)
	require.NoError(t, err)

	sx, err := nodes[0].ShareSecret(x, addrs)
	require.NoError(t, err)
	sy, err := nodes[0].ShareSecret(y, addrs)
	require.NoError(t, err)

	sum, err := nodes[0].AddShared(&sx, &sy)
	require.NoError(t, err)
	got, err := nodes[0].Reconstruct(&sum)
	require.NoError(t, err)
	require.Equal(t, []uint64{9, 8}, got.Data())

	diff, err := nodes[0].SubShared(&sx, &sy)
	require.NoError(t, err)
	got, err = nodes[0].Reconstruct(&diff)
	require.NoError(t, err)
	require.Equal(t, []uint64{10, 99}, got.Data())
}

func Test_mpc_beaver_mul(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3, z.WithModulus(101))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]

	err := nodeA.DealTriples(addrs, types.OpMulElem, []int{2}, []int{2}, 1)
	require.NoError(t, err)

	x, err := ring.FromSlice([]uint64{7, 60}, []int{2}, 101)
	require.NoError(t, err)
	y, err := ring.FromSlice([]uint64{3, 50}, []int{2}, 101)
	require.NoError(t, err)

	sx, err := nodeA.ShareSecret(x, addrs)
	require.NoError(t, err)
	sy, err := nodeA.ShareSecret(y, addrs)
	require.NoError(t, err)

	prod, err := nodeA.MulShared(&sx, &sy)
	require.NoError(t, err)

	got, err := nodeA.Reconstruct(&prod)
	require.NoError(t, err)
	// 7*3 = 21, 60*50 = 3000 = 71 mod 101
	require.Equal(t, []uint64{21, 71}, got.Data())
}

func Test_mpc_matmul(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3)
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]

	err := nodeA.DealTriples(addrs, types.OpMatMul, []int{2, 3}, []int{3, 2}, 1)
	require.NoError(t, err)

	x, err := ring.FromSlice([]uint64{1, 2, 3, 4, 5, 6}, []int{2, 3},
		ring.DefaultModulus)
	require.NoError(t, err)
	y, err := ring.FromSlice([]uint64{7, 8, 9, 10, 11, 12}, []int{3, 2},
		ring.DefaultModulus)
	require.NoError(t, err)

	sx, err := nodeA.ShareSecret(x, addrs)
	require.NoError(t, err)
	sy, err := nodeA.ShareSecret(y, addrs)
	require.NoError(t, err)

	prod, err := nodeA.MatMulShared(&sx, &sy)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2}, prod.Shape)

	got, err := nodeA.Reconstruct(&prod)
	require.NoError(t, err)
	require.Equal(t, []uint64{58, 64, 139, 154}, got.Data())
}

// Each triple works exactly once. A second multiplication without fresh
// material must fail instead of silently reusing masks.
func Test_mpc_triple_exhausted(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 2, z.WithModulus(101))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]

	err := nodeA.DealTriples(addrs, types.OpMulElem, []int{2}, []int{2}, 1)
	require.NoError(t, err)

	x, err := ring.FromSlice([]uint64{2, 3}, []int{2}, 101)
	require.NoError(t, err)

	sx, err := nodeA.ShareSecret(x, addrs)
	require.NoError(t, err)

	_, err = nodeA.MulShared(&sx, &sx)
	require.NoError(t, err)

	_, err = nodeA.MulShared(&sx, &sx)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrTripleExhausted))
}

func Test_mpc_release_shared(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3)
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]

	secret, err := ring.FromSlice([]uint64{42}, []int{1}, ring.DefaultModulus)
	require.NoError(t, err)

	st, err := nodeA.ShareSecret(secret, addrs)
	require.NoError(t, err)

	err = nodeA.ReleaseShared(&st)
	require.NoError(t, err)

	_, err = nodeA.Reconstruct(&st)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrUnknownReference))
}

// Only the node that shared the secret may collect the shares.
func Test_mpc_reconstruct_permission(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3)
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)

	secret, err := ring.FromSlice([]uint64{42}, []int{1}, ring.DefaultModulus)
	require.NoError(t, err)

	st, err := nodes[0].ShareSecret(secret, addrs)
	require.NoError(t, err)

	_, err = nodes[1].Reconstruct(&st)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrPermission))
}

// Results derived from a secret keep its owner, so an owner can run a chain
// of operations and still collect the final value.
func Test_mpc_derived_ownership(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3, z.WithModulus(101))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)

	x, err := ring.FromSlice([]uint64{10}, []int{1}, 101)
	require.NoError(t, err)

	sx, err := nodes[0].ShareSecret(x, addrs)
	require.NoError(t, err)

	doubled, err := nodes[0].ScalarMulShared(2, &sx)
	require.NoError(t, err)

	_, err = nodes[1].Reconstruct(&doubled)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrPermission))

	got, err := nodes[0].Reconstruct(&doubled)
	require.NoError(t, err)
	require.Equal(t, []uint64{20}, got.Data())
}

func Test_mpc_invalid_handle_rejected(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 2)
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)

	x, err := ring.FromSlice([]uint64{1}, []int{1}, ring.DefaultModulus)
	require.NoError(t, err)

	sx, err := nodes[0].ShareSecret(x, addrs)
	require.NoError(t, err)

	sx.Invalid = true

	_, err = nodes[0].AddShared(&sx, &sx)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrInvalidShared))

	_, err = nodes[0].Reconstruct(&sx)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrInvalidShared))
}

// Secrets shared over different cohorts or rings never mix.
func Test_mpc_mixed_cohorts(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3)
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]

	x, err := ring.FromSlice([]uint64{1, 2}, []int{2}, ring.DefaultModulus)
	require.NoError(t, err)

	sFull, err := nodeA.ShareSecret(x, addrs)
	require.NoError(t, err)
	sPair, err := nodeA.ShareSecret(x, addrs[:2])
	require.NoError(t, err)

	_, err = nodeA.AddShared(&sFull, &sPair)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrMixedOperand))
}

// A participant going down mid round must surface as an unavailable worker
// and never as a half-computed result.
func Test_mpc_mul_participant_down(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3, z.WithModulus(101))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]

	err := nodeA.DealTriples(addrs, types.OpMulElem, []int{1}, []int{1}, 1)
	require.NoError(t, err)

	x, err := ring.FromSlice([]uint64{7}, []int{1}, 101)
	require.NoError(t, err)

	sx, err := nodeA.ShareSecret(x, addrs)
	require.NoError(t, err)

	// stop the daemon only: the socket keeps accepting packets, nobody
	// processes them
	err = nodes[2].Stop()
	require.NoError(t, err)

	_, err = nodeA.MulShared(&sx, &sx)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrWorkerUnavailable))
}

// A participant that masks its shares and then goes silent still aborts
// the round, and the survivors poison the half-computed result: no later
// fetch may ever see it.
func Test_mpc_mul_participant_lost_after_masking(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3, z.WithModulus(101))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]

	// the dying node broadcasts pairs in participant order, so listing the
	// healthy worker first lets its masked pair out before the cut link to
	// the coordinator is hit
	parts := []string{addrs[1], addrs[0], addrs[2]}

	err := nodeA.DealTriples(parts, types.OpMulElem, []int{1}, []int{1}, 1)
	require.NoError(t, err)

	x, err := ring.FromSlice([]uint64{7}, []int{1}, 101)
	require.NoError(t, err)

	sx, err := nodeA.ShareSecret(x, parts)
	require.NoError(t, err)

	// cut only the link back to the coordinator: the pair to the healthy
	// worker still goes out, the done report never arrives
	nodes[2].SetRoutingEntry(addrs[0], "")

	_, err = nodeA.MulShared(&sx, &sx)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrWorkerUnavailable))

	// the coordinator told every reachable participant to poison the
	// result secret
	var poisoned []string
	for _, pkt := range nodeA.GetOuts() {
		if pkt.Msg.Type != (types.InvalidateMessage{}).Name() {
			continue
		}
		var inv types.InvalidateMessage
		require.NoError(t, json.Unmarshal(pkt.Msg.Payload, &inv))
		poisoned = inv.SecretIDs
	}
	require.Len(t, poisoned, 1)

	_, err = nodeA.Dispatcher().FetchShare(addrs[1], poisoned[0])
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrInvalidShared))
}

// Fixed-point values ride on the ring encoding: multiplying two scale-8
// tensors yields a scale-16 result.
func Test_mpc_fixed_point_mul(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3, z.WithFracBits(8))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]
	codec := ring.NewCodec(ring.DefaultModulus, 8)

	err := nodeA.DealTriples(addrs, types.OpMulElem, []int{2}, []int{2}, 1)
	require.NoError(t, err)

	x, err := ring.FromSlice([]uint64{codec.Encode(1.5), codec.Encode(-2.0)},
		[]int{2}, ring.DefaultModulus)
	require.NoError(t, err)
	y, err := ring.FromSlice([]uint64{codec.Encode(2.25), codec.Encode(0.5)},
		[]int{2}, ring.DefaultModulus)
	require.NoError(t, err)

	sx, err := nodeA.ShareSecret(x.WithFracBits(8), addrs)
	require.NoError(t, err)
	sy, err := nodeA.ShareSecret(y.WithFracBits(8), addrs)
	require.NoError(t, err)

	prod, err := nodeA.MulShared(&sx, &sy)
	require.NoError(t, err)
	require.Equal(t, uint(16), prod.FracBits)

	got, err := nodeA.Reconstruct(&prod)
	require.NoError(t, err)
	require.InDelta(t, 3.375, codec.DecodeAt(got.At(0), got.FracBits()), 1e-9)
	require.InDelta(t, -1.0, codec.DecodeAt(got.At(1), got.FracBits()), 1e-9)
}

func Test_mpc_less_than_zero(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3,
		z.WithCompareBits(8), z.WithSecurityBits(10))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]
	mod := ring.DefaultModulus

	// one randomness bundle plus the triples of the bit circuit
	err := nodeA.DealCompareRand(addrs, []int{3}, 1)
	require.NoError(t, err)
	err = nodeA.DealTriples(addrs, types.OpMulElem, []int{3}, []int{3}, 16)
	require.NoError(t, err)

	x, err := ring.FromSlice([]uint64{mod - 3, 5, 0}, []int{3}, mod)
	require.NoError(t, err)

	sx, err := nodeA.ShareSecret(x, addrs)
	require.NoError(t, err)

	neg, err := nodeA.LessThanZeroShared(&sx)
	require.NoError(t, err)
	require.Equal(t, uint(0), neg.FracBits)

	got, err := nodeA.Reconstruct(&neg)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 0, 0}, got.Data())
}

func Test_mpc_less_than(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3,
		z.WithCompareBits(8), z.WithSecurityBits(10))
	defer stopAll(nodes)

	addrs := cohortAddrs(nodes)
	nodeA := nodes[0]
	mod := ring.DefaultModulus

	err := nodeA.DealCompareRand(addrs, []int{3}, 1)
	require.NoError(t, err)
	err = nodeA.DealTriples(addrs, types.OpMulElem, []int{3}, []int{3}, 16)
	require.NoError(t, err)

	x, err := ring.FromSlice([]uint64{2, 90, mod - 7}, []int{3}, mod)
	require.NoError(t, err)
	y, err := ring.FromSlice([]uint64{5, 4, mod - 2}, []int{3}, mod)
	require.NoError(t, err)

	sx, err := nodeA.ShareSecret(x, addrs)
	require.NoError(t, err)
	sy, err := nodeA.ShareSecret(y, addrs)
	require.NoError(t, err)

	lt, err := nodeA.LessThanShared(&sx, &sy)
	require.NoError(t, err)

	got, err := nodeA.Reconstruct(&lt)
	require.NoError(t, err)
	// 2 < 5, 90 >= 4, -7 < -2
	require.Equal(t, []uint64{1, 0, 1}, got.Data())
}
