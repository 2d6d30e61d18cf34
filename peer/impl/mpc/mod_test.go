package mpc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
)

func Test_split_shares_sum_back(t *testing.T) {
	secret, err := ring.FromSlice([]uint64{3, 1, 4, 1, 5, 9}, []int{6},
		ring.DefaultModulus)
	require.NoError(t, err)

	for _, n := range []int{1, 2, 3, 7} {
		shares, err := splitShares(secret, n)
		require.NoError(t, err)
		require.Len(t, shares, n)

		sum := ring.New(secret.Shape(), secret.Mod())
		for _, share := range shares {
			sum, err = sum.Add(share)
			require.NoError(t, err)
		}
		require.True(t, secret.Equal(sum))
	}
}

func Test_split_shares_keep_scale(t *testing.T) {
	secret, err := ring.FromSlice([]uint64{1 << 16}, []int{1}, ring.DefaultModulus)
	require.NoError(t, err)
	secret = secret.WithFracBits(16)

	shares, err := splitShares(secret, 3)
	require.NoError(t, err)
	for _, share := range shares {
		require.Equal(t, uint(16), share.FracBits())
	}
}

// Individual shares must be fresh uniform draws: repeated sharings of the
// same secret never repeat the first share except by ring-sized accident.
func Test_split_shares_randomized(t *testing.T) {
	secret, err := ring.FromSlice([]uint64{0}, []int{1}, ring.DefaultModulus)
	require.NoError(t, err)

	seen := map[uint64]struct{}{}
	for i := 0; i < 64; i++ {
		shares, err := splitShares(secret, 2)
		require.NoError(t, err)
		seen[shares[0].At(0)] = struct{}{}
	}
	require.Greater(t, len(seen), 60)
}

func Test_pow2_mod(t *testing.T) {
	require.Equal(t, uint64(1), pow2Mod(0, 101))
	require.Equal(t, uint64(8), pow2Mod(3, 101))
	// 2^7 = 128 = 27 mod 101
	require.Equal(t, uint64(27), pow2Mod(7, 101))
	// 2^61 wraps to 1 in the 2^61-1 ring, 2^62 to 2
	require.Equal(t, uint64(1), pow2Mod(61, ring.DefaultModulus))
	require.Equal(t, uint64(2), pow2Mod(62, ring.DefaultModulus))
}

func Test_inv_pow2(t *testing.T) {
	for _, mod := range []uint64{101, ring.DefaultModulus} {
		for _, e := range []uint{1, 7, 31} {
			inv := invPow2(e, mod)
			require.Equal(t, uint64(1), ring.MulMod(pow2Mod(e, mod), inv, mod))
		}
	}
}

func Test_dealer_pool_keys(t *testing.T) {
	k1 := tripleKey(types.OpMulElem, []int{2, 3}, []int{2, 3})
	k2 := tripleKey(types.OpMatMul, []int{2, 3}, []int{2, 3})
	k3 := tripleKey(types.OpMulElem, []int{3, 2}, []int{2, 3})
	require.NotEqual(t, k1, k2)
	require.NotEqual(t, k1, k3)

	require.NotEqual(t, randKey([]int{2}), randKey([]int{2, 1}))
}

func Test_dealer_pool_pop(t *testing.T) {
	pool := NewSafeDealerPool()
	key := tripleKey(types.OpMulElem, []int{2}, []int{2})

	_, ok := pool.popTriple(key)
	require.False(t, ok)

	pool.addTriple(key, "tri1")
	pool.addTriple(key, "tri2")

	id, ok := pool.popTriple(key)
	require.True(t, ok)
	require.Equal(t, "tri1", id)

	id, ok = pool.popTriple(key)
	require.True(t, ok)
	require.Equal(t, "tri2", id)

	_, ok = pool.popTriple(key)
	require.False(t, ok)
}

func Test_beaver_sessions_pairs_before_init(t *testing.T) {
	sessions := NewSafeBeaverSessions()

	// a masked pair can arrive before the init of its round
	session := sessions.getOrCreate("s1")
	session.Lock()
	session.pairs["127.0.0.1:1"] = maskedPair{}
	session.Unlock()

	same := sessions.getOrCreate("s1")
	same.Lock()
	require.Len(t, same.pairs, 1)
	same.Unlock()

	sessions.drop("s1")
	require.Nil(t, sessions.getOrCreate("s1"))
}

// A packet for a round that already settled must not pile up a new empty
// session.
func Test_beaver_sessions_settled_round_ignored(t *testing.T) {
	sessions := NewSafeBeaverSessions()

	require.NotNil(t, sessions.getOrCreate("s1"))
	sessions.drop("s1")

	require.Nil(t, sessions.getOrCreate("s1"))
	require.Empty(t, sessions.sessions)

	// dropping twice keeps a single tombstone
	sessions.drop("s1")
	require.Len(t, sessions.finishedOrder, 1)

	// the tombstone window is bounded: old rounds eventually fall out
	for i := 0; i < finishedKeep; i++ {
		sessions.drop(fmt.Sprintf("s1-%d", i))
	}
	require.Len(t, sessions.finished, finishedKeep)
	require.NotNil(t, sessions.getOrCreate("s1"))
}

func Test_beaver_dones_channel(t *testing.T) {
	sessions := NewSafeBeaverSessions()

	ch := sessions.expectDones("s1", 2)
	sessions.resolveDone("s1", types.BeaverDoneMessage{From: "a", Status: "OK"})
	sessions.resolveDone("s1", types.BeaverDoneMessage{From: "b", Status: "OK"})

	require.Equal(t, "a", (<-ch).From)
	require.Equal(t, "b", (<-ch).From)

	sessions.forgetDones("s1")
	// late done after the coordinator gave up must not block
	sessions.resolveDone("s1", types.BeaverDoneMessage{From: "c"})
}
