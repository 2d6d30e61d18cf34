package peer

import (
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
)

// MPC defines the secret-sharing engine of a node. Secrets are split with
// full n-of-n additive sharing over the configured ring: reconstruction
// needs every share, and any subset of fewer than n shares is uniformly
// random. Workers are assumed honest-but-curious and non-colluding; the
// multiplication triples and comparison randomness come from a trusted
// dealer (any node can act as one).
type MPC interface {
	// ShareSecret splits the value across the participants. The caller
	// becomes the secret's owner: only it may later collect the shares.
	ShareSecret(t *ring.Tensor, participants []string) (types.SharedTensor, error)

	// Reconstruct collects all shares and reassembles the plaintext. Fails
	// with a permission error when the caller does not own the secret.
	Reconstruct(st *types.SharedTensor) (*ring.Tensor, error)

	// ReleaseShared frees the share material of the secrets on every
	// participant.
	ReleaseShared(sts ...*types.SharedTensor) error

	// AddShared, SubShared and the other linear operations are share-local:
	// every participant combines its own shares, no communication happens.
	AddShared(a, b *types.SharedTensor) (types.SharedTensor, error)
	SubShared(a, b *types.SharedTensor) (types.SharedTensor, error)
	NegShared(a *types.SharedTensor) (types.SharedTensor, error)
	ScalarMulShared(k uint64, a *types.SharedTensor) (types.SharedTensor, error)

	// AddConstShared adds a public constant tensor to the secret.
	AddConstShared(c *ring.Tensor, a *types.SharedTensor) (types.SharedTensor, error)

	// MulShared and MatMulShared run one Beaver round across all
	// participants and consume one unused multiplication triple each.
	MulShared(a, b *types.SharedTensor) (types.SharedTensor, error)
	MatMulShared(a, b *types.SharedTensor) (types.SharedTensor, error)

	// LessThanZeroShared returns a shared 0/1 tensor marking the elements
	// of a that encode negative values. It runs O(CompareBits) Beaver
	// rounds and consumes one comparison-randomness bundle plus
	// O(CompareBits) triples per call: comparison is expensive by
	// construction, never O(1).
	LessThanZeroShared(a *types.SharedTensor) (types.SharedTensor, error)

	// LessThanShared returns shared 1 where a < b elementwise.
	LessThanShared(a, b *types.SharedTensor) (types.SharedTensor, error)

	// DealTriples precomputes count multiplication triples for the given
	// operation and operand shapes and distributes their shares to the
	// participants. The dealing node acts as the trusted dealer.
	DealTriples(participants []string, op types.Op, xShape, yShape []int, count int) error

	// DealCompareRand precomputes count comparison-randomness bundles for
	// tensors of the given shape.
	DealCompareRand(participants []string, shape []int, count int) error
}
