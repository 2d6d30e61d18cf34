package peer

import (
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
)

// Worker defines the tensor-storage surface of a node: the capability set
// callers and remote peers interact with.
type Worker interface {
	// Register stores a tensor locally under a fresh id and returns the id.
	Register(t *ring.Tensor) string

	// Execute runs the operation on locally resident operands and stores
	// the result under a fresh id.
	Execute(op types.Op, operandIDs []string, kwargs map[string]string) (string, error)

	// Fetch returns the raw value of a locally resident tensor. This is the
	// only local plaintext-revealing call.
	Fetch(id string) (*ring.Tensor, error)

	// Release frees locally resident tensors.
	Release(ids ...string) error

	// SendTensor transfers a tensor to the destination worker and returns a
	// pointer to it. The local caller keeps no copy of the data unless it
	// already had one.
	SendTensor(t *ring.Tensor, dest string) (*Pointer, error)

	// Dispatcher returns the node's dispatcher, the object pointers use to
	// reach the worker owning their tensor.
	Dispatcher() Dispatcher

	// Address returns the worker's routable address.
	Address() string

	// IdentityAddress returns the hex account address derived from the
	// node's public key, under which it owns remote tensors.
	IdentityAddress() string
}
