package peer

import (
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// Dispatcher translates pointer operations into remote commands. It is
// implemented by the node and injected into every pointer it hands out.
type Dispatcher interface {
	// DispatchCommand routes the operation to the worker owning the
	// operands and returns the reference of the result.
	DispatchCommand(op types.Op, operands []types.TensorRef,
		kwargs map[string]string) (types.TensorRef, []int, error)

	// FetchRef retrieves the plaintext behind a reference. The request is
	// signed with the node's key; the owning worker checks it against the
	// recorded owner.
	FetchRef(ref types.TensorRef) (*ring.Tensor, error)

	// FetchShare retrieves one share of a secret from the given worker.
	// Same signature check as FetchRef: only the secret's owner is served.
	FetchShare(dest, secretID string) (*ring.Tensor, error)

	// ReleaseRefs frees remote tensors.
	ReleaseRefs(refs ...types.TensorRef) error
}

// Pointer is a local handle on a tensor resident on a (possibly remote)
// worker. It is a weak reference: it never owns the data, several pointers
// may reference the same remote tensor, and dereferencing after a release
// fails with an unknown-reference error. Shape and modulus are mirrored
// locally so that shape errors are raised before any network round trip.
type Pointer struct {
	ref   types.TensorRef
	shape []int
	mod   uint64
	disp  Dispatcher
}

// NewPointer builds a pointer handle. Used by the node when a value is sent
// to or computed on a worker.
func NewPointer(ref types.TensorRef, shape []int, mod uint64, disp Dispatcher) *Pointer {
	return &Pointer{
		ref:   ref,
		shape: append([]int{}, shape...),
		mod:   mod,
		disp:  disp,
	}
}

// Ref returns the (worker, tensor-id) reference.
func (p *Pointer) Ref() types.TensorRef {
	return p.ref
}

// Shape returns the mirrored shape metadata.
func (p *Pointer) Shape() []int {
	return append([]int{}, p.shape...)
}

// Mod returns the mirrored ring modulus.
func (p *Pointer) Mod() uint64 {
	return p.mod
}

// Same returns true when both pointers reference the same remote tensor,
// regardless of local object identity.
func (p *Pointer) Same(other *Pointer) bool {
	return other != nil && p.ref == other.ref
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

func (p *Pointer) binary(op types.Op, other *Pointer) (*Pointer, error) {
	if op != types.OpMatMul && !shapeEq(p.shape, other.shape) {
		return nil, xerrors.Errorf("shapes %v and %v: %w",
			p.shape, other.shape, types.ErrShapeMismatch)
	}
	refs := []types.TensorRef{p.ref, other.ref}
	res, shape, err := p.disp.DispatchCommand(op, refs, nil)
	if err != nil {
		return nil, err
	}
	return NewPointer(res, shape, p.mod, p.disp), nil
}

// Add returns a pointer on the elementwise sum, computed on the owning
// worker.
func (p *Pointer) Add(other *Pointer) (*Pointer, error) {
	return p.binary(types.OpAdd, other)
}

// Sub returns a pointer on the elementwise difference.
func (p *Pointer) Sub(other *Pointer) (*Pointer, error) {
	return p.binary(types.OpSub, other)
}

// MulElem returns a pointer on the elementwise product.
func (p *Pointer) MulElem(other *Pointer) (*Pointer, error) {
	return p.binary(types.OpMulElem, other)
}

// Div returns a pointer on the elementwise quotient. The worker divides by
// multiplying with the modular inverse, so the ring modulus must be prime.
func (p *Pointer) Div(other *Pointer) (*Pointer, error) {
	return p.binary(types.OpDiv, other)
}

// MatMul returns a pointer on the matrix product.
func (p *Pointer) MatMul(other *Pointer) (*Pointer, error) {
	return p.binary(types.OpMatMul, other)
}

// Neg returns a pointer on the negation.
func (p *Pointer) Neg() (*Pointer, error) {
	res, shape, err := p.disp.DispatchCommand(types.OpNeg, []types.TensorRef{p.ref}, nil)
	if err != nil {
		return nil, err
	}
	return NewPointer(res, shape, p.mod, p.disp), nil
}

// MulScalar returns a pointer on k times the tensor.
func (p *Pointer) MulScalar(k uint64) (*Pointer, error) {
	kwargs := map[string]string{"k": types.EncodeUint(k)}
	res, shape, err := p.disp.DispatchCommand(types.OpMulScalar, []types.TensorRef{p.ref}, kwargs)
	if err != nil {
		return nil, err
	}
	return NewPointer(res, shape, p.mod, p.disp), nil
}

// Reshape returns a pointer on a reshaped view.
func (p *Pointer) Reshape(shape []int) (*Pointer, error) {
	kwargs := map[string]string{"shape": types.EncodeShape(shape)}
	res, newShape, err := p.disp.DispatchCommand(types.OpReshape, []types.TensorRef{p.ref}, kwargs)
	if err != nil {
		return nil, err
	}
	return NewPointer(res, newShape, p.mod, p.disp), nil
}

// Get fetches the plaintext home. It fails with a permission error when the
// caller is not allowed to see the value.
func (p *Pointer) Get() (*ring.Tensor, error) {
	return p.disp.FetchRef(p.ref)
}

// Release frees the remote tensor. Any pointer still referencing it will
// fail with an unknown-reference error afterwards.
func (p *Pointer) Release() error {
	return p.disp.ReleaseRefs(p.ref)
}
