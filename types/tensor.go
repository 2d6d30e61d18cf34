package types

import "fmt"

// TensorRef identifies a plain tensor resident on a single worker.
type TensorRef struct {
	WorkerAddr string
	TensorID   string
}

func (r TensorRef) String() string {
	return fmt.Sprintf("%s@%s", r.TensorID, r.WorkerAddr)
}

// OperandRef is an operand of a worker command. Either TensorID is set and
// the operand is a plain resident tensor, or SecretID is set and the
// operand is the worker's own share of that secret.
type OperandRef struct {
	TensorID string `json:",omitempty"`
	SecretID string `json:",omitempty"`
}

// IsShared returns true when the operand references a secret share.
func (r OperandRef) IsShared() bool {
	return r.SecretID != ""
}

// TensorPayload is the wire form of a ring tensor.
type TensorPayload struct {
	Shape    []int
	Mod      uint64
	FracBits uint
	Data     []uint64
}

// SharedTensor is the caller-side handle of one secret-shared value: the
// secret itself never leaves the participating workers, each of which holds
// exactly one additive share. The handle carries only metadata.
type SharedTensor struct {
	SecretID     string
	Shape        []int
	Mod          uint64
	FracBits     uint
	Participants []string

	// Invalid is set when a protocol round involving this secret was
	// aborted; the shares must be considered corrupted.
	Invalid bool
}

func (st SharedTensor) String() string {
	return fmt.Sprintf("{shared %s over %d workers, shape %v mod %d}",
		st.SecretID, len(st.Participants), st.Shape, st.Mod)
}

// NumElems returns the number of ring elements of the secret.
func (st SharedTensor) NumElems() int {
	n := 1
	for _, d := range st.Shape {
		n *= d
	}
	return n
}

// SameCohort returns true when both secrets are shared over the same
// ordered worker set and ring.
func (st SharedTensor) SameCohort(other SharedTensor) bool {
	if st.Mod != other.Mod || len(st.Participants) != len(other.Participants) {
		return false
	}
	for i, p := range st.Participants {
		if other.Participants[i] != p {
			return false
		}
	}
	return true
}
