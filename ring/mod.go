package ring

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"math/bits"

	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// DefaultModulus is the Mersenne prime 2^61 - 1. Products of two reduced
// elements fit the 128-bit intermediate of math/bits, and there is headroom
// left for fixed-point encoded values.
const DefaultModulus uint64 = (1 << 61) - 1

// Tensor is a dense tensor over the ring of integers modulo a fixed
// modulus. All arithmetic wraps around the modulus; that wraparound is the
// defined semantics of the ring, not an error condition. Operations return
// fresh tensors and never mutate their receiver, so a tensor handed out as
// a secret share stays immutable.
type Tensor struct {
	shape []int
	mod   uint64
	frac  uint
	data  []uint64
}

// New returns a zero tensor of the given shape.
func New(shape []int, mod uint64) *Tensor {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return &Tensor{
		shape: append([]int{}, shape...),
		mod:   mod,
		data:  make([]uint64, size),
	}
}

// FromSlice builds a tensor from row-major data. Values are reduced modulo
// the modulus.
func FromSlice(data []uint64, shape []int, mod uint64) (*Tensor, error) {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size != len(data) {
		return nil, xerrors.Errorf("shape %v needs %d elements, got %d: %w",
			shape, size, len(data), types.ErrShapeMismatch)
	}
	t := New(shape, mod)
	for i, v := range data {
		t.data[i] = v % mod
	}
	return t, nil
}

// Scalar returns a 1-element tensor.
func Scalar(v uint64, mod uint64) *Tensor {
	t := New([]int{1}, mod)
	t.data[0] = v % mod
	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	return append([]int{}, t.shape...)
}

// Mod returns the ring modulus.
func (t *Tensor) Mod() uint64 {
	return t.mod
}

// FracBits returns the fixed-point scale carried by the tensor (0 for
// integer data).
func (t *Tensor) FracBits() uint {
	return t.frac
}

// WithFracBits returns a copy of the tensor carrying the given scale.
func (t *Tensor) WithFracBits(frac uint) *Tensor {
	res := t.Clone()
	res.frac = frac
	return res
}

// Size returns the number of elements.
func (t *Tensor) Size() int {
	return len(t.data)
}

// Data returns a copy of the row-major elements.
func (t *Tensor) Data() []uint64 {
	return append([]uint64{}, t.data...)
}

// At returns the element at the given row-major offset.
func (t *Tensor) At(i int) uint64 {
	return t.data[i]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	res := New(t.shape, t.mod)
	res.frac = t.frac
	copy(res.data, t.data)
	return res
}

// Equal returns true when both tensors have the same shape, modulus and
// elements.
func (t *Tensor) Equal(other *Tensor) bool {
	if t.mod != other.mod || !shapeEq(t.shape, other.shape) {
		return false
	}
	for i, v := range t.data {
		if other.data[i] != v {
			return false
		}
	}
	return true
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

func (t *Tensor) compat(other *Tensor) error {
	if t.mod != other.mod {
		return xerrors.Errorf("moduli differ: %d vs %d: %w", t.mod, other.mod, types.ErrShapeMismatch)
	}
	if !shapeEq(t.shape, other.shape) {
		return xerrors.Errorf("shapes differ: %v vs %v: %w", t.shape, other.shape, types.ErrShapeMismatch)
	}
	return nil
}

// Add returns t + other (mod M) elementwise.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	err := t.compat(other)
	if err != nil {
		return nil, err
	}
	res := t.Clone()
	for i := range res.data {
		res.data[i] = AddMod(res.data[i], other.data[i], t.mod)
	}
	return res, nil
}

// Sub returns t - other (mod M) elementwise.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) {
	err := t.compat(other)
	if err != nil {
		return nil, err
	}
	res := t.Clone()
	for i := range res.data {
		res.data[i] = SubMod(res.data[i], other.data[i], t.mod)
	}
	return res, nil
}

// Neg returns -t (mod M).
func (t *Tensor) Neg() *Tensor {
	res := t.Clone()
	for i := range res.data {
		res.data[i] = SubMod(0, res.data[i], t.mod)
	}
	return res
}

// MulElem returns the elementwise product t * other (mod M).
func (t *Tensor) MulElem(other *Tensor) (*Tensor, error) {
	err := t.compat(other)
	if err != nil {
		return nil, err
	}
	res := t.Clone()
	for i := range res.data {
		res.data[i] = MulMod(res.data[i], other.data[i], t.mod)
	}
	return res, nil
}

// Div returns the elementwise quotient t / other (mod M), computed as
// multiplication by the modular inverse. The modulus must be prime and the
// divisor must have no zero element. Fixed point: a scale f+g dividend over
// a scale g divisor yields a scale f quotient, so callers dividing two
// same-scale encodings re-encode the dividend at double precision first.
func (t *Tensor) Div(other *Tensor) (*Tensor, error) {
	err := t.compat(other)
	if err != nil {
		return nil, err
	}
	if t.frac < other.frac {
		return nil, xerrors.Errorf("cannot divide a scale %d tensor by a scale %d one",
			t.frac, other.frac)
	}
	res := t.Clone()
	for i := range res.data {
		inv := InvMod(other.data[i], t.mod)
		if inv == 0 {
			return nil, xerrors.Errorf("divisor element %d not invertible mod %d", i, t.mod)
		}
		res.data[i] = MulMod(res.data[i], inv, t.mod)
	}
	res.frac = t.frac - other.frac
	return res, nil
}

// MulScalar returns k * t (mod M).
func (t *Tensor) MulScalar(k uint64) *Tensor {
	res := t.Clone()
	k %= t.mod
	for i := range res.data {
		res.data[i] = MulMod(res.data[i], k, t.mod)
	}
	return res
}

// AddScalar returns t + k (mod M) elementwise.
func (t *Tensor) AddScalar(k uint64) *Tensor {
	res := t.Clone()
	k %= t.mod
	for i := range res.data {
		res.data[i] = AddMod(res.data[i], k, t.mod)
	}
	return res
}

// MatMul returns the matrix product t @ other (mod M). Both tensors must be
// 2-dimensional with compatible inner dimensions.
func (t *Tensor) MatMul(other *Tensor) (*Tensor, error) {
	if t.mod != other.mod {
		return nil, xerrors.Errorf("moduli differ: %d vs %d: %w", t.mod, other.mod, types.ErrShapeMismatch)
	}
	if len(t.shape) != 2 || len(other.shape) != 2 || t.shape[1] != other.shape[0] {
		return nil, xerrors.Errorf("cannot matmul %v by %v: %w", t.shape, other.shape, types.ErrShapeMismatch)
	}
	m, k, n := t.shape[0], t.shape[1], other.shape[1]
	res := New([]int{m, n}, t.mod)
	res.frac = t.frac
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var acc uint64
			for l := 0; l < k; l++ {
				acc = AddMod(acc, MulMod(t.data[i*k+l], other.data[l*n+j], t.mod), t.mod)
			}
			res.data[i*n+j] = acc
		}
	}
	return res, nil
}

// Reshape returns a tensor with the same elements and a new shape of equal
// size.
func (t *Tensor) Reshape(shape []int) (*Tensor, error) {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size != len(t.data) {
		return nil, xerrors.Errorf("cannot reshape %v to %v: %w", t.shape, shape, types.ErrShapeMismatch)
	}
	res := t.Clone()
	res.shape = append([]int{}, shape...)
	return res, nil
}

// InvMod returns the multiplicative inverse of a mod m, or 0 when none
// exists. Every nonzero element is invertible exactly when m is prime.
func InvMod(a, m uint64) uint64 {
	inv := big.NewInt(0).ModInverse(
		big.NewInt(0).SetUint64(a%m), big.NewInt(0).SetUint64(m))
	if inv == nil {
		return 0
	}
	return inv.Uint64()
}

// AddMod returns a + b mod m, correct even when a + b overflows 64 bits.
func AddMod(a, b, m uint64) uint64 {
	sum, carry := bits.Add64(a%m, b%m, 0)
	if carry != 0 {
		return bits.Rem64(carry, sum, m)
	}
	return sum % m
}

// SubMod returns a - b mod m.
func SubMod(a, b, m uint64) uint64 {
	a, b = a%m, b%m
	if a >= b {
		return a - b
	}
	return m - (b - a)
}

// MulMod returns a * b mod m using the 128-bit product.
func MulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a%m, b%m)
	return bits.Rem64(hi, lo, m)
}

// ToPayload converts the tensor into its wire form.
func (t *Tensor) ToPayload() types.TensorPayload {
	return types.TensorPayload{
		Shape:    t.Shape(),
		Mod:      t.mod,
		FracBits: t.frac,
		Data:     t.Data(),
	}
}

// FromPayload rebuilds a tensor from its wire form.
func FromPayload(p types.TensorPayload) (*Tensor, error) {
	if p.Mod == 0 {
		return nil, xerrors.New("payload has zero modulus")
	}
	t, err := FromSlice(p.Data, p.Shape, p.Mod)
	if err != nil {
		return nil, err
	}
	t.frac = p.FracBits
	return t, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (t *Tensor) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint64(t.mod))
	binary.Write(buf, binary.LittleEndian, uint32(t.frac))
	binary.Write(buf, binary.LittleEndian, uint32(len(t.shape)))
	for _, d := range t.shape {
		binary.Write(buf, binary.LittleEndian, uint32(d))
	}
	binary.Write(buf, binary.LittleEndian, t.data)
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (t *Tensor) UnmarshalBinary(data []byte) error {
	buf := bytes.NewReader(data)
	var frac, rank uint32
	err := binary.Read(buf, binary.LittleEndian, &t.mod)
	if err != nil {
		return err
	}
	err = binary.Read(buf, binary.LittleEndian, &frac)
	if err != nil {
		return err
	}
	err = binary.Read(buf, binary.LittleEndian, &rank)
	if err != nil {
		return err
	}
	t.frac = uint(frac)
	t.shape = make([]int, rank)
	size := 1
	for i := range t.shape {
		var d uint32
		err = binary.Read(buf, binary.LittleEndian, &d)
		if err != nil {
			return err
		}
		t.shape[i] = int(d)
		size *= int(d)
	}
	t.data = make([]uint64, size)
	return binary.Read(buf, binary.LittleEndian, t.data)
}
