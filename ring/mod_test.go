package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/mat"
)

func Test_modular_helpers(t *testing.T) {
	m := uint64(101)

	require.Equal(t, uint64(0), AddMod(100, 1, m))
	require.Equal(t, uint64(99), AddMod(100, 100, m))
	require.Equal(t, uint64(100), SubMod(0, 1, m))
	require.Equal(t, uint64(21), MulMod(7, 3, m))
	// wraparound is ring semantics, not an error
	require.Equal(t, uint64(100*100%101), MulMod(100, 100, m))

	// products near the top of a 61-bit modulus exercise the 128-bit path
	big := DefaultModulus - 1
	require.Equal(t, uint64(1), MulMod(big, big, DefaultModulus))
}

func Test_tensor_add_sub(t *testing.T) {
	m := uint64(101)
	a, err := FromSlice([]uint64{1, 2, 3, 100}, []int{2, 2}, m)
	require.NoError(t, err)
	b, err := FromSlice([]uint64{100, 2, 99, 100}, []int{2, 2}, m)
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 4, 1, 99}, sum.Data())

	diff, err := sum.Sub(b)
	require.NoError(t, err)
	require.True(t, diff.Equal(a))

	// original operands untouched
	require.Equal(t, []uint64{1, 2, 3, 100}, a.Data())

	_, err = a.Add(Scalar(1, m))
	require.True(t, xerrors.Is(err, types.ErrShapeMismatch))
}

func Test_tensor_matmul(t *testing.T) {
	m := uint64(101)
	a, err := FromSlice([]uint64{1, 2, 3, 4, 5, 6}, []int{2, 3}, m)
	require.NoError(t, err)
	b, err := FromSlice([]uint64{7, 8, 9, 10, 11, 12}, []int{3, 2}, m)
	require.NoError(t, err)

	prod, err := a.MatMul(b)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2}, prod.Shape())
	require.Equal(t, []uint64{58 % 101, 64 % 101, 139 % 101, 154 % 101}, prod.Data())

	_, err = b.MatMul(prod)
	require.True(t, xerrors.Is(err, types.ErrShapeMismatch))
}

func Test_tensor_div(t *testing.T) {
	m := uint64(101)
	a, err := FromSlice([]uint64{6, 1, 100}, []int{3}, m)
	require.NoError(t, err)
	b, err := FromSlice([]uint64{3, 2, 10}, []int{3}, m)
	require.NoError(t, err)

	q, err := a.Div(b)
	require.NoError(t, err)
	// 1/2 is the inverse of 2, namely 51
	require.Equal(t, []uint64{2, 51, 10}, q.Data())

	zero, err := FromSlice([]uint64{3, 0, 10}, []int{3}, m)
	require.NoError(t, err)
	_, err = a.Div(zero)
	require.Error(t, err)
}

func Test_tensor_div_fixed_point(t *testing.T) {
	wide := NewCodec(DefaultModulus, 16)
	narrow := NewCodec(DefaultModulus, 8)

	a, err := FromSlice([]uint64{wide.Encode(3.0)}, []int{1}, DefaultModulus)
	require.NoError(t, err)
	b, err := FromSlice([]uint64{narrow.Encode(1.5)}, []int{1}, DefaultModulus)
	require.NoError(t, err)

	q, err := a.WithFracBits(16).Div(b.WithFracBits(8))
	require.NoError(t, err)
	require.Equal(t, uint(8), q.FracBits())
	require.Equal(t, 2.0, narrow.Decode(q.At(0)))

	// the quotient scale may not go negative
	_, err = b.WithFracBits(8).Div(a.WithFracBits(16))
	require.Error(t, err)
}

func Test_tensor_reshape(t *testing.T) {
	a, err := FromSlice([]uint64{1, 2, 3, 4, 5, 6}, []int{2, 3}, 101)
	require.NoError(t, err)

	r, err := a.Reshape([]int{3, 2})
	require.NoError(t, err)
	require.Equal(t, a.Data(), r.Data())

	_, err = a.Reshape([]int{4, 2})
	require.True(t, xerrors.Is(err, types.ErrShapeMismatch))
}

func Test_tensor_payload_roundtrip(t *testing.T) {
	a, err := Uniform([]int{3, 4}, DefaultModulus)
	require.NoError(t, err)

	b, err := FromPayload(a.ToPayload())
	require.NoError(t, err)
	require.True(t, a.Equal(b))

	buf, err := a.MarshalBinary()
	require.NoError(t, err)
	c := &Tensor{}
	require.NoError(t, c.UnmarshalBinary(buf))
	require.True(t, a.Equal(c))
}

func Test_uniform_in_range(t *testing.T) {
	m := uint64(97)
	a, err := Uniform([]int{100}, m)
	require.NoError(t, err)
	for _, v := range a.Data() {
		require.Less(t, v, m)
	}

	bits, err := UniformBits([]int{100}, m)
	require.NoError(t, err)
	for _, v := range bits.Data() {
		require.LessOrEqual(t, v, uint64(1))
	}
}

func Test_fixed_point_roundtrip(t *testing.T) {
	codec := NewCodec(DefaultModulus, 16)

	for _, v := range []float64{0, 1, -1, 3.25, -2.5, 1234.0625, -0.015625} {
		require.InDelta(t, v, codec.Decode(codec.Encode(v)), 1.0/65536)
	}
}

func Test_fixed_point_dense_roundtrip(t *testing.T) {
	codec := NewCodec(DefaultModulus, 16)

	d := mat.NewDense(2, 3, []float64{1.5, -2.25, 0, 3.125, -0.5, 10})
	enc := codec.EncodeDense(d)
	dec, err := codec.DecodeDense(enc)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			require.InDelta(t, d.At(i, j), dec.At(i, j), 1.0/65536)
		}
	}
}
