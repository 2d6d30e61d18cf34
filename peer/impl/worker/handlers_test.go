package worker

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
)

func handlerTensor(t *testing.T, data []uint64, shape []int) *ring.Tensor {
	tensor, err := ring.FromSlice(data, shape, 101)
	require.NoError(t, err)
	return tensor
}

func tensorKwarg(t *testing.T, tensor *ring.Tensor) string {
	raw, err := json.Marshal(tensor.ToPayload())
	require.NoError(t, err)
	return string(raw)
}

func Test_handlers_cover_all_ops(t *testing.T) {
	table := opHandlers()
	for _, op := range types.Ops() {
		require.Contains(t, table, op)
	}
	require.Len(t, table, len(types.Ops()))
}

func Test_handlers_arithmetic(t *testing.T) {
	x := handlerTensor(t, []uint64{1, 2, 3, 4}, []int{2, 2})
	y := handlerTensor(t, []uint64{10, 20, 30, 100}, []int{2, 2})

	res, err := handleAdd([]*ring.Tensor{x, y}, nil, -1)
	require.NoError(t, err)
	require.Equal(t, []uint64{11, 22, 33, 3}, res.Data())

	res, err = handleSub([]*ring.Tensor{x, y}, nil, -1)
	require.NoError(t, err)
	require.Equal(t, []uint64{92, 83, 74, 5}, res.Data())

	res, err = handleNeg([]*ring.Tensor{x}, nil, -1)
	require.NoError(t, err)
	require.Equal(t, []uint64{100, 99, 98, 97}, res.Data())

	res, err = handleMulElem([]*ring.Tensor{x, y}, nil, -1)
	require.NoError(t, err)
	require.Equal(t, []uint64{10, 40, 90, 97}, res.Data())

	res, err = handleMatMul([]*ring.Tensor{x, y}, nil, -1)
	require.NoError(t, err)
	// [1 2; 3 4] x [10 20; 30 100] mod 101
	require.Equal(t, []uint64{70, 18, 49, 56}, res.Data())

	res, err = handleDiv([]*ring.Tensor{x, y}, nil, -1)
	require.NoError(t, err)
	// x/10 = x*91, 4/100 = -4
	require.Equal(t, []uint64{91, 91, 91, 97}, res.Data())

	zero := handlerTensor(t, []uint64{1, 0, 1, 1}, []int{2, 2})
	_, err = handleDiv([]*ring.Tensor{x, zero}, nil, -1)
	require.Error(t, err)
}

func Test_handlers_operand_count(t *testing.T) {
	x := handlerTensor(t, []uint64{1}, []int{1})

	_, err := handleAdd([]*ring.Tensor{x}, nil, -1)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrShapeMismatch))

	_, err = handleNeg([]*ring.Tensor{x, x}, nil, -1)
	require.Error(t, err)
}

func Test_handlers_mulscalar_and_reshape(t *testing.T) {
	x := handlerTensor(t, []uint64{1, 2, 3, 4, 5, 6}, []int{2, 3})

	res, err := handleMulScalar([]*ring.Tensor{x},
		map[string]string{"k": types.EncodeUint(50)}, -1)
	require.NoError(t, err)
	require.Equal(t, []uint64{50, 100, 49, 99, 48, 98}, res.Data())

	res, err = handleReshape([]*ring.Tensor{x},
		map[string]string{"shape": types.EncodeShape([]int{3, 2})}, -1)
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, res.Shape())
	require.Equal(t, x.Data(), res.Data())

	_, err = handleReshape([]*ring.Tensor{x},
		map[string]string{"shape": types.EncodeShape([]int{4, 2})}, -1)
	require.Error(t, err)
}

func Test_handlers_lincomb_scalars(t *testing.T) {
	x := handlerTensor(t, []uint64{1, 2}, []int{2})
	y := handlerTensor(t, []uint64{3, 4}, []int{2})

	// 2x + 3y
	res, err := handleLinComb([]*ring.Tensor{x, y}, map[string]string{
		"alpha": types.EncodeUint(2),
		"beta":  types.EncodeUint(3),
	}, -1)
	require.NoError(t, err)
	require.Equal(t, []uint64{11, 16}, res.Data())
}

func Test_handlers_lincomb_coef_tensors(t *testing.T) {
	x := handlerTensor(t, []uint64{1, 2}, []int{2})
	y := handlerTensor(t, []uint64{3, 4}, []int{2})
	xcoef := handlerTensor(t, []uint64{10, 1}, []int{2})
	ycoef := handlerTensor(t, []uint64{1, 10}, []int{2})

	// (xcoef.x) + 2*(ycoef.y)
	res, err := handleLinComb([]*ring.Tensor{x, y}, map[string]string{
		"xcoef": tensorKwarg(t, xcoef),
		"ycoef": tensorKwarg(t, ycoef),
		"beta":  types.EncodeUint(2),
	}, -1)
	require.NoError(t, err)
	require.Equal(t, []uint64{16, 82}, res.Data())
}

// The public constant shifts the secret once: only the first share absorbs
// it, every other share passes it through.
func Test_handlers_lincomb_const_first_share_only(t *testing.T) {
	x := handlerTensor(t, []uint64{1, 2}, []int{2})
	c := handlerTensor(t, []uint64{100, 100}, []int{2})

	kwargs := map[string]string{"const": tensorKwarg(t, c)}

	res, err := handleLinComb([]*ring.Tensor{x}, kwargs, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, res.Data())

	res, err = handleLinComb([]*ring.Tensor{x}, kwargs, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, res.Data())

	// plain operands absorb it too
	res, err = handleLinComb([]*ring.Tensor{x}, kwargs, -1)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, res.Data())
}

func Test_handlers_lincomb_frac_override(t *testing.T) {
	x := handlerTensor(t, []uint64{8}, []int{1}).WithFracBits(3)

	res, err := handleLinComb([]*ring.Tensor{x},
		map[string]string{"frac": "0"}, 0)
	require.NoError(t, err)
	require.Equal(t, uint(0), res.FracBits())
}
