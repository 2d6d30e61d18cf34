package unit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/transport/channel"
	"go.dedis.ch/syfer/types"
)

// A tensor sent to a remote worker comes back unchanged through the
// pointer.
func Test_worker_send_and_get(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 2)
	defer stopAll(nodes)

	nodeA, nodeB := nodes[0], nodes[1]

	v, err := ring.FromSlice([]uint64{1, 2, 3, 4, 5, 6}, []int{2, 3}, 101)
	require.NoError(t, err)

	ptr, err := nodeA.SendTensor(v, nodeB.GetAddr())
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, ptr.Shape())

	back, err := ptr.Get()
	require.NoError(t, err)
	require.True(t, v.Equal(back))
}

// Arithmetic on pointers runs on the owning worker; only the result
// reference travels back.
func Test_worker_remote_arithmetic(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 2)
	defer stopAll(nodes)

	nodeA, nodeB := nodes[0], nodes[1]

	x, err := ring.FromSlice([]uint64{10, 20, 30, 40}, []int{2, 2}, 101)
	require.NoError(t, err)
	y, err := ring.FromSlice([]uint64{1, 2, 3, 4}, []int{2, 2}, 101)
	require.NoError(t, err)

	px, err := nodeA.SendTensor(x, nodeB.GetAddr())
	require.NoError(t, err)
	py, err := nodeA.SendTensor(y, nodeB.GetAddr())
	require.NoError(t, err)

	sum, err := px.Add(py)
	require.NoError(t, err)
	got, err := sum.Get()
	require.NoError(t, err)
	require.Equal(t, []uint64{11, 22, 33, 44}, got.Data())

	prod, err := px.MatMul(py)
	require.NoError(t, err)
	got, err = prod.Get()
	require.NoError(t, err)
	// [[10 20][30 40]] x [[1 2][3 4]] mod 101
	require.Equal(t, []uint64{70, 100, 49, 18}, got.Data())

	scaled, err := px.MulScalar(3)
	require.NoError(t, err)
	got, err = scaled.Get()
	require.NoError(t, err)
	require.Equal(t, []uint64{30, 60, 90, 19}, got.Data())

	quot, err := px.Div(py)
	require.NoError(t, err)
	got, err = quot.Get()
	require.NoError(t, err)
	require.Equal(t, []uint64{10, 10, 10, 10}, got.Data())
}

// A released tensor is gone: any pointer still referencing it fails with
// an unknown-reference error.
func Test_worker_release_then_get(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 2)
	defer stopAll(nodes)

	nodeA, nodeB := nodes[0], nodes[1]

	v, err := ring.FromSlice([]uint64{7}, []int{1}, 101)
	require.NoError(t, err)

	ptr, err := nodeA.SendTensor(v, nodeB.GetAddr())
	require.NoError(t, err)

	alias := ptr
	err = ptr.Release()
	require.NoError(t, err)

	_, err = alias.Get()
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrUnknownReference))
}

// Only the owner may fetch a tensor's plaintext. A third worker holding
// the reference gets a permission error.
func Test_worker_fetch_permission(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3)
	defer stopAll(nodes)

	nodeA, nodeB, nodeC := nodes[0], nodes[1], nodes[2]

	v, err := ring.FromSlice([]uint64{42}, []int{1}, 101)
	require.NoError(t, err)

	ptr, err := nodeA.SendTensor(v, nodeB.GetAddr())
	require.NoError(t, err)

	// owner reads it back
	_, err = ptr.Get()
	require.NoError(t, err)

	// nodeC learned the reference but does not own the tensor
	stolen := ptr.Ref()
	_, err = nodeC.Dispatcher().FetchRef(stolen)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrPermission))
}

// Operands of one command must live on the same worker.
func Test_worker_mixed_workers(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 3)
	defer stopAll(nodes)

	nodeA, nodeB, nodeC := nodes[0], nodes[1], nodes[2]

	v, err := ring.FromSlice([]uint64{1, 2}, []int{2}, 101)
	require.NoError(t, err)

	pb, err := nodeA.SendTensor(v, nodeB.GetAddr())
	require.NoError(t, err)
	pc, err := nodeA.SendTensor(v, nodeC.GetAddr())
	require.NoError(t, err)

	_, err = pb.Add(pc)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrMixedOperand))
}

// An operation tag outside the closed set is a capability error.
func Test_worker_unknown_op(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 1)
	defer stopAll(nodes)

	node := nodes[0]

	v, err := ring.FromSlice([]uint64{1}, []int{1}, 101)
	require.NoError(t, err)
	id := node.Register(v)

	_, err = node.Execute(types.Op("transmogrify"), []string{id}, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrCapability))
}

// Two pointers on the same remote tensor are the same reference, however
// they were obtained.
func Test_worker_pointer_identity(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 2)
	defer stopAll(nodes)

	nodeA, nodeB := nodes[0], nodes[1]

	v, err := ring.FromSlice([]uint64{1}, []int{1}, 101)
	require.NoError(t, err)

	ptr, err := nodeA.SendTensor(v, nodeB.GetAddr())
	require.NoError(t, err)

	other := *ptr
	require.True(t, ptr.Same(&other))

	ptr2, err := nodeA.SendTensor(v, nodeB.GetAddr())
	require.NoError(t, err)
	require.False(t, ptr.Same(ptr2))
}

// A worker that went away surfaces as unavailable, not as a hang.
func Test_worker_unavailable(t *testing.T) {
	transp := channel.NewTransport()
	nodes := setupCohort(t, transp, 2)

	nodeA, nodeB := nodes[0], nodes[1]
	defer nodeA.StopAll()

	v, err := ring.FromSlice([]uint64{5}, []int{1}, 101)
	require.NoError(t, err)

	ptr, err := nodeA.SendTensor(v, nodeB.GetAddr())
	require.NoError(t, err)

	nodeB.StopAll()

	_, err = ptr.Get()
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrWorkerUnavailable))
}
