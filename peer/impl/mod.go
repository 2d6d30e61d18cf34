package impl

import (
	"context"

	"go.dedis.ch/syfer/peer"
	"go.dedis.ch/syfer/peer/impl/message"
	"go.dedis.ch/syfer/peer/impl/mpc"
	"go.dedis.ch/syfer/peer/impl/pointer"
	"go.dedis.ch/syfer/peer/impl/worker"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/transport"
	"go.dedis.ch/syfer/types"
)

// NewPeer creates a new worker node.
func NewPeer(conf peer.Configuration) peer.Peer {
	n := node{conf: conf}

	n.message = message.NewMessageModule(&n.conf)
	n.worker = worker.NewWorkerModule(&n.conf, n.message)
	n.pointer = pointer.NewPointerModule(&n.conf, n.message)
	n.mpc = mpc.NewMPCModule(&n.conf, n.pointer, n.worker)

	return &n
}

// node implements a worker peer. Each concern lives in its own module; the
// node wires them to one socket and one message registry and exposes the
// peer API.
//
// - implements peer.Peer
type node struct {
	conf peer.Configuration

	message *message.MessageModule
	worker  *worker.WorkerModule
	pointer *pointer.PointerModule
	mpc     *mpc.MPCModule

	stopSig context.CancelFunc
}

// Start implements peer.Service
func (n *node) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	n.stopSig = cancel

	err := n.ListenDaemon(ctx)
	if err != nil {
		cancel()
		return err
	}
	return n.HeartbeatDaemon(ctx, n.conf.HeartbeatInterval)
}

// Stop implements peer.Service
func (n *node) Stop() error {
	if n.stopSig != nil {
		n.stopSig()
	}
	return nil
}

/** Messaging **/

// Unicast implements peer.Messaging
func (n *node) Unicast(dest string, msg transport.Message) error {
	return n.message.Unicast(dest, msg)
}

// Broadcast implements peer.Messaging
func (n *node) Broadcast(dests []string, msg transport.Message) error {
	return n.message.Broadcast(dests, msg)
}

// AddPeer implements peer.Messaging
func (n *node) AddPeer(addr ...string) {
	n.message.AddPeer(addr...)
}

// GetRoutingTable implements peer.Messaging
func (n *node) GetRoutingTable() peer.RoutingTable {
	return n.message.GetRoutingTable()
}

// SetRoutingEntry implements peer.Messaging
func (n *node) SetRoutingEntry(origin, relayAddr string) {
	n.message.SetRoutingEntry(origin, relayAddr)
}

// AnnouncePubkey implements peer.Messaging
func (n *node) AnnouncePubkey(dests []string) error {
	return n.message.AnnouncePubkey(dests)
}

/** Worker **/

// Register implements peer.Worker
func (n *node) Register(t *ring.Tensor) string {
	return n.worker.Register(t)
}

// Execute implements peer.Worker
func (n *node) Execute(op types.Op, operandIDs []string, kwargs map[string]string) (string, error) {
	return n.worker.Execute(op, operandIDs, kwargs)
}

// Fetch implements peer.Worker
func (n *node) Fetch(id string) (*ring.Tensor, error) {
	return n.worker.Fetch(id)
}

// Release implements peer.Worker
func (n *node) Release(ids ...string) error {
	return n.worker.Release(ids...)
}

// SendTensor implements peer.Worker
func (n *node) SendTensor(t *ring.Tensor, dest string) (*peer.Pointer, error) {
	return n.pointer.SendTensor(t, dest)
}

// Dispatcher implements peer.Worker
func (n *node) Dispatcher() peer.Dispatcher {
	return n.pointer
}

// Address implements peer.Worker
func (n *node) Address() string {
	return n.worker.Address()
}

// IdentityAddress implements peer.Worker
func (n *node) IdentityAddress() string {
	return n.worker.IdentityAddress()
}

/** MPC **/

// ShareSecret implements peer.MPC
func (n *node) ShareSecret(t *ring.Tensor, participants []string) (types.SharedTensor, error) {
	return n.mpc.ShareSecret(t, participants)
}

// Reconstruct implements peer.MPC
func (n *node) Reconstruct(st *types.SharedTensor) (*ring.Tensor, error) {
	return n.mpc.Reconstruct(st)
}

// ReleaseShared implements peer.MPC
func (n *node) ReleaseShared(sts ...*types.SharedTensor) error {
	return n.mpc.ReleaseShared(sts...)
}

// AddShared implements peer.MPC
func (n *node) AddShared(a, b *types.SharedTensor) (types.SharedTensor, error) {
	return n.mpc.AddShared(a, b)
}

// SubShared implements peer.MPC
func (n *node) SubShared(a, b *types.SharedTensor) (types.SharedTensor, error) {
	return n.mpc.SubShared(a, b)
}

// NegShared implements peer.MPC
func (n *node) NegShared(a *types.SharedTensor) (types.SharedTensor, error) {
	return n.mpc.NegShared(a)
}

// ScalarMulShared implements peer.MPC
func (n *node) ScalarMulShared(k uint64, a *types.SharedTensor) (types.SharedTensor, error) {
	return n.mpc.ScalarMulShared(k, a)
}

// AddConstShared implements peer.MPC
func (n *node) AddConstShared(c *ring.Tensor, a *types.SharedTensor) (types.SharedTensor, error) {
	return n.mpc.AddConstShared(c, a)
}

// MulShared implements peer.MPC
func (n *node) MulShared(a, b *types.SharedTensor) (types.SharedTensor, error) {
	return n.mpc.MulShared(a, b)
}

// MatMulShared implements peer.MPC
func (n *node) MatMulShared(a, b *types.SharedTensor) (types.SharedTensor, error) {
	return n.mpc.MatMulShared(a, b)
}

// LessThanZeroShared implements peer.MPC
func (n *node) LessThanZeroShared(a *types.SharedTensor) (types.SharedTensor, error) {
	return n.mpc.LessThanZeroShared(a)
}

// LessThanShared implements peer.MPC
func (n *node) LessThanShared(a, b *types.SharedTensor) (types.SharedTensor, error) {
	return n.mpc.LessThanShared(a, b)
}

// DealTriples implements peer.MPC
func (n *node) DealTriples(participants []string, op types.Op, xShape, yShape []int, count int) error {
	return n.mpc.DealTriples(participants, op, xShape, yShape, count)
}

// DealCompareRand implements peer.MPC
func (n *node) DealCompareRand(participants []string, shape []int, count int) error {
	return n.mpc.DealCompareRand(participants, shape, count)
}
