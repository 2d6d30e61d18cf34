package peer

import (
	"crypto/ecdsa"
	"time"

	"go.dedis.ch/syfer/registry"
	"go.dedis.ch/syfer/transport"
)

// Peer defines the complete API of a worker node. A node stores tensors on
// behalf of remote callers, executes commands on them, and cooperates with
// other workers in the secret-sharing protocols.
type Peer interface {
	Service
	Messaging
	Worker
	MPC
}

// Factory is the type of function we are using to create new instances of
// peers.
type Factory func(Configuration) Peer

// Service defines the lifecycle functions of a node.
type Service interface {
	// Start starts the listening daemons.
	Start() error

	// Stop stops the node and its daemons.
	Stop() error
}

// Messaging defines the functions for the basic exchange of messages
// between workers.
type Messaging interface {
	// Unicast sends a message directly to the destination worker.
	Unicast(dest string, msg transport.Message) error

	// Broadcast sends a message to every listed worker, self included if
	// present.
	Broadcast(dests []string, msg transport.Message) error

	// AddPeer makes workers known to the routing table.
	AddPeer(addr ...string)

	// GetRoutingTable returns the node's routing table.
	GetRoutingTable() RoutingTable

	// SetRoutingEntry sets the routing entry. Remove it if the relay
	// address is empty.
	SetRoutingEntry(origin, relayAddr string)

	// AnnouncePubkey sends the node's encryption key and account address
	// to the given workers. Share material only travels to workers whose
	// key is known.
	AnnouncePubkey(dests []string) error
}

// RoutingTable maps a worker address to its relay.
type RoutingTable map[string]string

// Configuration gathers everything a node needs. There is no ambient global
// state: the registry of known workers, the socket and the message registry
// are all owned here and passed down explicitly.
type Configuration struct {
	Socket          transport.ClosableSocket
	MessageRegistry *registry.Registry

	// Modulus defines the ring all shares live in.
	Modulus uint64

	// FracBits is the default fixed-point precision for real-valued data.
	FracBits uint

	// CompareBits bounds the magnitude of values entering the comparison
	// protocol: inputs must fit in a signed CompareBits-bit range.
	CompareBits uint

	// SecurityBits is the statistical masking parameter of the comparison
	// protocol. 2^(CompareBits+SecurityBits+1) must stay below Modulus.
	SecurityBits uint

	// AckTimeout bounds every wait on a remote worker. A worker that does
	// not answer within this delay is reported unavailable.
	AckTimeout time.Duration

	// HeartbeatInterval drives the lease-renewal daemon. Zero disables it.
	HeartbeatInterval time.Duration

	// LeaseTTL is how long a stored tensor survives without renewal.
	// Zero means tensors never expire.
	LeaseTTL time.Duration

	// PrivateKey identifies the node: its address is derived from the
	// public key and fetch requests are signed with it.
	PrivateKey *ecdsa.PrivateKey
}
