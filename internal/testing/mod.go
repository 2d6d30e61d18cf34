package testing

import (
	"crypto/ecdsa"
	"crypto/rand"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/syfer/peer"
	"go.dedis.ch/syfer/registry"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/transport"
)

// NewTestNode returns a started node with a fresh identity key and sane
// test defaults.
func NewTestNode(t require.TestingT, f peer.Factory, trans transport.Transport,
	addr string, opts ...Option) TestNode {

	template := newConfigTemplate()
	for _, opt := range opts {
		opt(&template)
	}

	socket, err := trans.CreateSocket(addr)
	require.NoError(t, err)

	config := peer.Configuration{
		Socket:            socket,
		MessageRegistry:   template.registry,
		Modulus:           template.modulus,
		FracBits:          template.fracBits,
		CompareBits:       template.compareBits,
		SecurityBits:      template.securityBits,
		AckTimeout:        template.ackTimeout,
		HeartbeatInterval: template.heartbeatInterval,
		LeaseTTL:          template.leaseTTL,
		PrivateKey:        template.privateKey,
	}

	node := f(config)

	if template.autoStart {
		err := node.Start()
		require.NoError(t, err)
	}

	return TestNode{
		Peer:   node,
		config: config,
		socket: socket,
		t:      t,
	}
}

// TestNode wraps a peer and its configuration for tests.
type TestNode struct {
	peer.Peer
	config peer.Configuration
	socket transport.ClosableSocket
	t      require.TestingT
}

// GetAddr returns the node's socket address.
func (n TestNode) GetAddr() string {
	return n.socket.GetAddress()
}

// StopAll stops the node and closes its socket.
func (n TestNode) StopAll() {
	err := n.Peer.Stop()
	require.NoError(n.t, err)
	err = n.socket.Close()
	require.NoError(n.t, err)
}

// Modulus returns the share ring the node is configured with.
func (n TestNode) Modulus() uint64 {
	return n.config.Modulus
}

// GetIns returns all the packets the node received so far.
func (n TestNode) GetIns() []transport.Packet {
	return n.socket.GetIns()
}

// GetOuts returns all the packets the node sent so far.
func (n TestNode) GetOuts() []transport.Packet {
	return n.socket.GetOuts()
}

type configTemplate struct {
	registry *registry.Registry

	modulus      uint64
	fracBits     uint
	compareBits  uint
	securityBits uint

	ackTimeout        time.Duration
	heartbeatInterval time.Duration
	leaseTTL          time.Duration

	privateKey *ecdsa.PrivateKey

	autoStart bool
}

func newConfigTemplate() configTemplate {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	return configTemplate{
		registry: registry.NewRegistry(),

		modulus:      ring.DefaultModulus,
		fracBits:     16,
		compareBits:  32,
		securityBits: 20,

		ackTimeout:        time.Second * 3,
		heartbeatInterval: 0,
		leaseTTL:          0,

		privateKey: key,

		autoStart: true,
	}
}

// Option is how tests customize the node configuration.
type Option func(*configTemplate)

// WithModulus sets the share ring.
func WithModulus(mod uint64) Option {
	return func(c *configTemplate) {
		c.modulus = mod
	}
}

// WithFracBits sets the default fixed-point precision.
func WithFracBits(frac uint) Option {
	return func(c *configTemplate) {
		c.fracBits = frac
	}
}

// WithCompareBits sets the magnitude bound of the comparison protocol.
func WithCompareBits(k uint) Option {
	return func(c *configTemplate) {
		c.compareBits = k
	}
}

// WithSecurityBits sets the statistical masking parameter.
func WithSecurityBits(kappa uint) Option {
	return func(c *configTemplate) {
		c.securityBits = kappa
	}
}

// WithAckTimeout sets how long the node waits on a remote worker.
func WithAckTimeout(d time.Duration) Option {
	return func(c *configTemplate) {
		c.ackTimeout = d
	}
}

// WithHeartbeat activates the lease-renewal daemon.
func WithHeartbeat(d time.Duration) Option {
	return func(c *configTemplate) {
		c.heartbeatInterval = d
	}
}

// WithLeaseTTL sets how long stored tensors survive without renewal.
func WithLeaseTTL(d time.Duration) Option {
	return func(c *configTemplate) {
		c.leaseTTL = d
	}
}

// WithPrivateKey sets the node's identity key.
func WithPrivateKey(key *ecdsa.PrivateKey) Option {
	return func(c *configTemplate) {
		c.privateKey = key
	}
}

// WithMessageRegistry sets a custom registry, for tests that intercept
// messages.
func WithMessageRegistry(r *registry.Registry) Option {
	return func(c *configTemplate) {
		c.registry = r
	}
}

// WithAutostart defines if the node should start automatically.
func WithAutostart(autostart bool) Option {
	return func(c *configTemplate) {
		c.autoStart = autostart
	}
}
