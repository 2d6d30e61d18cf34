package message

import (
	"crypto/rsa"
	"sync"

	"go.dedis.ch/syfer/peer"
	"golang.org/x/xerrors"
)

func xerrorsUnknownDest(dest string) error {
	return xerrors.Errorf("no routing entry for destination %s", dest)
}

// SafeRoutingTable implements a thread-safe routing table
type SafeRoutingTable struct {
	*sync.RWMutex
	table peer.RoutingTable
}

func (t *SafeRoutingTable) add(key string, val string) {
	t.Lock()
	defer t.Unlock()
	t.table[key] = val
}
func (t *SafeRoutingTable) remove(key string) {
	t.Lock()
	defer t.Unlock()
	delete(t.table, key)
}
func (t *SafeRoutingTable) get(key string) (string, bool) {
	t.RLock()
	val, ok := t.table[key]
	t.RUnlock()
	return val, ok
}
func (t *SafeRoutingTable) getAll() peer.RoutingTable {
	routingTable := peer.RoutingTable{}
	t.RLock()
	for key, value := range t.table {
		routingTable[key] = value
	}
	t.RUnlock()
	return routingTable
}
func NewSafeRoutingTable(addr string) *SafeRoutingTable {
	rt := SafeRoutingTable{&sync.RWMutex{}, peer.RoutingTable{}}
	rt.add(addr, addr)
	return &rt
}

// --------------------------------------------------------

// PeerIdentity bundles what we know about a worker: its RSA public key for
// encrypted transfers and its account address for ownership checks.
type PeerIdentity struct {
	Pubkey  *rsa.PublicKey
	Address string
}

// PubkeyController implements a thread-safe store of peer identities
type PubkeyController struct {
	*sync.RWMutex
	table map[string]PeerIdentity
}

func NewPubkeyController(selfAddr string, self PeerIdentity) *PubkeyController {
	c := PubkeyController{&sync.RWMutex{}, map[string]PeerIdentity{}}
	c.add(selfAddr, self)
	return &c
}

func (c *PubkeyController) add(addr string, id PeerIdentity) {
	c.Lock()
	defer c.Unlock()
	c.table[addr] = id
}

func (c *PubkeyController) get(addr string) (PeerIdentity, bool) {
	c.RLock()
	id, ok := c.table[addr]
	c.RUnlock()
	return id, ok
}

func (c *PubkeyController) getAll() map[string]PeerIdentity {
	res := map[string]PeerIdentity{}
	c.RLock()
	for key, value := range c.table {
		res[key] = value
	}
	c.RUnlock()
	return res
}
