package message

import (
	"time"

	"go.dedis.ch/syfer/peer"
	"go.dedis.ch/syfer/transport"
	"go.dedis.ch/syfer/types"
)

const ReadTimeout = time.Millisecond * 100
const WriteTimeout = time.Millisecond * 100

// MessageModule handles the basic exchange of messages between workers:
// routing, unicast, broadcast and the encrypted channel.
type MessageModule struct {
	conf *peer.Configuration

	routingTable *SafeRoutingTable

	*EncryptionModule
}

func NewMessageModule(conf *peer.Configuration) *MessageModule {
	m := MessageModule{
		conf:         conf,
		routingTable: NewSafeRoutingTable(conf.Socket.GetAddress()),
	}
	m.EncryptionModule = NewEncryptionModule(conf, &m)

	// message registery
	m.conf.MessageRegistry.RegisterMessageCallback(types.EmptyMessage{}, m.ProcessEmptyMsg)

	return &m
}

/** Feature Functions **/

// Address returns the address the module's socket listens on.
func (m *MessageModule) Address() string {
	return m.conf.Socket.GetAddress()
}

// Unicast implements peer.Messaging
func (m *MessageModule) Unicast(dest string, msg transport.Message) error {
	header := transport.NewHeader(
		m.conf.Socket.GetAddress(),
		m.conf.Socket.GetAddress(),
		dest)
	pkt := transport.Packet{Header: &header, Msg: &msg}
	// Send the msg even if the dst is self
	nextPeer, err := m.getRoutingInfo(dest)
	if err != nil {
		return err
	}
	return m.conf.Socket.Send(nextPeer, pkt, WriteTimeout)
}

// Broadcast implements peer.Messaging. It directly unicasts the message to
// every destination, self included when listed.
func (m *MessageModule) Broadcast(dests []string, msg transport.Message) error {
	for _, dest := range dests {
		err := m.Unicast(dest, msg)
		if err != nil {
			return err
		}
	}
	return nil
}

// AddPeer implements peer.Messaging
func (m *MessageModule) AddPeer(addr ...string) {
	for _, peerAddr := range addr {
		// add self should have no effect
		if peerAddr == m.conf.Socket.GetAddress() {
			continue
		}
		m.SetRoutingEntry(peerAddr, peerAddr)
	}
}

// GetRoutingTable implements peer.Messaging
func (m *MessageModule) GetRoutingTable() peer.RoutingTable {
	return m.routingTable.getAll()
}

// SetRoutingEntry implements peer.Messaging
func (m *MessageModule) SetRoutingEntry(origin, relayAddr string) {
	// Delete the record if no relayAddr
	if relayAddr == "" {
		m.routingTable.remove(origin)
		return
	}
	m.routingTable.add(origin, relayAddr)
}

// CreateMsg creates a new transport message for the given payload
func (m *MessageModule) CreateMsg(payload types.Message) (transport.Message, error) {
	return m.conf.MessageRegistry.MarshalMessage(payload)
}

/** Message Handlers **/

// ProcessEmptyMsg is the heartbeat callback. It does nothing.
func (m *MessageModule) ProcessEmptyMsg(msg types.Message, pkt transport.Packet) error {
	return nil
}

/** Private Helper Functions **/

func (m *MessageModule) getRoutingInfo(dest string) (string, error) {
	nextPeer, ok := m.routingTable.get(dest)
	if !ok {
		return "", xerrorsUnknownDest(dest)
	}
	return nextPeer, nil
}
