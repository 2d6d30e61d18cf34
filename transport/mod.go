package transport

import (
	"encoding/json"
	"time"

	"github.com/rs/xid"
)

// Transport creates sockets bound to an address. A worker owns exactly one
// socket for its whole lifetime.
type Transport interface {
	CreateSocket(address string) (ClosableSocket, error)
}

// Socket sends and receives packets. Both calls block up to the given
// timeout; a zero timeout blocks forever.
type Socket interface {
	Send(dest string, pkt Packet, timeout time.Duration) error

	Recv(timeout time.Duration) (Packet, error)

	GetAddress() string

	// GetIns returns all the packets received so far.
	GetIns() []Packet

	// GetOuts returns all the packets sent so far.
	GetOuts() []Packet
}

// ClosableSocket augments a socket with a close operation. Closing twice
// must return an error.
type ClosableSocket interface {
	Socket

	Close() error
}

// Packet is the datagram exchanged between workers.
type Packet struct {
	Header *Header
	Msg    *Message
}

// Marshal transforms the packet to something that can travel over the wire.
func (p Packet) Marshal() ([]byte, error) {
	return json.Marshal(&p)
}

// Unmarshal back a buffer produced by Marshal.
func (p *Packet) Unmarshal(buf []byte) error {
	return json.Unmarshal(buf, p)
}

// Copy returns a deep copy of the packet.
func (p Packet) Copy() Packet {
	h := p.Header.Copy()
	m := p.Msg.Copy()

	return Packet{
		Header: &h,
		Msg:    &m,
	}
}

// Header describes the origin and destination of a packet.
type Header struct {
	PacketID    string
	Source      string
	RelayedBy   string
	Destination string
	Timestamp   int64
}

// NewHeader returns a header with a fresh packet ID.
func NewHeader(source, relay, destination string) Header {
	return Header{
		PacketID:    xid.New().String(),
		Source:      source,
		RelayedBy:   relay,
		Destination: destination,
		Timestamp:   time.Now().UnixNano(),
	}
}

// Copy returns a copy of the header.
func (h Header) Copy() Header {
	return h
}

// Message is the payload of a packet. Type is the registered name of the
// message, Payload the json encoding of it.
type Message struct {
	Type    string
	Payload json.RawMessage
}

// Copy returns a copy of the message.
func (m Message) Copy() Message {
	payload := make(json.RawMessage, len(m.Payload))
	copy(payload, m.Payload)

	return Message{
		Type:    m.Type,
		Payload: payload,
	}
}

// TimeoutError is returned by sockets when a send or receive exceeds its
// deadline.
type TimeoutError time.Duration

// Error implements error.
func (err TimeoutError) Error() string {
	return "timeout reached: " + time.Duration(err).String()
}

// Is implements support for errors.Is.
func (TimeoutError) Is(err error) bool {
	_, ok := err.(TimeoutError)
	return ok
}
