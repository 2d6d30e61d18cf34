package channel

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"go.dedis.ch/syfer/transport"
	"golang.org/x/xerrors"
)

// NewTransport returns an in-process transport. Every socket created from
// the same Transport can reach every other one, which makes it possible to
// run a full multi-worker topology inside a single process ("virtual"
// workers) and inside tests.
func NewTransport() transport.Transport {
	return &Transport{
		incomings: map[string]chan transport.Packet{},
	}
}

// Transport implements an in-memory transport based on channels
//
// - implements transport.Transport
type Transport struct {
	sync.RWMutex
	incomings map[string]chan transport.Packet
	counter   int
}

// CreateSocket implements transport.Transport
func (t *Transport) CreateSocket(address string) (transport.ClosableSocket, error) {
	t.Lock()
	defer t.Unlock()

	if address == "" || strings.HasSuffix(address, ":0") {
		// mimic the ":0" convention of real sockets: pick a fresh address
		t.counter++
		address = "127.0.0.1:" + strconv.Itoa(t.counter)
	}

	if _, ok := t.incomings[address]; ok {
		return nil, xerrors.Errorf("address already in use: %s", address)
	}

	t.incomings[address] = make(chan transport.Packet, 128)

	return &Socket{
		transport: t,
		myAddr:    address,
		ins:       packets{},
		outs:      packets{},
	}, nil
}

func (t *Transport) deliver(dest string, pkt transport.Packet) error {
	t.RLock()
	in, ok := t.incomings[dest]
	t.RUnlock()

	if !ok {
		return xerrors.Errorf("unknown destination address: %s", dest)
	}

	in <- pkt.Copy()
	return nil
}

func (t *Transport) remove(address string) {
	t.Lock()
	defer t.Unlock()
	delete(t.incomings, address)
}

// Socket implements an in-memory socket
//
// - implements transport.Socket
// - implements transport.ClosableSocket
type Socket struct {
	transport *Transport
	myAddr    string
	closed    bool
	ins       packets
	outs      packets
}

// Close implements transport.Socket. It returns an error if already closed.
func (s *Socket) Close() error {
	if s.closed {
		return xerrors.Errorf("Socket already closed.")
	}
	s.closed = true
	s.transport.remove(s.myAddr)
	return nil
}

// Send implements transport.Socket
func (s *Socket) Send(dest string, pkt transport.Packet, timeout time.Duration) error {
	if s.closed {
		return xerrors.Errorf("Socket is closed.")
	}
	err := s.transport.deliver(dest, pkt)
	if err != nil {
		return err
	}
	s.outs.add(pkt)
	return nil
}

// Recv implements transport.Socket. It blocks until a packet is received, or
// the timeout is reached. In the case the timeout is reached, return a
// TimeoutError.
func (s *Socket) Recv(timeout time.Duration) (transport.Packet, error) {
	s.transport.RLock()
	in, ok := s.transport.incomings[s.myAddr]
	s.transport.RUnlock()

	if !ok {
		return transport.Packet{}, xerrors.Errorf("Socket is closed.")
	}

	if timeout == 0 {
		pkt := <-in
		s.ins.add(pkt)
		return pkt, nil
	}

	select {
	case pkt := <-in:
		s.ins.add(pkt)
		return pkt, nil
	case <-time.After(timeout):
		return transport.Packet{}, transport.TimeoutError(timeout)
	}
}

// GetAddress implements transport.Socket
func (s *Socket) GetAddress() string {
	return s.myAddr
}

// GetIns implements transport.Socket
func (s *Socket) GetIns() []transport.Packet {
	return s.ins.getAll()
}

// GetOuts implements transport.Socket
func (s *Socket) GetOuts() []transport.Packet {
	return s.outs.getAll()
}

type packets struct {
	sync.Mutex
	data []transport.Packet
}

func (p *packets) add(pkt transport.Packet) {
	p.Lock()
	defer p.Unlock()

	p.data = append(p.data, pkt.Copy())
}

func (p *packets) getAll() []transport.Packet {
	p.Lock()
	defer p.Unlock()

	res := make([]transport.Packet, len(p.data))

	for i, pkt := range p.data {
		res[i] = pkt.Copy()
	}

	return res
}
