// Package udp provides the network transport of remote workers: one UDP
// socket per node, packets marshaled as json. Sockets record their traffic
// so that tests and the console can inspect what a node saw.
package udp

import (
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"go.dedis.ch/syfer/transport"
	"golang.org/x/xerrors"
)

// recvBufSize bounds a single datagram. Tensor payloads above this size do
// not fit one packet.
const recvBufSize = 65000

// NewUDP returns a transport creating UDP sockets.
func NewUDP() transport.Transport {
	return &UDP{}
}

// UDP implements a transport layer over UDP datagrams.
//
// - implements transport.Transport
type UDP struct{}

// parseAddr rejects anything that is not an ip:port literal.
func parseAddr(address string) (*net.UDPAddr, error) {
	host, rawPort, err := net.SplitHostPort(address)
	if err != nil {
		return nil, xerrors.Errorf("malformed address %s: %v", address, err)
	}
	if net.ParseIP(host) == nil {
		return nil, xerrors.Errorf("malformed address %s: not an ip literal", address)
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil || port < 0 || port > 65535 {
		return nil, xerrors.Errorf("malformed address %s: bad port", address)
	}
	return net.ResolveUDPAddr("udp", address)
}

// CreateSocket implements transport.Transport. Binding port 0 picks a free
// one; GetAddress returns the port actually assigned.
func (*UDP) CreateSocket(address string) (transport.ClosableSocket, error) {
	udpAddr, err := parseAddr(address)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	return &Socket{
		conn: conn,
		addr: conn.LocalAddr().String(),
		ins:  packets{},
		outs: packets{},
	}, nil
}

// Socket is one node's UDP endpoint.
//
// - implements transport.Socket
// - implements transport.ClosableSocket
type Socket struct {
	conn *net.UDPConn
	addr string
	ins  packets
	outs packets
}

// Close implements transport.ClosableSocket. Closing twice is an error.
func (s *Socket) Close() error {
	if s.conn == nil {
		return xerrors.New("socket already closed")
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Send implements transport.Socket. A zero timeout blocks until the kernel
// takes the datagram.
func (s *Socket) Send(dest string, pkt transport.Packet, timeout time.Duration) error {
	destAddr, err := parseAddr(dest)
	if err != nil {
		return err
	}

	var deadline time.Time
	if timeout != 0 {
		deadline = time.Now().Add(timeout)
	}
	s.conn.SetWriteDeadline(deadline)

	raw, err := pkt.Marshal()
	if err != nil {
		return err
	}
	_, err = s.conn.WriteToUDP(raw, destAddr)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return transport.TimeoutError(timeout)
	}
	if err != nil {
		return err
	}

	s.outs.add(pkt)
	return nil
}

// Recv implements transport.Socket. It blocks until a packet arrives or
// the timeout expires, in which case it returns a TimeoutError.
func (s *Socket) Recv(timeout time.Duration) (transport.Packet, error) {
	var deadline time.Time
	if timeout != 0 {
		deadline = time.Now().Add(timeout)
	}
	s.conn.SetReadDeadline(deadline)

	buffer := make([]byte, recvBufSize)
	size, _, err := s.conn.ReadFromUDP(buffer)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return transport.Packet{}, transport.TimeoutError(timeout)
	}
	if err != nil {
		return transport.Packet{}, err
	}

	var pkt transport.Packet
	err = pkt.Unmarshal(buffer[:size])
	if err != nil {
		return transport.Packet{}, err
	}

	s.ins.add(pkt)
	return pkt, nil
}

// GetAddress implements transport.Socket.
func (s *Socket) GetAddress() string {
	return s.addr
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
