package registry

import (
	"encoding/json"
	"sync"

	"go.dedis.ch/syfer/transport"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// Exec is the type of a message callback. The message is already unmarshaled
// into its concrete type; the packet gives access to the header.
type Exec func(types.Message, transport.Packet) error

// NewRegistry returns an empty message registry.
func NewRegistry() *Registry {
	return &Registry{
		callbacks: map[string]entry{},
	}
}

// Registry maps message names to their concrete type and callback. The set
// of handled messages is closed once the node is constructed: processing a
// packet whose type was never registered is an error.
type Registry struct {
	sync.RWMutex
	callbacks map[string]entry
}

type entry struct {
	empty types.Message
	exec  Exec
}

// RegisterMessageCallback registers the callback for the message's name. A
// nil callback registers the type for marshaling only.
func (r *Registry) RegisterMessageCallback(m types.Message, exec Exec) {
	r.Lock()
	defer r.Unlock()

	r.callbacks[m.Name()] = entry{empty: m, exec: exec}
}

// MarshalMessage wraps a typed message into a transport message.
func (r *Registry) MarshalMessage(m types.Message) (transport.Message, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return transport.Message{}, xerrors.Errorf("failed to marshal message: %v", err)
	}

	return transport.Message{
		Type:    m.Name(),
		Payload: payload,
	}, nil
}

// UnmarshalMessage returns the concrete message contained in a transport
// message. The message name must have been registered.
func (r *Registry) UnmarshalMessage(msg *transport.Message) (types.Message, error) {
	r.RLock()
	e, ok := r.callbacks[msg.Type]
	r.RUnlock()

	if !ok {
		return nil, xerrors.Errorf("unknown message type: %s", msg.Type)
	}

	res := e.empty.NewEmpty()
	err := json.Unmarshal(msg.Payload, res)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal message: %v", err)
	}

	return res, nil
}

// ProcessPacket unmarshals the packet's message and invokes the registered
// callback.
func (r *Registry) ProcessPacket(pkt transport.Packet) error {
	r.RLock()
	e, ok := r.callbacks[pkt.Msg.Type]
	r.RUnlock()

	if !ok {
		return xerrors.Errorf("unknown message type: %s", pkt.Msg.Type)
	}

	msg, err := r.UnmarshalMessage(pkt.Msg)
	if err != nil {
		return err
	}

	if e.exec == nil {
		return xerrors.Errorf("no callback registered for message type: %s", pkt.Msg.Type)
	}

	return e.exec(msg, pkt)
}
