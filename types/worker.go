package types

import "fmt"

// -----------------------------------------------------------------------------
// CommandMessage

// NewEmpty implements types.Message.
func (m CommandMessage) NewEmpty() Message {
	return &CommandMessage{}
}

// Name implements types.Message.
func (CommandMessage) Name() string {
	return "command"
}

// String implements types.Message.
func (m CommandMessage) String() string {
	return fmt.Sprintf("{command %s: %s on %d operands}", m.ReqID, m.Op, len(m.Operands))
}

// HTML implements types.Message.
func (m CommandMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// ResponseMessage

// NewEmpty implements types.Message.
func (m ResponseMessage) NewEmpty() Message {
	return &ResponseMessage{}
}

// Name implements types.Message.
func (ResponseMessage) Name() string {
	return "response"
}

// String implements types.Message.
func (m ResponseMessage) String() string {
	return fmt.Sprintf("{response %s: %s %s}", m.ReqID, m.Status, m.Result)
}

// HTML implements types.Message.
func (m ResponseMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// StoreMessage

// NewEmpty implements types.Message.
func (m StoreMessage) NewEmpty() Message {
	return &StoreMessage{}
}

// Name implements types.Message.
func (StoreMessage) Name() string {
	return "store"
}

// String implements types.Message.
func (m StoreMessage) String() string {
	return fmt.Sprintf("{store %s: shape %v}", m.ReqID, m.Payload.Shape)
}

// HTML implements types.Message.
func (m StoreMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// FetchMessage

// NewEmpty implements types.Message.
func (m FetchMessage) NewEmpty() Message {
	return &FetchMessage{}
}

// Name implements types.Message.
func (FetchMessage) Name() string {
	return "fetch"
}

// String implements types.Message.
func (m FetchMessage) String() string {
	return fmt.Sprintf("{fetch %s: tensor %q secret %q}", m.ReqID, m.TensorID, m.SecretID)
}

// HTML implements types.Message.
func (m FetchMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// FetchReplyMessage

// NewEmpty implements types.Message.
func (m FetchReplyMessage) NewEmpty() Message {
	return &FetchReplyMessage{}
}

// Name implements types.Message.
func (FetchReplyMessage) Name() string {
	return "fetchreply"
}

// String implements types.Message.
func (m FetchReplyMessage) String() string {
	return fmt.Sprintf("{fetchreply %s: %s}", m.ReqID, m.Status)
}

// HTML implements types.Message.
func (m FetchReplyMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// ReleaseMessage

// NewEmpty implements types.Message.
func (m ReleaseMessage) NewEmpty() Message {
	return &ReleaseMessage{}
}

// Name implements types.Message.
func (ReleaseMessage) Name() string {
	return "release"
}

// String implements types.Message.
func (m ReleaseMessage) String() string {
	return fmt.Sprintf("{release %s: %d tensors, %d secrets}",
		m.ReqID, len(m.TensorIDs), len(m.SecretIDs))
}

// HTML implements types.Message.
func (m ReleaseMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// LeaseRenewMessage

// NewEmpty implements types.Message.
func (m LeaseRenewMessage) NewEmpty() Message {
	return &LeaseRenewMessage{}
}

// Name implements types.Message.
func (LeaseRenewMessage) Name() string {
	return "leaserenew"
}

// String implements types.Message.
func (m LeaseRenewMessage) String() string {
	return fmt.Sprintf("{leaserenew: %d tensors}", len(m.TensorIDs))
}

// HTML implements types.Message.
func (m LeaseRenewMessage) HTML() string {
	return m.String()
}
