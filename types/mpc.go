package types

import "fmt"

// -----------------------------------------------------------------------------
// ShareDepositMessage

// NewEmpty implements types.Message.
func (m ShareDepositMessage) NewEmpty() Message {
	return &ShareDepositMessage{}
}

// Name implements types.Message.
func (ShareDepositMessage) Name() string {
	return "sharedeposit"
}

// String implements types.Message.
func (m ShareDepositMessage) String() string {
	return fmt.Sprintf("{sharedeposit %s: index %d of %d}",
		m.SecretID, m.ShareIndex, len(m.Participants))
}

// HTML implements types.Message.
func (m ShareDepositMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// TripleDepositMessage

// NewEmpty implements types.Message.
func (m TripleDepositMessage) NewEmpty() Message {
	return &TripleDepositMessage{}
}

// Name implements types.Message.
func (TripleDepositMessage) Name() string {
	return "tripledeposit"
}

// String implements types.Message.
func (m TripleDepositMessage) String() string {
	return fmt.Sprintf("{tripledeposit %s: %s index %d}", m.TripleID, m.Op, m.ShareIndex)
}

// HTML implements types.Message.
func (m TripleDepositMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// RandMDepositMessage

// NewEmpty implements types.Message.
func (m RandMDepositMessage) NewEmpty() Message {
	return &RandMDepositMessage{}
}

// Name implements types.Message.
func (RandMDepositMessage) Name() string {
	return "randmdeposit"
}

// String implements types.Message.
func (m RandMDepositMessage) String() string {
	return fmt.Sprintf("{randmdeposit %s: %d bits, index %d}", m.RandID, m.M, m.ShareIndex)
}

// HTML implements types.Message.
func (m RandMDepositMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// BeaverInitMessage

// NewEmpty implements types.Message.
func (m BeaverInitMessage) NewEmpty() Message {
	return &BeaverInitMessage{}
}

// Name implements types.Message.
func (BeaverInitMessage) Name() string {
	return "beaverinit"
}

// String implements types.Message.
func (m BeaverInitMessage) String() string {
	return fmt.Sprintf("{beaverinit %s: %s x=%s y=%s triple=%s}",
		m.SessionID, m.Op, m.XSecret, m.YSecret, m.TripleID)
}

// HTML implements types.Message.
func (m BeaverInitMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// MaskedPairMessage

// NewEmpty implements types.Message.
func (m MaskedPairMessage) NewEmpty() Message {
	return &MaskedPairMessage{}
}

// Name implements types.Message.
func (MaskedPairMessage) Name() string {
	return "maskedpair"
}

// String implements types.Message.
func (m MaskedPairMessage) String() string {
	return fmt.Sprintf("{maskedpair %s from %s}", m.SessionID, m.From)
}

// HTML implements types.Message.
func (m MaskedPairMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// BeaverDoneMessage

// NewEmpty implements types.Message.
func (m BeaverDoneMessage) NewEmpty() Message {
	return &BeaverDoneMessage{}
}

// Name implements types.Message.
func (BeaverDoneMessage) Name() string {
	return "beaverdone"
}

// String implements types.Message.
func (m BeaverDoneMessage) String() string {
	return fmt.Sprintf("{beaverdone %s from %s: %s}", m.SessionID, m.From, m.Status)
}

// HTML implements types.Message.
func (m BeaverDoneMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// InvalidateMessage

// NewEmpty implements types.Message.
func (m InvalidateMessage) NewEmpty() Message {
	return &InvalidateMessage{}
}

// Name implements types.Message.
func (InvalidateMessage) Name() string {
	return "invalidate"
}

// String implements types.Message.
func (m InvalidateMessage) String() string {
	return fmt.Sprintf("{invalidate %d secrets: %s}", len(m.SecretIDs), m.Reason)
}

// HTML implements types.Message.
func (m InvalidateMessage) HTML() string {
	return m.String()
}
