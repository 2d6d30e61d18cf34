package types

import "fmt"

// -----------------------------------------------------------------------------
// EmptyMessage

// NewEmpty implements types.Message.
func (m EmptyMessage) NewEmpty() Message {
	return &EmptyMessage{}
}

// Name implements types.Message.
func (EmptyMessage) Name() string {
	return "empty"
}

// String implements types.Message.
func (m EmptyMessage) String() string {
	return "{}"
}

// HTML implements types.Message.
func (m EmptyMessage) HTML() string {
	return ""
}

// -----------------------------------------------------------------------------
// PubkeyMessage

// NewEmpty implements types.Message.
func (m PubkeyMessage) NewEmpty() Message {
	return &PubkeyMessage{}
}

// Name implements types.Message.
func (PubkeyMessage) Name() string {
	return "pubkey"
}

// String implements types.Message.
func (m PubkeyMessage) String() string {
	return fmt.Sprintf("{pubkey from %s, address %s}", m.Origin, m.Address)
}

// HTML implements types.Message.
func (m PubkeyMessage) HTML() string {
	return m.String()
}

// -----------------------------------------------------------------------------
// EncryptedMessage

// NewEmpty implements types.Message.
func (m EncryptedMessage) NewEmpty() Message {
	return &EncryptedMessage{}
}

// Name implements types.Message.
func (EncryptedMessage) Name() string {
	return "encrypted"
}

// String implements types.Message.
func (m EncryptedMessage) String() string {
	return fmt.Sprintf("{encrypted for %s, %d bytes}", m.To, len(m.Ciphertext))
}

// HTML implements types.Message.
func (m EncryptedMessage) HTML() string {
	return m.String()
}
