package types

// EmptyMessage is used by the heartbeat daemon.
type EmptyMessage struct{}

// PubkeyMessage announces a worker's RSA public key (PKIX encoding) and its
// ECDSA address, so that peers can encrypt share transfers to it and verify
// its fetch signatures.
type PubkeyMessage struct {
	Origin  string
	Pubkey  []byte
	Address string
}

// EncryptedMessage wraps another marshaled message so that only the
// destination worker can read it: the payload is AES-GCM encrypted under a
// fresh key, itself RSA-OAEP encrypted for the recipient.
type EncryptedMessage struct {
	To         string
	WrappedKey []byte
	Nonce      []byte
	Ciphertext []byte
}
