package types

// CommandMessage asks a worker to execute an operation on locally resident
// operands. Plain operands are referenced by tensor id, shared operands by
// secret id. For shared operands the result is registered under
// ResultSecretID, chosen by the engine so that every participant stores its
// result share under the same secret; for plain operands the worker picks a
// fresh tensor id and returns it in the response.
type CommandMessage struct {
	ReqID          string
	Op             Op
	Operands       []OperandRef
	KWArgs         map[string]string
	ResultSecretID string `json:",omitempty"`
}

// ResponseMessage answers a command, a store or a release.
type ResponseMessage struct {
	ReqID     string
	Result    TensorRef
	Shape     []int
	FracBits  uint
	Status    string
	ErrorKind string `json:",omitempty"`
}

// StoreMessage deposits a plain tensor on a worker. Owner is the hex
// address of the party allowed to fetch it back.
type StoreMessage struct {
	ReqID   string
	Owner   string
	Payload TensorPayload
}

// FetchMessage requests the raw value of a resident tensor (by tensor id)
// or of the worker's share of a secret (by secret id). This is the only
// plaintext-revealing request; it carries an ECDSA signature over
// (id | nonce) which the worker verifies against the recorded owner.
type FetchMessage struct {
	ReqID     string
	TensorID  string `json:",omitempty"`
	SecretID  string `json:",omitempty"`
	Nonce     string
	Signature []byte
}

// FetchReplyMessage answers a fetch.
type FetchReplyMessage struct {
	ReqID     string
	Payload   TensorPayload
	Status    string
	ErrorKind string `json:",omitempty"`
}

// ReleaseMessage frees resident tensors and share material.
type ReleaseMessage struct {
	ReqID     string
	TensorIDs []string `json:",omitempty"`
	SecretIDs []string `json:",omitempty"`
}

// LeaseRenewMessage extends the lease of the listed tensors. Workers free
// tensors whose lease expired without renewal, so a crashed caller cannot
// leak remote memory forever.
type LeaseRenewMessage struct {
	TensorIDs []string
}
