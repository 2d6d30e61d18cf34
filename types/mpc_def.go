package types

import "fmt"

// ShareDepositMessage delivers one additive share of a fresh secret to its
// holder. It is always sent inside an EncryptedMessage so that only the
// addressed worker can read the share.
type ShareDepositMessage struct {
	SecretID     string
	ShareIndex   int
	Owner        string
	Participants []string
	Payload      TensorPayload
}

// TripleDepositMessage delivers one worker's shares of a multiplication
// triple (a, b, c) with c = a*b, precomputed by the dealer. A triple is
// bound to an operation kind and to operand shapes and is consumed by
// exactly one multiplication.
type TripleDepositMessage struct {
	TripleID     string
	ShareIndex   int
	Owner        string
	Participants []string
	Op           Op
	A            TensorPayload
	B            TensorPayload
	C            TensorPayload
}

// RandMDepositMessage delivers one worker's shares of a comparison
// randomness bundle: a statistical mask r, its low part rlow = r mod 2^m
// and the individual bits of rlow. The receiving worker registers them as
// ordinary secret shares under ids derived from RandID, so the comparison
// protocol can drive them through the regular command machinery. One bundle
// serves exactly one truncation or comparison of a tensor of the bundled
// shape.
type RandMDepositMessage struct {
	RandID       string
	ShareIndex   int
	Owner        string
	Participants []string
	M            uint
	R            TensorPayload
	RLow         TensorPayload
	RBits        []TensorPayload
}

// RandSecretR returns the secret id of the bundle's full mask.
func RandSecretR(randID string) string {
	return randID + "/r"
}

// RandSecretLow returns the secret id of the bundle's low part.
func RandSecretLow(randID string) string {
	return randID + "/rlow"
}

// RandSecretBit returns the secret id of bit j of the bundle's low part.
func RandSecretBit(randID string, j int) string {
	return fmt.Sprintf("%s/bit%d", randID, j)
}

// BeaverInitMessage starts one Beaver multiplication round on every
// participant. The coordinator picks the triple and the result secret id.
type BeaverInitMessage struct {
	SessionID    string
	Coordinator  string
	Participants []string
	Op           Op
	XSecret      string
	YSecret      string
	TripleID     string
	ResultSecret string
}

// MaskedPairMessage broadcasts a participant's masked operand shares
// (epsilon = x_i - a_i, delta = y_i - b_i) to every other participant. The
// product share can only be computed once all n masked pairs arrived; this
// is the synchronization barrier of the protocol.
type MaskedPairMessage struct {
	SessionID string
	From      string
	Epsilon   TensorPayload
	Delta     TensorPayload
}

// BeaverDoneMessage reports a participant's outcome of a Beaver round to
// the coordinator.
type BeaverDoneMessage struct {
	SessionID string
	From      string
	Status    string
	ErrorKind string `json:",omitempty"`
}

// InvalidateMessage tells participants to discard share material of an
// aborted protocol round. The corresponding shared tensors are unusable:
// replaying a partial round with fresh randomness from the surviving
// workers would leak information.
type InvalidateMessage struct {
	SecretIDs []string
	Reason    string
}
