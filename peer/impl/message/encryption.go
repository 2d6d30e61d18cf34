package message

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"go.dedis.ch/syfer/peer"
	"go.dedis.ch/syfer/transport"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// EncryptionModule carries the node's key material. Share transfers travel
// encrypted so that a relaying worker cannot read share values addressed to
// someone else: the payload is AES-GCM encrypted under a fresh key, itself
// RSA-OAEP wrapped for the recipient.
type EncryptionModule struct {
	*MessageModule
	conf *peer.Configuration

	pubkeyStore *PubkeyController
	privkey     *rsa.PrivateKey
	account     string
}

func NewEncryptionModule(conf *peer.Configuration, messageModule *MessageModule) *EncryptionModule {
	m := EncryptionModule{
		MessageModule: messageModule,
		conf:          conf,
	}

	privkey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	m.privkey = privkey
	m.account = ethcrypto.PubkeyToAddress(conf.PrivateKey.PublicKey).Hex()
	m.pubkeyStore = NewPubkeyController(
		conf.Socket.GetAddress(),
		PeerIdentity{Pubkey: &privkey.PublicKey, Address: m.account},
	)

	// message registery
	m.conf.MessageRegistry.RegisterMessageCallback(types.PubkeyMessage{}, m.ProcessPubkeyMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.EncryptedMessage{}, m.ProcessEncryptedMsg)

	return &m
}

/** Feature Functions **/

// Account returns the node's hex account address, derived from its ECDSA
// public key.
func (m *EncryptionModule) Account() string {
	return m.account
}

// AnnouncePubkey sends the node's RSA public key and account address to the
// given workers.
func (m *EncryptionModule) AnnouncePubkey(dests []string) error {
	pubBytes, err := x509.MarshalPKIXPublicKey(&m.privkey.PublicKey)
	if err != nil {
		return err
	}
	pubkeyMsg := types.PubkeyMessage{
		Origin:  m.conf.Socket.GetAddress(),
		Pubkey:  pubBytes,
		Address: m.account,
	}
	msg, err := m.CreateMsg(pubkeyMsg)
	if err != nil {
		return err
	}
	return m.Broadcast(dests, msg)
}

// GetIdentity returns the stored identity of a worker, waiting up to the
// ack timeout for its pubkey announcement to arrive.
func (m *EncryptionModule) GetIdentity(addr string) (PeerIdentity, error) {
	deadline := time.Now().Add(m.conf.AckTimeout)
	for {
		id, ok := m.pubkeyStore.get(addr)
		if ok {
			return id, nil
		}
		if m.conf.AckTimeout != 0 && time.Now().After(deadline) {
			return PeerIdentity{}, xerrors.Errorf("no pubkey for %s: %w",
				addr, types.ErrWorkerUnavailable)
		}
		time.Sleep(time.Millisecond)
	}
}

// GetPubkeyStore returns a copy of all known identities.
func (m *EncryptionModule) GetPubkeyStore() map[string]PeerIdentity {
	return m.pubkeyStore.getAll()
}

// SendEncryptedMessage encrypts the marshaled message for the destination
// worker and unicasts it.
func (m *EncryptionModule) SendEncryptedMessage(msg transport.Message, to string) error {
	id, err := m.GetIdentity(to)
	if err != nil {
		return err
	}

	encryptedMsg, err := m.encrypt(msg.Type, msg.Payload, id.Pubkey, to)
	if err != nil {
		return err
	}

	encryptedMsgMarshal, err := m.CreateMsg(encryptedMsg)
	if err != nil {
		return err
	}
	return m.Unicast(to, encryptedMsgMarshal)
}

/** Message Handlers **/

// ProcessPubkeyMsg is a callback function to handle received pubkey message
func (m *EncryptionModule) ProcessPubkeyMsg(msg types.Message, pkt transport.Packet) error {
	pubkeyMsg, ok := msg.(*types.PubkeyMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	pub, err := x509.ParsePKIXPublicKey(pubkeyMsg.Pubkey)
	if err != nil {
		return xerrors.Errorf("invalid pubkey from %s: %v", pubkeyMsg.Origin, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return xerrors.Errorf("pubkey from %s is not RSA", pubkeyMsg.Origin)
	}

	m.pubkeyStore.add(pubkeyMsg.Origin, PeerIdentity{
		Pubkey:  rsaPub,
		Address: pubkeyMsg.Address,
	})
	return nil
}

// ProcessEncryptedMsg is a callback function to handle received encrypted
// message. It decrypts the inner message and processes it as if it had
// arrived in the clear.
func (m *EncryptionModule) ProcessEncryptedMsg(msg types.Message, pkt transport.Packet) error {
	encryptedMsg, ok := msg.(*types.EncryptedMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}

	if encryptedMsg.To != m.conf.Socket.GetAddress() {
		// not for us; drop
		return nil
	}

	innerType, payload, err := m.decrypt(encryptedMsg)
	if err != nil {
		log.Error().Msgf("%s: failed to decrypt message: %v",
			m.conf.Socket.GetAddress(), err)
		return err
	}

	innerMsg := transport.Message{Type: innerType, Payload: payload}
	innerPkt := transport.Packet{Header: pkt.Header, Msg: &innerMsg}
	return m.conf.MessageRegistry.ProcessPacket(innerPkt)
}

/** Private Helper Functions **/

func (m *EncryptionModule) encrypt(innerType string, payload []byte,
	pub *rsa.PublicKey, to string) (types.EncryptedMessage, error) {

	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		return types.EncryptedMessage{}, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return types.EncryptedMessage{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return types.EncryptedMessage{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	_, err = rand.Read(nonce)
	if err != nil {
		return types.EncryptedMessage{}, err
	}

	// the inner type travels as authenticated data
	ciphertext := gcm.Seal(nil, nonce, payload, []byte(innerType))

	wrappedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub,
		append(key, []byte(innerType)...), nil)
	if err != nil {
		return types.EncryptedMessage{}, err
	}

	return types.EncryptedMessage{
		To:         to,
		WrappedKey: wrappedKey,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

func (m *EncryptionModule) decrypt(msg *types.EncryptedMessage) (string, []byte, error) {
	keyAndType, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, m.privkey,
		msg.WrappedKey, nil)
	if err != nil {
		return "", nil, err
	}
	if len(keyAndType) < 32 {
		return "", nil, xerrors.New("malformed wrapped key")
	}
	key, innerType := keyAndType[:32], string(keyAndType[32:])

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", nil, err
	}
	payload, err := gcm.Open(nil, msg.Nonce, msg.Ciphertext, []byte(innerType))
	if err != nil {
		return "", nil, err
	}
	return innerType, payload, nil
}
