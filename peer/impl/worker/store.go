package worker

import (
	"sync"
	"time"

	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// storedTensor is one resident tensor with its ownership and lease
// metadata. A share is a stored tensor additionally tagged with the secret
// it belongs to.
type storedTensor struct {
	tensor *ring.Tensor
	owner  string

	secretID     string
	shareIndex   int
	participants []string

	expiry time.Time
}

// storedTriple is one worker's shares of a multiplication triple. Consumed
// exactly once.
type storedTriple struct {
	op      types.Op
	a, b, c *ring.Tensor
}

// TensorStore implements the thread-safe storage of a worker: plain
// tensors and shares by id, dealer material by id.
type TensorStore struct {
	*sync.RWMutex
	tensors  map[string]*storedTensor
	secrets  map[string]string // secret id -> tensor id
	triples  map[string]*storedTriple
	poisoned map[string]string // invalidated secret id -> reason
}

func NewTensorStore() *TensorStore {
	return &TensorStore{
		RWMutex:  &sync.RWMutex{},
		tensors:  map[string]*storedTensor{},
		secrets:  map[string]string{},
		triples:  map[string]*storedTriple{},
		poisoned: map[string]string{},
	}
}

func (s *TensorStore) add(id string, entry *storedTensor) {
	s.Lock()
	defer s.Unlock()
	s.tensors[id] = entry
	if entry.secretID != "" {
		s.secrets[entry.secretID] = id
	}
}

func (s *TensorStore) get(id string) (*storedTensor, bool) {
	s.RLock()
	entry, ok := s.tensors[id]
	s.RUnlock()
	return entry, ok
}

func (s *TensorStore) getBySecret(secretID string) (*storedTensor, bool) {
	s.RLock()
	defer s.RUnlock()
	id, ok := s.secrets[secretID]
	if !ok {
		return nil, false
	}
	entry, ok := s.tensors[id]
	return entry, ok
}

func (s *TensorStore) poisonReason(secretID string) (string, bool) {
	s.RLock()
	reason, ok := s.poisoned[secretID]
	s.RUnlock()
	return reason, ok
}

func (s *TensorStore) remove(ids ...string) {
	s.Lock()
	defer s.Unlock()
	for _, id := range ids {
		entry, ok := s.tensors[id]
		if !ok {
			continue
		}
		if entry.secretID != "" {
			delete(s.secrets, entry.secretID)
		}
		delete(s.tensors, id)
	}
}

func (s *TensorStore) removeSecrets(secretIDs ...string) {
	s.Lock()
	defer s.Unlock()
	for _, secretID := range secretIDs {
		id, ok := s.secrets[secretID]
		if ok {
			delete(s.tensors, id)
			delete(s.secrets, secretID)
		}
	}
}

// poison invalidates secrets whose protocol round was aborted: the share
// material is dropped and later references fail instead of returning
// corrupted shares.
func (s *TensorStore) poison(reason string, secretIDs ...string) {
	s.Lock()
	defer s.Unlock()
	for _, secretID := range secretIDs {
		id, ok := s.secrets[secretID]
		if ok {
			delete(s.tensors, id)
			delete(s.secrets, secretID)
		}
		s.poisoned[secretID] = reason
	}
}

func (s *TensorStore) renew(ids []string, ttl time.Duration) {
	if ttl == 0 {
		return
	}
	expiry := time.Now().Add(ttl)
	s.Lock()
	defer s.Unlock()
	for _, id := range ids {
		entry, ok := s.tensors[id]
		if ok {
			entry.expiry = expiry
		}
	}
}

// sweepExpired frees every tensor whose lease lapsed and returns their ids.
func (s *TensorStore) sweepExpired() []string {
	now := time.Now()
	s.Lock()
	defer s.Unlock()
	var expired []string
	for id, entry := range s.tensors {
		if entry.expiry.IsZero() || entry.expiry.After(now) {
			continue
		}
		if entry.secretID != "" {
			delete(s.secrets, entry.secretID)
		}
		delete(s.tensors, id)
		expired = append(expired, id)
	}
	return expired
}

func (s *TensorStore) addTriple(id string, t *storedTriple) {
	s.Lock()
	defer s.Unlock()
	s.triples[id] = t
}

// consumeTriple removes and returns the triple. A triple is never handed
// out twice: reuse would let an observer of both rounds cancel the masks.
func (s *TensorStore) consumeTriple(id string) (*storedTriple, error) {
	s.Lock()
	defer s.Unlock()
	t, ok := s.triples[id]
	if !ok {
		return nil, xerrors.Errorf("triple %s: %w", id, types.ErrTripleExhausted)
	}
	delete(s.triples, id)
	return t, nil
}

func (s *TensorStore) size() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.tensors)
}
