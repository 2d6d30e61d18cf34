package mpc

import (
	"fmt"
	"sync"

	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
)

// maskedPair is one participant's masked operand shares of a Beaver round.
type maskedPair struct {
	eps   *ring.Tensor
	delta *ring.Tensor
}

// beaverSession is the participant-side state of one Beaver round. Masked
// pairs may arrive before the coordinator's init, so the session starts as
// an empty pair buffer and is armed when the init lands.
type beaverSession struct {
	sync.Mutex

	init       *types.BeaverInitMessage
	shareIndex int
	owner      string
	frac       uint
	a, b, c    *ring.Tensor

	pairs map[string]maskedPair
	done  bool
}

// finishedKeep bounds the tombstone window for completed rounds. A pair
// straggling in later than that recreates a session that then idles, which
// is acceptable for a window this wide.
const finishedKeep = 128

// SafeBeaverSessions tracks the node's Beaver state: the rounds it
// participates in and the done reports it is collecting as coordinator.
// Dropped rounds are remembered for a while so that packets arriving after
// the round settled do not pile up empty sessions.
type SafeBeaverSessions struct {
	*sync.RWMutex
	sessions map[string]*beaverSession
	dones    map[string]chan types.BeaverDoneMessage

	finished      map[string]struct{}
	finishedOrder []string
}

func NewSafeBeaverSessions() *SafeBeaverSessions {
	return &SafeBeaverSessions{
		RWMutex:  &sync.RWMutex{},
		sessions: map[string]*beaverSession{},
		dones:    map[string]chan types.BeaverDoneMessage{},
		finished: map[string]struct{}{},
	}
}

// getOrCreate returns the session, creating it when a packet beats the
// coordinator's init. It returns nil for a round that already settled.
func (s *SafeBeaverSessions) getOrCreate(sessionID string) *beaverSession {
	s.Lock()
	defer s.Unlock()
	if _, gone := s.finished[sessionID]; gone {
		return nil
	}
	session, ok := s.sessions[sessionID]
	if !ok {
		session = &beaverSession{pairs: map[string]maskedPair{}}
		s.sessions[sessionID] = session
	}
	return session
}

func (s *SafeBeaverSessions) drop(sessionID string) {
	s.Lock()
	defer s.Unlock()
	delete(s.sessions, sessionID)

	if _, ok := s.finished[sessionID]; ok {
		return
	}
	s.finished[sessionID] = struct{}{}
	s.finishedOrder = append(s.finishedOrder, sessionID)
	if len(s.finishedOrder) > finishedKeep {
		delete(s.finished, s.finishedOrder[0])
		s.finishedOrder = s.finishedOrder[1:]
	}
}

func (s *SafeBeaverSessions) expectDones(sessionID string, n int) chan types.BeaverDoneMessage {
	ch := make(chan types.BeaverDoneMessage, n)
	s.Lock()
	defer s.Unlock()
	s.dones[sessionID] = ch
	return ch
}

func (s *SafeBeaverSessions) resolveDone(sessionID string, done types.BeaverDoneMessage) {
	s.RLock()
	ch, ok := s.dones[sessionID]
	s.RUnlock()
	if ok {
		ch <- done
	}
}

func (s *SafeBeaverSessions) forgetDones(sessionID string) {
	s.Lock()
	defer s.Unlock()
	delete(s.dones, sessionID)
}

// SafeDealerPool records the ids of the dealer material this node handed
// out and has not yet spent. Popping an id is what enforces single use on
// the coordinating side; the participant stores enforce it a second time.
type SafeDealerPool struct {
	*sync.Mutex
	triples map[string][]string
	rands   map[string][]string
}

func NewSafeDealerPool() *SafeDealerPool {
	return &SafeDealerPool{
		Mutex:   &sync.Mutex{},
		triples: map[string][]string{},
		rands:   map[string][]string{},
	}
}

func tripleKey(op types.Op, xShape, yShape []int) string {
	return fmt.Sprintf("%s|%s|%s", op, types.EncodeShape(xShape), types.EncodeShape(yShape))
}

func randKey(shape []int) string {
	return types.EncodeShape(shape)
}

func (p *SafeDealerPool) addTriple(key, id string) {
	p.Lock()
	defer p.Unlock()
	p.triples[key] = append(p.triples[key], id)
}

func (p *SafeDealerPool) popTriple(key string) (string, bool) {
	p.Lock()
	defer p.Unlock()
	ids := p.triples[key]
	if len(ids) == 0 {
		return "", false
	}
	id := ids[0]
	p.triples[key] = ids[1:]
	return id, true
}

func (p *SafeDealerPool) addRand(key, id string) {
	p.Lock()
	defer p.Unlock()
	p.rands[key] = append(p.rands[key], id)
}

func (p *SafeDealerPool) popRand(key string) (string, bool) {
	p.Lock()
	defer p.Unlock()
	ids := p.rands[key]
	if len(ids) == 0 {
		return "", false
	}
	id := ids[0]
	p.rands[key] = ids[1:]
	return id, true
}
