package pointer

import (
	"sync"

	"go.dedis.ch/syfer/types"
)

// SafePendings matches request ids with the channel the dispatching
// goroutine waits on. A late answer to a forgotten request is dropped.
type SafePendings struct {
	*sync.RWMutex
	responses map[string]chan types.ResponseMessage
	fetches   map[string]chan types.FetchReplyMessage
}

func NewSafePendings() *SafePendings {
	return &SafePendings{
		RWMutex:   &sync.RWMutex{},
		responses: map[string]chan types.ResponseMessage{},
		fetches:   map[string]chan types.FetchReplyMessage{},
	}
}

func (p *SafePendings) expectResponse(reqID string) chan types.ResponseMessage {
	ch := make(chan types.ResponseMessage, 1)
	p.Lock()
	defer p.Unlock()
	p.responses[reqID] = ch
	return ch
}

func (p *SafePendings) resolveResponse(reqID string, resp types.ResponseMessage) {
	p.RLock()
	ch, ok := p.responses[reqID]
	p.RUnlock()
	if ok {
		ch <- resp
	}
}

func (p *SafePendings) expectFetch(reqID string) chan types.FetchReplyMessage {
	ch := make(chan types.FetchReplyMessage, 1)
	p.Lock()
	defer p.Unlock()
	p.fetches[reqID] = ch
	return ch
}

func (p *SafePendings) resolveFetch(reqID string, reply types.FetchReplyMessage) {
	p.RLock()
	ch, ok := p.fetches[reqID]
	p.RUnlock()
	if ok {
		ch <- reply
	}
}

func (p *SafePendings) forget(reqID string) {
	p.Lock()
	defer p.Unlock()
	delete(p.responses, reqID)
	delete(p.fetches, reqID)
}

// SafeLiveRefs tracks the remote tensors the node holds pointers on, grouped
// by owning worker, so the heartbeat daemon can renew their leases.
type SafeLiveRefs struct {
	*sync.RWMutex
	refs map[string]map[string]struct{}
}

func NewSafeLiveRefs() *SafeLiveRefs {
	return &SafeLiveRefs{
		RWMutex: &sync.RWMutex{},
		refs:    map[string]map[string]struct{}{},
	}
}

func (l *SafeLiveRefs) track(ref types.TensorRef) {
	l.Lock()
	defer l.Unlock()
	ids, ok := l.refs[ref.WorkerAddr]
	if !ok {
		ids = map[string]struct{}{}
		l.refs[ref.WorkerAddr] = ids
	}
	ids[ref.TensorID] = struct{}{}
}

func (l *SafeLiveRefs) untrack(refs ...types.TensorRef) {
	l.Lock()
	defer l.Unlock()
	for _, ref := range refs {
		ids, ok := l.refs[ref.WorkerAddr]
		if !ok {
			continue
		}
		delete(ids, ref.TensorID)
		if len(ids) == 0 {
			delete(l.refs, ref.WorkerAddr)
		}
	}
}

func (l *SafeLiveRefs) snapshot() map[string][]string {
	l.RLock()
	defer l.RUnlock()
	out := make(map[string][]string, len(l.refs))
	for worker, ids := range l.refs {
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		out[worker] = list
	}
	return out
}
