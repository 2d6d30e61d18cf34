package pointer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/syfer/types"
)

func Test_pendings_response_roundtrip(t *testing.T) {
	p := NewSafePendings()

	ch := p.expectResponse("req1")
	p.resolveResponse("req1", types.ResponseMessage{ReqID: "req1", Status: "OK"})

	resp := <-ch
	require.Equal(t, "OK", resp.Status)

	p.forget("req1")
	// a late answer after the caller gave up is dropped, not delivered
	p.resolveResponse("req1", types.ResponseMessage{ReqID: "req1"})
}

func Test_pendings_fetch_roundtrip(t *testing.T) {
	p := NewSafePendings()

	ch := p.expectFetch("req1")
	p.resolveFetch("req1", types.FetchReplyMessage{ReqID: "req1", Status: "OK"})

	reply := <-ch
	require.Equal(t, "OK", reply.Status)
}

func Test_pendings_unknown_request(t *testing.T) {
	p := NewSafePendings()

	// answers to requests nobody waits on must not block the daemon
	p.resolveResponse("ghost", types.ResponseMessage{ReqID: "ghost"})
	p.resolveFetch("ghost", types.FetchReplyMessage{ReqID: "ghost"})
}

func Test_live_refs_snapshot(t *testing.T) {
	l := NewSafeLiveRefs()

	a1 := types.TensorRef{WorkerAddr: "127.0.0.1:1", TensorID: "t1"}
	a2 := types.TensorRef{WorkerAddr: "127.0.0.1:1", TensorID: "t2"}
	b1 := types.TensorRef{WorkerAddr: "127.0.0.1:2", TensorID: "t3"}

	l.track(a1)
	l.track(a2)
	l.track(b1)

	snap := l.snapshot()
	require.Len(t, snap, 2)
	require.ElementsMatch(t, []string{"t1", "t2"}, snap["127.0.0.1:1"])
	require.Equal(t, []string{"t3"}, snap["127.0.0.1:2"])

	l.untrack(a1, b1)
	snap = l.snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, []string{"t2"}, snap["127.0.0.1:1"])
}
