package unit

import (
	"testing"

	z "go.dedis.ch/syfer/internal/testing"
	"go.dedis.ch/syfer/peer"
	"go.dedis.ch/syfer/peer/impl"
	"go.dedis.ch/syfer/transport"
)

var peerFac peer.Factory = impl.NewPeer

// setupCohort starts n fully meshed nodes that announced their pubkeys to
// each other.
func setupCohort(t *testing.T, transp transport.Transport, n int,
	opts ...z.Option) []z.TestNode {

	nodes := make([]z.TestNode, n)
	for i := range nodes {
		nodes[i] = z.NewTestNode(t, peerFac, transp, "127.0.0.1:0", opts...)
	}

	addrs := make([]string, n)
	for i, node := range nodes {
		addrs[i] = node.GetAddr()
	}
	for _, node := range nodes {
		node.AddPeer(addrs...)
		err := node.AnnouncePubkey(addrs)
		if err != nil {
			t.Fatal(err)
		}
	}
	return nodes
}

func stopAll(nodes []z.TestNode) {
	for _, node := range nodes {
		node.StopAll()
	}
}

func cohortAddrs(nodes []z.TestNode) []string {
	addrs := make([]string, len(nodes))
	for i, node := range nodes {
		addrs[i] = node.GetAddr()
	}
	return addrs
}
