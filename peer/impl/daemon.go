package impl

import (
	"context"
	"time"

	"go.dedis.ch/syfer/peer/impl/message"
	"go.dedis.ch/syfer/transport"
)

// ListenDaemon starts a new loop to listen to the socket. Packets addressed
// to this node run their registered callback; anything else is relayed.
func (n *node) ListenDaemon(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				pkt, err := n.conf.Socket.Recv(message.ReadTimeout)
				if err != nil {
					continue
				}
				err = n.processPkt(pkt)
				if err != nil {
					continue
				}
			}
		}
	}()

	return nil
}

// HeartbeatDaemon periodically renews the leases of the remote tensors this
// node points at and frees local tensors whose lease lapsed.
func (n *node) HeartbeatDaemon(ctx context.Context, interval time.Duration) error {
	if interval == 0 {
		// the lease mechanism must not be activated
		return nil
	}
	ticker := time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				n.pointer.RenewLiveLeases()
				n.worker.SweepExpiredLeases()
			}
		}
	}()

	return nil
}

func (n *node) processPkt(pkt transport.Packet) error {
	if pkt.Header.Destination == n.conf.Socket.GetAddress() {
		return n.conf.MessageRegistry.ProcessPacket(pkt)
	}

	// relay on behalf of someone else
	pkt.Header.RelayedBy = n.conf.Socket.GetAddress()
	return n.conf.Socket.Send(pkt.Header.Destination, pkt, message.WriteTimeout)
}
