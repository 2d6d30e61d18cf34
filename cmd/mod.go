package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.dedis.ch/syfer/httpserver"
	z "go.dedis.ch/syfer/internal/testing"
	"go.dedis.ch/syfer/peer/impl"
	"go.dedis.ch/syfer/transport/udp"
)

var t = testing{}

// -----------------------------------------------------------------------------
// Start CMD

// StartCMD boots a worker node over UDP. With daemon set it only serves
// remote requests; otherwise it drops into the interactive console. A
// non-empty apiAddr additionally exposes the HTTP control surface.
func StartCMD(cfg Config, daemon bool, apiAddr string) {
	opts, err := cfg.options()
	if err != nil {
		fmt.Println(err)
		return
	}

	transp := udp.NewUDP()
	node := z.NewTestNode(t, impl.NewPeer, transp, cfg.Listen, opts...)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		exitNode(&node)
	}()

	fmt.Println("##########################################")
	fmt.Println("######     Starting a Syfer node    ######")
	fmt.Println("##########################################")
	fmt.Println("Node running on address: ", node.GetAddr())
	fmt.Println("Identity account:        ", node.IdentityAddress())
	fmt.Println()

	if len(cfg.Peers) > 0 {
		node.AddPeer(cfg.Peers...)
		err = node.AnnouncePubkey(cfg.Peers)
		if err != nil {
			fmt.Println("could not announce to peers:", err)
		}
	}

	if apiAddr != "" {
		srv := httpserver.NewServer(&node, apiAddr)
		go func() {
			err := srv.ListenAndServe()
			if err != nil {
				fmt.Println("control api stopped:", err)
			}
		}()
		fmt.Println("Control API on:          ", apiAddr)
	}

	if daemon {
		select {}
	}

	performActions(&node)
}

// -----------------------------------------------------------------------------
// Exit

func exitNode(node *z.TestNode) error {
	node.StopAll()
	fmt.Println("bye 👋")
	os.Exit(0)
	return nil
}

// -----------------------------------------------------------------------------
// Utils

// testing provides a simple implementation of the require.Testing interface.
// Needed because we use some the the testing utility functions.
type testing struct{}

func (testing) Errorf(format string, args ...interface{}) {
	fmt.Println("~~ERROR~~")
	fmt.Printf(format, args...)
}

func (testing) FailNow() {
	os.Exit(1)
}
