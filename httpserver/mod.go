// Package httpserver exposes a worker node over a small JSON control API,
// for scripting and for the syferctl client. It is a thin shim: every
// endpoint maps to one call on the node.
package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"go.dedis.ch/syfer/peer"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
)

// Node is the part of a worker the control API drives.
type Node interface {
	peer.Peer
	Modulus() uint64
}

// Server serves the control API for one node.
type Server struct {
	node Node
	http *http.Server
}

// NewServer returns a control server bound to addr. Call ListenAndServe to
// start it.
func NewServer(node Node, addr string) *Server {
	s := &Server{node: node}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/peer", s.peerHandler)
	mux.HandleFunc("/tensor", s.tensorHandler)
	mux.HandleFunc("/command", s.commandHandler)
	mux.HandleFunc("/fetch", s.fetchHandler)
	mux.HandleFunc("/release", s.releaseHandler)

	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving the API.
func (s *Server) ListenAndServe() error {
	log.Info().Msgf("%s: control api listening on %s", s.node.Address(), s.http.Addr)
	return s.http.ListenAndServe()
}

// Close shuts the API down.
func (s *Server) Close() error {
	return s.http.Close()
}

// -----------------------------------------------------------------------------
// Requests and replies

// PeerRequest makes the listed workers known and announces our keys to
// them.
type PeerRequest struct {
	Addrs []string
}

// TensorRequest stores a tensor on the destination worker.
type TensorRequest struct {
	Dest  string
	Shape []int
	Data  []uint64
}

// CommandRequest runs an operation on tensors already resident on one
// worker.
type CommandRequest struct {
	Op       string
	Operands []types.TensorRef
	KWArgs   map[string]string
}

// RefReply is the answer to a store or a command: where the result lives.
type RefReply struct {
	Ref   types.TensorRef
	Shape []int
}

// FetchRequest retrieves the plaintext behind a reference.
type FetchRequest struct {
	Ref types.TensorRef
}

// ValueReply carries a plaintext tensor.
type ValueReply struct {
	Shape []int
	Data  []uint64
}

// ReleaseRequest frees remote tensors.
type ReleaseRequest struct {
	Refs []types.TensorRef
}

// StatusReply describes the node.
type StatusReply struct {
	Addr    string
	Account string
	Modulus uint64
	Ops     []string
}

// -----------------------------------------------------------------------------
// Handlers

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	ops := make([]string, 0)
	for _, op := range types.Ops() {
		ops = append(ops, string(op))
	}
	writeJSON(w, StatusReply{
		Addr:    s.node.Address(),
		Account: s.node.IdentityAddress(),
		Modulus: s.node.Modulus(),
		Ops:     ops,
	})
}

func (s *Server) peerHandler(w http.ResponseWriter, r *http.Request) {
	var req PeerRequest
	if !readJSON(w, r, &req) {
		return
	}

	s.node.AddPeer(req.Addrs...)
	err := s.node.AnnouncePubkey(req.Addrs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, req)
}

func (s *Server) tensorHandler(w http.ResponseWriter, r *http.Request) {
	var req TensorRequest
	if !readJSON(w, r, &req) {
		return
	}

	t, err := ring.FromSlice(req.Data, req.Shape, s.node.Modulus())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ptr, err := s.node.SendTensor(t, req.Dest)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, RefReply{Ref: ptr.Ref(), Shape: ptr.Shape()})
}

func (s *Server) commandHandler(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !readJSON(w, r, &req) {
		return
	}

	ref, shape, err := s.node.Dispatcher().DispatchCommand(
		types.Op(req.Op), req.Operands, req.KWArgs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, RefReply{Ref: ref, Shape: shape})
}

func (s *Server) fetchHandler(w http.ResponseWriter, r *http.Request) {
	var req FetchRequest
	if !readJSON(w, r, &req) {
		return
	}

	t, err := s.node.Dispatcher().FetchRef(req.Ref)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, ValueReply{Shape: t.Shape(), Data: t.Data()})
}

func (s *Server) releaseHandler(w http.ResponseWriter, r *http.Request) {
	var req ReleaseRequest
	if !readJSON(w, r, &req) {
		return
	}

	err := s.node.Dispatcher().ReleaseRefs(req.Refs...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, req)
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return false
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Warn().Msgf("control api: could not write reply: %v", err)
	}
}
