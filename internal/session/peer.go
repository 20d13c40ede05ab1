// Package session implements the session/broadcast server: the peer set,
// the per-session accept/relay/loop/teardown lifecycle, and the control
// operations that mutate playback.State and publish onto the buses.
// Grounded on bken's internal/core/channel_state.go (peer-map shape,
// RWMutex + atomic counters) and internal/ws/handler.go (accept/loop/
// teardown lifecycle).
package session

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rustyguts/syncradio/internal/wire"
)

// Peer is one connected session's server-side record.
type Peer struct {
	SessionID  string
	RemoteAddr string
	Kind       wire.Kind

	lastRTT    atomic.Uint64
	lastOffset atomic.Int64

	// Unicast carries messages addressed to this peer alone (Welcome,
	// TimeResponse) rather than fanned out through the control bus.
	Unicast chan wire.ServerMessage
}

// SetTelemetry stores the peer's self-reported RTT/offset for observability.
func (p *Peer) SetTelemetry(rtt uint64, offset int64) {
	p.lastRTT.Store(rtt)
	p.lastOffset.Store(offset)
}

// Telemetry returns the peer's most recently stored RTT/offset.
func (p *Peer) Telemetry() (rtt uint64, offset int64) {
	return p.lastRTT.Load(), int64(p.lastOffset.Load())
}

func uint64AsStored(v int64) uint64 { return uint64(v) }

// Info is a read-only snapshot of a Peer, safe to hand out.
type Info struct {
	SessionID  string
	RemoteAddr string
	Kind       wire.Kind
	LastRTT    uint64
	LastOffset int64
}

// PeerSet is the concurrent-safe peer map keyed by session_id.
type PeerSet struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewPeerSet returns an empty peer set.
func NewPeerSet() *PeerSet {
	return &PeerSet{peers: make(map[string]*Peer)}
}

// Add registers a new peer. sendBuf bounds the unicast channel.
func (s *PeerSet) Add(sessionID, remoteAddr string, kind wire.Kind, sendBuf int) *Peer {
	if sendBuf <= 0 {
		sendBuf = 8
	}
	p := &Peer{
		SessionID:  sessionID,
		RemoteAddr: remoteAddr,
		Kind:       kind,
		Unicast:    make(chan wire.ServerMessage, sendBuf),
	}
	s.mu.Lock()
	s.peers[sessionID] = p
	s.mu.Unlock()
	return p
}

// Remove drops a peer entry and closes its unicast channel.
func (s *PeerSet) Remove(sessionID string) {
	s.mu.Lock()
	p, ok := s.peers[sessionID]
	if ok {
		delete(s.peers, sessionID)
	}
	s.mu.Unlock()
	if ok {
		close(p.Unicast)
	}
}

// Count returns the number of connected peers.
func (s *PeerSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Snapshot returns a stable, sorted view of every connected peer.
func (s *PeerSet) Snapshot() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.peers))
	for _, p := range s.peers {
		rtt, offset := p.Telemetry()
		out = append(out, Info{
			SessionID:  p.SessionID,
			RemoteAddr: p.RemoteAddr,
			Kind:       p.Kind,
			LastRTT:    rtt,
			LastOffset: offset,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
