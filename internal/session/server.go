package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rustyguts/syncradio/internal/bus"
	"github.com/rustyguts/syncradio/internal/playback"
	"github.com/rustyguts/syncradio/internal/resolver"
	"github.com/rustyguts/syncradio/internal/wire"
)

// ControlBusCapacity and AudioBusCapacity match the bounds in §3: control
// messages are rare and must not be dropped casually, audio chunks are
// plentiful and tolerate loss.
const (
	ControlBusCapacity = 100
	AudioBusCapacity   = 1024
)

// Server holds the authoritative playback state, the peer set, and both
// broadcast buses. One Server instance serves every session; there is no
// package-level singleton (§9).
type Server struct {
	clock   playback.Clock
	state   *playback.State
	peers   *PeerSet
	control *bus.Broadcast[wire.ServerMessage]
	audio   *bus.Broadcast[[]byte]

	resolver *resolver.Resolver

	persist func(playback.Snapshot)
}

// New constructs a Server with the given clock (SystemClock in production,
// a fake in tests) and URL resolver.
func New(clock playback.Clock, res *resolver.Resolver) *Server {
	return &Server{
		clock:    clock,
		state:    &playback.State{},
		peers:    NewPeerSet(),
		control:  bus.NewBroadcast[wire.ServerMessage](ControlBusCapacity),
		audio:    bus.NewBroadcast[[]byte](AudioBusCapacity),
		resolver: res,
	}
}

// OnStateChange registers fn to run after every control operation that
// mutates playback state, passing the resulting snapshot. cmd/syncserver
// uses this to persist the state via internal/store so a restart resumes
// playback instead of the sqlite last_state row staying forever empty.
// Only one hook may be registered; a later call replaces the previous one.
func (s *Server) OnStateChange(fn func(playback.Snapshot)) {
	s.persist = fn
}

func (s *Server) notifyStateChange() {
	if s.persist != nil {
		s.persist(s.state.Snapshot())
	}
}

// PeerCount returns the number of connected sessions.
func (s *Server) PeerCount() int { return s.peers.Count() }

// Peers returns a snapshot of every connected peer.
func (s *Server) Peers() []Info { return s.peers.Snapshot() }

// Snapshot returns the current authoritative playback state.
func (s *Server) Snapshot() playback.Snapshot { return s.state.Snapshot() }

// TrackURL returns the currently hosted track path, for the /stream
// endpoint's external file-serving collaborator.
func (s *Server) TrackURL() string { return s.state.Snapshot().TrackURL }

// --- Embedding-API control operations (§9: flat handle-based surface) ---

// Play runs the Play control operation and publishes the resulting
// PlayCommand on the control bus.
func (s *Server) Play(startAtMs, delayMs uint64, trackURL string) {
	res := s.state.Play(s.clock, playback.PlayParams{StartAtMs: startAtMs, DelayMs: delayMs, TrackURL: trackURL})
	s.publishPlay(res)
	s.notifyStateChange()
}

// Pause runs the Pause control operation and publishes the resulting
// PauseCommand.
func (s *Server) Pause() {
	res := s.state.Pause(s.clock)
	s.publishPause(res)
	s.notifyStateChange()
}

// Seek runs the Seek control operation, publishing a resync PlayCommand
// only if currently playing.
func (s *Server) Seek(positionMs uint64) {
	res := s.state.Seek(s.clock, positionMs)
	if res.ShouldBroadcastPlay {
		s.publishPlay(res.Play)
	}
	s.notifyStateChange()
}

// GoLive switches into live-capture mode and publishes the PlayCommand with
// start_at_server_time=0 that tells clients to render chunks as they
// arrive.
func (s *Server) GoLive() {
	res := s.state.GoLive(s.clock)
	s.publishPlay(res)
	s.notifyStateChange()
}

// StopLive ends live-capture mode.
func (s *Server) StopLive() {
	res := s.state.StopLive(s.clock)
	s.publishPause(res)
	s.notifyStateChange()
}

// PushAudioChunk publishes one opaque chunk of live-captured audio onto the
// audio bus for every subscribed peer.
func (s *Server) PushAudioChunk(chunk []byte) {
	s.audio.Publish(chunk)
}

func (s *Server) publishPlay(res playback.PlayResult) {
	s.control.Publish(wire.ServerMessage{
		Type: wire.TypePlayCommand,
		PlayCommand: &wire.PlayCommandMsg{
			TrackURL:              res.TrackURL,
			StartAtServerTime:     res.StartAtServerTime,
			StartAtPositionMs:     res.StartAtPositionMs,
			ServerTimeAtBroadcast: res.ServerTimeAtBroadcast,
		},
	})
}

func (s *Server) publishPause(res playback.PauseResult) {
	s.control.Publish(wire.ServerMessage{
		Type:         wire.TypePauseCommand,
		PauseCommand: &wire.PauseCommandMsg{ServerTime: res.ServerTime},
	})
}

// --- ControlCommand dispatch, shared by CommandRequest and POST /control ---

// ApplyCommand executes cmd, the host-issued control operation.
func (s *Server) ApplyCommand(cmd wire.ControlCommand) error {
	switch cmd.Kind {
	case wire.CommandPlay:
		s.Play(cmd.StartAtMs, cmd.DelayMs, s.state.Snapshot().TrackURL)
		return nil
	case wire.CommandPause:
		s.Pause()
		return nil
	case wire.CommandSeek:
		s.Seek(cmd.PositionMs)
		return nil
	default:
		return fmt.Errorf("session: unknown control command kind %v", cmd.Kind)
	}
}

// --- Per-session lifecycle ---

// Accept registers a new peer, returning it along with the Welcome message
// and, if playback is already underway, the catch-up PlayCommand to relay
// immediately after Welcome (state relay, §4.D step 2).
func (s *Server) Accept(remoteAddr string, kind wire.Kind) (*Peer, wire.ServerMessage, *wire.ServerMessage) {
	sessionID := uuid.NewString()
	peer := s.peers.Add(sessionID, remoteAddr, kind, 16)

	welcome := wire.ServerMessage{Type: wire.TypeWelcome, Welcome: &wire.WelcomeMsg{SessionID: sessionID}}

	snap := s.state.Snapshot()
	if !snap.IsPlaying {
		slog.Info("session accepted", "session_id", sessionID, "remote", remoteAddr, "kind", kind)
		return peer, welcome, nil
	}

	now := s.clock.NowMicros()
	position := snap.PositionAt(now)
	catchUp := wire.ServerMessage{
		Type: wire.TypePlayCommand,
		PlayCommand: &wire.PlayCommandMsg{
			TrackURL:              snap.TrackURL,
			StartAtServerTime:     now,
			StartAtPositionMs:     position,
			ServerTimeAtBroadcast: now,
		},
	}
	slog.Info("session accepted with catch-up relay", "session_id", sessionID, "remote", remoteAddr, "kind", kind, "position_ms", position)
	return peer, welcome, &catchUp
}

// Teardown removes a peer's entry and closes its unicast channel. The
// control-bus subscription is owned and closed by the session loop in ws.go.
func (s *Server) Teardown(sessionID string) {
	s.peers.Remove(sessionID)
	slog.Info("session closed", "session_id", sessionID)
}

// SubscribeControl returns a fresh control-bus subscription positioned so
// it only observes messages published from this point forward.
func (s *Server) SubscribeControl() *bus.Subscription[wire.ServerMessage] {
	return s.control.Subscribe()
}

// SubscribeAudio returns a fresh audio-bus subscription.
func (s *Server) SubscribeAudio() *bus.Subscription[[]byte] {
	return s.audio.Subscribe()
}

// --- Inbound message handlers (§4.D) ---

// HandleInbound dispatches one decoded ClientMessage for peer.
func (s *Server) HandleInbound(peer *Peer, msg wire.ClientMessage) {
	switch msg.Type {
	case wire.TypeJoin:
		s.handleJoin(peer, msg.Join)
	case wire.TypeTimeRequest:
		s.handleTimeRequest(peer, msg.TimeRequest)
	case wire.TypeTelemetry:
		s.handleTelemetry(peer, msg.Telemetry)
	case wire.TypePlayRequest:
		s.handlePlayRequest(peer, msg.PlayRequest)
	case wire.TypeCommandRequest:
		s.handleCommandRequest(peer, msg.CommandRequest)
	default:
		slog.Warn("unhandled client message type", "session_id", peer.SessionID, "type", msg.Type)
	}
}

func (s *Server) handleJoin(peer *Peer, m *wire.JoinMsg) {
	if m == nil {
		return
	}
	slog.Info("peer joined", "session_id", peer.SessionID, "device_id", m.DeviceID)
}

// handleTimeRequest must not perform any I/O between its two clock reads,
// so the reply carries the lowest achievable jitter.
func (s *Server) handleTimeRequest(peer *Peer, m *wire.TimeRequestMsg) {
	if m == nil {
		return
	}
	t1 := s.clock.NowMicros()
	t2 := s.clock.NowMicros()

	reply := wire.ServerMessage{
		Type: wire.TypeTimeResponse,
		TimeResponse: &wire.TimeResponseMsg{T0: m.T0, T1: t1, T2: t2, Seq: m.Seq},
	}
	sendUnicast(peer, reply)
}

func (s *Server) handleTelemetry(peer *Peer, m *wire.TelemetryMsg) {
	if m == nil {
		return
	}
	peer.SetTelemetry(m.RTT, m.Offset)
}

func (s *Server) handlePlayRequest(peer *Peer, m *wire.PlayRequestMsg) {
	if m == nil {
		return
	}
	trackURL := m.TrackURL
	if s.resolver != nil && resolver.LooksLikeWebpageLink(trackURL) {
		resolved, err := s.resolver.Resolve(trackURL)
		if err != nil {
			slog.Warn("resolver failure, using original url", "session_id", peer.SessionID, "url", trackURL, "err", err)
		} else {
			trackURL = resolved
		}
	}
	s.Play(0, m.DelayMs, trackURL)
}

func (s *Server) handleCommandRequest(peer *Peer, m *wire.CommandRequestMsg) {
	if m == nil {
		return
	}
	if err := s.ApplyCommand(m.Cmd); err != nil {
		slog.Warn("control command rejected", "session_id", peer.SessionID, "err", err)
	}
}

// sendUnicast delivers msg to peer's own channel without blocking forever;
// a wedged writer must not stall the dispatch loop.
func sendUnicast(peer *Peer, msg wire.ServerMessage) {
	select {
	case peer.Unicast <- msg:
	case <-time.After(writeTimeout):
		slog.Warn("unicast send timed out", "session_id", peer.SessionID, "type", msg.Type)
	}
}

const writeTimeout = 5 * time.Second
