// Package playback holds the server's authoritative PlaybackState and the
// control operations (Play/Pause/Seek/Live) that mutate it, grounded on the
// single-writer/shared-reader presence state in bken's channel_state.go.
package playback

import (
	"sync"
	"time"
)

// Clock abstracts server time so tests can inject deterministic values.
// Production code uses SystemClock, which reads real wall-clock
// microseconds.
type Clock interface {
	NowMicros() uint64
}

// SystemClock reads time.Now in microseconds since the Unix epoch.
type SystemClock struct{}

func (SystemClock) NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

// LiveTrackURL is the sentinel track_url for a live-capture broadcast.
const LiveTrackURL = "live"

// StreamTrackURL is the sentinel substituted for Play when no track_url is
// given; it refers the client to the hosted-file streaming endpoint.
const StreamTrackURL = "stream"

// State is the server-wide authoritative playback state. Zero value is
// ready to use (idle, no track).
type State struct {
	mu sync.RWMutex

	isPlaying      bool
	trackURL       string
	positionMs     uint64
	lastUpdateTime uint64
}

// Snapshot is a consistent read of State at one instant.
type Snapshot struct {
	IsPlaying      bool
	TrackURL       string
	PositionMs     uint64
	LastUpdateTime uint64
}

// Snapshot returns the current state under a read lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		IsPlaying:      s.isPlaying,
		TrackURL:       s.trackURL,
		PositionMs:     s.positionMs,
		LastUpdateTime: s.lastUpdateTime,
	}
}

// PositionAt computes the effective playback position (ms) at server time
// now, per the position invariant: position advances with wall time only
// while playing.
func (snap Snapshot) PositionAt(now uint64) uint64 {
	if !snap.IsPlaying || now <= snap.LastUpdateTime {
		return snap.PositionMs
	}
	elapsedMs := (now - snap.LastUpdateTime) / 1000
	return snap.PositionMs + elapsedMs
}

// PlayParams are the arguments to the Play control operation.
type PlayParams struct {
	StartAtMs uint64
	DelayMs   uint64
	TrackURL  string
}

// PlayResult carries the fields needed to build a PlayCommand broadcast.
type PlayResult struct {
	TrackURL              string
	StartAtServerTime     uint64
	StartAtPositionMs     uint64
	ServerTimeAtBroadcast uint64
}

// Play transitions to playing at the given logical start position, and
// returns the broadcast parameters. The caller publishes the resulting
// PlayCommand after releasing any additional locks it holds; State's own
// lock is released before Play returns.
func (s *State) Play(clock Clock, p PlayParams) PlayResult {
	now := clock.NowMicros()

	trackURL := p.TrackURL
	if trackURL == "" {
		trackURL = StreamTrackURL
	}

	s.mu.Lock()
	s.isPlaying = true
	s.positionMs = p.StartAtMs
	s.lastUpdateTime = maxU64(s.lastUpdateTime, now)
	s.trackURL = trackURL
	s.mu.Unlock()

	return PlayResult{
		TrackURL:              trackURL,
		StartAtServerTime:     now + p.DelayMs*1000,
		StartAtPositionMs:     p.StartAtMs,
		ServerTimeAtBroadcast: now,
	}
}

// PauseResult carries the fields needed to build a PauseCommand broadcast.
type PauseResult struct {
	ServerTime uint64
}

// Pause transitions to paused, advancing position_ms to preserve the
// position invariant if currently playing.
func (s *State) Pause(clock Clock) PauseResult {
	now := clock.NowMicros()

	s.mu.Lock()
	if s.isPlaying && now > s.lastUpdateTime {
		s.positionMs += (now - s.lastUpdateTime) / 1000
	}
	s.isPlaying = false
	s.lastUpdateTime = maxU64(s.lastUpdateTime, now)
	s.mu.Unlock()

	return PauseResult{ServerTime: now}
}

// SeekResult reports whether a resync PlayCommand must be published, and
// its parameters if so.
type SeekResult struct {
	ShouldBroadcastPlay bool
	Play                PlayResult
}

// resyncWindowUs is the delay given to peers to catch up after a seek
// while playing.
const resyncWindowUs = 500_000

// Seek updates position_ms and, if currently playing, produces a fresh
// PlayCommand resync.
func (s *State) Seek(clock Clock, positionMs uint64) SeekResult {
	now := clock.NowMicros()

	s.mu.Lock()
	s.positionMs = positionMs
	s.lastUpdateTime = maxU64(s.lastUpdateTime, now)
	playing := s.isPlaying
	trackURL := s.trackURL
	s.mu.Unlock()

	if !playing {
		return SeekResult{}
	}

	return SeekResult{
		ShouldBroadcastPlay: true,
		Play: PlayResult{
			TrackURL:              trackURL,
			StartAtServerTime:     now + resyncWindowUs,
			StartAtPositionMs:     positionMs,
			ServerTimeAtBroadcast: now,
		},
	}
}

// GoLive switches into live-capture mode: the track is the live sentinel,
// playback is immediately active, and start_at_server_time is 0 so clients
// render chunks as they arrive rather than waiting for an instant.
func (s *State) GoLive(clock Clock) PlayResult {
	now := clock.NowMicros()

	s.mu.Lock()
	s.isPlaying = true
	s.trackURL = LiveTrackURL
	s.positionMs = 0
	s.lastUpdateTime = maxU64(s.lastUpdateTime, now)
	s.mu.Unlock()

	return PlayResult{
		TrackURL:              LiveTrackURL,
		StartAtServerTime:     0,
		StartAtPositionMs:     0,
		ServerTimeAtBroadcast: now,
	}
}

// StopLive ends live-capture mode, behaving like Pause.
func (s *State) StopLive(clock Clock) PauseResult {
	return s.Pause(clock)
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
