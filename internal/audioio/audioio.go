// Package audioio declares the audio-subsystem collaborator the client
// engine drives. Real decoding, rendering, and platform glue are explicitly
// out of scope; this package defines only the boundary the engine calls
// across, grounded on the Player/AudioInterface seam in bken's
// client/interfaces.go.
package audioio

// Sink is the interface the client engine expects of whatever plays audio
// on this device. An embedder supplies a concrete implementation.
type Sink interface {
	// Prepare readies trackURL for playback starting at positionMs, without
	// starting playback. Called ahead of a scheduled start so the decoder
	// has time to buffer.
	Prepare(trackURL string, positionMs uint64) error

	// StartNow begins playback immediately, continuing from wherever
	// Prepare left the cursor (or resuming in-place if already prepared
	// and paused).
	StartNow() error

	// Pause halts playback, preserving the current cursor position.
	Pause() error

	// SetRate adjusts the playback-rate multiplier, as produced by the
	// drift PID controller.
	SetRate(multiplier float64) error

	// PushLiveChunk appends one opaque chunk of live-captured audio to the
	// render queue. Called by the engine's live-stream pump for every chunk
	// it pulls from the server while track_url is the live sentinel.
	PushLiveChunk(chunk []byte) error

	// DriftMs reports the sink's most recently measured drift sample: the
	// deviation between where the audio cursor should be and where it is,
	// in milliseconds. Returns ok=false if no fresh sample is available.
	DriftMs() (ms float64, ok bool)
}

// NoopSink is a Sink that does nothing; useful for tests and for headless
// server-only builds that never render audio locally.
type NoopSink struct{}

func (NoopSink) Prepare(trackURL string, positionMs uint64) error { return nil }
func (NoopSink) StartNow() error                                  { return nil }
func (NoopSink) Pause() error                                     { return nil }
func (NoopSink) SetRate(multiplier float64) error                 { return nil }
func (NoopSink) PushLiveChunk(chunk []byte) error                 { return nil }
func (NoopSink) DriftMs() (float64, bool)                         { return 0, false }
