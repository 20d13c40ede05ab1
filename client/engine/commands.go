package engine

import (
	"time"

	"github.com/rustyguts/syncradio/internal/playback"
	"github.com/rustyguts/syncradio/internal/wire"
)

// handlePlayCommand implements §4.E command handling. The live-mode
// sentinel (start_at_server_time=0) renders immediately; otherwise the
// command is armed against the estimated server clock, and a deadline that
// has already passed is skipped rather than started mid-cue (the spec's
// mandated late-arrival policy).
func (e *Engine) handlePlayCommand(cmd wire.PlayCommandMsg) {
	if e.preparedTrack.Load().(string) != cmd.TrackURL {
		if err := e.sink.Prepare(cmd.TrackURL, cmd.StartAtPositionMs); err != nil {
			e.emit(Event{Kind: EventDecodeDropped, Reason: err.Error()})
			return
		}
		e.preparedTrack.Store(cmd.TrackURL)
	}

	if cmd.TrackURL == playback.LiveTrackURL {
		e.startLiveStream()
	} else {
		e.stopLiveStream()
	}

	if cmd.TrackURL == playback.LiveTrackURL || cmd.StartAtServerTime == 0 {
		if err := e.sink.StartNow(); err != nil {
			e.emit(Event{Kind: EventDecodeDropped, Reason: err.Error()})
			return
		}
		e.emit(Event{Kind: EventPlayStarted, TrackURL: cmd.TrackURL, PositionMs: cmd.StartAtPositionMs})
		return
	}

	nowServer := int64(e.localNowUs()) + e.offsetUs.Load()
	waitUs := int64(cmd.StartAtServerTime) - nowServer
	if waitUs < 0 {
		waitUs = 0
	}

	if waitUs == 0 {
		e.emit(Event{Kind: EventPlayMissedDeadline, TrackURL: cmd.TrackURL, PositionMs: cmd.StartAtPositionMs})
		return
	}

	e.emit(Event{Kind: EventPlayScheduled, TrackURL: cmd.TrackURL, WaitUs: waitUs, PositionMs: cmd.StartAtPositionMs})
	e.pid.Reset()

	time.AfterFunc(time.Duration(waitUs)*time.Microsecond, func() {
		if err := e.sink.StartNow(); err != nil {
			e.emit(Event{Kind: EventDecodeDropped, Reason: err.Error()})
			return
		}
		e.emit(Event{Kind: EventPlayStarted, TrackURL: cmd.TrackURL, PositionMs: cmd.StartAtPositionMs})
	})
}

func (e *Engine) handlePauseCommand(cmd wire.PauseCommandMsg) {
	e.stopLiveStream()
	if err := e.sink.Pause(); err != nil {
		e.emit(Event{Kind: EventDecodeDropped, Reason: err.Error()})
		return
	}
	e.pid.Reset()
	e.emit(Event{Kind: EventPaused})
}

// ReportDrift feeds one drift sample (milliseconds, and the interval since
// the previous sample) into the PID controller and applies the resulting
// rate multiplier to the audio sink.
func (e *Engine) ReportDrift(driftMs float64, dt time.Duration) error {
	multiplier := e.pid.Correct(driftMs, dt.Seconds())
	return e.sink.SetRate(multiplier)
}

// PollDrift asks the sink for its latest drift sample and, if one is
// available, feeds it through ReportDrift. Intended to be called from an
// embedder-driven ticker at whatever cadence the audio subsystem updates
// its drift measurement.
func (e *Engine) PollDrift(dt time.Duration) {
	ms, ok := e.sink.DriftMs()
	if !ok {
		return
	}
	if err := e.ReportDrift(ms, dt); err != nil {
		e.emit(Event{Kind: EventDecodeDropped, Reason: err.Error()})
	}
}
