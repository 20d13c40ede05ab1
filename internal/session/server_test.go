package session

import (
	"testing"

	"github.com/rustyguts/syncradio/internal/playback"
	"github.com/rustyguts/syncradio/internal/wire"
)

type fakeClock struct{ t uint64 }

func (f *fakeClock) NowMicros() uint64 { return f.t }

func TestAcceptWithoutPlaybackSendsOnlyWelcome(t *testing.T) {
	clock := &fakeClock{t: 1000}
	srv := New(clock, nil)

	peer, welcome, catchUp := srv.Accept("127.0.0.1:1", wire.KindPeer)
	if welcome.Type != wire.TypeWelcome {
		t.Fatalf("expected welcome message")
	}
	if welcome.Welcome.SessionID != peer.SessionID {
		t.Fatalf("welcome session id mismatch")
	}
	if catchUp != nil {
		t.Fatalf("expected no catch-up relay when idle")
	}
}

// Scenario 5 — late-join relay.
func TestAcceptDuringPlaybackRelaysCatchUp(t *testing.T) {
	clock := &fakeClock{t: 1_000_000}
	srv := New(clock, nil)
	srv.Play(0, 500, "")

	clock.t = 2_250_000
	_, welcome, catchUp := srv.Accept("127.0.0.1:2", wire.KindPeer)
	if welcome.Type != wire.TypeWelcome {
		t.Fatalf("expected welcome before catch-up, per invariant 5")
	}
	if catchUp == nil {
		t.Fatalf("expected a catch-up PlayCommand")
	}
	if catchUp.PlayCommand.StartAtPositionMs != 1250 {
		t.Fatalf("start_at_position_ms = %d, want 1250", catchUp.PlayCommand.StartAtPositionMs)
	}
	if catchUp.PlayCommand.StartAtServerTime != 2_250_000 {
		t.Fatalf("start_at_server_time = %d, want 2250000", catchUp.PlayCommand.StartAtServerTime)
	}
}

func TestTeardownRemovesPeer(t *testing.T) {
	srv := New(&fakeClock{t: 0}, nil)
	peer, _, _ := srv.Accept("addr", wire.KindPeer)
	if srv.PeerCount() != 1 {
		t.Fatalf("expected 1 peer")
	}
	srv.Teardown(peer.SessionID)
	if srv.PeerCount() != 0 {
		t.Fatalf("expected 0 peers after teardown")
	}
}

func TestHandleTimeRequestRepliesOnUnicastChannel(t *testing.T) {
	clock := &fakeClock{t: 5000}
	srv := New(clock, nil)
	peer, _, _ := srv.Accept("addr", wire.KindPeer)

	srv.HandleInbound(peer, wire.ClientMessage{
		Type:        wire.TypeTimeRequest,
		TimeRequest: &wire.TimeRequestMsg{T0: 1000, Seq: 3},
	})

	select {
	case reply := <-peer.Unicast:
		if reply.Type != wire.TypeTimeResponse {
			t.Fatalf("expected time response")
		}
		if reply.TimeResponse.T0 != 1000 || reply.TimeResponse.Seq != 3 {
			t.Fatalf("echoed fields mismatch: %+v", reply.TimeResponse)
		}
		if reply.TimeResponse.T1 != 5000 || reply.TimeResponse.T2 != 5000 {
			t.Fatalf("server clock reads mismatch: %+v", reply.TimeResponse)
		}
	default:
		t.Fatalf("expected a unicast reply")
	}
}

func TestHandleTelemetryStoresOnPeer(t *testing.T) {
	srv := New(&fakeClock{t: 0}, nil)
	peer, _, _ := srv.Accept("addr", wire.KindPeer)

	srv.HandleInbound(peer, wire.ClientMessage{
		Type:      wire.TypeTelemetry,
		Telemetry: &wire.TelemetryMsg{RTT: 120, Offset: -40, Drift: 5, Status: "ok"},
	})

	rtt, offset := peer.Telemetry()
	if rtt != 120 || offset != -40 {
		t.Fatalf("telemetry not stored: rtt=%d offset=%d", rtt, offset)
	}
}

func TestCommandRequestPlayPublishesOnControlBus(t *testing.T) {
	clock := &fakeClock{t: 1_000_000}
	srv := New(clock, nil)
	sub := srv.SubscribeControl()

	srv.HandleInbound(&Peer{SessionID: "s1"}, wire.ClientMessage{
		Type: wire.TypeCommandRequest,
		CommandRequest: &wire.CommandRequestMsg{
			Cmd: wire.ControlCommand{Kind: wire.CommandPlay, StartAtMs: 0, DelayMs: 500},
		},
	})

	msg, skipped, ok := sub.Next()
	if !ok || skipped {
		t.Fatalf("expected one control bus message, ok=%v skipped=%v", ok, skipped)
	}
	if msg.Type != wire.TypePlayCommand {
		t.Fatalf("expected play command on bus")
	}
	if msg.PlayCommand.StartAtServerTime != 1_500_000 {
		t.Fatalf("start_at_server_time = %d, want 1500000", msg.PlayCommand.StartAtServerTime)
	}
}

func TestSeekWhilePausedUpdatesPositionWithoutBroadcasting(t *testing.T) {
	clock := &fakeClock{t: 0}
	srv := New(clock, nil)

	srv.Seek(1234) // paused: no broadcast expected

	if srv.Snapshot().PositionMs != 1234 {
		t.Fatalf("position_ms = %d, want 1234", srv.Snapshot().PositionMs)
	}
}

func TestOnStateChangeFiresOnEveryControlOperation(t *testing.T) {
	clock := &fakeClock{t: 1_000_000}
	srv := New(clock, nil)

	var snapshots []playback.Snapshot
	srv.OnStateChange(func(snap playback.Snapshot) { snapshots = append(snapshots, snap) })

	srv.Play(0, 0, "song.mp3")
	srv.Pause()
	srv.Seek(500)
	srv.GoLive()
	srv.StopLive()

	if len(snapshots) != 5 {
		t.Fatalf("expected 5 persisted snapshots, got %d", len(snapshots))
	}
	if snapshots[0].TrackURL != "song.mp3" || !snapshots[0].IsPlaying {
		t.Fatalf("unexpected snapshot after Play: %+v", snapshots[0])
	}
	if snapshots[1].IsPlaying {
		t.Fatalf("expected IsPlaying=false after Pause: %+v", snapshots[1])
	}
	if snapshots[3].TrackURL != playback.LiveTrackURL || !snapshots[3].IsPlaying {
		t.Fatalf("unexpected snapshot after GoLive: %+v", snapshots[3])
	}
	if snapshots[4].IsPlaying {
		t.Fatalf("expected IsPlaying=false after StopLive: %+v", snapshots[4])
	}
}
