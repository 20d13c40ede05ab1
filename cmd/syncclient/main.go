// Command syncclient connects to a syncserver session, runs the periodic
// clock sync, and logs scheduled playback events. Real audio rendering is
// an external collaborator (audioio.Sink); this binary wires the no-op
// sink so the engine's scheduling can be observed headlessly.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyguts/syncradio/client/engine"
	"github.com/rustyguts/syncradio/internal/audioio"
	"github.com/rustyguts/syncradio/internal/config"
	"github.com/rustyguts/syncradio/internal/playback"
)

func main() {
	cfg, err := config.ParseClientFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("[syncclient] %v", err)
	}

	e := engine.New(cfg.DeviceID, audioio.NoopSink{}, playback.SystemClock{})
	if cfg.Dashboard {
		e.UseDashboardCodec()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.Connect(ctx, cfg.ServerAddr); err != nil {
		log.Fatalf("[syncclient] connect: %v", err)
	}
	defer e.Disconnect()

	log.Printf("[syncclient] connected to %s", cfg.ServerAddr)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.Events():
			if !ok {
				return
			}
			logEvent(ev)
		case <-time.After(time.Second):
			// Idle tick; keeps the select loop from blocking forever if the
			// event channel is quiet and ctx hasn't fired yet.
		}
	}
}

func logEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventConnected:
		log.Printf("[syncclient] session established: %s", ev.SessionID)
	case engine.EventSyncUpdated:
		log.Printf("[syncclient] offset=%dus rtt=%dus", ev.OffsetUs, ev.RTTUs)
	case engine.EventPlayScheduled:
		log.Printf("[syncclient] play scheduled: track=%s wait=%dus position=%dms", ev.TrackURL, ev.WaitUs, ev.PositionMs)
	case engine.EventPlayStarted:
		log.Printf("[syncclient] play started: track=%s position=%dms", ev.TrackURL, ev.PositionMs)
	case engine.EventPlayMissedDeadline:
		log.Printf("[syncclient] missed deadline, skipping: track=%s", ev.TrackURL)
	case engine.EventPaused:
		log.Printf("[syncclient] paused")
	case engine.EventDecodeDropped:
		log.Printf("[syncclient] dropped frame: %s", ev.Reason)
	case engine.EventDisconnected:
		log.Printf("[syncclient] disconnected: %s", ev.Reason)
	}
}
