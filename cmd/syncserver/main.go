// Command syncserver runs the session/broadcast server: it accepts peer
// sessions over /ws, holds the authoritative playback state, and serves
// the track over HTTP. Grounded on bken's server/main.go (flag parsing,
// store open, graceful shutdown on signal).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rustyguts/syncradio/internal/config"
	"github.com/rustyguts/syncradio/internal/httpapi"
	"github.com/rustyguts/syncradio/internal/playback"
	"github.com/rustyguts/syncradio/internal/resolver"
	"github.com/rustyguts/syncradio/internal/session"
	"github.com/rustyguts/syncradio/internal/store"
)

func main() {
	cfg, err := config.ParseServerFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("[syncserver] %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("[syncserver] store: %v", err)
	}
	defer st.Close()

	sess := session.New(playback.SystemClock{}, resolver.New())
	restoreLastState(sess, st)
	sess.OnStateChange(func(snap playback.Snapshot) { persistState(st, snap) })

	// trackPath resolves the hosted track_url to a local file path; this
	// binary hosts files from a flat directory keyed by basename, since
	// real content ingestion (upload, transcode) is out of the core's
	// scope.
	tracksDir := filepath.Join(filepath.Dir(cfg.DBPath), "tracks")
	trackPath := func(trackURL string) (string, bool) {
		if trackURL == "" || trackURL == playback.LiveTrackURL || trackURL == playback.StreamTrackURL {
			return "", false
		}
		return filepath.Join(tracksDir, filepath.Base(trackURL)), true
	}

	api := httpapi.New(sess, trackPath, cfg.IdleTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[syncserver] listening on %s", cfg.Addr)
	if err := api.Run(ctx, cfg.Addr); err != nil {
		log.Fatalf("[syncserver] %v", err)
	}
}

func restoreLastState(sess *session.Server, st *store.Store) {
	last, ok, err := st.LoadLastState(context.Background())
	if err != nil {
		log.Printf("[syncserver] load last state: %v", err)
		return
	}
	if !ok || !last.IsPlaying {
		return
	}
	sess.Play(last.PositionMs, 0, last.TrackURL)
}

// persistState writes the current playback snapshot so a restart resumes
// instead of starting from an empty last_state row.
func persistState(st *store.Store, snap playback.Snapshot) {
	err := st.SaveLastState(context.Background(), store.LastState{
		TrackURL:    snap.TrackURL,
		PositionMs:  snap.PositionMs,
		IsPlaying:   snap.IsPlaying,
		UpdatedAtMs: int64(snap.LastUpdateTime / 1000),
	})
	if err != nil {
		log.Printf("[syncserver] persist last state: %v", err)
	}
}
