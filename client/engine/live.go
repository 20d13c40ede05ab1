package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// liveStreamURL derives the server's long-lived live-audio HTTP endpoint
// from the same address Connect dialed, mirroring dialURL's scheme
// translation but pointed at GET /stream/live instead of /ws.
func liveStreamURL(addr string) (string, error) {
	if hasScheme(addr) {
		u, err := url.Parse(addr)
		if err != nil {
			return "", fmt.Errorf("engine: invalid address %q: %w", addr, err)
		}
		switch u.Scheme {
		case "ws":
			u.Scheme = "http"
		case "wss":
			u.Scheme = "https"
		}
		u.Path = "/stream/live"
		u.RawQuery = ""
		return u.String(), nil
	}
	u := &url.URL{Scheme: "http", Host: addr, Path: "/stream/live"}
	return u.String(), nil
}

// startLiveStream begins pulling chunks from the server's live-audio
// endpoint and forwarding them to the sink, until stopLiveStream is called
// or the request ends on its own (server closed the stream). A no-op if
// already streaming, or if Connect was never called (liveURL unset, as in
// tests that drive handlePlayCommand directly).
func (e *Engine) startLiveStream() {
	if e.liveURL == "" {
		return
	}
	if !e.liveActive.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.liveMu.Lock()
	e.liveCancel = cancel
	e.liveMu.Unlock()

	e.wg.Add(1)
	go e.pumpLiveStream(ctx)
}

// stopLiveStream cancels an in-flight live pull, if any. Safe to call when
// no live stream is active.
func (e *Engine) stopLiveStream() {
	if !e.liveActive.CompareAndSwap(true, false) {
		return
	}
	e.liveMu.Lock()
	cancel := e.liveCancel
	e.liveCancel = nil
	e.liveMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) pumpLiveStream(ctx context.Context) {
	defer e.wg.Done()
	defer e.liveActive.Store(false)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.liveURL, nil)
	if err != nil {
		e.emit(Event{Kind: EventDecodeDropped, Reason: err.Error()})
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.emit(Event{Kind: EventDecodeDropped, Reason: err.Error()})
		return
	}
	defer resp.Body.Close()

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if pushErr := e.sink.PushLiveChunk(chunk); pushErr != nil {
				e.emit(Event{Kind: EventDecodeDropped, Reason: pushErr.Error()})
			} else {
				e.emit(Event{Kind: EventLiveChunk, ChunkBytes: n})
			}
		}
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
