package engine

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLiveStreamPumpPushesChunksToSink(t *testing.T) {
	const payload = "chunk-a"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer ts.Close()

	sink := &fakeSink{}
	e := New("dev-1", sink, &fakeClock{t: 0})
	e.liveURL = ts.URL
	e.startLiveStream()
	defer e.stopLiveStream()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-e.Events():
			if ev.Kind != EventLiveChunk {
				continue
			}
			if ev.ChunkBytes != len(payload) {
				t.Fatalf("chunk_bytes = %d, want %d", ev.ChunkBytes, len(payload))
			}
			if string(sink.chunk()) != payload {
				t.Fatalf("sink received %q, want %q", sink.chunk(), payload)
			}
			return
		case <-deadline:
			t.Fatalf("timed out waiting for EventLiveChunk")
		}
	}
}

func TestStartLiveStreamIsNoopWithoutLiveURL(t *testing.T) {
	e := New("dev-1", &fakeSink{}, &fakeClock{t: 0})
	e.startLiveStream() // liveURL unset (Connect never called)

	select {
	case ev := <-e.Events():
		t.Fatalf("expected no event, got %v", ev.Kind)
	default:
	}
	if e.liveActive.Load() {
		t.Fatalf("expected liveActive to remain false")
	}
}

func TestStopLiveStreamCancelsPump(t *testing.T) {
	started := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer ts.Close()

	e := New("dev-1", &fakeSink{}, &fakeClock{t: 0})
	e.liveURL = ts.URL
	e.startLiveStream()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never observed a request")
	}

	e.stopLiveStream()
	e.wg.Wait()
	if e.liveActive.Load() {
		t.Fatalf("expected liveActive to be false after stop")
	}
}
