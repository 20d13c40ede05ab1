package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rustyguts/syncradio/internal/playback"
	"github.com/rustyguts/syncradio/internal/session"
)

func newTestServer() *Server {
	sess := session.New(playback.SystemClock{}, nil)
	return New(sess, func(string) (string, bool) { return "", false }, 30*time.Second)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestControlEndpointAcceptsPlay(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	body := strings.NewReader(`{"kind":"play","start_at_ms":0,"delay_ms":300}`)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/control", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /control: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if !s.sess.Snapshot().IsPlaying {
		t.Fatalf("expected playback state to be playing")
	}
}

func TestControlEndpointRejectsUnknownKind(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	body := strings.NewReader(`{"kind":"rewind"}`)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/control", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /control: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStreamEndpoint404sWithNoTrack(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stream")
	if err != nil {
		t.Fatalf("GET /stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamLiveRespondsAndCanBeCanceled(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream/live", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		// A canceled request may surface as a client-side error; that is
		// an acceptable outcome for a never-ending stream with no chunks.
		return
	}
	defer resp.Body.Close()
}
