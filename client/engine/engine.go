// Package engine implements the client side of the synchronization
// protocol: one persistent session to the server, a periodic clock-offset
// sync loop, scheduled command handling, and drift correction driving a
// caller-supplied audio sink. Grounded on bken's client/transport.go
// (connect/read-loop/ping-loop shape) and client/app.go (thin struct
// delegating to collaborators, atomic connection flag), adapted from a
// callback-wired Transporter to a polled Events() queue per the
// foreign-call-boundary design note.
package engine

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rustyguts/syncradio/internal/audioio"
	"github.com/rustyguts/syncradio/internal/drift"
	"github.com/rustyguts/syncradio/internal/playback"
	"github.com/rustyguts/syncradio/internal/wire"
)

// SyncInterval is how often the engine runs a fresh sync burst once
// connected, per the §4.E recommendation.
const SyncInterval = 5 * time.Second

// SyncBurstSize is the recommended number of rounds per sync burst.
const SyncBurstSize = 5

// SyncRoundSpacing is the recommended gap between rounds in a burst.
const SyncRoundSpacing = 200 * time.Millisecond

const wsWriteTimeout = 5 * time.Second

// wsConn is the subset of *websocket.Conn the engine depends on, narrowed
// so tests can substitute a fake transport.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	SetWriteDeadline(time.Time) error
	Close() error
}

// Engine maintains exactly one session to a server and drives C (the PID
// controller) from measured drift samples. No package-level state: the
// embedder owns one Engine instance and passes it to every entry point.
type Engine struct {
	deviceID string
	kind     wire.Kind
	codec    wire.Codec
	clock    playback.Clock
	sink     audioio.Sink

	pid *drift.PID

	conn   wsConn
	connMu sync.Mutex

	sessionID atomic.Value // string
	offsetUs  atomic.Int64
	rttUs     atomic.Int64

	events chan Event

	pendingMu sync.Mutex
	pending   map[uint8]chan wire.TimeResponseMsg
	nextSeq   atomic.Uint32

	preparedTrack atomic.Value // string

	liveURL    string
	liveActive atomic.Bool
	liveMu     sync.Mutex
	liveCancel context.CancelFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Engine. sink may be audioio.NoopSink{} for a headless
// embedder. deviceID should be stable across reconnects but does not need
// to be globally unique.
func New(deviceID string, sink audioio.Sink, clock playback.Clock) *Engine {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	e := &Engine{
		deviceID: deviceID,
		kind:     wire.KindPeer,
		codec:    wire.ForKind(wire.KindPeer),
		clock:    clock,
		sink:     sink,
		pid:      drift.NewDefault(),
		events:   make(chan Event, 64),
		pending:  make(map[uint8]chan wire.TimeResponseMsg),
	}
	e.sessionID.Store("")
	e.preparedTrack.Store("")
	return e
}

// Events returns the channel the embedder drains for engine activity,
// replacing the source's host-callback wiring with a polled queue.
func (e *Engine) Events() <-chan Event { return e.events }

// UseDashboardCodec switches the session to the self-describing text
// encoding (negotiated via the /ws "type=dashboard" query parameter)
// instead of the default compact binary encoding. Must be called before
// Connect; calling it afterward has no effect on an already-dialed session.
func (e *Engine) UseDashboardCodec() {
	e.kind = wire.KindDashboard
	e.codec = wire.ForKind(wire.KindDashboard)
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		// A full event queue means the embedder has stopped draining: drop
		// this new event rather than block the session loop.
		log.Printf("[engine] event queue full, dropping %v", ev.Kind)
	}
}

// Connect dials addr (a "host:port" or ws(s):// URL) and starts the
// session's reader and sync-timer tasks. Connect returns once the
// connection is established and Join has been sent; it does not wait for
// Welcome.
func (e *Engine) Connect(ctx context.Context, addr string) error {
	u, err := dialURL(addr, e.kind)
	if err != nil {
		return err
	}
	if liveURL, err := liveStreamURL(addr); err == nil {
		e.liveURL = liveURL
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("engine: dial %s: %w", u, err)
	}

	e.connMu.Lock()
	e.conn = conn
	e.connMu.Unlock()

	if err := e.send(wire.ClientMessage{Type: wire.TypeJoin, Join: &wire.JoinMsg{DeviceID: e.deviceID}}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("engine: send join: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(2)
	go e.readLoop(runCtx, conn)
	go e.syncLoop(runCtx)

	return nil
}

// Disconnect closes the session and stops background tasks.
func (e *Engine) Disconnect() {
	e.stopLiveStream()
	if e.cancel != nil {
		e.cancel()
	}
	e.connMu.Lock()
	conn := e.conn
	e.conn = nil
	e.connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	e.wg.Wait()
}

func dialURL(addr string, kind wire.Kind) (string, error) {
	if hasScheme(addr) {
		u, err := url.Parse(addr)
		if err != nil {
			return "", fmt.Errorf("engine: invalid address %q: %w", addr, err)
		}
		if u.Scheme == "http" {
			u.Scheme = "ws"
		} else if u.Scheme == "https" {
			u.Scheme = "wss"
		}
		u.Path = "/ws"
		applyKindQuery(u, kind)
		return u.String(), nil
	}
	u := &url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	applyKindQuery(u, kind)
	return u.String(), nil
}

func applyKindQuery(u *url.URL, kind wire.Kind) {
	if kind == wire.KindDashboard {
		q := u.Query()
		q.Set("type", "dashboard")
		u.RawQuery = q.Encode()
	}
}

func hasScheme(addr string) bool {
	u, err := url.Parse(addr)
	return err == nil && u.Scheme != ""
}

func (e *Engine) send(msg wire.ClientMessage) error {
	data, err := e.codec.EncodeClient(msg)
	if err != nil {
		return fmt.Errorf("encode client message: %w", err)
	}

	e.connMu.Lock()
	conn := e.conn
	e.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("engine: not connected")
	}

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	frameType := websocket.BinaryMessage
	if e.kind == wire.KindDashboard {
		frameType = websocket.TextMessage
	}
	return conn.WriteMessage(frameType, data)
}

func (e *Engine) readLoop(ctx context.Context, conn wsConn) {
	defer e.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			e.emit(Event{Kind: EventDisconnected, Reason: err.Error()})
			return
		}

		msg, err := e.codec.DecodeServer(data)
		if err != nil {
			e.emit(Event{Kind: EventDecodeDropped, Reason: err.Error()})
			continue
		}
		e.handleServerMessage(msg)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (e *Engine) handleServerMessage(msg wire.ServerMessage) {
	switch msg.Type {
	case wire.TypeWelcome:
		if msg.Welcome != nil {
			e.sessionID.Store(msg.Welcome.SessionID)
			e.emit(Event{Kind: EventConnected, SessionID: msg.Welcome.SessionID})
		}
	case wire.TypeTimeResponse:
		if msg.TimeResponse != nil {
			e.routeTimeResponse(*msg.TimeResponse)
		}
	case wire.TypePlayCommand:
		if msg.PlayCommand != nil {
			e.handlePlayCommand(*msg.PlayCommand)
		}
	case wire.TypePauseCommand:
		if msg.PauseCommand != nil {
			e.handlePauseCommand(*msg.PauseCommand)
		}
	case wire.TypeSyncRequired:
		go e.Sync(context.Background())
	}
}

func (e *Engine) routeTimeResponse(resp wire.TimeResponseMsg) {
	e.pendingMu.Lock()
	ch, ok := e.pending[resp.Seq]
	if ok {
		delete(e.pending, resp.Seq)
	}
	e.pendingMu.Unlock()
	if ok {
		ch <- resp
	}
}

// localNowUs reads the local clock in microseconds.
func (e *Engine) localNowUs() uint64 {
	return e.clock.NowMicros()
}

// Offset returns the engine's current clock-offset estimate in
// microseconds (server_time - client_time).
func (e *Engine) Offset() int64 { return e.offsetUs.Load() }

// RTT returns the most recently measured round-trip time in microseconds.
func (e *Engine) RTT() int64 { return e.rttUs.Load() }
