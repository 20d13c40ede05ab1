package session

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rustyguts/syncradio/internal/wire"
)

// WSHandler upgrades /ws requests and runs the per-session lifecycle,
// grounded on bken's internal/ws/handler.go (upgrade, hello/accept, dual
// read/write loop, teardown on defer).
type WSHandler struct {
	server   *Server
	upgrader websocket.Upgrader
}

// NewWSHandler binds a websocket handler to server.
func NewWSHandler(server *Server) *WSHandler {
	return &WSHandler{
		server: server,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Register binds the /ws route on an Echo router.
func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.handle)
}

func (h *WSHandler) handle(c echo.Context) error {
	remoteAddr := c.RealIP()
	kind := wire.NegotiateKind(c.QueryParam("type"))

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("ws upgrade failed", "remote", remoteAddr, "err", err)
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	h.serveConn(conn, remoteAddr, kind)
	return nil
}

const wsWriteTimeout = 5 * time.Second

func wsMessageType(k wire.Kind) int {
	if k == wire.KindDashboard {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

func (h *WSHandler) serveConn(conn *websocket.Conn, remoteAddr string, kind wire.Kind) {
	defer conn.Close()

	codec := wire.ForKind(kind)
	peer, welcome, catchUp := h.server.Accept(remoteAddr, kind)
	defer h.server.Teardown(peer.SessionID)

	frameType := wsMessageType(kind)

	if err := writeEncoded(conn, frameType, codec, welcome); err != nil {
		slog.Debug("ws write welcome failed", "session_id", peer.SessionID, "err", err)
		return
	}
	if catchUp != nil {
		if err := writeEncoded(conn, frameType, codec, *catchUp); err != nil {
			slog.Debug("ws write catch-up failed", "session_id", peer.SessionID, "err", err)
			return
		}
	}

	sub := h.server.SubscribeControl()
	defer sub.Close()
	outgoing := make(chan wire.ServerMessage, 16)
	stopPump := make(chan struct{})
	go pumpControlBus(sub, outgoing, stopPump)
	defer close(stopPump)

	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case msg, ok := <-peer.Unicast:
				if !ok {
					return
				}
				if err := writeEncoded(conn, frameType, codec, msg); err != nil {
					writeErr <- err
					return
				}
			case msg := <-outgoing:
				if err := writeEncoded(conn, frameType, codec, msg); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws unexpected close", "session_id", peer.SessionID, "err", err)
			}
			return
		}

		msg, err := codec.DecodeClient(data)
		if err != nil {
			slog.Warn("ws decode error, dropping frame", "session_id", peer.SessionID, "err", err)
			continue
		}
		h.server.HandleInbound(peer, msg)

		select {
		case werr := <-writeErr:
			slog.Debug("ws write error", "session_id", peer.SessionID, "err", werr)
			return
		default:
		}
	}
}

// pumpControlBus drains subscription into a regular channel so the outgoing
// write loop can select over it alongside the peer's unicast channel.
func pumpControlBus(sub interface {
	Next() (wire.ServerMessage, bool, bool)
}, out chan<- wire.ServerMessage, stop <-chan struct{}) {
	for {
		msg, _, ok := sub.Next()
		if !ok {
			return
		}
		select {
		case out <- msg:
		case <-stop:
			return
		}
	}
}

func writeEncoded(conn *websocket.Conn, frameType int, codec wire.Codec, msg wire.ServerMessage) error {
	data, err := codec.EncodeServer(msg)
	if err != nil {
		return fmt.Errorf("encode server message: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(frameType, data)
}
