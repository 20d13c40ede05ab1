package wire

import (
	"encoding/json"
	"fmt"
)

// TextCodec implements the self-describing key-value encoding used by
// browser dashboards: one JSON object per frame, fields named after the
// logical message fields they carry.
type TextCodec struct{}

// textFrame is the wire shape for both directions; unused fields are omitted.
type textFrame struct {
	Type string `json:"type"`

	// Join
	DeviceID string `json:"device_id,omitempty"`

	// TimeRequest / TimeResponse
	T0  uint64 `json:"t0,omitempty"`
	T1  uint64 `json:"t1,omitempty"`
	T2  uint64 `json:"t2,omitempty"`
	Seq uint8  `json:"seq,omitempty"`

	// Telemetry
	RTT    uint64 `json:"rtt,omitempty"`
	Offset int64  `json:"offset,omitempty"`
	Drift  int64  `json:"drift,omitempty"`
	Status string `json:"status,omitempty"`

	// PlayRequest / PlayCommand
	TrackURL              string `json:"track_url,omitempty"`
	DelayMs               uint64 `json:"delay_ms,omitempty"`
	StartAtServerTime     uint64 `json:"start_at_server_time,omitempty"`
	StartAtPositionMs     uint64 `json:"start_at_position_ms,omitempty"`
	ServerTimeAtBroadcast uint64 `json:"server_time_at_broadcast,omitempty"`

	// CommandRequest
	Cmd *controlCommandJSON `json:"cmd,omitempty"`

	// Welcome
	SessionID string `json:"session_id,omitempty"`

	// PauseCommand
	ServerTime uint64 `json:"server_time,omitempty"`
}

type controlCommandJSON struct {
	Kind       string `json:"kind"`
	StartAtMs  uint64 `json:"start_at_ms,omitempty"`
	DelayMs    uint64 `json:"delay_ms,omitempty"`
	PositionMs uint64 `json:"position_ms,omitempty"`
}

func kindToJSON(k CommandKind) string {
	switch k {
	case CommandPlay:
		return "play"
	case CommandPause:
		return "pause"
	case CommandSeek:
		return "seek"
	default:
		return "unknown"
	}
}

func kindFromJSON(s string) CommandKind {
	switch s {
	case "play":
		return CommandPlay
	case "pause":
		return CommandPause
	case "seek":
		return CommandSeek
	default:
		return CommandUnknown
	}
}

func (TextCodec) EncodeClient(m ClientMessage) ([]byte, error) {
	f := textFrame{Type: m.Type.String()}
	switch m.Type {
	case TypeJoin:
		f.DeviceID = m.Join.DeviceID
	case TypeTimeRequest:
		f.T0 = m.TimeRequest.T0
		f.Seq = m.TimeRequest.Seq
	case TypeTelemetry:
		f.RTT = m.Telemetry.RTT
		f.Offset = m.Telemetry.Offset
		f.Drift = m.Telemetry.Drift
		f.Status = m.Telemetry.Status
	case TypePlayRequest:
		f.TrackURL = m.PlayRequest.TrackURL
		f.DelayMs = m.PlayRequest.DelayMs
	case TypeCommandRequest:
		c := m.CommandRequest.Cmd
		f.Cmd = &controlCommandJSON{Kind: kindToJSON(c.Kind), StartAtMs: c.StartAtMs, DelayMs: c.DelayMs, PositionMs: c.PositionMs}
	default:
		return nil, fmt.Errorf("wire: unknown client message type %v", m.Type)
	}
	return json.Marshal(f)
}

func (TextCodec) DecodeClient(raw []byte) (ClientMessage, error) {
	var f textFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return ClientMessage{}, fmt.Errorf("wire: decode text frame: %w", err)
	}
	switch f.Type {
	case TypeJoin.String():
		return ClientMessage{Type: TypeJoin, Join: &JoinMsg{DeviceID: f.DeviceID}}, nil
	case TypeTimeRequest.String():
		return ClientMessage{Type: TypeTimeRequest, TimeRequest: &TimeRequestMsg{T0: f.T0, Seq: f.Seq}}, nil
	case TypeTelemetry.String():
		return ClientMessage{Type: TypeTelemetry, Telemetry: &TelemetryMsg{RTT: f.RTT, Offset: f.Offset, Drift: f.Drift, Status: f.Status}}, nil
	case TypePlayRequest.String():
		return ClientMessage{Type: TypePlayRequest, PlayRequest: &PlayRequestMsg{TrackURL: f.TrackURL, DelayMs: f.DelayMs}}, nil
	case TypeCommandRequest.String():
		if f.Cmd == nil {
			return ClientMessage{}, fmt.Errorf("wire: command_request missing cmd")
		}
		return ClientMessage{Type: TypeCommandRequest, CommandRequest: &CommandRequestMsg{Cmd: ControlCommand{
			Kind: kindFromJSON(f.Cmd.Kind), StartAtMs: f.Cmd.StartAtMs, DelayMs: f.Cmd.DelayMs, PositionMs: f.Cmd.PositionMs,
		}}}, nil
	default:
		return ClientMessage{}, fmt.Errorf("wire: unknown client type %q", f.Type)
	}
}

func (TextCodec) EncodeServer(m ServerMessage) ([]byte, error) {
	f := textFrame{Type: m.Type.String()}
	switch m.Type {
	case TypeWelcome:
		f.SessionID = m.Welcome.SessionID
	case TypeTimeResponse:
		f.T0, f.T1, f.T2, f.Seq = m.TimeResponse.T0, m.TimeResponse.T1, m.TimeResponse.T2, m.TimeResponse.Seq
	case TypePlayCommand:
		f.TrackURL = m.PlayCommand.TrackURL
		f.StartAtServerTime = m.PlayCommand.StartAtServerTime
		f.StartAtPositionMs = m.PlayCommand.StartAtPositionMs
		f.ServerTimeAtBroadcast = m.PlayCommand.ServerTimeAtBroadcast
	case TypePauseCommand:
		f.ServerTime = m.PauseCommand.ServerTime
	case TypeSyncRequired:
		// no body
	default:
		return nil, fmt.Errorf("wire: unknown server message type %v", m.Type)
	}
	return json.Marshal(f)
}

func (TextCodec) DecodeServer(raw []byte) (ServerMessage, error) {
	var f textFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return ServerMessage{}, fmt.Errorf("wire: decode text frame: %w", err)
	}
	switch f.Type {
	case TypeWelcome.String():
		return ServerMessage{Type: TypeWelcome, Welcome: &WelcomeMsg{SessionID: f.SessionID}}, nil
	case TypeTimeResponse.String():
		return ServerMessage{Type: TypeTimeResponse, TimeResponse: &TimeResponseMsg{T0: f.T0, T1: f.T1, T2: f.T2, Seq: f.Seq}}, nil
	case TypePlayCommand.String():
		return ServerMessage{Type: TypePlayCommand, PlayCommand: &PlayCommandMsg{
			TrackURL: f.TrackURL, StartAtServerTime: f.StartAtServerTime,
			StartAtPositionMs: f.StartAtPositionMs, ServerTimeAtBroadcast: f.ServerTimeAtBroadcast,
		}}, nil
	case TypePauseCommand.String():
		return ServerMessage{Type: TypePauseCommand, PauseCommand: &PauseCommandMsg{ServerTime: f.ServerTime}}, nil
	case TypeSyncRequired.String():
		return ServerMessage{Type: TypeSyncRequired}, nil
	default:
		return ServerMessage{}, fmt.Errorf("wire: unknown server type %q", f.Type)
	}
}
