package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// BinaryCodec implements the compact length-prefixed tagged-union encoding
// used by native peers. Frame layout:
//
//	[0:4]  uint32 body length (bytes following this field)
//	[4]    uint8  type tag
//	[5:]   body, field order fixed per type
//
// Strings are encoded as a uint16 byte length followed by the UTF-8 bytes.
type BinaryCodec struct{}

func putString(buf *bytes.Buffer, s string) {
	b := []byte(s)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func getString(r *bytes.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func getUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func putInt64(buf *bytes.Buffer, v int64) { putUint64(buf, uint64(v)) }

func getInt64(r *bytes.Reader) (int64, error) {
	v, err := getUint64(r)
	return int64(v), err
}

func putUint8(buf *bytes.Buffer, v uint8) { buf.WriteByte(v) }

func getUint8(r *bytes.Reader) (uint8, error) {
	return r.ReadByte()
}

func frame(tag Type, body []byte) []byte {
	out := make([]byte, 0, 5+len(body))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	out = append(out, lenBuf[:]...)
	out = append(out, byte(tag))
	out = append(out, body...)
	return out
}

// unframe splits a raw frame into its type tag and body reader, validating
// the declared length against what was actually supplied.
func unframe(raw []byte) (Type, *bytes.Reader, error) {
	if len(raw) < 5 {
		return 0, nil, fmt.Errorf("wire: frame too short: %d bytes", len(raw))
	}
	n := binary.BigEndian.Uint32(raw[0:4])
	if int(n) != len(raw)-5 {
		return 0, nil, fmt.Errorf("wire: length mismatch: header says %d, got %d", n, len(raw)-5)
	}
	return Type(raw[4]), bytes.NewReader(raw[5:]), nil
}

func (BinaryCodec) EncodeClient(m ClientMessage) ([]byte, error) {
	var buf bytes.Buffer
	switch m.Type {
	case TypeJoin:
		putString(&buf, m.Join.DeviceID)
	case TypeTimeRequest:
		putUint64(&buf, m.TimeRequest.T0)
		putUint8(&buf, m.TimeRequest.Seq)
	case TypeTelemetry:
		putUint64(&buf, m.Telemetry.RTT)
		putInt64(&buf, m.Telemetry.Offset)
		putInt64(&buf, m.Telemetry.Drift)
		putString(&buf, m.Telemetry.Status)
	case TypePlayRequest:
		putString(&buf, m.PlayRequest.TrackURL)
		putUint64(&buf, m.PlayRequest.DelayMs)
	case TypeCommandRequest:
		putUint8(&buf, uint8(m.CommandRequest.Cmd.Kind))
		putUint64(&buf, m.CommandRequest.Cmd.StartAtMs)
		putUint64(&buf, m.CommandRequest.Cmd.DelayMs)
		putUint64(&buf, m.CommandRequest.Cmd.PositionMs)
	default:
		return nil, fmt.Errorf("wire: unknown client message type %v", m.Type)
	}
	return frame(m.Type, buf.Bytes()), nil
}

func (BinaryCodec) DecodeClient(raw []byte) (ClientMessage, error) {
	tag, r, err := unframe(raw)
	if err != nil {
		return ClientMessage{}, err
	}
	switch tag {
	case TypeJoin:
		deviceID, err := getString(r)
		if err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{Type: TypeJoin, Join: &JoinMsg{DeviceID: deviceID}}, nil
	case TypeTimeRequest:
		t0, err := getUint64(r)
		if err != nil {
			return ClientMessage{}, err
		}
		seq, err := getUint8(r)
		if err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{Type: TypeTimeRequest, TimeRequest: &TimeRequestMsg{T0: t0, Seq: seq}}, nil
	case TypeTelemetry:
		rtt, err := getUint64(r)
		if err != nil {
			return ClientMessage{}, err
		}
		offset, err := getInt64(r)
		if err != nil {
			return ClientMessage{}, err
		}
		drift, err := getInt64(r)
		if err != nil {
			return ClientMessage{}, err
		}
		status, err := getString(r)
		if err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{Type: TypeTelemetry, Telemetry: &TelemetryMsg{RTT: rtt, Offset: offset, Drift: drift, Status: status}}, nil
	case TypePlayRequest:
		trackURL, err := getString(r)
		if err != nil {
			return ClientMessage{}, err
		}
		delayMs, err := getUint64(r)
		if err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{Type: TypePlayRequest, PlayRequest: &PlayRequestMsg{TrackURL: trackURL, DelayMs: delayMs}}, nil
	case TypeCommandRequest:
		kind, err := getUint8(r)
		if err != nil {
			return ClientMessage{}, err
		}
		startAtMs, err := getUint64(r)
		if err != nil {
			return ClientMessage{}, err
		}
		delayMs, err := getUint64(r)
		if err != nil {
			return ClientMessage{}, err
		}
		positionMs, err := getUint64(r)
		if err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{Type: TypeCommandRequest, CommandRequest: &CommandRequestMsg{Cmd: ControlCommand{
			Kind: CommandKind(kind), StartAtMs: startAtMs, DelayMs: delayMs, PositionMs: positionMs,
		}}}, nil
	default:
		return ClientMessage{}, fmt.Errorf("wire: unknown client tag %d", tag)
	}
}

func (BinaryCodec) EncodeServer(m ServerMessage) ([]byte, error) {
	var buf bytes.Buffer
	switch m.Type {
	case TypeWelcome:
		putString(&buf, m.Welcome.SessionID)
	case TypeTimeResponse:
		putUint64(&buf, m.TimeResponse.T0)
		putUint64(&buf, m.TimeResponse.T1)
		putUint64(&buf, m.TimeResponse.T2)
		putUint8(&buf, m.TimeResponse.Seq)
	case TypePlayCommand:
		putString(&buf, m.PlayCommand.TrackURL)
		putUint64(&buf, m.PlayCommand.StartAtServerTime)
		putUint64(&buf, m.PlayCommand.StartAtPositionMs)
		putUint64(&buf, m.PlayCommand.ServerTimeAtBroadcast)
	case TypePauseCommand:
		putUint64(&buf, m.PauseCommand.ServerTime)
	case TypeSyncRequired:
		// no body
	default:
		return nil, fmt.Errorf("wire: unknown server message type %v", m.Type)
	}
	return frame(m.Type, buf.Bytes()), nil
}

func (BinaryCodec) DecodeServer(raw []byte) (ServerMessage, error) {
	tag, r, err := unframe(raw)
	if err != nil {
		return ServerMessage{}, err
	}
	switch tag {
	case TypeWelcome:
		sessionID, err := getString(r)
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{Type: TypeWelcome, Welcome: &WelcomeMsg{SessionID: sessionID}}, nil
	case TypeTimeResponse:
		t0, err := getUint64(r)
		if err != nil {
			return ServerMessage{}, err
		}
		t1, err := getUint64(r)
		if err != nil {
			return ServerMessage{}, err
		}
		t2, err := getUint64(r)
		if err != nil {
			return ServerMessage{}, err
		}
		seq, err := getUint8(r)
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{Type: TypeTimeResponse, TimeResponse: &TimeResponseMsg{T0: t0, T1: t1, T2: t2, Seq: seq}}, nil
	case TypePlayCommand:
		trackURL, err := getString(r)
		if err != nil {
			return ServerMessage{}, err
		}
		startAt, err := getUint64(r)
		if err != nil {
			return ServerMessage{}, err
		}
		startPos, err := getUint64(r)
		if err != nil {
			return ServerMessage{}, err
		}
		broadcastAt, err := getUint64(r)
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{Type: TypePlayCommand, PlayCommand: &PlayCommandMsg{
			TrackURL: trackURL, StartAtServerTime: startAt, StartAtPositionMs: startPos, ServerTimeAtBroadcast: broadcastAt,
		}}, nil
	case TypePauseCommand:
		serverTime, err := getUint64(r)
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{Type: TypePauseCommand, PauseCommand: &PauseCommandMsg{ServerTime: serverTime}}, nil
	case TypeSyncRequired:
		return ServerMessage{Type: TypeSyncRequired}, nil
	default:
		return ServerMessage{}, fmt.Errorf("wire: unknown server tag %d", tag)
	}
}
