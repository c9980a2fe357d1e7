package spotmicro

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// Frame is the decoded form of a wire message: a heterogeneous array
// `[msg_kind, topic_id, payload]` per §6. Topics carries the subscribed/
// unsubscribed topic list for Connect/Disconnect frames.
type Frame struct {
	Kind    MsgKind
	Topic   Topic
	Topics  []Topic
	Payload any
}

// Codec encodes and decodes one wire format. Exactly one is selected at
// adapter construction time (never a build tag, since this is
// a server binary and both formats need to coexist for WS vs BLE
// clients); semantics of the two implementations are identical.
type Codec interface {
	Encode(f Frame) ([]byte, error)
	Decode(b []byte) (Frame, error)
}

// decodeError builds a *CodeError of KindDecodeError, matching §4.2's
// "frame shorter than two elements / kind out of range / payload schema
// mismatch" failure list.
func decodeError(cause error, msg string) error {
	return newCodeError(KindDecodeError, cause, msg)
}

// jsonCodec is the human-readable format, the default for the WebSocket
// adapter. It never allocates beyond encoding/json's own bound.
type jsonCodec struct{}

func NewJSONCodec() Codec { return jsonCodec{} }

type jsonFrame struct {
	Kind    MsgKind `json:"kind"`
	Topic   *Topic  `json:"topic,omitempty"`
	Topics  []Topic `json:"topics,omitempty"`
	Payload any     `json:"payload,omitempty"`
}

func (jsonCodec) Encode(f Frame) ([]byte, error) {
	jf := jsonFrame{Kind: f.Kind}
	switch f.Kind {
	case MsgEvent:
		jf.Topic = &f.Topic
		jf.Payload = f.Payload
		if m, ok := f.Payload.(MotionModeMsg); ok {
			jf.Payload = m.Mode
		} else if floats, err := floatsFor(f.Topic, f.Payload); err == nil {
			jf.Payload = floats
		}
	case MsgConnect, MsgDisconnect:
		jf.Topics = f.Topics
	}
	b, err := json.Marshal(jf)
	if err != nil {
		return nil, errors.Wrap(err, "json encode")
	}
	return b, nil
}

func (jsonCodec) Decode(b []byte) (Frame, error) {
	var jf jsonFrame
	if err := json.Unmarshal(b, &jf); err != nil {
		return Frame{}, decodeError(err, "json decode")
	}
	if jf.Kind > MsgPong {
		return Frame{}, decodeError(nil, "message kind out of range")
	}
	f := Frame{Kind: jf.Kind, Topics: jf.Topics}
	if jf.Topic != nil {
		f.Topic = *jf.Topic
	}
	if jf.Kind == MsgEvent {
		payload, err := decodeEventPayload(f.Topic, jf.Payload)
		if err != nil {
			return Frame{}, err
		}
		f.Payload = payload
	}
	return f, nil
}

// decodeEventPayload re-marshals the generic JSON payload into the
// topic's concrete message type, enforcing §4.2's "payload must match its
// topic's schema" rule without reflection: the switch is a closed,
// compile-time map from Topic to Go type, exactly the registry table §9
// asks for.
func decodeEventPayload(topic Topic, raw any) (any, error) {
	if !topic.Valid() {
		return nil, newCodeError(KindTopicUnknown, nil, "unknown topic id")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, decodeError(err, "re-marshal payload")
	}
	switch topic {
	case TopicMotionInput:
		var arr [7]float64
		if err := json.Unmarshal(b, &arr); err != nil {
			return nil, decodeError(err, "MotionInput payload")
		}
		return MotionInputMsg{Lx: arr[0], Ly: arr[1], Rx: arr[2], Ry: arr[3], H: arr[4], S: arr[5], S1: arr[6]}, nil
	case TopicMotionMode:
		var mode int
		if err := json.Unmarshal(b, &mode); err != nil {
			return nil, decodeError(err, "MotionMode payload")
		}
		return MotionModeMsg{Mode: mode}, nil
	case TopicMotionPosition:
		var arr [6]float64
		if err := json.Unmarshal(b, &arr); err != nil {
			return nil, decodeError(err, "MotionPosition payload")
		}
		return MotionPositionMsg{Omega: arr[0], Phi: arr[1], Psi: arr[2], Xm: arr[3], Ym: arr[4], Zm: arr[5]}, nil
	case TopicMotionAngles:
		var arr [12]float64
		if err := json.Unmarshal(b, &arr); err != nil {
			return nil, decodeError(err, "MotionAngles payload")
		}
		return MotionAnglesMsg{Angles: arr}, nil
	case TopicImu:
		var arr [3]float64
		if err := json.Unmarshal(b, &arr); err != nil {
			return nil, decodeError(err, "Imu payload")
		}
		return ImuMsg{Yaw: arr[0], Pitch: arr[1], Roll: arr[2]}, nil
	case TopicServoAngles:
		var arr [12]float64
		if err := json.Unmarshal(b, &arr); err != nil {
			return nil, decodeError(err, "ServoAngles payload")
		}
		return ServoAnglesMsg{Angles: arr}, nil
	case TopicCommand:
		var arr [2]float64
		if err := json.Unmarshal(b, &arr); err != nil {
			return nil, decodeError(err, "Command payload")
		}
		return CommandMsg{X: arr[0], Y: arr[1]}, nil
	default:
		return nil, newCodeError(KindTopicUnknown, nil, "unhandled topic")
	}
}

// binaryCodec is the compact fixed-width format for the BLE adapter's
// small MTU: one byte kind, one byte topic (when applicable), one byte
// topic-list length (Connect/Disconnect), then big-endian float64 fields.
type binaryCodec struct{}

func NewBinaryCodec() Codec { return binaryCodec{} }

func (binaryCodec) Encode(f Frame) ([]byte, error) {
	switch f.Kind {
	case MsgPing, MsgPong:
		return []byte{byte(f.Kind)}, nil
	case MsgConnect, MsgDisconnect:
		out := make([]byte, 2+len(f.Topics))
		out[0] = byte(f.Kind)
		out[1] = byte(len(f.Topics))
		for i, t := range f.Topics {
			out[2+i] = byte(t)
		}
		return out, nil
	case MsgEvent:
		payload, err := encodeEventPayloadBinary(f.Topic, f.Payload)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2+len(payload))
		out[0] = byte(f.Kind)
		out[1] = byte(f.Topic)
		copy(out[2:], payload)
		return out, nil
	default:
		return nil, decodeError(nil, "unknown message kind")
	}
}

func (binaryCodec) Decode(b []byte) (Frame, error) {
	if len(b) < 1 {
		return Frame{}, decodeError(nil, "frame shorter than one byte")
	}
	kind := MsgKind(b[0])
	if kind > MsgPong {
		return Frame{}, decodeError(nil, "message kind out of range")
	}
	switch kind {
	case MsgPing, MsgPong:
		return Frame{Kind: kind}, nil
	case MsgConnect, MsgDisconnect:
		if len(b) < 2 {
			return Frame{}, decodeError(nil, "frame shorter than two elements")
		}
		n := int(b[1])
		if len(b) < 2+n {
			return Frame{}, decodeError(nil, "truncated topic list")
		}
		topics := make([]Topic, n)
		for i := 0; i < n; i++ {
			topics[i] = Topic(b[2+i])
		}
		return Frame{Kind: kind, Topics: topics}, nil
	case MsgEvent:
		if len(b) < 2 {
			return Frame{}, decodeError(nil, "frame shorter than two elements")
		}
		topic := Topic(b[1])
		payload, err := decodeEventPayloadBinary(topic, b[2:])
		if err != nil {
			return Frame{}, err
		}
		return Frame{Kind: kind, Topic: topic, Payload: payload}, nil
	default:
		return Frame{}, decodeError(nil, "unreachable message kind")
	}
}

func encodeEventPayloadBinary(topic Topic, payload any) ([]byte, error) {
	floats, err := floatsFor(topic, payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8*len(floats))
	for i, v := range floats {
		binary.BigEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out, nil
}

func decodeEventPayloadBinary(topic Topic, b []byte) (any, error) {
	if !topic.Valid() {
		return nil, newCodeError(KindTopicUnknown, nil, "unknown topic id")
	}
	n := expectedFloatCount(topic)
	if n < 0 {
		return nil, newCodeError(KindTopicUnknown, nil, "unhandled topic")
	}
	if len(b) < 8*n {
		return nil, decodeError(nil, "payload shorter than topic schema")
	}
	floats := make([]float64, n)
	for i := range floats {
		floats[i] = math.Float64frombits(binary.BigEndian.Uint64(b[8*i:]))
	}
	return msgFromFloats(topic, floats)
}

func expectedFloatCount(topic Topic) int {
	switch topic {
	case TopicMotionInput:
		return 7
	case TopicMotionMode:
		return 1
	case TopicMotionPosition:
		return 6
	case TopicMotionAngles, TopicServoAngles:
		return 12
	case TopicImu:
		return 3
	case TopicCommand:
		return 2
	default:
		return -1
	}
}

func floatsFor(topic Topic, payload any) ([]float64, error) {
	switch m := payload.(type) {
	case MotionInputMsg:
		return []float64{m.Lx, m.Ly, m.Rx, m.Ry, m.H, m.S, m.S1}, nil
	case MotionModeMsg:
		return []float64{float64(m.Mode)}, nil
	case MotionPositionMsg:
		return []float64{m.Omega, m.Phi, m.Psi, m.Xm, m.Ym, m.Zm}, nil
	case MotionAnglesMsg:
		return m.Angles[:], nil
	case ServoAnglesMsg:
		return m.Angles[:], nil
	case ImuMsg:
		return []float64{m.Yaw, m.Pitch, m.Roll}, nil
	case CommandMsg:
		return []float64{m.X, m.Y}, nil
	default:
		return nil, decodeError(nil, "payload does not match topic schema")
	}
}

func msgFromFloats(topic Topic, f []float64) (any, error) {
	switch topic {
	case TopicMotionInput:
		return MotionInputMsg{Lx: f[0], Ly: f[1], Rx: f[2], Ry: f[3], H: f[4], S: f[5], S1: f[6]}, nil
	case TopicMotionMode:
		return MotionModeMsg{Mode: int(f[0])}, nil
	case TopicMotionPosition:
		return MotionPositionMsg{Omega: f[0], Phi: f[1], Psi: f[2], Xm: f[3], Ym: f[4], Zm: f[5]}, nil
	case TopicMotionAngles:
		var a [12]float64
		copy(a[:], f)
		return MotionAnglesMsg{Angles: a}, nil
	case TopicServoAngles:
		var a [12]float64
		copy(a[:], f)
		return ServoAnglesMsg{Angles: a}, nil
	case TopicImu:
		return ImuMsg{Yaw: f[0], Pitch: f[1], Roll: f[2]}, nil
	case TopicCommand:
		return CommandMsg{X: f[0], Y: f[1]}, nil
	default:
		return nil, newCodeError(KindTopicUnknown, nil, "unhandled topic")
	}
}
