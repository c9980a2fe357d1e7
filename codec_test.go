package spotmicro

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONCodecEventRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		topic Topic
		msg   any
	}{
		{"MotionInput", TopicMotionInput, MotionInputMsg{Lx: 0.1, Ly: 0.2, Rx: 0.3, Ry: 0.4, H: 0.5, S: 0.6, S1: 0.7}},
		{"MotionMode", TopicMotionMode, MotionModeMsg{Mode: 2}},
		{"MotionAngles", TopicMotionAngles, MotionAnglesMsg{Angles: [12]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}},
		{"Imu", TopicImu, ImuMsg{Yaw: 1, Pitch: 2, Roll: 3}},
		{"Command", TopicCommand, CommandMsg{X: 10, Y: -10}},
	}
	c := NewJSONCodec()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := c.Encode(Frame{Kind: MsgEvent, Topic: tt.topic, Payload: tt.msg})
			assert.NoError(t, err)

			decoded, err := c.Decode(wire)
			assert.NoError(t, err)
			assert.Equal(t, tt.msg, decoded.Payload)
			assert.Equal(t, tt.topic, decoded.Topic)
		})
	}
}

func TestJSONCodecConnectDisconnect(t *testing.T) {
	c := NewJSONCodec()
	wire, err := c.Encode(Frame{Kind: MsgConnect, Topics: []Topic{TopicImu, TopicMotionAngles}})
	assert.NoError(t, err)

	decoded, err := c.Decode(wire)
	assert.NoError(t, err)
	assert.Equal(t, MsgConnect, decoded.Kind)
	assert.Equal(t, []Topic{TopicImu, TopicMotionAngles}, decoded.Topics)
}

func TestJSONCodecRejectsUnknownTopic(t *testing.T) {
	c := NewJSONCodec()
	wire, err := c.Encode(Frame{Kind: MsgEvent, Topic: topicCount, Payload: 1})
	assert.NoError(t, err)

	_, err = c.Decode(wire)
	assert.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindTopicUnknown, kind)
}

func TestJSONCodecRejectsOutOfRangeKind(t *testing.T) {
	c := NewJSONCodec()
	_, err := c.Decode([]byte(`{"kind":99}`))
	assert.Error(t, err)
}

func TestBinaryCodecEventRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		topic Topic
		msg   any
	}{
		{"MotionInput", TopicMotionInput, MotionInputMsg{Lx: 0.1, Ly: 0.2, Rx: 0.3, Ry: 0.4, H: 0.5, S: 0.6, S1: 0.7}},
		{"MotionAngles", TopicMotionAngles, MotionAnglesMsg{Angles: [12]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}},
		{"Imu", TopicImu, ImuMsg{Yaw: 1, Pitch: -2, Roll: 3.5}},
		{"Command", TopicCommand, CommandMsg{X: 10, Y: -10}},
	}
	c := NewBinaryCodec()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := c.Encode(Frame{Kind: MsgEvent, Topic: tt.topic, Payload: tt.msg})
			assert.NoError(t, err)

			decoded, err := c.Decode(wire)
			assert.NoError(t, err)
			assert.Equal(t, tt.msg, decoded.Payload, "binary round-trip is exact: float64 fields on the wire")
			assert.Equal(t, tt.topic, decoded.Topic)
		})
	}
}

func TestBinaryCodecPingPong(t *testing.T) {
	c := NewBinaryCodec()
	wire, err := c.Encode(Frame{Kind: MsgPing})
	assert.NoError(t, err)
	assert.Equal(t, []byte{byte(MsgPing)}, wire)

	decoded, err := c.Decode(wire)
	assert.NoError(t, err)
	assert.Equal(t, MsgPing, decoded.Kind)
}

func TestBinaryCodecRejectsTruncatedFrame(t *testing.T) {
	c := NewBinaryCodec()
	_, err := c.Decode(nil)
	assert.Error(t, err)

	_, err = c.Decode([]byte{byte(MsgEvent)})
	assert.Error(t, err)
}

func TestBinaryCodecConnectDisconnect(t *testing.T) {
	c := NewBinaryCodec()
	wire, err := c.Encode(Frame{Kind: MsgDisconnect, Topics: []Topic{TopicServoAngles}})
	assert.NoError(t, err)

	decoded, err := c.Decode(wire)
	assert.NoError(t, err)
	assert.Equal(t, MsgDisconnect, decoded.Kind)
	assert.Equal(t, []Topic{TopicServoAngles}, decoded.Topics)
}
