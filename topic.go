package spotmicro

// Topic is the closed set of wire topics, mirroring the source's
// TOPIC_LIST X-macro / TopicTraits template specialization: one code per
// payload type, fixed at package init, never discovered through runtime
// reflection.
type Topic uint8

const (
	TopicMotionInput Topic = iota
	TopicMotionMode
	TopicMotionPosition
	TopicMotionAngles
	TopicImu
	TopicServoAngles
	TopicCommand // legacy [x,y] wire form
	TopicMag
	TopicBaro
	TopicSonar
	topicCount
)

func (t Topic) String() string {
	switch t {
	case TopicMotionInput:
		return "MotionInput"
	case TopicMotionMode:
		return "MotionMode"
	case TopicMotionPosition:
		return "MotionPosition"
	case TopicMotionAngles:
		return "MotionAngles"
	case TopicImu:
		return "Imu"
	case TopicServoAngles:
		return "ServoAngles"
	case TopicCommand:
		return "Command"
	case TopicMag:
		return "Mag"
	case TopicBaro:
		return "Baro"
	case TopicSonar:
		return "Sonar"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is one of the registered topics.
func (t Topic) Valid() bool { return t < topicCount }

// MsgKind tags a wire frame's shape, per §6: Connect/Disconnect carry a
// list of topic ids, Event carries one topic id plus payload, Ping/Pong
// carry nothing else.
type MsgKind uint8

const (
	MsgConnect MsgKind = iota
	MsgDisconnect
	MsgEvent
	MsgPing
	MsgPong
)

// MotionInputMsg is operator stick/trigger input, range normalized to
// approximately [-1,1] (legacy wire form uses approximately [-128,127]).
type MotionInputMsg struct {
	Lx, Ly, Rx, Ry float64
	H, S, S1       float64
}

// MotionModeMsg selects the gait state machine's target mode.
type MotionModeMsg struct {
	Mode int
}

// MotionPositionMsg is the commanded body pose, mirroring BodyState's
// orientation/translation fields.
type MotionPositionMsg struct {
	Omega, Phi, Psi float64
	Xm, Ym, Zm      float64
}

// MotionAnglesMsg is the twelve solved joint angles in degrees, ordered
// four legs x {hip, upper, lower}.
type MotionAnglesMsg struct {
	Angles [12]float64
}

// ImuMsg is a yaw/pitch/roll sample in degrees.
type ImuMsg struct {
	Yaw, Pitch, Roll float64
}

// ServoAnglesMsg is the angle vector actually written to the servo driver
// after smoothing, as opposed to MotionAnglesMsg's solved target.
type ServoAnglesMsg struct {
	Angles [12]float64
}

// CommandMsg is the legacy two-axis wire form predating MotionInputMsg.
type CommandMsg struct {
	X, Y float64
}

// MagSample, BaroSample and SonarSample are the remaining sensor reader
// payloads (§3 Data Model expansion): periodic reads published on their
// own topics by the Sensor Readers component via the same generic
// Subscribe/Publish plumbing as the core topics above. They are not part
// of the binary codec's fixed-width table, so the binary codec refuses to
// encode them; the JSON codec encodes them as plain JSON objects when an
// adapter fans them out. Neither codec decodes them, so of the sensor
// payloads only ImuMsg is accepted from the wire, per §6's payload table.
type MagSample struct {
	X, Y, Z float64
}

type BaroSample struct {
	PressurePa, TemperatureC, AltitudeM float64
}

type SonarSample struct {
	DistanceM float64
}
