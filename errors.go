package spotmicro

import "github.com/pkg/errors"

// ErrorKind classifies a controller-level failure so callers can decide
// whether to log-and-continue, degrade, or fall back to a default.
type ErrorKind int

const (
	// KindDecodeError marks a malformed inbound wire frame.
	KindDecodeError ErrorKind = iota
	// KindTopicUnknown marks a topic id outside the registered range.
	KindTopicUnknown
	// KindSubscriptionExhausted marks a bus with no free subscriber slot.
	KindSubscriptionExhausted
	// KindQueueFull marks a publish that could not enqueue.
	KindQueueFull
	// KindIoError marks a failed servo or network write.
	KindIoError
	// KindKinematicsDomain marks a NaN or out-of-range joint solution.
	KindKinematicsDomain
	// KindConfigInvalid marks a calibration or config load failure.
	KindConfigInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindDecodeError:
		return "DecodeError"
	case KindTopicUnknown:
		return "TopicUnknown"
	case KindSubscriptionExhausted:
		return "SubscriptionExhausted"
	case KindQueueFull:
		return "QueueFull"
	case KindIoError:
		return "IoError"
	case KindKinematicsDomain:
		return "KinematicsDomain"
	case KindConfigInvalid:
		return "ConfigInvalid"
	default:
		return "Unknown"
	}
}

// CodeError wraps an underlying error with a classification used by
// callers to pick a recovery policy per §7's error taxonomy.
type CodeError struct {
	Kind  ErrorKind
	cause error
}

func (e *CodeError) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *CodeError) Unwrap() error { return e.cause }

// newCodeError wraps cause with pkg/errors for stack-trace-carrying wraps
// at I/O boundaries.
func newCodeError(kind ErrorKind, cause error, msg string) *CodeError {
	return &CodeError{Kind: kind, cause: errors.Wrap(cause, msg)}
}

// KindOf reports the ErrorKind of err if it (or something it wraps) is a
// *CodeError, and false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
