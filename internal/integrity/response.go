package integrity

import "fmt"

// Response is the logging category reported to the metrics pipeline.
// The numeric values are part of the metrics schema and must not change.
type Response int32

const (
	ResponseUnknown      Response = 0
	ResponseAllowed      Response = 1
	ResponseRejected     Response = 2
	ResponseForceAllowed Response = 3
)

func (r Response) String() string {
	switch r {
	case ResponseAllowed:
		return "ALLOWED"
	case ResponseRejected:
		return "REJECTED"
	case ResponseForceAllowed:
		return "FORCE_ALLOWED"
	case ResponseUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("Response(%d)", int32(r))
	}
}

// Valid reports whether r is one of the codes a Result can map to.
func (r Response) Valid() bool {
	return r == ResponseAllowed || r == ResponseRejected || r == ResponseForceAllowed
}

// LoggingResponse maps the outcome to its logging category. The effect is
// checked before rule presence.
func (r Result) LoggingResponse() Response {
	if r.effect == EffectDeny {
		return ResponseRejected
	}
	if r.rule != nil {
		return ResponseForceAllowed
	}
	return ResponseAllowed
}
