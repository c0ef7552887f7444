package ratelimit

// DeniedError is the error form of a failed Check, for call paths that
// propagate admission decisions as errors. It is a policy decision, not an
// upstream failure, and handlers map it to HTTP 429.
type DeniedError struct {
	Resource string
	Reason   string
}

func (e *DeniedError) Error() string { return e.Reason }
