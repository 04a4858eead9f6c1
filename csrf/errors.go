package csrf

import "log/slog"

// StatusTokenInvalid is the status returned for a failed check. It is the
// non-standard 419 used by Laravel-style frameworks for an expired page.
const StatusTokenInvalid = 419

// Reason tells why verification failed.
type Reason int

const (
	// MissingCookie: the request carried no token cookie.
	MissingCookie Reason = iota + 1
	// Mismatch: the submitted token was empty or differed from the cookie.
	Mismatch
	// BadOrigin: Origin/Referer did not match the allowed host.
	BadOrigin
)

func (r Reason) String() string {
	switch r {
	case MissingCookie:
		return "missing_cookie"
	case Mismatch:
		return "mismatch"
	case BadOrigin:
		return "bad_origin"
	default:
		return "unknown"
	}
}

// Error is returned by the Protector when a request fails verification. The
// message is the same for every reason; Reason is for logs and callers.
type Error struct {
	Reason Reason
	cause  error
}

// Targets for errors.Is. The Protector never returns these values itself, so
// changing a returned *Error cannot affect other requests.
var (
	ErrMissingCookie = &Error{Reason: MissingCookie}
	ErrMismatch      = &Error{Reason: Mismatch}
	ErrBadOrigin     = &Error{Reason: BadOrigin}
)

func (e *Error) Error() string { return "CSRF token is invalid" }

// HTTPStatus implements pipeline.HTTPError.
func (e *Error) HTTPStatus() int { return StatusTokenInvalid }

// Is matches any *Error with the same Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

func (e *Error) Unwrap() error { return e.cause }

// LogValue implements slog.LogValuer.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("reason", e.Reason.String())}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	return slog.GroupValue(attrs...)
}
