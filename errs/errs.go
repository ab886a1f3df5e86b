// Package errs defines the error kinds shared by the session and fixp
// state machines: back-pressure is always caller-visible, protocol errors
// are translated into state transitions rather than thrown, and only
// programmer errors fail loudly.
package errs

import "errors"

// Kind classifies an error the way the engine's callers need to react to it.
type Kind int

const (
	KindBackPressured Kind = iota
	KindInvalidMessage
	KindOutOfSequence
	KindUnexpectedMsgType
	KindAuthenticationRejected
	KindHeartbeatTimeout
	KindSessionDisabled
	KindUnknownSession
	KindNotConnected
	KindProgrammerError
)

func (k Kind) String() string {
	switch k {
	case KindBackPressured:
		return "BackPressured"
	case KindInvalidMessage:
		return "InvalidMessage"
	case KindOutOfSequence:
		return "OutOfSequence"
	case KindUnexpectedMsgType:
		return "UnexpectedMsgType"
	case KindAuthenticationRejected:
		return "AuthenticationRejected"
	case KindHeartbeatTimeout:
		return "HeartbeatTimeout"
	case KindSessionDisabled:
		return "SessionDisabled"
	case KindUnknownSession:
		return "UnknownSession"
	case KindNotConnected:
		return "NotConnected"
	case KindProgrammerError:
		return "ProgrammerError"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with contextual detail. It intentionally does not carry
// a stack trace or retry policy - that decision belongs to the caller, who
// has the state-machine context this package does not.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Is allows errors.Is(err, errs.BackPressured) style checks against a kind
// sentinel without allocating a *Error for comparison.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is comparisons; callers compare by Kind, not identity.
var (
	BackPressured          = &Error{Kind: KindBackPressured}
	InvalidMessage         = &Error{Kind: KindInvalidMessage}
	OutOfSequence          = &Error{Kind: KindOutOfSequence}
	UnexpectedMsgType      = &Error{Kind: KindUnexpectedMsgType}
	AuthenticationRejected = &Error{Kind: KindAuthenticationRejected}
	HeartbeatTimeout       = &Error{Kind: KindHeartbeatTimeout}
	SessionDisabled        = &Error{Kind: KindSessionDisabled}
	UnknownSession         = &Error{Kind: KindUnknownSession}
	NotConnected           = &Error{Kind: KindNotConnected}
)

// Of reports whether err is an *Error of the given kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
