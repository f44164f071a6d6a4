package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/teamboard/internal/session"
)

// Kind classifies the result of a gateway call.
type Kind int

const (
	// Unauthenticated means the session guard refused to dispatch.
	Unauthenticated Kind = iota
	// EmptySuccess is a 2xx response without a body (or a 204).
	EmptySuccess
	// DecodedSuccess is a 2xx response whose body decoded as JSON.
	DecodedSuccess
	// RawSuccess is a 2xx response whose body was not decodable; the text
	// is kept in Message.
	RawSuccess
	// Failure is a 4xx or 5xx response.
	Failure
	// NetworkFailure means no HTTP response was obtained.
	NetworkFailure
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case EmptySuccess:
		return "empty-success"
	case DecodedSuccess:
		return "decoded-success"
	case RawSuccess:
		return "raw-success"
	case Failure:
		return "failure"
	case NetworkFailure:
		return "network-failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the typed result of Client.Send.
type Outcome struct {
	Kind       Kind
	StatusCode int

	// Message holds the body text for Failure and RawSuccess.
	Message string

	// Cause is set for NetworkFailure and Unauthenticated.
	Cause error

	// RequestID is the X-Request-ID sent with the call.
	RequestID string
}

// OK reports whether the call succeeded in any of the success variants.
func (o Outcome) OK() bool {
	switch o.Kind {
	case EmptySuccess, DecodedSuccess, RawSuccess:
		return true
	}
	return false
}

// Rejected reports a 4xx failure.
func (o Outcome) Rejected() bool {
	return o.Kind == Failure && o.StatusCode >= 400 && o.StatusCode < 500
}

// Fault reports a 5xx failure.
func (o Outcome) Fault() bool {
	return o.Kind == Failure && o.StatusCode >= 500
}

// Err converts a failed outcome into an error: session.ErrReauthenticate,
// *RemoteError or *NetworkError. Successful outcomes return nil.
func (o Outcome) Err() error {
	switch o.Kind {
	case Unauthenticated:
		return session.ErrReauthenticate
	case Failure:
		return &RemoteError{StatusCode: o.StatusCode, Message: o.Message}
	case NetworkFailure:
		return &NetworkError{Cause: o.Cause}
	}
	return nil
}

// GenericNetworkMessage is shown when a call failed without a server
// message.
const GenericNetworkMessage = "The server could not be reached. Your change was reverted."

// Notice returns the user-facing message for a failed outcome: the server's
// text when there is one, a generic message otherwise.
func (o Outcome) Notice(fallback string) string {
	switch o.Kind {
	case Failure:
		if o.Message != "" {
			return o.Message
		}
		if fallback != "" {
			return fallback
		}
		return http.StatusText(o.StatusCode)
	case NetworkFailure:
		return GenericNetworkMessage
	}
	return ""
}

// RemoteError is a non-2xx response from the remote service.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("remote error (%d): %s", e.StatusCode, e.Message)
}

// NetworkError is a transport-level failure.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// IsStatus reports whether err is a RemoteError with the given status.
func IsStatus(err error, status int) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == status
}
