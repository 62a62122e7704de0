package core

import "errors"

var (
	// ErrAuthenticationRequired is returned when a connection attempts to
	// register without a valid identity. The connection is rejected.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrUnknownConnection is returned when an operation references a
	// connection that is not registered.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrNotAMember is returned when a user attempts a room operation
	// without a live connection in that room.
	ErrNotAMember = errors.New("not a room member")
	// ErrPersistence is returned when the message store rejects or times
	// out on a write.
	ErrPersistence = errors.New("persistence failure")

	ErrBadCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrConflictedUser  = errors.New("user already exists")
)

// ErrorCode maps a domain error to the error code string reported to the
// originating connection. Errors outside the taxonomy map to "internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return "authentication_required"
	case errors.Is(err, ErrUnknownConnection):
		return "unknown_connection"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "internal"
	}
}
