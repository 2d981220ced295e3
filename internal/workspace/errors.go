package workspace

import "errors"

var (
	// ErrUnauthenticated means no identity could be established for the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNoActiveScope means no active organization could be resolved.
	ErrNoActiveScope = errors.New("no active organization scope")
	// ErrScopeMismatch means a resource belongs to a different organization
	// than the one resolved for the request.
	ErrScopeMismatch = errors.New("organization scope mismatch")
)

// Response messages for scope failures. Both contain the word "Scope" so
// calling code and tests can detect them mechanically.
const (
	MsgNoActiveScope = "Scope required: no active organization selected"
	MsgScopeMismatch = "Scope mismatch: resource belongs to another organization"
)
