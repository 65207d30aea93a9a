package failure

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// #region kinds
// Kind classifies a failure by how the batch loop must react to it.
type Kind string

const (
	// Configuration is fatal and raised before any question is processed.
	Configuration Kind = "configuration"
	// Retrieval covers similarity lookup, embedding and evidence fetch failures.
	Retrieval Kind = "retrieval"
	// ModelUnavailable is a transient transport/API condition (rate limit, 5xx, timeout).
	ModelUnavailable Kind = "model_unavailable"
	// ModelError is a permanent generation failure (bad request, auth, empty reply).
	ModelError Kind = "model_error"
	// Persistence covers result file and ledger writes.
	Persistence Kind = "persistence"
)

// #endregion kinds

// #region error
// Error wraps a cause with its Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configf builds a Configuration error from a format string.
func Configf(op, format string, args ...any) error {
	return &Error{Kind: Configuration, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// #endregion error

// #region transient
// IsTransient reports whether retrying the same call may succeed.
// ModelUnavailable is always transient; Retrieval is transient only when the
// underlying transport says so.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	k, ok := KindOf(err)
	if ok {
		switch k {
		case ModelUnavailable:
			return true
		case Configuration, ModelError, Persistence:
			return false
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// FromError also matches wrapped status errors.
	if s, ok := status.FromError(err); ok {
		return TransientCode(s.Code())
	}
	return false
}

// TransientCode reports whether a gRPC status code is worth retrying.
func TransientCode(c codes.Code) bool {
	switch c {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

// TransientHTTP reports whether an HTTP status code is worth retrying.
func TransientHTTP(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// #endregion transient
