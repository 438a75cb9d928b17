package deploy

import (
	"errors"
	"fmt"
)

// ErrorKind positions a failure in the deployment taxonomy so the CLI
// can map it to a distinct exit code.
type ErrorKind int

const (
	// KindInvalidInput rejects the request before any cloud call.
	KindInvalidInput ErrorKind = iota
	// KindCloud is a pre-mutation cloud failure (resolve or register).
	KindCloud
	// KindDeployFailed covers post-mutation failures: a failed service
	// update or a stability timeout.
	KindDeployFailed
	// KindHealthCheck means tasks failed the post-stability health check.
	KindHealthCheck
	// KindRollbackFailed means the rollback did not go through; the
	// service needs manual intervention.
	KindRollbackFailed
)

// Error is a deployment failure with its kind and originating step.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err. The second return is false
// when err did not originate in this package.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
