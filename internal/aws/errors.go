package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// ErrNotFound marks a named cluster, service, task definition or log
// group that does not exist. Callers test with errors.Is.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err represents a missing resource, either
// our own sentinel or a provider not-found fault.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ClusterNotFoundException",
		"ServiceNotFoundException",
		"ResourceNotFoundException",
		"TargetGroupNotFound":
		return true
	case "ClientException":
		// ECS reports a missing task definition as a generic client fault.
		return strings.Contains(apiErr.ErrorMessage(), "Unable to describe task definition")
	}
	return false
}

// IsAccessDenied reports whether err is a permission failure rather than
// a transient or not-found one.
func IsAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation":
		return true
	}
	return false
}
