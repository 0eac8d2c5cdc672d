package objectgate

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Error types
var (
	// ErrInvalidBucket indicates a bucket outside the configured allow-list
	ErrInvalidBucket = errors.New("invalid bucket")

	// ErrInvalidKey indicates a missing or malformed object key
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidArgument indicates any other malformed caller input
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates the object does not exist
	ErrNotFound = errors.New("object not found")

	// ErrPermissionDenied indicates a DENY decision
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnauthenticated indicates the caller identity could not be resolved
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrMetadataDecode indicates an envelope field that is present but malformed
	ErrMetadataDecode = errors.New("metadata decode failed")

	// ErrUpstream indicates an object store, ACL store or decision service failure
	ErrUpstream = errors.New("upstream failure")
)

// Kind classifies an error for status reporting.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidBucket
	KindInvalidKey
	KindInvalidArgument
	KindUnauthenticated
	KindNotFound
	KindPermissionDenied
	KindMetadataDecode
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindInvalidBucket:
		return "InvalidBucket"
	case KindInvalidKey:
		return "InvalidKey"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindNotFound:
		return "NotFound"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindMetadataDecode:
		return "MetadataDecodeError"
	case KindUpstream:
		return "UpstreamFailure"
	default:
		return "Unknown"
	}
}

// Code returns the canonical status code for the kind.
func (k Kind) Code() int {
	switch k {
	case KindInvalidBucket, KindInvalidKey, KindInvalidArgument:
		return CodeBadRequest
	case KindUnauthenticated:
		return CodeUnauthenticated
	case KindNotFound:
		return CodeNotFound
	case KindPermissionDenied:
		return CodePermissionDenied
	default:
		return CodeInternal
	}
}

// OperationError represents a failure of one pipeline step on one object
type OperationError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *OperationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s failed for bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("%s failed for %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// StatusError carries an explicit status code, typically one reported by a
// remote service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// StatusCode returns the carried code.
func (e *StatusError) StatusCode() int {
	return e.Code
}

type statusCoder interface {
	StatusCode() int
}

// Normalize maps any collaborator error to a Kind and canonical status code.
// It is the single place where error codes are derived.
func Normalize(err error) (Kind, int) {
	if err == nil {
		return KindUnknown, CodeOK
	}
	switch {
	case errors.Is(err, ErrInvalidBucket):
		return KindInvalidBucket, CodeBadRequest
	case errors.Is(err, ErrInvalidKey):
		return KindInvalidKey, CodeBadRequest
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument, CodeBadRequest
	case errors.Is(err, ErrNotFound):
		return KindNotFound, CodeNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied, CodePermissionDenied
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated, CodeUnauthenticated
	case errors.Is(err, ErrMetadataDecode):
		return KindMetadataDecode, CodeInternal
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return KindNotFound, CodeNotFound
		case "AccessDenied", "Forbidden":
			return KindPermissionDenied, CodePermissionDenied
		case "InvalidBucketName":
			return KindInvalidBucket, CodeBadRequest
		}
		return KindUpstream, CodeInternal
	}

	var coder statusCoder
	if errors.As(err, &coder) {
		code := coder.StatusCode()
		switch {
		case code == CodeNotFound:
			return KindNotFound, code
		case code == CodePermissionDenied:
			return KindPermissionDenied, code
		case code == CodeUnauthenticated:
			return KindUnauthenticated, code
		case code >= 400 && code < 500:
			return KindInvalidArgument, code
		case code >= 500 && code < 600:
			return KindUpstream, code
		}
	}

	return KindUpstream, CodeInternal
}

// StatusFromError builds the wire status for err.
func StatusFromError(err error) Status {
	if err == nil {
		return okStatus()
	}
	_, code := Normalize(err)
	return Status{Code: code, Message: err.Error()}
}
