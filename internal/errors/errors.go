// Package errors provides the pipeline's coded error type.
// Codes map onto gRPC status codes so a collaborator can read the category
// from a status without parsing the human-readable message.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to status details.
const Domain = "apexclick"

// Code identifies an error category.
type Code int

const (
	CodeUnknown Code = iota
	CodeInternal
	CodeInvalidArgument
	CodeUnavailable
	CodeCancelled
	CodeConfigInvalid
	CodeConfigMissing
	CodeWindowLost
	CodeCaptureFailed
	CodeChunkFailed
	CodeClickFailed
	CodeBufferAlloc
	CodeUnsupported
)

var codeNames = [...]string{
	CodeUnknown:         "UNKNOWN",
	CodeInternal:        "INTERNAL",
	CodeInvalidArgument: "INVALID_ARGUMENT",
	CodeUnavailable:     "UNAVAILABLE",
	CodeCancelled:       "CANCELLED",
	CodeConfigInvalid:   "CONFIG_INVALID",
	CodeConfigMissing:   "CONFIG_MISSING",
	CodeWindowLost:      "WINDOW_LOST",
	CodeCaptureFailed:   "CAPTURE_FAILED",
	CodeChunkFailed:     "CHUNK_FAILED",
	CodeClickFailed:     "CLICK_FAILED",
	CodeBufferAlloc:     "BUFFER_ALLOC",
	CodeUnsupported:     "UNSUPPORTED",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return codeNames[CodeUnknown]
	}
	return codeNames[c]
}

// codeFromName reverses String.
func codeFromName(name string) Code {
	for i, n := range codeNames {
		if n == name {
			return Code(i)
		}
	}
	return CodeUnknown
}

// grpcCodeMap maps pipeline codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:         codes.Unknown,
	CodeInternal:        codes.Internal,
	CodeInvalidArgument: codes.InvalidArgument,
	CodeUnavailable:     codes.Unavailable,
	CodeCancelled:       codes.Canceled,
	CodeConfigInvalid:   codes.InvalidArgument,
	CodeConfigMissing:   codes.FailedPrecondition,
	CodeWindowLost:      codes.NotFound,
	CodeCaptureFailed:   codes.Unavailable,
	CodeChunkFailed:     codes.Internal,
	CodeClickFailed:     codes.Unavailable,
	CodeBufferAlloc:     codes.ResourceExhausted,
	CodeUnsupported:     codes.Unimplemented,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// ToProto converts to an ErrorInfo detail message.
func (e *AppError) ToProto() *errdetails.ErrorInfo {
	info := &errdetails.ErrorInfo{Reason: e.Code.String(), Domain: Domain}
	if len(e.Metadata) > 0 {
		info.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			info.Metadata[k] = v
		}
	}
	return info
}

// GRPCStatus returns a gRPC status with the ErrorInfo attached.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Message)
	if withDetail, err := st.WithDetails(e.ToProto()); err == nil {
		return withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError extracts AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == Domain {
			return &AppError{
				Code:     codeFromName(info.GetReason()),
				Message:  st.Message(),
				Metadata: info.GetMetadata(),
			}
		}
	}

	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message()}
}

// grpcToCode maps gRPC codes back to pipeline codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.NotFound:
		return CodeWindowLost
	case codes.Unavailable:
		return CodeUnavailable
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal:
		return CodeInternal
	case codes.FailedPrecondition:
		return CodeConfigMissing
	case codes.ResourceExhausted:
		return CodeBufferAlloc
	case codes.Unimplemented:
		return CodeUnsupported
	default:
		return CodeUnknown
	}
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// IsFatal reports whether err ends an automation session.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case CodeWindowLost, CodeCaptureFailed, CodeBufferAlloc:
		return true
	default:
		return false
	}
}

// IsConfig reports whether err rejects a configuration before start.
func IsConfig(err error) bool {
	c := CodeOf(err)
	return c == CodeConfigInvalid || c == CodeConfigMissing
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeUnavailable, CodeClickFailed:
		return true
	default:
		return false
	}
}
