package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the memory domain.
var (
	ErrNotFound           = fmt.Errorf("not found")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrInvalidPriority    = fmt.Errorf("invalid priority")
	ErrDimensionMismatch  = fmt.Errorf("embedding dimension mismatch")
	ErrDuplicateHash      = fmt.Errorf("duplicate content hash")
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
	ErrModelError         = fmt.Errorf("embedding model error")
	ErrInternal           = fmt.Errorf("internal error")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op        string // operation name (e.g., "Service.StoreMemory")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "store", "embedding"); metadata only, not read by ErrorCodeOf or Code
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem identifier.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeInvalidPriority    ErrorCode = "INVALID_PRIORITY"
	CodeDimensionMismatch  ErrorCode = "DIMENSION_MISMATCH"
	CodeDuplicateHash      ErrorCode = "DUPLICATE_HASH"
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	CodeModelError         ErrorCode = "MODEL_ERROR"
	CodeInternal           ErrorCode = "INTERNAL"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:           CodeNotFound,
	ErrInvalidInput:       CodeInvalidInput,
	ErrInvalidPriority:    CodeInvalidPriority,
	ErrDimensionMismatch:  CodeDimensionMismatch,
	ErrDuplicateHash:      CodeDuplicateHash,
	ErrStorageUnavailable: CodeStorageUnavailable,
	ErrModelError:         CodeModelError,
	ErrInternal:           CodeInternal,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
