package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError so ErrorCodeOf can resolve
// a subsystem-specific code.
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrInvalidInput     = fmt.Errorf("invalid input")
)

// Sentinel errors for the pipeline.
var (
	ErrTemplate        = fmt.Errorf("template error")
	ErrOutputWrite     = fmt.Errorf("output write failed")
	ErrSchemaViolation = fmt.Errorf("output does not satisfy schema")
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")
	ErrAuditWrite      = fmt.Errorf("audit log write failed")
)

// Subsystems used with NewSubSystemError.
const (
	SubSystemScanner  = "scanner"
	SubSystemFilter   = "filter"
	SubSystemTemplate = "template"
	SubSystemRenderer = "renderer"
	SubSystemWriter   = "writer"
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Scanner.Scan")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier; used for ErrorCode dispatch
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

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
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

// ErrorCode is a machine-parseable error category.
type ErrorCode string

const (
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeTemplate         ErrorCode = "TEMPLATE"
	CodeOutputWrite      ErrorCode = "OUTPUT_WRITE"
	CodeSchemaViolation  ErrorCode = "SCHEMA_VIOLATION"
	CodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	CodeAuditWrite       ErrorCode = "AUDIT_WRITE"

	// Subsystem-specific codes resolved through subSystemCodeMap.
	CodeSourceNotFound   ErrorCode = "SOURCE_NOT_FOUND"
	CodeSourceUnreadable ErrorCode = "SOURCE_UNREADABLE"
	CodeTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"
	CodeInvalidPattern   ErrorCode = "INVALID_PATTERN"
	CodeInvalidFormat    ErrorCode = "INVALID_FORMAT"
)

var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:         CodeNotFound,
	ErrPermissionDenied: CodePermissionDenied,
	ErrInvalidInput:     CodeInvalidInput,
	ErrTemplate:         CodeTemplate,
	ErrOutputWrite:      CodeOutputWrite,
	ErrSchemaViolation:  CodeSchemaViolation,
	ErrConfigLoad:       CodeConfigLoad,
	ErrAuditWrite:       CodeAuditWrite,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		SubSystemScanner:  CodeSourceNotFound,
		SubSystemTemplate: CodeTemplateNotFound,
	},
	ErrPermissionDenied: {
		SubSystemScanner: CodeSourceUnreadable,
		SubSystemWriter:  CodeOutputWrite,
	},
	ErrInvalidInput: {
		SubSystemFilter:   CodeInvalidPattern,
		SubSystemRenderer: CodeInvalidFormat,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// DomainErrors with a SubSystem are resolved through subSystemCodeMap first.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
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
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}

// IsUsageError reports whether err was caused by bad invocation (flags,
// patterns, formats, configuration) rather than by the environment.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrConfigLoad)
}
