package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Scanner.Scan", ErrNotFound, "source directory \"/tmp/x\"")
	want := "Scanner.Scan: source directory \"/tmp/x\": not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Renderer.Render", ErrTemplate, "")
	want := "Renderer.Render: template error"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("AtomicWriter.WriteFile", ErrOutputWrite, "disk full")
	if !errors.Is(err, ErrOutputWrite) {
		t.Error("errors.Is should match ErrOutputWrite")
	}
}

func TestDomainErrorAs(t *testing.T) {
	err := fmt.Errorf("generate: %w", NewDomainError("Filter.New", ErrInvalidInput, "[a"))
	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Filter.New", de.Op)
}

func TestWrapOpNil(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))
}

func TestWrapOp(t *testing.T) {
	err := WrapOp("render", ErrTemplate)
	assert.EqualError(t, err, "render: template error")
	assert.ErrorIs(t, err, ErrTemplate)
}

// --- ErrorCode tests ---

func TestErrorCodeOf_DirectSentinel(t *testing.T) {
	assert.Equal(t, CodeTemplate, ErrorCodeOf(ErrTemplate))
	assert.Equal(t, CodeOutputWrite, ErrorCodeOf(ErrOutputWrite))
	assert.Equal(t, CodeNotFound, ErrorCodeOf(ErrNotFound))
	assert.Equal(t, CodeConfigLoad, ErrorCodeOf(ErrConfigLoad))
	assert.Equal(t, CodeAuditWrite, ErrorCodeOf(ErrAuditWrite))
}

func TestErrorCodeOf_Nil(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
}

func TestErrorCodeOf_Unknown(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(errors.New("boom")))
}

func TestErrorCodeOf_SubSystem(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"source missing", NewSubSystemError(SubSystemScanner, "Scan", ErrNotFound, ""), CodeSourceNotFound},
		{"source unreadable", NewSubSystemError(SubSystemScanner, "Scan", ErrPermissionDenied, ""), CodeSourceUnreadable},
		{"template missing", NewSubSystemError(SubSystemTemplate, "Load", ErrNotFound, ""), CodeTemplateNotFound},
		{"bad pattern", NewSubSystemError(SubSystemFilter, "New", ErrInvalidInput, ""), CodeInvalidPattern},
		{"bad format", NewSubSystemError(SubSystemRenderer, "New", ErrInvalidInput, ""), CodeInvalidFormat},
		{"writer denied", NewSubSystemError(SubSystemWriter, "Write", ErrPermissionDenied, ""), CodeOutputWrite},
		{"unmapped subsystem", NewSubSystemError("other", "Op", ErrNotFound, ""), CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
			assert.Equal(t, tt.want, ErrorCodeOf(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestErrorCodeOf_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrSchemaViolation))
	assert.Equal(t, CodeSchemaViolation, ErrorCodeOf(err))
}

func TestIsUsageError(t *testing.T) {
	assert.True(t, IsUsageError(NewDomainError("flags", ErrInvalidInput, "")))
	assert.True(t, IsUsageError(fmt.Errorf("config: %w", ErrConfigLoad)))
	assert.False(t, IsUsageError(ErrTemplate))
	assert.False(t, IsUsageError(NewSubSystemError(SubSystemScanner, "Scan", ErrNotFound, "")))
}
