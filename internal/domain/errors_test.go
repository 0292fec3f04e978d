package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Store.InsertMemory", ErrDuplicateHash, "hash 'abc123'")
	want := "Store.InsertMemory: hash 'abc123': duplicate content hash"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Service.GetMemory", ErrNotFound, "")
	want := "Service.GetMemory: not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Store.InsertMemory", ErrDimensionMismatch, "want 384, got 256")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Error("errors.Is should match ErrDimensionMismatch")
	}
}

func TestDomainErrorAs(t *testing.T) {
	err := NewDomainError("Embedding.Embed", ErrModelError, "openai")
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatal("errors.As should match *DomainError")
	}
	if de.Op != "Embedding.Embed" {
		t.Errorf("Op = %q, want %q", de.Op, "Embedding.Embed")
	}
}

// --- ErrorCode tests ---

func TestErrorCodeOf_DirectSentinel(t *testing.T) {
	assert.Equal(t, CodeNotFound, ErrorCodeOf(ErrNotFound))
	assert.Equal(t, CodeInvalidInput, ErrorCodeOf(ErrInvalidInput))
	assert.Equal(t, CodeDuplicateHash, ErrorCodeOf(ErrDuplicateHash))
	assert.Equal(t, CodeModelError, ErrorCodeOf(ErrModelError))
}

func TestErrorCodeOf_DomainError(t *testing.T) {
	err := NewDomainError("Store.InsertMemory", ErrDuplicateHash, "hash 'abc123'")
	assert.Equal(t, CodeDuplicateHash, ErrorCodeOf(err))
}

func TestErrorCodeOf_WrappedError(t *testing.T) {
	// fmt.Errorf with %w wraps the sentinel.
	wrapped := fmt.Errorf("context: %w", ErrStorageUnavailable)
	assert.Equal(t, CodeStorageUnavailable, ErrorCodeOf(wrapped))
}

func TestErrorCodeOf_UnknownError(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(fmt.Errorf("some random error")))
}

func TestErrorCodeOf_Nil(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
}

func TestDomainError_Code(t *testing.T) {
	err := NewDomainError("Store.GetMemory", ErrNotFound, "id 42")
	assert.Equal(t, CodeNotFound, err.Code())
}

func TestDomainError_CodeUnknownSentinel(t *testing.T) {
	err := NewDomainError("Op", fmt.Errorf("custom"), "detail")
	assert.Equal(t, CodeUnknown, err.Code())
}

func TestAllSentinelsHaveCodes(t *testing.T) {
	// Verify every sentinel in errorCodeMap maps to a non-empty, non-unknown code.
	require.NotEmpty(t, errorCodeMap)
	for sentinel, code := range errorCodeMap {
		assert.NotEmpty(t, code, "sentinel %v has empty code", sentinel)
		assert.NotEqual(t, CodeUnknown, code, "sentinel %v maps to UNKNOWN", sentinel)
	}
}

// --- NewSubSystemError tests ---

func TestNewSubSystemError_Format(t *testing.T) {
	err := NewSubSystemError("store", "InsertMemory", ErrNotFound, "id 7")
	// SubSystem is metadata, not included in Error() output.
	assert.Equal(t, "InsertMemory: id 7: not found", err.Error())
}

func TestNewSubSystemError_SubSystemField(t *testing.T) {
	err := NewSubSystemError("store", "InsertMemory", ErrNotFound, "id 7")
	assert.Equal(t, "store", err.SubSystem)
}

func TestNewSubSystemError_Unwrap(t *testing.T) {
	err := NewSubSystemError("embedding", "Embed", ErrModelError, "")
	assert.True(t, errors.Is(err, ErrModelError))
}

func TestNewSubSystemError_BackwardCompatible(t *testing.T) {
	// Zero-valued SubSystem for NewDomainError (no regression).
	err := NewDomainError("Op", ErrNotFound, "x")
	assert.Equal(t, "", err.SubSystem)
}

// --- WrapOp tests ---

func TestWrapOp_Nil(t *testing.T) {
	assert.Nil(t, WrapOp("anything", nil))
}

func TestWrapOp_Format(t *testing.T) {
	err := WrapOp("Service.DeleteMemory", ErrNotFound)
	assert.Equal(t, "Service.DeleteMemory: not found", err.Error())
}

func TestWrapOp_PreservesIs(t *testing.T) {
	err := WrapOp("Service.DeleteMemory", ErrNotFound)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWrapOp_PreservesErrorCode(t *testing.T) {
	err := WrapOp("Service.DeleteMemory", ErrNotFound)
	assert.Equal(t, CodeNotFound, ErrorCodeOf(err))
}

func TestWrapOp_Chain(t *testing.T) {
	inner := WrapOp("inner", ErrModelError)
	outer := WrapOp("outer", inner)
	assert.Equal(t, "outer: inner: embedding model error", outer.Error())
	assert.True(t, errors.Is(outer, ErrModelError))
}
