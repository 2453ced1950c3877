package domain

import (
	"errors"
	"testing"
)

func TestWrapErrorKeepsKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError(ErrStorage, "dense branch", cause)

	if !IsKind(err, ErrStorage) {
		t.Fatalf("expected ErrStorage kind, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if WrapError(ErrStorage, "noop", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := WrapError(ErrInvalidInput, "search", NewValidationError("filters.year", "must be a four-digit year"))

	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation detail in %v", err)
	}
	if vErr.Field != "filters.year" {
		t.Fatalf("unexpected field %q", vErr.Field)
	}
}
