package dcb_test

import (
	"errors"
	"testing"

	"go-dcb/pkg/dcb"
)

func TestConcurrencyErrorHelpers(t *testing.T) {
	tenant, _ := dcb.NewTenant("acme")
	err := error(&dcb.ConcurrencyError{
		EventStoreError: dcb.EventStoreError{Op: "Append", Err: errors.New("conflict")},
		Tenant:          tenant,
	})

	if !dcb.IsConcurrencyError(err) {
		t.Error("IsConcurrencyError = false, want true")
	}
	if dcb.IsDuplicateIDError(err) {
		t.Error("IsDuplicateIDError = true, want false")
	}

	as, ok := dcb.AsConcurrencyError(err)
	if !ok {
		t.Fatal("AsConcurrencyError ok = false, want true")
	}
	if as.Tenant != tenant {
		t.Errorf("AsConcurrencyError tenant = %v, want %v", as.Tenant, tenant)
	}
}

func TestDuplicateIDErrorHelpers(t *testing.T) {
	err := error(&dcb.DuplicateIDError{
		EventStoreError: dcb.EventStoreError{Op: "Append", Err: errors.New("duplicate")},
		ID:              "abc-123",
	})

	if !dcb.IsDuplicateIDError(err) {
		t.Error("IsDuplicateIDError = false, want true")
	}
	if dcb.IsConcurrencyError(err) {
		t.Error("IsConcurrencyError = true, want false")
	}

	as, ok := dcb.AsDuplicateIDError(err)
	if !ok {
		t.Fatal("AsDuplicateIDError ok = false, want true")
	}
	if as.ID != "abc-123" {
		t.Errorf("AsDuplicateIDError id = %q, want %q", as.ID, "abc-123")
	}
}

func TestValidationAndResourceErrorHelpers(t *testing.T) {
	validationErr := error(&dcb.ValidationError{
		EventStoreError: dcb.EventStoreError{Op: "NewEventType", Err: errors.New("bad format")},
		Field:           "type",
		Value:           "Bad Type",
	})
	if !dcb.IsValidationError(validationErr) {
		t.Error("IsValidationError = false, want true")
	}

	resourceErr := error(&dcb.ResourceError{
		EventStoreError: dcb.EventStoreError{Op: "Append", Err: errors.New("connection refused")},
		Resource:        "database",
	})
	if !dcb.IsResourceError(resourceErr) {
		t.Error("IsResourceError = false, want true")
	}
	if dcb.IsValidationError(resourceErr) {
		t.Error("IsValidationError = true for a ResourceError, want false")
	}
}

func TestEventStoreErrorUnwrap(t *testing.T) {
	sentinel := errors.New("boom")
	wrapped := error(&dcb.ResourceError{
		EventStoreError: dcb.EventStoreError{Op: "Stream", Err: sentinel},
		Resource:        "database",
	})
	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is did not see through EventStoreError.Unwrap")
	}
}
