package memory_test

import (
	"context"
	"encoding/json"
	"testing"

	"pgregory.net/rapid"

	"go-dcb/pkg/dcb"
	"go-dcb/pkg/dcb/dcbtest"
	"go-dcb/pkg/dcb/memory"
)

func TestStoreConformance(t *testing.T) {
	dcbtest.Run(t, func(t *testing.T) dcb.Store {
		return memory.New()
	})
}

func TestStoreConformanceRapid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dcbtest.RunRapid(rt, func(*rapid.T) dcb.Store {
			return memory.New()
		})
	})
}

func TestAppendEmptyBatchIsNoop(t *testing.T) {
	store := memory.New()
	envelopes, err := store.Append(context.Background(), mustTenant(t), nil)
	if err != nil {
		t.Fatalf("Append(nil): %v", err)
	}
	if envelopes != nil {
		t.Errorf("Append(nil) = %v, want nil", envelopes)
	}
}

func TestAppendRejectsReservedMetadataKey(t *testing.T) {
	store := memory.New()
	tenant := mustTenant(t)
	eventType, err := dcb.NewEventType("order-created")
	if err != nil {
		t.Fatalf("NewEventType: %v", err)
	}
	tag, err := dcb.NewEventTag("order", "1")
	if err != nil {
		t.Fatalf("NewEventTag: %v", err)
	}
	raw, _ := json.Marshal(map[string]string{})
	event, err := dcb.NewEventToPersist(eventType, []dcb.EventTag{tag}, raw)
	if err != nil {
		t.Fatalf("NewEventToPersist: %v", err)
	}
	event.Metadata = map[string]string{"_position": "999"}

	_, err = store.Append(context.Background(), tenant, []dcb.EventToPersist{event})
	if !dcb.IsValidationError(err) {
		t.Fatalf("Append with reserved metadata key error = %v, want ValidationError", err)
	}
	if store.Count(tenant) != 0 {
		t.Errorf("store retained an event despite failed validation")
	}
}

func mustTenant(t *testing.T) dcb.Tenant {
	t.Helper()
	tenant, err := dcb.NewTenant("unit-test-tenant")
	if err != nil {
		t.Fatalf("NewTenant: %v", err)
	}
	return tenant
}
