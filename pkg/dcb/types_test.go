package dcb_test

import (
	"encoding/json"
	"testing"

	"go-dcb/pkg/dcb"
)

func TestNewTenantRejectsEmpty(t *testing.T) {
	if _, err := dcb.NewTenant(""); err == nil {
		t.Fatal("NewTenant(\"\") succeeded, want error")
	}
	if _, err := dcb.NewTenant("acme"); err != nil {
		t.Fatalf("NewTenant(\"acme\"): %v", err)
	}
}

func TestNewEventTypeValidatesFormat(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"order-created", false},
		{"*", true},
		{"Order-Created", true},
		{"order_created", true},
		{"", true},
	}
	for _, tc := range cases {
		_, err := dcb.NewEventType(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("NewEventType(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
	}
}

func TestParseEventTagRoundTrip(t *testing.T) {
	tag, err := dcb.NewEventTag("order", "123")
	if err != nil {
		t.Fatalf("NewEventTag: %v", err)
	}
	parsed, err := dcb.ParseEventTag(tag.String())
	if err != nil {
		t.Fatalf("ParseEventTag(%q): %v", tag.String(), err)
	}
	if !parsed.Equal(tag) {
		t.Errorf("ParseEventTag round-trip = %+v, want %+v", parsed, tag)
	}
}

func TestParseEventTagRejectsMalformed(t *testing.T) {
	cases := []string{"", "noSeparator", "order:", ":123", "order:123:extra"}
	for _, in := range cases {
		if _, err := dcb.ParseEventTag(in); err == nil {
			t.Errorf("ParseEventTag(%q) succeeded, want error", in)
		}
	}
}

func TestStoredEventEnvelopeInjectsPosition(t *testing.T) {
	se := dcb.StoredEvent{
		Position: 42,
		Metadata: map[string]string{"actor": "tester"},
		Payload:  json.RawMessage(`{}`),
	}
	env := se.Envelope()
	pos, ok := env.Position()
	if !ok || pos != 42 {
		t.Fatalf("Position() = %d, %v, want 42, true", pos, ok)
	}
	if env.Metadata["actor"] != "tester" {
		t.Errorf("Envelope lost caller metadata: %v", env.Metadata)
	}
	if se.Metadata["_position"] != "" {
		t.Errorf("Envelope mutated the source StoredEvent's metadata map")
	}
}

func TestStoredEventHasTag(t *testing.T) {
	tag, _ := dcb.NewEventTag("order", "1")
	other, _ := dcb.NewEventTag("order", "2")
	se := dcb.StoredEvent{Tags: []dcb.EventTag{tag}}
	if !se.HasTag(tag) {
		t.Error("HasTag(tag) = false, want true")
	}
	if se.HasTag(other) {
		t.Error("HasTag(other) = true, want false")
	}
}

func TestValidateMetadataRejectsReservedKeys(t *testing.T) {
	reserved := []string{"_position", "_trace_context", "traceparent", "tracestate"}
	for _, key := range reserved {
		err := dcb.ValidateMetadata(map[string]string{key: "x"})
		if !dcb.IsValidationError(err) {
			t.Errorf("ValidateMetadata with reserved key %q error = %v, want ValidationError", key, err)
		}
	}
	if err := dcb.ValidateMetadata(map[string]string{"correlation_id": "abc"}); err != nil {
		t.Errorf("ValidateMetadata with ordinary key: %v", err)
	}
}
