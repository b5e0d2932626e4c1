package types

import (
	"encoding/json"
	"testing"
)

func TestFlexStringAcceptsStringsAndNumbers(t *testing.T) {
	var payload struct {
		ID    FlexString `json:"id"`
		Price FlexString `json:"price"`
		Gone  FlexString `json:"gone"`
	}
	if err := json.Unmarshal([]byte(`{"id":7,"price":"799.0","gone":null}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.ID != "7" || payload.Price != "799.0" || payload.Gone != "" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestFlexStringRejectsObjects(t *testing.T) {
	var f FlexString
	if err := json.Unmarshal([]byte(`{"a":1}`), &f); err == nil {
		t.Fatalf("expected object to be rejected")
	}
}
