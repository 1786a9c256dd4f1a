package wire

import (
	"encoding/json"
	"testing"
)

func TestNoReturnValue_Marshal(t *testing.T) {
	data, err := json.Marshal(NoReturnValue{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "0" {
		t.Errorf("expected 0, got %s", data)
	}
}

func TestNoReturnValue_UnmarshalAnything(t *testing.T) {
	inputs := []string{`0`, `null`, `{}`, `"ignored"`, `[1,2,3]`}
	for _, in := range inputs {
		var v NoReturnValue
		if err := json.Unmarshal([]byte(in), &v); err != nil {
			t.Errorf("unmarshal %s: unexpected error: %v", in, err)
		}
	}
}

func TestCodingKey(t *testing.T) {
	tests := []struct {
		ordinal int
		label   string
		want    string
	}{
		{0, "", "0"},
		{0, "name", "0_name"},
		{3, "youngerSiblings", "3_youngerSiblings"},
		{12, "", "12"},
	}
	for _, tt := range tests {
		if got := CodingKey(tt.ordinal, tt.label); got != tt.want {
			t.Errorf("CodingKey(%d, %q): expected %q, got %q", tt.ordinal, tt.label, tt.want, got)
		}
	}
}

func TestDecodeError(t *testing.T) {
	body := DecodeError([]byte(`{"error":{"code":"unauthenticated","message":"missing token"}}`))
	if body == nil {
		t.Fatal("expected error body")
	}
	if body.Code != "unauthenticated" {
		t.Errorf("expected code unauthenticated, got %s", body.Code)
	}
	if body.Message != "missing token" {
		t.Errorf("expected message %q, got %q", "missing token", body.Message)
	}

	if DecodeError([]byte(`"Hello"`)) != nil {
		t.Error("expected nil for non-envelope body")
	}
}
