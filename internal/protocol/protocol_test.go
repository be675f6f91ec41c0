package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeVibrate(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"vibrate","pattern":3}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if msg.Type != TypeVibrate {
		t.Errorf("expected type vibrate, got %q", msg.Type)
	}
	if msg.Pattern != 3 {
		t.Errorf("expected pattern 3, got %d", msg.Pattern)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport"}`))
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestDecodeMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"pattern":2}`))
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestDecodeNotJSON(t *testing.T) {
	_, err := Decode([]byte(`vibrate please`))
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestEncodeFieldNames(t *testing.T) {
	data, err := PartnerConnected("483920", 2).Encode()
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if fields["type"] != "partner_connected" {
		t.Errorf("expected type partner_connected, got %v", fields["type"])
	}
	if fields["session_code"] != "483920" {
		t.Errorf("expected session_code 483920, got %v", fields["session_code"])
	}
	if fields["user_count"] != float64(2) {
		t.Errorf("expected user_count 2, got %v", fields["user_count"])
	}
}

func TestEncodeOmitsUnsetFields(t *testing.T) {
	data, err := Error("Session not found").Encode()
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(fields) != 2 {
		t.Errorf("expected only type and message, got %v", fields)
	}
	if fields["message"] != "Session not found" {
		t.Errorf("expected message field, got %v", fields["message"])
	}
}

func TestValidCode(t *testing.T) {
	valid := []string{"000000", "483920", "999999"}
	for _, code := range valid {
		if !ValidCode(code) {
			t.Errorf("expected %q to be valid", code)
		}
	}

	invalid := []string{"", "12345", "1234567", "12345a", "new", "12 456"}
	for _, code := range invalid {
		if ValidCode(code) {
			t.Errorf("expected %q to be invalid", code)
		}
	}
}

func TestValidPattern(t *testing.T) {
	for p := MinPattern; p <= MaxPattern; p++ {
		if !ValidPattern(p) {
			t.Errorf("expected pattern %d to be valid", p)
		}
	}
	for _, p := range []int{0, -1, 5, 100} {
		if ValidPattern(p) {
			t.Errorf("expected pattern %d to be invalid", p)
		}
	}
}
