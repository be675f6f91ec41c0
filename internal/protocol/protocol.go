package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type identifies a wire message.
type Type string

const (
	// Inbound.
	TypeCreateSession Type = "create_session"
	TypeJoinSession   Type = "join_session"

	// Both directions.
	TypeVibrate Type = "vibrate"

	// Outbound.
	TypeSessionCreated      Type = "session_created"
	TypeSessionJoined       Type = "session_joined"
	TypePartnerConnected    Type = "partner_connected"
	TypePartnerDisconnected Type = "partner_disconnected"
	TypeError               Type = "error"
)

// Vibration patterns accepted from clients.
const (
	MinPattern = 1
	MaxPattern = 4
)

// CodeLength is the number of decimal digits in a session code.
const CodeLength = 6

// ErrInvalidMessage indicates a frame that could not be decoded into a
// known message type.
var ErrInvalidMessage = errors.New("invalid message")

// Message is the flat JSON object exchanged over the WebSocket. Which
// fields are set depends on Type; unset fields are omitted on the wire.
type Message struct {
	Type        Type   `json:"type"`
	SessionCode string `json:"session_code,omitempty"`
	Pattern     int    `json:"pattern,omitempty"`
	Message     string `json:"message,omitempty"`
	UserCount   int    `json:"user_count,omitempty"`
}

// Encode marshals the message for the wire.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a frame into a Message. Frames that are not JSON, have
// no type, or carry an unknown type fail with ErrInvalidMessage.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidMessage)
	}
	switch m.Type {
	case TypeCreateSession, TypeJoinSession, TypeVibrate,
		TypeSessionCreated, TypeSessionJoined,
		TypePartnerConnected, TypePartnerDisconnected, TypeError:
		return &m, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
}

// ValidCode reports whether code is exactly CodeLength decimal digits.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// ValidPattern reports whether p is an accepted vibration pattern.
func ValidPattern(p int) bool {
	return p >= MinPattern && p <= MaxPattern
}

// SessionCreated acknowledges a freshly created session to its creator.
func SessionCreated(code string, userCount int) *Message {
	return &Message{Type: TypeSessionCreated, SessionCode: code, UserCount: userCount}
}

// SessionJoined acknowledges a successful join to the joiner.
func SessionJoined(code string, userCount int) *Message {
	return &Message{Type: TypeSessionJoined, SessionCode: code, UserCount: userCount}
}

// PartnerConnected tells existing members that someone joined.
func PartnerConnected(code string, userCount int) *Message {
	return &Message{Type: TypePartnerConnected, SessionCode: code, UserCount: userCount}
}

// PartnerDisconnected tells remaining members that someone left.
func PartnerDisconnected(code string, userCount int) *Message {
	return &Message{Type: TypePartnerDisconnected, SessionCode: code, UserCount: userCount}
}

// Vibrate carries a vibration pattern to the other session members.
func Vibrate(pattern int) *Message {
	return &Message{Type: TypeVibrate, Pattern: pattern}
}

// Error carries a human-readable failure description.
func Error(msg string) *Message {
	return &Message{Type: TypeError, Message: msg}
}
