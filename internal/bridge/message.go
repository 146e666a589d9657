package bridge

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// Message is the atomic unit of cross-boundary communication. The wire
// shape is flat: exactly a string tag and a tag-specific payload object.
// There is no envelope versioning field.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PayloadCheck reports whether a raw payload is structurally valid for its
// message type. A nil payload is handed to the check as-is; checks for
// empty-payload types must accept it.
type PayloadCheck func(payload json.RawMessage) bool

// Vocabulary is the closed set of message types legal in one direction,
// each paired with its payload validator.
type Vocabulary map[string]PayloadCheck

// decode parses raw text against a vocabulary. ok is false when the text
// is not parseable, the type is outside the vocabulary, or the payload
// fails its type's validator. Callers drop such messages without mutating
// any other state.
func decode(raw []byte, vocab Vocabulary) (Message, bool) {
	var msg Message
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		return Message{}, false
	}
	check, known := vocab[msg.Type]
	if !known {
		return Message{}, false
	}
	if !check(msg.Payload) {
		return Message{}, false
	}
	return msg, true
}

// encode serializes a command for the channel. payload may be nil for
// empty-payload commands.
func encode(msgType string, payload any) ([]byte, error) {
	msg := Message{Type: msgType}
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}
	return sonic.Marshal(msg)
}

// emptyPayload accepts {} or a missing payload.
func emptyPayload(payload json.RawMessage) bool {
	if len(payload) == 0 {
		return true
	}
	var body map[string]json.RawMessage
	return sonic.Unmarshal(payload, &body) == nil
}

// anyObject accepts any JSON object. Used for reserved message types whose
// shape is not yet pinned down.
func anyObject(payload json.RawMessage) bool {
	return emptyPayload(payload)
}

// decodePayload unmarshals a payload into a typed struct. The payload has
// already passed its vocabulary check, so failures here are programming
// errors; callers treat them as drops all the same.
func decodePayload(payload json.RawMessage, v any) bool {
	if len(payload) == 0 {
		return false
	}
	return sonic.Unmarshal(payload, v) == nil
}
