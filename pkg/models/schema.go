package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	if msg == nil {
		return &ValidationError{Field: "envelope", Message: "message envelope cannot be nil"}
	}

	required := []struct {
		field string
		empty bool
	}{
		{"id", msg.ID == ""},
		{"source", msg.Source == ""},
		{"type", msg.Type == ""},
		{"timestamp", msg.Timestamp.IsZero()},
	}
	for _, r := range required {
		if r.empty {
			return &ValidationError{Field: r.field, Message: fmt.Sprintf("message %s is required", r.field)}
		}
	}

	if msg.Payload == nil {
		return &ValidationError{Field: "payload", Message: "message payload cannot be nil"}
	}

	return nil
}

func (msg *MessageEnvelope) GetPayloadField(name string) (interface{}, bool) {
	if msg.Payload == nil {
		return nil, false
	}

	value, ok := msg.Payload[name]
	return value, ok
}
