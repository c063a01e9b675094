package gateway

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ironlatch/ironlatch-core/internal/usercode"
)

// MQTT message envelopes exchanged between Ironlatch Core and the
// entry-control gateway. The gateway translates these into device-side
// session frames; Core never speaks the radio protocol directly.

// CommandMessage is sent from Core to the gateway to deliver a command
// frame to one endpoint.
// Topic: ironlatch/node/{node}/endpoint/{endpoint}/command
type CommandMessage struct {
	// ID uniquely identifies this command for tracing.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// CommandClass is the device command class the frame belongs to.
	CommandClass uint8 `json:"command_class"`

	// Command is the command identifier within the class.
	Command uint8 `json:"command"`

	// Payload is the hex-encoded command parameters, empty for
	// parameterless commands.
	Payload string `json:"payload,omitempty"`
}

// ReportMessage is sent from the gateway to Core when an endpoint emits
// a report frame, solicited or not.
// Topic: ironlatch/node/{node}/endpoint/{endpoint}/report
type ReportMessage struct {
	// Timestamp is when the gateway received the frame (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// CommandClass is the device command class the frame belongs to.
	CommandClass uint8 `json:"command_class"`

	// Command is the command identifier within the class.
	Command uint8 `json:"command"`

	// Payload is the hex-encoded report parameters.
	Payload string `json:"payload,omitempty"`
}

// NewCommandMessage wraps a frame in a command envelope with a fresh ID.
func NewCommandMessage(frame usercode.Frame) CommandMessage {
	return CommandMessage{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		CommandClass: usercode.CommandClass,
		Command:      frame.Command,
		Payload:      hex.EncodeToString(frame.Payload),
	}
}

// Encode serialises the envelope for publishing.
func (m CommandMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode command message: %w", err)
	}
	return data, nil
}

// DecodeReportMessage parses a report envelope received from the gateway.
func DecodeReportMessage(data []byte) (ReportMessage, error) {
	var msg ReportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ReportMessage{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	return msg, nil
}

// Frame converts the report envelope back into a protocol frame.
func (m ReportMessage) Frame() (usercode.Frame, error) {
	payload, err := hex.DecodeString(m.Payload)
	if err != nil {
		return usercode.Frame{}, fmt.Errorf("%w: payload hex: %w", ErrMalformedEnvelope, err)
	}
	return usercode.Frame{Command: m.Command, Payload: payload}, nil
}
