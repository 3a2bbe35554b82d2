package types

import (
	"bytes"
	"errors"
	"fmt"
)

// EventType is the discriminant carried in the "type" field of a stream frame.
type EventType string

const (
	EventRequest  EventType = "REQUEST"
	EventError    EventType = "ERROR"
	EventResource EventType = "RESOURCE"
)

var (
	// ErrMalformedEvent is returned when a frame is not valid JSON.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEventType is returned when a frame has no recognised "type".
	ErrUnknownEventType = errors.New("unknown event type")
)

// Event is one decoded frame from the push stream. The set of implementations
// is closed: RequestEvent, ErrorEvent and ResourceEvent.
type Event interface {
	Type() EventType
	isEvent()
}

// RequestEvent describes one HTTP request handled by the server.
type RequestEvent struct {
	Time         Scalar `json:"time"`
	Method       Scalar `json:"method"`
	URL          Scalar `json:"url"`
	Status       Scalar `json:"status"`
	ResponseTime Scalar `json:"responseTime"`
}

// ErrorEvent describes one failed request.
type ErrorEvent struct {
	Time    Scalar `json:"time"`
	Status  Scalar `json:"status"`
	Method  Scalar `json:"method"`
	Message Scalar `json:"message"`
	URL     Scalar `json:"url"`
}

// ResourceEvent is a periodic resource-usage sample. Uptime is in milliseconds.
type ResourceEvent struct {
	CPU    Scalar `json:"cpu"`
	Memory Scalar `json:"memory"`
	Uptime Scalar `json:"uptime"`
	Load   Scalar `json:"load"`
}

func (RequestEvent) Type() EventType  { return EventRequest }
func (ErrorEvent) Type() EventType    { return EventError }
func (ResourceEvent) Type() EventType { return EventResource }

func (RequestEvent) isEvent()  {}
func (ErrorEvent) isEvent()    {}
func (ResourceEvent) isEvent() {}

type envelope struct {
	Type Scalar `json:"type"`
}

// DecodeEvent decodes a stream frame. Frames that are valid JSON but not an
// object, or whose type is missing or unrecognised, yield ErrUnknownEventType.
func DecodeEvent(data []byte) (Event, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid json (%d bytes)", ErrMalformedEvent, len(data))
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: frame is not an object", ErrUnknownEventType)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var ev Event
	switch EventType(env.Type) {
	case EventRequest:
		var e RequestEvent
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		ev = e
	case EventError:
		var e ErrorEvent
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		ev = e
	case EventResource:
		var e ResourceEvent
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, string(env.Type))
	}
	return ev, nil
}

// ConnectionState is the push-stream state shown by the status indicator.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	if s == Connected {
		return "Connected"
	}
	return "Disconnected"
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ConnectionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Connected":
		*s = Connected
	case "Disconnected":
		*s = Disconnected
	default:
		return fmt.Errorf("unknown connection state %q", text)
	}
	return nil
}
