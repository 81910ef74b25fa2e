package notifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/validation"
)

const ProtocolVersion = 1

// Inbound message types (foreground -> scheduler).
const (
	MsgScheduleNotification = "SCHEDULE_NOTIFICATION"
	MsgCancelNotification   = "CANCEL_NOTIFICATION"
	MsgGetScheduled         = "GET_SCHEDULED"
	MsgShowImmediate        = "SHOW_IMMEDIATE"
)

// Outbound message types (scheduler -> foreground).
const (
	MsgScheduled    = "SCHEDULED"
	MsgAck          = "ACK"
	MsgError        = "ERROR"
	MsgStartRoutine = "START_ROUTINE"
)

// Envelope is the wire frame for every message on the worker socket.
type Envelope struct {
	Type            string          `json:"type"`
	ID              string          `json:"id"`
	TS              int64           `json:"ts"`
	ProtocolVersion int             `json:"protocol_version"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope wraps payload. An empty id gets a fresh uuid; replies pass the
// request's id through.
func NewEnvelope(msgType, id string, payload interface{}) (Envelope, error) {
	typ := strings.TrimSpace(msgType)
	if typ == "" {
		return Envelope{}, errors.New("message type is required")
	}
	if strings.TrimSpace(id) == "" {
		id = uuid.New().String()
	}
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		raw = data
	}
	return Envelope{
		Type:            typ,
		ID:              strings.TrimSpace(id),
		TS:              time.Now().UTC().Unix(),
		ProtocolVersion: ProtocolVersion,
		Payload:         raw,
	}, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	if strings.TrimSpace(e.Type) == "" {
		return nil, errors.New("envelope.type is required")
	}
	if strings.TrimSpace(e.ID) == "" {
		return nil, errors.New("envelope.id is required")
	}
	if e.ProtocolVersion == 0 {
		e.ProtocolVersion = ProtocolVersion
	}
	return json.Marshal(e)
}

func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	env.Type = strings.TrimSpace(env.Type)
	env.ID = strings.TrimSpace(env.ID)
	if env.Type == "" || env.ID == "" {
		return Envelope{}, fmt.Errorf("invalid envelope (type=%q id=%q)", env.Type, env.ID)
	}
	if env.ProtocolVersion == 0 {
		env.ProtocolVersion = ProtocolVersion
	}
	return env, nil
}

// Message is one of the four requests the scheduler understands.
type Message interface {
	messageType() string
}

// ScheduleNotification asks for a request to be persisted and armed.
type ScheduleNotification struct {
	Request models.NotificationRequest
}

// CancelNotification asks for a request to be dropped.
type CancelNotification struct {
	ID string `json:"id" validate:"required"`
}

// GetScheduled asks for every persisted request.
type GetScheduled struct{}

// ShowImmediate presents a notification now, bypassing persistence.
type ShowImmediate struct {
	Notification models.Notification
}

func (ScheduleNotification) messageType() string { return MsgScheduleNotification }
func (CancelNotification) messageType() string   { return MsgCancelNotification }
func (GetScheduled) messageType() string         { return MsgGetScheduled }
func (ShowImmediate) messageType() string        { return MsgShowImmediate }

// Type returns the wire type of m.
func Type(m Message) string {
	return m.messageType()
}

// ScheduledList is the GET_SCHEDULED reply payload.
type ScheduledList struct {
	Notifications []models.NotificationRequest `json:"notifications"`
}

// ErrorPayload is the ERROR reply payload.
type ErrorPayload struct {
	Message string `json:"message"`
}

// StartRoutineEvent tells a foreground to navigate into a routine and begin it.
type StartRoutineEvent struct {
	RoutineID string `json:"routineId"`
	URL       string `json:"url"`
}

// EncodeMessage frames m for the wire.
func EncodeMessage(m Message, id string) (Envelope, error) {
	switch msg := m.(type) {
	case ScheduleNotification:
		return NewEnvelope(MsgScheduleNotification, id, msg.Request)
	case CancelNotification:
		return NewEnvelope(MsgCancelNotification, id, msg)
	case GetScheduled:
		return NewEnvelope(MsgGetScheduled, id, nil)
	case ShowImmediate:
		return NewEnvelope(MsgShowImmediate, id, msg.Notification)
	default:
		return Envelope{}, fmt.Errorf("%w: %T", rerrors.ErrUnknownMessage, m)
	}
}

// DecodeMessage parses and validates the payload of env.
func DecodeMessage(env Envelope) (Message, error) {
	switch env.Type {
	case MsgScheduleNotification:
		var req models.NotificationRequest
		if err := decodePayload(env, &req); err != nil {
			return nil, err
		}
		return ScheduleNotification{Request: req}, nil
	case MsgCancelNotification:
		var msg CancelNotification
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case MsgGetScheduled:
		return GetScheduled{}, nil
	case MsgShowImmediate:
		var n models.Notification
		if err := decodePayload(env, &n); err != nil {
			return nil, err
		}
		return ShowImmediate{Notification: n}, nil
	default:
		return nil, fmt.Errorf("%w: %q", rerrors.ErrUnknownMessage, env.Type)
	}
}

func decodePayload(env Envelope, v interface{}) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: payload is required", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", env.Type, err)
	}
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%s: %w", env.Type, err)
	}
	return nil
}
