// internal/models/event.go
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventKind é o valor do campo "type" do frame recebido
type EventKind string

const (
	KindAppointment  EventKind = "APPOINTMENT"
	KindNotification EventKind = "NOTIFICATION"
)

var (
	ErrMalformedFrame = errors.New("frame malformado")
	ErrUnknownKind    = errors.New("tipo de evento desconhecido")
)

// ParseError descreve porque um corpo recebido foi descartado
type ParseError struct {
	Kind   EventKind
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%v (%s): %s", e.Err, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InboundEvent é a união APPOINTMENT | NOTIFICATION. Apenas o campo do Kind correspondente é preenchido.
type InboundEvent struct {
	Kind         EventKind
	Appointment  *AppointmentRecord
	Notification *NotificationRecord
}

type envelope struct {
	Type    EventKind       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseInboundEvent decodifica e valida o corpo de um MESSAGE.
// Nunca entra em pânico: qualquer problema volta como *ParseError.
func ParseInboundEvent(body []byte, now time.Time) (InboundEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return InboundEvent{}, &ParseError{Reason: err.Error(), Err: ErrMalformedFrame}
	}
	if env.Type == "" {
		return InboundEvent{}, &ParseError{Reason: "campo type ausente", Err: ErrMalformedFrame}
	}

	payload := bytes.TrimSpace(env.Payload)
	if env.Type != KindAppointment && env.Type != KindNotification {
		return InboundEvent{}, &ParseError{Kind: env.Type, Reason: "tipo não suportado", Err: ErrUnknownKind}
	}
	if len(payload) == 0 || payload[0] != '{' {
		return InboundEvent{}, &ParseError{Kind: env.Type, Reason: "payload ausente ou não é objeto", Err: ErrMalformedFrame}
	}

	switch env.Type {
	case KindAppointment:
		var p appointmentPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return InboundEvent{}, &ParseError{Kind: env.Type, Reason: err.Error(), Err: ErrMalformedFrame}
		}
		rec, err := p.toRecord(now)
		if err != nil {
			return InboundEvent{}, &ParseError{Kind: env.Type, Reason: err.Error(), Err: ErrMalformedFrame}
		}
		return InboundEvent{Kind: KindAppointment, Appointment: &rec}, nil

	default:
		var p notificationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return InboundEvent{}, &ParseError{Kind: env.Type, Reason: err.Error(), Err: ErrMalformedFrame}
		}
		rec := p.toRecord(now)
		return InboundEvent{Kind: KindNotification, Notification: &rec}, nil
	}
}
