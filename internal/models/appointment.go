// internal/models/appointment.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// RecordID é um identificador opaco. O servidor envia tanto string quanto número.
type RecordID string

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identificador inválido %s: %w", string(data), err)
	}
	*id = RecordID(n.String())
	return nil
}

func (id RecordID) String() string {
	return string(id)
}

// AppointmentStatus é o status do agendamento como enviado pelo backend
type AppointmentStatus string

const (
	AppointmentPending     AppointmentStatus = "PENDING"
	AppointmentConfirmed   AppointmentStatus = "CONFIRMED"
	AppointmentCancelled   AppointmentStatus = "CANCELLED"
	AppointmentCompleted   AppointmentStatus = "COMPLETED"
	AppointmentRescheduled AppointmentStatus = "RESCHEDULED"
)

// AppointmentRecord representa um agendamento do médico
type AppointmentRecord struct {
	ID                 RecordID          `json:"id"`
	DoctorID           RecordID          `json:"doctorId,omitempty"`
	PatientName        string            `json:"patientName,omitempty"`
	AppointmentDate    string            `json:"appointmentDate,omitempty"`
	AppointmentTime    string            `json:"appointmentTime,omitempty"`
	Status             AppointmentStatus `json:"status,omitempty"`
	TreatmentStarted   bool              `json:"treatmentStarted"`
	TreatmentCompleted bool              `json:"treatmentCompleted"`
	PaymentCompleted   bool              `json:"paymentCompleted"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// appointmentPayload aceita "id" ou "appointmentId" como identificador
type appointmentPayload struct {
	ID                 RecordID          `json:"id"`
	AppointmentID      RecordID          `json:"appointmentId"`
	DoctorID           RecordID          `json:"doctorId"`
	PatientName        string            `json:"patientName"`
	AppointmentDate    string            `json:"appointmentDate"`
	AppointmentTime    string            `json:"appointmentTime"`
	Status             AppointmentStatus `json:"status"`
	TreatmentStarted   bool              `json:"treatmentStarted"`
	TreatmentCompleted bool              `json:"treatmentCompleted"`
	PaymentCompleted   bool              `json:"paymentCompleted"`
}

func (p appointmentPayload) toRecord(now time.Time) (AppointmentRecord, error) {
	id := p.ID
	if id == "" {
		id = p.AppointmentID
	}
	if id == "" {
		return AppointmentRecord{}, fmt.Errorf("agendamento sem identificador")
	}

	return AppointmentRecord{
		ID:                 id,
		DoctorID:           p.DoctorID,
		PatientName:        p.PatientName,
		AppointmentDate:    p.AppointmentDate,
		AppointmentTime:    p.AppointmentTime,
		Status:             p.Status,
		TreatmentStarted:   p.TreatmentStarted,
		TreatmentCompleted: p.TreatmentCompleted,
		PaymentCompleted:   p.PaymentCompleted,
		UpdatedAt:          now,
	}, nil
}

// fallbackID gera um identificador baseado no horário (milissegundos)
func fallbackID(now time.Time) RecordID {
	return RecordID(strconv.FormatInt(now.UnixMilli(), 10))
}
