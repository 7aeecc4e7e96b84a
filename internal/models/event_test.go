package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestParseInboundEvent_Appointment(t *testing.T) {
	body := []byte(`{"type":"APPOINTMENT","payload":{"appointmentId":1234,"doctorId":"42","status":"CONFIRMED","paymentCompleted":true}}`)

	ev, err := ParseInboundEvent(body, fixedNow)
	require.NoError(t, err)
	require.Equal(t, KindAppointment, ev.Kind)
	require.NotNil(t, ev.Appointment)
	assert.Nil(t, ev.Notification)
	assert.Equal(t, RecordID("1234"), ev.Appointment.ID)
	assert.Equal(t, RecordID("42"), ev.Appointment.DoctorID)
	assert.Equal(t, AppointmentConfirmed, ev.Appointment.Status)
	assert.True(t, ev.Appointment.PaymentCompleted)
	assert.Equal(t, fixedNow, ev.Appointment.UpdatedAt)
}

func TestParseInboundEvent_AppointmentWithoutID(t *testing.T) {
	_, err := ParseInboundEvent([]byte(`{"type":"APPOINTMENT","payload":{"status":"PENDING"}}`), fixedNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedFrame))
}

func TestParseInboundEvent_NotificationDefaults(t *testing.T) {
	ev, err := ParseInboundEvent([]byte(`{"type":"NOTIFICATION","payload":{"type":"bogus"}}`), fixedNow)
	require.NoError(t, err)
	require.NotNil(t, ev.Notification)

	n := ev.Notification
	assert.Equal(t, NotificationSystem, n.Type)
	assert.Equal(t, RecordID("1773480600000"), n.ID)
	assert.Equal(t, fixedNow, n.CreatedAt)
	assert.False(t, n.Read)
	assert.Equal(t, DefaultNotificationTitle, n.Title)
	assert.Equal(t, "", n.Message)
}

func TestParseInboundEvent_NotificationKeepsKnownFields(t *testing.T) {
	body := []byte(`{"type":"NOTIFICATION","payload":{"id":"n-1","type":"EMERGENCY","title":"Paciente","message":"Chegou","read":true,"createdAt":"2026-03-14T08:00:00Z"}}`)

	ev, err := ParseInboundEvent(body, fixedNow)
	require.NoError(t, err)

	n := ev.Notification
	assert.Equal(t, RecordID("n-1"), n.ID)
	assert.Equal(t, NotificationEmergency, n.Type)
	assert.Equal(t, "Paciente", n.Title)
	assert.Equal(t, "Chegou", n.Message)
	assert.True(t, n.Read)
	assert.Equal(t, time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), n.CreatedAt)
}

func TestParseInboundEvent_NotificationOddFieldShapes(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantType NotificationType
		wantAt   time.Time
	}{
		{
			name:     "type numérico",
			payload:  `{"type":7}`,
			wantType: NotificationSystem,
			wantAt:   fixedNow,
		},
		{
			name:     "type nulo",
			payload:  `{"type":null,"createdAt":null}`,
			wantType: NotificationSystem,
			wantAt:   fixedNow,
		},
		{
			name:     "createdAt em epoch millis",
			payload:  `{"type":"info","createdAt":1767323045000}`,
			wantType: NotificationInfo,
			wantAt:   time.UnixMilli(1767323045000).UTC(),
		},
		{
			name:     "createdAt como array do Jackson",
			payload:  `{"type":"UPDATE","createdAt":[2026,1,2,3,4,5]}`,
			wantType: NotificationUpdate,
			wantAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name:     "createdAt objeto",
			payload:  `{"type":"ALERT","createdAt":{"epoch":1}}`,
			wantType: NotificationAlert,
			wantAt:   fixedNow,
		},
		{
			name:     "createdAt texto inválido",
			payload:  `{"createdAt":"ontem"}`,
			wantType: NotificationSystem,
			wantAt:   fixedNow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseInboundEvent([]byte(`{"type":"NOTIFICATION","payload":`+tt.payload+`}`), fixedNow)
			require.NoError(t, err)
			require.NotNil(t, ev.Notification)
			assert.Equal(t, tt.wantType, ev.Notification.Type)
			assert.True(t, tt.wantAt.Equal(ev.Notification.CreatedAt), "createdAt = %v", ev.Notification.CreatedAt)
		})
	}
}

func TestParseInboundEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "json inválido", body: `not json`, want: ErrMalformedFrame},
		{name: "sem type", body: `{"payload":{}}`, want: ErrMalformedFrame},
		{name: "payload ausente", body: `{"type":"NOTIFICATION"}`, want: ErrMalformedFrame},
		{name: "payload não objeto", body: `{"type":"APPOINTMENT","payload":[1,2]}`, want: ErrMalformedFrame},
		{name: "tipo desconhecido", body: `{"type":"CHAT","payload":{}}`, want: ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInboundEvent([]byte(tt.body), fixedNow)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestNormalizeNotificationType(t *testing.T) {
	assert.Equal(t, NotificationEmergency, NormalizeNotificationType("EMERGENCY"))
	assert.Equal(t, NotificationAlert, NormalizeNotificationType(" alert "))
	assert.Equal(t, NotificationSystem, NormalizeNotificationType("bogus"))
	assert.Equal(t, NotificationSystem, NormalizeNotificationType(""))
}
