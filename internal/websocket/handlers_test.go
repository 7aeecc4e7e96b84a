// internal/websocket/handlers_test.go
package websocket

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olmeda-realtime/internal/models"
	"olmeda-realtime/internal/store"
)

// failingStore para testes de erro de escrita
type failingStore struct{}

func (failingStore) UpsertAppointment(context.Context, models.AppointmentRecord) error {
	return errors.New("disco cheio")
}

func (failingStore) PrependNotification(context.Context, models.NotificationRecord) error {
	return errors.New("disco cheio")
}

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestAppointmentHandler_HandleEvent(t *testing.T) {
	var logBuffer bytes.Buffer
	s := store.NewMemoryStore()
	handler := NewAppointmentHandler(s, newBufferLogger(&logBuffer))

	ev := models.InboundEvent{
		Kind: models.KindAppointment,
		Appointment: &models.AppointmentRecord{
			ID:        "test123",
			DoctorID:  "dent456",
			Status:    models.AppointmentConfirmed,
			UpdatedAt: time.Now(),
		},
	}

	require.NoError(t, handler.HandleEvent(context.Background(), ev))

	got, err := s.Appointments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.RecordID("test123"), got[0].ID)
	assert.Contains(t, logBuffer.String(), "agendamento recebido")
}

func TestNotificationHandler_HandleEvent(t *testing.T) {
	var logBuffer bytes.Buffer
	s := store.NewMemoryStore()
	handler := NewNotificationHandler(s, newBufferLogger(&logBuffer))

	ev := models.InboundEvent{
		Kind: models.KindNotification,
		Notification: &models.NotificationRecord{
			ID:      "n1",
			Type:    models.NotificationInfo,
			Title:   "Teste",
			Message: "Mensagem de teste",
		},
	}

	require.NoError(t, handler.HandleEvent(context.Background(), ev))

	got, err := s.Notifications(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Teste", got[0].Title)
	assert.Contains(t, logBuffer.String(), "notificação recebida")
}

func TestHandlers_Errors(t *testing.T) {
	logger := newBufferLogger(&bytes.Buffer{})
	ctx := context.Background()

	appt := NewAppointmentHandler(store.NewMemoryStore(), logger)
	assert.Error(t, appt.HandleEvent(ctx, models.InboundEvent{Kind: models.KindAppointment}))

	notif := NewNotificationHandler(store.NewMemoryStore(), logger)
	assert.Error(t, notif.HandleEvent(ctx, models.InboundEvent{Kind: models.KindNotification}))

	failing := DefaultHandlers(failingStore{}, logger)
	err := failing[models.KindAppointment].HandleEvent(ctx, models.InboundEvent{
		Kind:        models.KindAppointment,
		Appointment: &models.AppointmentRecord{ID: "1"},
	})
	assert.ErrorContains(t, err, "disco cheio")
}

func TestRunHandler_RecoversPanic(t *testing.T) {
	h := EventHandlerFunc(func(context.Context, models.InboundEvent) error {
		panic("boom")
	})

	err := runHandler(context.Background(), h, models.InboundEvent{Kind: models.KindNotification})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunHandler_PassesDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	slow := EventHandlerFunc(func(ctx context.Context, _ models.InboundEvent) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	err := runHandler(ctx, slow, models.InboundEvent{Kind: models.KindAppointment})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
