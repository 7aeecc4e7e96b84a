// internal/websocket/handlers.go
package websocket

import (
	"context"
	"fmt"
	"log/slog"

	"olmeda-realtime/internal/models"
	"olmeda-realtime/internal/store"
)

// EventHandler aplica um evento decodificado ao estado
type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.InboundEvent) error
}

type EventHandlerFunc func(ctx context.Context, ev models.InboundEvent) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, ev models.InboundEvent) error {
	return f(ctx, ev)
}

// Handlers concretos
type AppointmentHandler struct {
	store  store.StateStore
	logger *slog.Logger
}

type NotificationHandler struct {
	store  store.StateStore
	logger *slog.Logger
}

// HandleEvent faz upsert pelo identificador do agendamento
func (h *AppointmentHandler) HandleEvent(ctx context.Context, ev models.InboundEvent) error {
	if ev.Appointment == nil {
		return fmt.Errorf("evento %s sem agendamento", ev.Kind)
	}

	rec := *ev.Appointment
	if err := h.store.UpsertAppointment(ctx, rec); err != nil {
		return fmt.Errorf("erro ao gravar agendamento %s: %w", rec.ID, err)
	}

	h.logger.Debug("agendamento recebido",
		slog.String("id", string(rec.ID)),
		slog.String("status", string(rec.Status)))
	return nil
}

// HandleEvent insere a notificação no início da lista
func (h *NotificationHandler) HandleEvent(ctx context.Context, ev models.InboundEvent) error {
	if ev.Notification == nil {
		return fmt.Errorf("evento %s sem notificação", ev.Kind)
	}

	rec := *ev.Notification
	if err := h.store.PrependNotification(ctx, rec); err != nil {
		return fmt.Errorf("erro ao gravar notificação %s: %w", rec.ID, err)
	}

	h.logger.Debug("notificação recebida",
		slog.String("id", string(rec.ID)),
		slog.String("type", string(rec.Type)),
		slog.String("title", rec.Title))
	return nil
}

func NewAppointmentHandler(s store.StateStore, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{store: s, logger: logger}
}

func NewNotificationHandler(s store.StateStore, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{store: s, logger: logger}
}

// DefaultHandlers devolve os handlers padrão para os dois tipos de evento
func DefaultHandlers(s store.StateStore, logger *slog.Logger) map[models.EventKind]EventHandler {
	return map[models.EventKind]EventHandler{
		models.KindAppointment:  NewAppointmentHandler(s, logger),
		models.KindNotification: NewNotificationHandler(s, logger),
	}
}
