// internal/store/store.go
package store

import (
	"context"

	"olmeda-realtime/internal/models"
)

// StateStore recebe os eventos decodificados pelo cliente realtime.
// O cliente só faz upsert de agendamentos e insere notificações; nunca remove nem lê.
type StateStore interface {
	UpsertAppointment(ctx context.Context, rec models.AppointmentRecord) error
	PrependNotification(ctx context.Context, rec models.NotificationRecord) error
}

// Reader expõe o estado para quem observa o store (API de status, testes)
type Reader interface {
	Appointments(ctx context.Context) ([]models.AppointmentRecord, error)
	// Notifications devolve da mais nova para a mais antiga. limit <= 0 devolve todas.
	Notifications(ctx context.Context, limit int) ([]models.NotificationRecord, error)
}

// Store combina escrita e leitura
type Store interface {
	StateStore
	Reader
}
