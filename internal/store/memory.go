// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sync"

	"olmeda-realtime/internal/models"
)

type ChangeKind string

const (
	ChangeAppointmentUpserted  ChangeKind = "appointment_upserted"
	ChangeNotificationAdded    ChangeKind = "notification_added"
	ChangeNotificationMarkRead ChangeKind = "notification_read"
)

// Change é entregue aos observadores depois de cada escrita
type Change struct {
	Kind         ChangeKind
	Appointment  *models.AppointmentRecord
	Notification *models.NotificationRecord
}

// MemoryStore mantém o estado em memória, como o store da aplicação móvel
type MemoryStore struct {
	mu            sync.RWMutex
	appointments  map[models.RecordID]models.AppointmentRecord
	order         []models.RecordID
	notifications []models.NotificationRecord

	observersMu sync.RWMutex
	observers   map[int]func(Change)
	nextID      int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appointments: make(map[models.RecordID]models.AppointmentRecord),
		observers:    make(map[int]func(Change)),
	}
}

// Observe registra um observador. A função devolvida cancela o registro.
func (s *MemoryStore) Observe(fn func(Change)) func() {
	s.observersMu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.observersMu.Unlock()

	return func() {
		s.observersMu.Lock()
		delete(s.observers, id)
		s.observersMu.Unlock()
	}
}

func (s *MemoryStore) notify(c Change) {
	s.observersMu.RLock()
	fns := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.observersMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

// UpsertAppointment substitui o registro com o mesmo ID ou insere no fim
func (s *MemoryStore) UpsertAppointment(_ context.Context, rec models.AppointmentRecord) error {
	s.mu.Lock()
	if _, exists := s.appointments[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.appointments[rec.ID] = rec
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAppointmentUpserted, Appointment: &rec})
	return nil
}

// PrependNotification insere no início da lista (mais nova primeiro)
func (s *MemoryStore) PrependNotification(_ context.Context, rec models.NotificationRecord) error {
	s.mu.Lock()
	s.notifications = append(s.notifications, models.NotificationRecord{})
	copy(s.notifications[1:], s.notifications)
	s.notifications[0] = rec
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeNotificationAdded, Notification: &rec})
	return nil
}

// MarkNotificationRead é usado pelo lado REST; o cliente realtime nunca altera notificações
func (s *MemoryStore) MarkNotificationRead(_ context.Context, id models.RecordID) error {
	s.mu.Lock()
	var updated *models.NotificationRecord
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			rec := s.notifications[i]
			updated = &rec
			break
		}
	}
	s.mu.Unlock()

	if updated == nil {
		return fmt.Errorf("notificação %s não encontrada", id)
	}
	s.notify(Change{Kind: ChangeNotificationMarkRead, Notification: updated})
	return nil
}

func (s *MemoryStore) Appointments(_ context.Context) ([]models.AppointmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AppointmentRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.appointments[id])
	}
	return out, nil
}

func (s *MemoryStore) Notifications(_ context.Context, limit int) ([]models.NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.notifications)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.NotificationRecord, n)
	copy(out, s.notifications[:n])
	return out, nil
}
