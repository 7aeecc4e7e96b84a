// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"olmeda-realtime/internal/models"
)

// RedisStore guarda agendamentos num hash e notificações numa lista (LPUSH = mais nova primeiro)
type RedisStore struct {
	client           redis.UniversalClient
	appointmentsKey  string
	notificationsKey string
	maxNotifications int64
}

type RedisOptions struct {
	Prefix           string
	MaxNotifications int64
}

func NewRedisStore(client redis.UniversalClient, opts RedisOptions) *RedisStore {
	if client == nil {
		panic("store: redis client required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "olmeda:realtime"
	}
	return &RedisStore{
		client:           client,
		appointmentsKey:  prefix + ":appointments",
		notificationsKey: prefix + ":notifications",
		maxNotifications: opts.MaxNotifications,
	}
}

func (s *RedisStore) UpsertAppointment(ctx context.Context, rec models.AppointmentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: serializar agendamento %s: %w", rec.ID, err)
	}
	if err := s.client.HSet(ctx, s.appointmentsKey, string(rec.ID), data).Err(); err != nil {
		return fmt.Errorf("store: upsert agendamento %s: %w", rec.ID, err)
	}
	return nil
}

func (s *RedisStore) PrependNotification(ctx context.Context, rec models.NotificationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: serializar notificação %s: %w", rec.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.notificationsKey, data)
		if s.maxNotifications > 0 {
			pipe.LTrim(ctx, s.notificationsKey, 0, s.maxNotifications-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: inserir notificação %s: %w", rec.ID, err)
	}
	return nil
}

// Appointments devolve os registros ordenados por ID (o hash não guarda ordem)
func (s *RedisStore) Appointments(ctx context.Context) ([]models.AppointmentRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.appointmentsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("store: listar agendamentos: %w", err)
	}

	out := make([]models.AppointmentRecord, 0, len(raw))
	for id, data := range raw {
		var rec models.AppointmentRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("store: decodificar agendamento %s: %w", id, err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RedisStore) Notifications(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	raw, err := s.client.LRange(ctx, s.notificationsKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("store: listar notificações: %w", err)
	}

	out := make([]models.NotificationRecord, 0, len(raw))
	for _, data := range raw {
		var rec models.NotificationRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("store: decodificar notificação: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
