// internal/models/notification.go
package models

import (
	"encoding/json"
	"strings"
	"time"
)

type NotificationType string

const (
	NotificationSystem    NotificationType = "SYSTEM"
	NotificationInfo      NotificationType = "INFO"
	NotificationUpdate    NotificationType = "UPDATE"
	NotificationAlert     NotificationType = "ALERT"
	NotificationEmergency NotificationType = "EMERGENCY"
)

// DefaultNotificationTitle é usado quando o servidor não envia título
const DefaultNotificationTitle = "Notification"

var knownNotificationTypes = map[NotificationType]struct{}{
	NotificationSystem:    {},
	NotificationInfo:      {},
	NotificationUpdate:    {},
	NotificationAlert:     {},
	NotificationEmergency: {},
}

// NormalizeNotificationType devolve SYSTEM para qualquer valor fora da enumeração
func NormalizeNotificationType(raw string) NotificationType {
	t := NotificationType(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := knownNotificationTypes[t]; ok {
		return t
	}
	return NotificationSystem
}

// NotificationRecord representa uma notificação exibida ao médico
type NotificationRecord struct {
	ID        RecordID         `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// notificationPayload usa ponteiros para diferenciar campos ausentes. type e
// createdAt chegam em formatos variados e ficam crus até o toRecord.
type notificationPayload struct {
	ID        *RecordID       `json:"id"`
	Type      json.RawMessage `json:"type"`
	Title     *string         `json:"title"`
	Message   *string         `json:"message"`
	Read      *bool           `json:"read"`
	CreatedAt json.RawMessage `json:"createdAt"`
}

var notificationTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (p notificationPayload) toRecord(now time.Time) NotificationRecord {
	rec := NotificationRecord{
		Type:      NotificationSystem,
		Title:     DefaultNotificationTitle,
		CreatedAt: now,
	}

	var rawType string
	if json.Unmarshal(p.Type, &rawType) == nil {
		rec.Type = NormalizeNotificationType(rawType)
	}
	if p.ID != nil && *p.ID != "" {
		rec.ID = *p.ID
	} else {
		rec.ID = fallbackID(now)
	}
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Message != nil {
		rec.Message = *p.Message
	}
	if p.Read != nil {
		rec.Read = *p.Read
	}
	if t, ok := parseNotificationTime(p.CreatedAt); ok {
		rec.CreatedAt = t
	}

	return rec
}

// parseNotificationTime aceita texto (RFC3339 ou local), epoch em
// milissegundos e o array [ano, mês, dia, hora, min, seg, nanos] do Jackson.
// Qualquer outro formato conta como ausente.
func parseNotificationTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}

	var text string
	if json.Unmarshal(raw, &text) == nil {
		for _, layout := range notificationTimeLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}

	var millis int64
	if json.Unmarshal(raw, &millis) == nil {
		return time.UnixMilli(millis).UTC(), true
	}

	var parts []int
	if json.Unmarshal(raw, &parts) == nil && len(parts) >= 3 && len(parts) <= 7 {
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		if parts[1] < 1 || parts[1] > 12 || parts[2] < 1 || parts[2] > 31 {
			return time.Time{}, false
		}
		return time.Date(parts[0], time.Month(parts[1]), parts[2],
			parts[3], parts[4], parts[5], parts[6], time.UTC), true
	}

	return time.Time{}, false
}
