// internal/database/sqlstore.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"olmeda-realtime/internal/models"
)

const (
	DriverSQLite = "sqlite"
	DriverODBC   = "odbc"
)

// SQLStore persiste o estado realtime em banco SQL (sqlite local ou Access via ODBC)
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// NewSQLStore abre a conexão, testa com ping e aplica as migrations no sqlite
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir conexão com banco: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao testar conexão: %w", err)
	}

	s := &SQLStore{db: db, driver: driver}
	if driver == DriverSQLite {
		// sqlite em memória perde o schema se o pool abrir outra conexão
		db.SetMaxOpenConns(1)
		if err := s.runMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("erro ao aplicar migrations: %w", err)
		}
	}

	return s, nil
}

// Close fecha a conexão com o banco
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping verifica se a conexão continua válida
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) runMigrations() error {
	current := 0

	var tables int
	err := s.db.Get(&tables, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("verificando schema_version: %w", err)
	}
	if tables > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("lendo versão do schema: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("aplicando migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// UpsertAppointment faz UPDATE e, se nenhuma linha foi afetada, INSERT na mesma transação
func (s *SQLStore) UpsertAppointment(ctx context.Context, rec models.AppointmentRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("erro ao serializar agendamento %s: %w", rec.ID, err)
	}
	updatedAt := rec.UpdatedAt.UnixMilli()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, QueryUpdateAppointment,
		string(rec.DoctorID), string(rec.Status), string(payload), updatedAt, string(rec.ID))
	if err != nil {
		return fmt.Errorf("erro ao atualizar agendamento %s: %w", rec.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("erro ao obter linhas afetadas: %w", err)
	}

	if rows == 0 {
		_, err = tx.ExecContext(ctx, QueryInsertAppointment,
			string(rec.ID), string(rec.DoctorID), string(rec.Status), string(payload), updatedAt)
		if err != nil {
			return fmt.Errorf("erro ao inserir agendamento %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// PrependNotification grava com seq = MAX(seq)+1; a leitura ordena por seq decrescente
func (s *SQLStore) PrependNotification(ctx context.Context, rec models.NotificationRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64
	if err := tx.GetContext(ctx, &maxSeq, QueryMaxNotificationSeq); err != nil {
		return fmt.Errorf("erro ao ler sequência de notificações: %w", err)
	}

	_, err = tx.ExecContext(ctx, QueryInsertNotification,
		maxSeq.Int64+1,
		string(rec.ID),
		string(rec.Type),
		rec.Title,
		rec.Message,
		boolToInt(rec.Read),
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("erro ao inserir notificação %s: %w", rec.ID, err)
	}

	return tx.Commit()
}

func (s *SQLStore) Appointments(ctx context.Context) ([]models.AppointmentRecord, error) {
	var payloads []string
	if err := s.db.SelectContext(ctx, &payloads, QueryListAppointments); err != nil {
		return nil, fmt.Errorf("erro ao executar query: %w", err)
	}

	records := make([]models.AppointmentRecord, 0, len(payloads))
	for _, p := range payloads {
		var rec models.AppointmentRecord
		if err := json.Unmarshal([]byte(p), &rec); err != nil {
			return nil, fmt.Errorf("erro ao ler registro: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Notifications aplica o limite no laço; Access não tem LIMIT
func (s *SQLStore) Notifications(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	rows, err := s.db.QueryxContext(ctx, QueryListNotifications)
	if err != nil {
		return nil, fmt.Errorf("erro ao executar query: %w", err)
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		if limit > 0 && len(records) >= limit {
			break
		}

		var (
			id, typ, title, message string
			read                    int
			createdAt               int64
		)
		if err := rows.Scan(&id, &typ, &title, &message, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("erro ao ler registro: %w", err)
		}

		records = append(records, models.NotificationRecord{
			ID:        models.RecordID(id),
			Type:      models.NotificationType(typ),
			Title:     title,
			Message:   message,
			Read:      read != 0,
			CreatedAt: time.UnixMilli(createdAt).UTC(),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar registros: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
