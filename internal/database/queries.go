// internal/database/queries.go
package database

// migration de schema aplicada apenas no driver sqlite.
// No driver odbc (Access) as tabelas já existem, como no banco legado.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS appointments (
	id         TEXT PRIMARY KEY,
	doctor_id  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	seq        INTEGER PRIMARY KEY,
	id         TEXT NOT NULL,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	is_read    INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// Queries constantes. Apenas SQL portável entre sqlite e Access (sem UPSERT, sem LIMIT).
const (
	QueryUpdateAppointment = `
        UPDATE appointments
        SET doctor_id = ?,
            status = ?,
            payload = ?,
            updated_at = ?
        WHERE id = ?
    `

	QueryInsertAppointment = `
        INSERT INTO appointments (id, doctor_id, status, payload, updated_at)
        VALUES (?, ?, ?, ?, ?)
    `

	QueryListAppointments = `
        SELECT payload FROM appointments ORDER BY id
    `

	QueryMaxNotificationSeq = `
        SELECT MAX(seq) FROM notifications
    `

	QueryInsertNotification = `
        INSERT INTO notifications (seq, id, type, title, message, is_read, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `

	QueryListNotifications = `
        SELECT id, type, title, message, is_read, created_at
        FROM notifications
        ORDER BY seq DESC
    `
)
