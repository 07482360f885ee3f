package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/session"
)

const (
	sessionCols = "id, subject, issuer, is_active, created_at"
	entryCols   = "session_id, identifier, name, department, section, device_token, marked_at"
)

type sessionRow struct {
	ID        uuid.UUID `db:"id"`
	Subject   string    `db:"subject"`
	Issuer    string    `db:"issuer"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

type entryRow struct {
	SessionID   uuid.UUID `db:"session_id"`
	Identifier  string    `db:"identifier"`
	Name        string    `db:"name"`
	Department  string    `db:"department"`
	Section     string    `db:"section"`
	DeviceToken string    `db:"device_token"`
	MarkedAt    time.Time `db:"marked_at"`
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) unpack(row sessionRow, entries []session.Entry) session.Session {
	return session.Session{
		ID:        row.ID,
		Subject:   row.Subject,
		Issuer:    row.Issuer,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
		Entries:   entries,
	}
}

func (repo sessionRepository) unpackEntry(row entryRow) session.Entry {
	return session.Entry{
		Identifier:  row.Identifier,
		Name:        row.Name,
		Department:  row.Department,
		Section:     row.Section,
		DeviceToken: row.DeviceToken,
		MarkedAt:    row.MarkedAt,
	}
}

func (repo sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO attendance_session (`+sessionCols+`)
		VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.Subject, sess.Issuer, sess.IsActive, sess.CreatedAt.UTC())
	if err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo sessionRepository) DeactivateIssuerSessions(ctx context.Context, issuer string) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE attendance_session SET is_active = FALSE WHERE issuer = $1 AND is_active", issuer)
	return errors.Wrap(err, "deactivating sessions")
}

func (repo sessionRepository) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+sessionCols+" FROM attendance_session WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "finding session")
	}

	entries, err := repo.sessionEntries(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	return repo.unpack(row, entries[id]), nil
}

// GetActiveSession reads the session like GetSession but reports an
// absent or closed record the same way, as session.ErrNotFound.
func (repo sessionRepository) GetActiveSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+sessionCols+" FROM attendance_session WHERE id = $1 AND is_active", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "finding active session")
	}

	entries, err := repo.sessionEntries(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	return repo.unpack(row, entries[id]), nil
}

func (repo sessionRepository) CloseSession(ctx context.Context, id uuid.UUID) error {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE attendance_session SET is_active = FALSE WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "closing session")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return session.ErrNotFound
	}
	return nil
}

// AppendEntryIfAbsent inserts the entry only while the session is still
// active; the primary key on (session_id, identifier) drops duplicates.
func (repo sessionRepository) AppendEntryIfAbsent(ctx context.Context, id uuid.UUID, entry session.Entry) error {
	res, err := repo.db.ExecContext(ctx, `
		INSERT INTO attendance_entry (`+entryCols+`)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE EXISTS (SELECT 1 FROM attendance_session WHERE id = $1 AND is_active)
		ON CONFLICT (session_id, identifier) DO NOTHING`,
		id, entry.Identifier, entry.Name, entry.Department, entry.Section, entry.DeviceToken, entry.MarkedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "inserting entry")
	}

	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "inserting entry")
	}
	if cnt == 0 {
		var marked bool
		err := repo.db.GetContext(ctx, &marked,
			"SELECT EXISTS (SELECT 1 FROM attendance_entry WHERE session_id = $1 AND identifier = $2)",
			id, entry.Identifier)
		if err != nil {
			return errors.Wrap(err, "inserting entry")
		}
		if marked {
			return session.ErrAlreadyMarked
		}
		return session.ErrNotActive
	}
	return nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, filter session.QueryFilter) ([]session.Session, error) {
	query := "SELECT " + sessionCols + " FROM attendance_session"

	var (
		conds []string
		args  []interface{}
	)
	if filter.Issuer != "" {
		args = append(args, filter.Issuer)
		conds = append(conds, fmt.Sprintf("issuer = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	if len(rows) == 0 {
		return []session.Session{}, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	entries, err := repo.sessionEntries(ctx, ids...)
	if err != nil {
		return nil, err
	}

	sessions := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, repo.unpack(row, entries[row.ID]))
	}
	return sessions, nil
}

// sessionEntries loads the entries of the given sessions in insertion order,
// keyed by session ID.
func (repo sessionRepository) sessionEntries(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID][]session.Entry, error) {
	var rows []entryRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+entryCols+" FROM attendance_entry WHERE session_id = ANY ($1) ORDER BY seq ASC",
		pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "querying entries")
	}

	entries := make(map[uuid.UUID][]session.Entry, len(ids))
	for _, id := range ids {
		entries[id] = []session.Entry{}
	}
	for _, row := range rows {
		entries[row.SessionID] = append(entries[row.SessionID], repo.unpackEntry(row))
	}
	return entries, nil
}
