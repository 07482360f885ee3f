package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db.session}
}

// copySession copies the record with its own entry slice so callers never
// share backing arrays with the store.
func copySession(sess *session.Session) session.Session {
	out := *sess
	out.Entries = make([]session.Entry, len(sess.Entries))
	copy(out.Entries, sess.Entries)
	return out
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := copySession(&sess)
	repo.db.table[sess.ID] = &stored
	return copySession(&stored), nil
}

func (repo *sessionRepository) DeactivateIssuerSessions(_ context.Context, issuer string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, sess := range repo.db.table {
		if sess.Issuer == issuer {
			sess.IsActive = false
		}
	}
	return nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id uuid.UUID) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sess, ok := repo.db.table[id]; ok {
		return copySession(sess), nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) GetActiveSession(_ context.Context, id uuid.UUID) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sess, ok := repo.db.table[id]; ok && sess.IsActive {
		return copySession(sess), nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) CloseSession(_ context.Context, id uuid.UUID) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.table[id]
	if !ok {
		return session.ErrNotFound
	}
	sess.IsActive = false
	return nil
}

func (repo *sessionRepository) AppendEntryIfAbsent(_ context.Context, id uuid.UUID, entry session.Entry) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.table[id]
	if !ok || !sess.IsActive {
		return session.ErrNotActive
	}
	for _, e := range sess.Entries {
		if e.Identifier == entry.Identifier {
			return session.ErrAlreadyMarked
		}
	}
	sess.Entries = append(sess.Entries, entry)
	return nil
}

func (repo *sessionRepository) QuerySessions(_ context.Context, filter session.QueryFilter) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]session.Session, 0, len(repo.db.table))
	for _, sess := range repo.db.table {
		if filter.Issuer != "" && sess.Issuer != filter.Issuer {
			continue
		}
		if filter.IsActive != nil && sess.IsActive != *filter.IsActive {
			continue
		}
		sessions = append(sessions, copySession(sess))
	}

	// newest first; ID breaks ties between sessions opened at the same instant
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID.String() < sessions[j].ID.String()
	})
	return sessions, nil
}
