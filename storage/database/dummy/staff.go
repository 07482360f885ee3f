package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core/staff"
)

type staffRepository struct {
	db *staffTable
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *DB) staff.Repository {
	return &staffRepository{db: db.staff}
}

func (repo *staffRepository) CheckIdentifierUniqueness(_ context.Context, identifier string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if _, ok := repo.db.table[identifier]; ok {
		return staff.ErrIdentifierExists
	}
	return nil
}

func (repo *staffRepository) CreateStaff(_ context.Context, stf staff.Staff) (staff.Staff, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[stf.Identifier]; ok {
		return staff.Staff{}, staff.ErrIdentifierExists
	}
	repo.db.table[stf.Identifier] = &stf
	return stf, nil
}

func (repo *staffRepository) UpdateOrCreateStaff(_ context.Context, stf staff.Staff) (staff.Staff, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if prev, ok := repo.db.table[stf.Identifier]; ok {
		stf.CreatedAt = prev.CreatedAt
	}
	repo.db.table[stf.Identifier] = &stf
	return stf, nil
}

func (repo *staffRepository) QueryAllStaff(_ context.Context) ([]staff.Staff, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := make([]staff.Staff, 0, len(repo.db.table))
	for _, stf := range repo.db.table {
		members = append(members, *stf)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Identifier < members[j].Identifier })
	return members, nil
}

func (repo *staffRepository) GetStaff(_ context.Context, identifier string) (staff.Staff, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if stf, ok := repo.db.table[identifier]; ok {
		return *stf, nil
	}
	return staff.Staff{}, staff.ErrNotFound
}

func (repo *staffRepository) DeleteStaff(_ context.Context, identifiers ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, identifier := range identifiers {
		delete(repo.db.table, identifier)
	}
	return nil
}
