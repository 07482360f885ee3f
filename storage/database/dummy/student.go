package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, stu := range repo.db.table {
		students = append(students, *stu)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Identifier < students[j].Identifier })
	return students
}

func (repo *studentRepository) CheckIdentifierUniqueness(_ context.Context, identifier string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if _, ok := repo.db.table[identifier]; ok {
		return student.ErrIdentifierExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, stu student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[stu.Identifier]; ok {
		return student.Student{}, student.ErrIdentifierExists
	}
	repo.db.table[stu.Identifier] = &stu
	return stu, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter student.QueryFilter, _ ...core.DBOrdering) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := repo.query()

	// students with search keyword matching Identifier, Name or Email ?
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		filtered := make([]student.Student, 0, len(students))
		for _, stu := range students {
			if strings.Contains(strings.ToLower(stu.Identifier), search) ||
				strings.Contains(strings.ToLower(stu.Name), search) ||
				strings.Contains(strings.ToLower(stu.Email), search) {
				filtered = append(filtered, stu)
			}
		}
		students = filtered
	}
	if filter.Department != "" {
		filtered := make([]student.Student, 0, len(students))
		for _, stu := range students {
			if strings.EqualFold(stu.Department, filter.Department) {
				filtered = append(filtered, stu)
			}
		}
		students = filtered
	}
	if filter.Section != "" {
		filtered := make([]student.Student, 0, len(students))
		for _, stu := range students {
			if strings.EqualFold(stu.Section, filter.Section) {
				filtered = append(filtered, stu)
			}
		}
		students = filtered
	}

	return students, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, identifier string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if stu, ok := repo.db.table[identifier]; ok {
		return *stu, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByDevice(_ context.Context, deviceToken, excludedIdentifier string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if deviceToken == "" {
		return student.Student{}, student.ErrNotFound
	}
	for _, stu := range repo.db.table {
		if stu.DeviceToken == deviceToken && stu.Identifier != excludedIdentifier {
			return *stu, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, stu student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[stu.Identifier]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	if stu.DeviceToken != "" {
		for _, other := range repo.db.table {
			if other.Identifier != stu.Identifier && other.DeviceToken == stu.DeviceToken {
				return student.Student{}, student.ErrDeviceTaken
			}
		}
	}
	repo.db.table[stu.Identifier] = &stu
	return stu, nil
}

func (repo *studentRepository) BindStudentDevice(_ context.Context, identifier, deviceToken string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	stu, ok := repo.db.table[identifier]
	if !ok {
		return student.ErrNotFound
	}
	if stu.DeviceToken != "" && stu.DeviceToken != deviceToken {
		return student.ErrDeviceBound
	}
	for _, other := range repo.db.table {
		if other.Identifier != identifier && other.DeviceToken == deviceToken {
			return student.ErrDeviceTaken
		}
	}
	stu.DeviceToken = deviceToken
	stu.UpdatedAt = time.Now()
	return nil
}

func (repo *studentRepository) ClearStudentDevice(_ context.Context, identifier string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	stu, ok := repo.db.table[identifier]
	if !ok {
		return student.ErrNotFound
	}
	stu.DeviceToken = ""
	stu.UpdatedAt = time.Now()
	return nil
}

func (repo *studentRepository) DeleteStudents(_ context.Context, identifiers ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, identifier := range identifiers {
		delete(repo.db.table, identifier)
	}
	return nil
}
