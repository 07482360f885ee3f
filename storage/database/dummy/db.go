// Package dummydb is an in-memory store used in tests and local hacking.
package dummydb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/core/settings"
	"github.com/trezcool/mahudhurio/core/staff"
	"github.com/trezcool/mahudhurio/core/student"
)

type (
	DB struct {
		student  *studentTable
		staff    *staffTable
		session  *sessionTable
		settings *settingsTable
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	staffTable struct {
		sync.RWMutex
		table map[string]*staff.Staff
	}

	sessionTable struct {
		sync.RWMutex
		table map[uuid.UUID]*session.Session
	}

	settingsTable struct {
		sync.RWMutex
		record *settings.Settings
	}
)

func Open() (*DB, error) {
	db := &DB{
		student:  &studentTable{table: make(map[string]*student.Student)},
		staff:    &staffTable{table: make(map[string]*staff.Staff)},
		session:  &sessionTable{table: make(map[uuid.UUID]*session.Session)},
		settings: &settingsTable{},
	}
	return db, nil
}
