package session

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
)

type (
	// Session is an attendance sheet opened by a staff member for a class.
	// Entries are kept out of the default JSON shape; the roster endpoint
	// serves them on its own.
	Session struct {
		ID        uuid.UUID `json:"id"`
		Subject   string    `json:"subject"`
		Issuer    string    `json:"issuer"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"`

		Entries []Entry `json:"-"`
	}

	// Entry is one student's mark on a session. Fields are snapshotted at
	// check-in time so the roster survives later profile edits.
	Entry struct {
		Identifier  string    `json:"identifier"`
		Name        string    `json:"name"`
		Department  string    `json:"department"`
		Section     string    `json:"section"`
		DeviceToken string    `json:"device_token"`
		MarkedAt    time.Time `json:"marked_at"`
	}

	NewSession struct {
		Issuer  string `json:"issuer" validate:"required"`
		Subject string `json:"subject" validate:"required"`
	}

	// CheckIn is a student's request to be marked present. Name, Department
	// and Section are optional display overrides; the stored profile wins
	// when they are empty.
	CheckIn struct {
		Identifier  string `json:"identifier" validate:"required"`
		DeviceToken string `json:"device_token" validate:"required"`
		Name        string `json:"name"`
		Department  string `json:"department"`
		Section     string `json:"section"`
	}

	QueryFilter struct {
		Issuer   string `query:"issuer"`
		IsActive *bool  `query:"is_active"`
	}
)

func (s *Session) AttendeeCount() int { return len(s.Entries) }

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Issuer = core.CleanString(ns.Issuer, true /* lower */)
	ns.Subject = core.CleanString(ns.Subject)
	return validate.Struct(ns)
}

func (ci *CheckIn) Validate(validate *validator.Validate) error {
	ci.Identifier = core.CleanString(ci.Identifier, true /* lower */)
	ci.DeviceToken = core.CleanString(ci.DeviceToken)
	ci.Name = core.CleanString(ci.Name)
	ci.Department = core.CleanString(ci.Department)
	ci.Section = core.CleanString(ci.Section)
	return validate.Struct(ci)
}

func (f *QueryFilter) Clean() {
	f.Issuer = core.CleanString(f.Issuer, true /* lower */)
}
