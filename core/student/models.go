package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

// Student is an identity record. The identifier is the key students present
// when checking in; it is stored trimmed and lower-cased. DeviceToken is empty
// until the first successful check-in binds a device to the record.
type Student struct {
	Identifier  string    `json:"identifier"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Department  string    `json:"department"`
	Section     string    `json:"section"`
	Password    string    `json:"-"`
	DeviceToken string    `json:"device_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s Student) HasDevice() bool { return s.DeviceToken != "" }

func (s Student) CheckPassword(pwd string) bool {
	return s.Password != "" && s.Password == pwd
}

type NewStudent struct {
	Identifier string `json:"identifier" validate:"required,min=2,max=64"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Department string `json:"department" validate:"required"`
	Section    string `json:"section" validate:"required,alphanum_"`
	Password   string `json:"password" validate:"required"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Identifier = core.CleanString(ns.Identifier, true /* lower */)
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Department = core.CleanString(ns.Department)
	ns.Section = core.CleanString(ns.Section)
	return validate.Struct(ns)
}

// UpdateStudent carries a partial update; empty fields are left untouched.
// The identifier itself is immutable.
type UpdateStudent struct {
	Name       string `json:"name"`
	Email      string `json:"email" validate:"omitempty,email"`
	Department string `json:"department"`
	Section    string `json:"section" validate:"omitempty,alphanum_"`
	Password   string `json:"password"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.Email = core.CleanString(us.Email, true /* lower */)
	us.Department = core.CleanString(us.Department)
	us.Section = core.CleanString(us.Section)
	return validate.Struct(us)
}

type QueryFilter struct {
	Search     string `query:"search"`
	Department string `query:"department"`
	Section    string `query:"section"`
}

func (f *QueryFilter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
	f.Department = core.CleanString(f.Department)
	f.Section = core.CleanString(f.Section)
}
