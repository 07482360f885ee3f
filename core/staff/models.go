package staff

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var Roles = []string{RoleTeacher, RoleAdmin}

// Staff is a faculty account. Admins are staff with the admin role rather than
// a separate collection.
type Staff struct {
	Identifier string    `json:"identifier"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role"`
	Password   string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s Staff) IsAdmin() bool   { return s.Role == RoleAdmin }
func (s Staff) IsTeacher() bool { return s.Role == RoleTeacher }

func (s Staff) CheckPassword(pwd string) bool {
	return s.Password != "" && s.Password == pwd
}

type NewStaff struct {
	Identifier string `json:"identifier" validate:"required,min=2,max=64"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Role       string `json:"role" validate:"required,oneof=teacher admin"`
	Password   string `json:"password" validate:"required"`
}

func (ns *NewStaff) Validate(validate *validator.Validate) error {
	ns.Identifier = core.CleanString(ns.Identifier, true /* lower */)
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Role = core.CleanString(ns.Role, true /* lower */)
	return validate.Struct(ns)
}
