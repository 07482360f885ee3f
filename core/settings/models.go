package settings

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type (
	// Settings is the single system-wide configuration record.
	Settings struct {
		LoginLocked bool      `json:"login_locked"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	// UpdateSettings replaces the whole record; every field must be sent.
	UpdateSettings struct {
		LoginLocked *bool `json:"login_locked" validate:"required"`
	}
)

func (us *UpdateSettings) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}
