package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/staff"
)

// addStaff updates or creates a staff.Staff
func (cli *commandLine) addStaff(identifier, name, email, role, pwd string) error {
	ctx := context.Background()
	identifier = core.CleanString(identifier, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role, true /* lower */)

	var known bool
	for _, r := range staff.Roles {
		if r == role {
			known = true
			break
		}
	}
	if !known {
		return errors.Errorf("unknown role %q", role)
	}

	stf := staff.Staff{
		Identifier: identifier,
		Name:       core.CleanString(name),
		Email:      email,
		Role:       role,
		Password:   pwd,
		CreatedAt:  time.Now(),
	}
	if _, err := cli.staffRepo.UpdateOrCreateStaff(ctx, stf); err != nil {
		return err
	}
	return nil
}
