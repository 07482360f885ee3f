package main

import (
	"context"

	"github.com/trezcool/mahudhurio/core"
)

func (cli *commandLine) resetDevice(identifier string) error {
	ctx := context.Background()
	return cli.studentRepo.ClearStudentDevice(ctx, core.CleanString(identifier, true /* lower */))
}
