package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/mahudhurio/core/staff"
	"github.com/trezcool/mahudhurio/core/student"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db          *sql.DB
	studentRepo student.Repository
	staffRepo   staff.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run database migrations (up, down, status, ...)")
	fmt.Println("  addstaff -identifier IDENTIFIER -name NAME [-email EMAIL] [-role ROLE] - add a staff member")
	fmt.Println("  resetdevice -identifier IDENTIFIER - unbind a student's device")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addStaffCmd := flag.NewFlagSet("addstaff", flag.ExitOnError)
	addStaffIdentifier := addStaffCmd.String("identifier", "", "The staff member's identifier. The password will be prompted next.")
	addStaffName := addStaffCmd.String("name", "", "The staff member's display name.")
	addStaffEmail := addStaffCmd.String("email", "", "The staff member's email address.")
	addStaffRole := addStaffCmd.String("role", staff.RoleTeacher, "The staff member's role: teacher or admin.")

	resetDeviceCmd := flag.NewFlagSet("resetdevice", flag.ExitOnError)
	resetDeviceIdentifier := resetDeviceCmd.String("identifier", "", "The student's identifier.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addstaff":
		if err := addStaffCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStaffIdentifier == "" || *addStaffName == "" {
			addStaffCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addStaffCmd.Usage()
			return errHelp
		}
		return cli.addStaff(*addStaffIdentifier, *addStaffName, *addStaffEmail, *addStaffRole, string(pwd))
	case "resetdevice":
		if err := resetDeviceCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetDeviceIdentifier == "" {
			resetDeviceCmd.Usage()
			return errHelp
		}
		return cli.resetDevice(*resetDeviceIdentifier)
	default:
		cli.printUsage()
		return errHelp
	}
}
