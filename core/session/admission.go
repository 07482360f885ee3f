package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

// MarkAttendance runs a check-in against the session. Checks run in a fixed
// order so a request failing several of them always reports the same reason:
// session must be active, student must not be on the sheet yet, identifier
// must be registered, device must match the student's binding and belong to
// no one else. The first check-in from an unbound student claims the device.
//
// Same-session and same-device requests are serialized with keyed locks;
// the store-level conditional writes in step 6 cover writers outside this
// process.
func (svc *Service) MarkAttendance(ctx context.Context, id uuid.UUID, data CheckIn) (Entry, error) {
	identifier := core.CleanString(data.Identifier, true /* lower */)
	deviceToken := core.CleanString(data.DeviceToken)

	unlockSess := svc.sessLocks.lock(id.String())
	defer unlockSess()

	// 1. the target session must exist and be active
	sess, err := svc.repo.GetActiveSession(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Entry{}, ErrNotActive
		}
		return Entry{}, errors.Wrap(err, "loading session")
	}

	// 2. one mark per student per session; checked before identity so a
	// student deleted after marking still reads as already marked
	for _, entry := range sess.Entries {
		if entry.Identifier == identifier {
			return Entry{}, ErrAlreadyMarked
		}
	}

	// 3. the identifier must belong to a registered student
	stu, err := svc.identities.GetStudent(ctx, identifier)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return Entry{}, ErrUnknownIdentity
		}
		return Entry{}, errors.Wrap(err, "resolving student")
	}

	unlockDev := svc.deviceLocks.lock(deviceToken)
	defer unlockDev()

	// 4. a bound student may only check in from their own device
	if stu.HasDevice() && stu.DeviceToken != deviceToken {
		return Entry{}, ErrDeviceConflict
	}

	// 5. the device must not belong to another student
	other, err := svc.identities.GetStudentByDevice(ctx, deviceToken, identifier)
	switch errors.Cause(err) {
	case nil:
		return Entry{}, &DeviceInUseError{OtherName: other.Name}
	case student.ErrNotFound:
	default:
		return Entry{}, errors.Wrap(err, "checking device")
	}

	// 6. commit: claim the device on first use, then append the entry
	if !stu.HasDevice() {
		if err := svc.identities.BindStudentDevice(ctx, identifier, deviceToken); err != nil {
			switch errors.Cause(err) {
			case student.ErrDeviceBound:
				return Entry{}, ErrDeviceConflict
			case student.ErrDeviceTaken:
				return Entry{}, svc.deviceInUseErr(ctx, deviceToken, identifier)
			case student.ErrNotFound:
				return Entry{}, ErrUnknownIdentity
			}
			return Entry{}, errors.Wrap(err, "binding device")
		}
	}

	entry := Entry{
		Identifier:  identifier,
		Name:        fallback(data.Name, stu.Name),
		Department:  fallback(data.Department, stu.Department),
		Section:     fallback(data.Section, stu.Section),
		DeviceToken: deviceToken,
		MarkedAt:    nowFunc(),
	}
	if err := svc.repo.AppendEntryIfAbsent(ctx, id, entry); err != nil {
		switch errors.Cause(err) {
		case ErrAlreadyMarked, ErrNotActive:
			return Entry{}, errors.Cause(err)
		}
		return Entry{}, errors.Wrap(err, "recording attendance")
	}
	return entry, nil
}

// deviceInUseErr resolves the token's current holder for the refusal
// message. The holder can vanish between the failed bind and this lookup;
// the error then falls back to a generic name.
func (svc *Service) deviceInUseErr(ctx context.Context, deviceToken, excludedIdentifier string) error {
	other, err := svc.identities.GetStudentByDevice(ctx, deviceToken, excludedIdentifier)
	if err != nil {
		return &DeviceInUseError{}
	}
	return &DeviceInUseError{OtherName: other.Name}
}

func fallback(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
