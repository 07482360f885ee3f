package student

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	ErrNotFound         = errors.New("student not found")
	ErrIdentifierExists = errors.New("a student with this identifier already exists")

	// device binding conflicts reported by Repository.BindStudentDevice
	ErrDeviceBound = errors.New("student is bound to a different device")
	ErrDeviceTaken = errors.New("device is already bound to another student")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckIdentifierUniqueness(ctx context.Context, identifier string) error
		CreateStudent(ctx context.Context, stu Student) (Student, error)
		QueryStudents(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Student, error)
		GetStudent(ctx context.Context, identifier string) (Student, error)
		// GetStudentByDevice returns the student holding token, skipping excludedIdentifier.
		GetStudentByDevice(ctx context.Context, token, excludedIdentifier string) (Student, error)
		UpdateStudent(ctx context.Context, stu Student) (Student, error)
		// BindStudentDevice sets the device token only when the record is unbound
		// or already bound to the same token. It fails with ErrDeviceBound when the
		// record holds a different token and ErrDeviceTaken when another record
		// holds this one.
		BindStudentDevice(ctx context.Context, identifier, token string) error
		ClearStudentDevice(ctx context.Context, identifier string) error
		DeleteStudents(ctx context.Context, identifiers ...string) error
	}

	ServiceInterface interface {
		CheckUniqueness(ctx context.Context, identifier string) error
		Register(ctx context.Context, data NewStudent) (Student, error)
		Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Student, error)
		GetByIdentifier(ctx context.Context, identifier string) (Student, error)
		Update(ctx context.Context, identifier string, data UpdateStudent) (Student, error)
		ResetDevice(ctx context.Context, identifier string) (Student, error)
		Delete(ctx context.Context, identifiers ...string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *Service) CheckUniqueness(ctx context.Context, identifier string) error {
	return svc.repo.CheckIdentifierUniqueness(ctx, core.CleanString(identifier, true /* lower */))
}

func (svc *Service) Register(ctx context.Context, data NewStudent) (Student, error) {
	if err := svc.CheckUniqueness(ctx, data.Identifier); err != nil {
		return Student{}, err
	}

	now := nowFunc()
	stu := Student{
		Identifier: data.Identifier,
		Name:       data.Name,
		Email:      data.Email,
		Department: data.Department,
		Section:    data.Section,
		Password:   data.Password,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	stu, err := svc.repo.CreateStudent(ctx, stu)
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}

	svc.sendWelcomeEmail(stu)
	return stu, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Student, error) {
	filter.Clean()
	return svc.repo.QueryStudents(ctx, filter, orderings...)
}

func (svc *Service) GetByIdentifier(ctx context.Context, identifier string) (Student, error) {
	return svc.repo.GetStudent(ctx, core.CleanString(identifier, true /* lower */))
}

func (svc *Service) Update(ctx context.Context, identifier string, data UpdateStudent) (Student, error) {
	stu, err := svc.GetByIdentifier(ctx, identifier)
	if err != nil {
		return Student{}, err
	}

	if data.Name != "" {
		stu.Name = data.Name
	}
	if data.Email != "" {
		stu.Email = data.Email
	}
	if data.Department != "" {
		stu.Department = data.Department
	}
	if data.Section != "" {
		stu.Section = data.Section
	}
	if data.Password != "" {
		stu.Password = data.Password
	}
	stu.UpdatedAt = nowFunc()

	stu, err = svc.repo.UpdateStudent(ctx, stu)
	if err != nil {
		return Student{}, errors.Wrap(err, "updating student")
	}
	return stu, nil
}

// ResetDevice unbinds the student's device so that their next check-in binds a
// new one. It is an administrative operation.
func (svc *Service) ResetDevice(ctx context.Context, identifier string) (Student, error) {
	identifier = core.CleanString(identifier, true /* lower */)
	if err := svc.repo.ClearStudentDevice(ctx, identifier); err != nil {
		return Student{}, err
	}
	return svc.repo.GetStudent(ctx, identifier)
}

func (svc *Service) Delete(ctx context.Context, identifiers ...string) error {
	for i, identifier := range identifiers {
		identifiers[i] = core.CleanString(identifier, true /* lower */)
	}
	return svc.repo.DeleteStudents(ctx, identifiers...)
}

func (svc *Service) sendWelcomeEmail(stu Student) {
	if stu.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: stu.Name, Address: stu.Email}},
		Subject: "Welcome to " + svc.conf.AppName,
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nYour account (%s) is ready. Attendance is marked from the first device "+
				"you check in with; if you ever change phones, ask an administrator to reset your device.",
			stu.Name, stu.Identifier,
		),
	})
}
