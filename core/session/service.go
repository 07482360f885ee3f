package session

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/staff"
	"github.com/trezcool/mahudhurio/core/student"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrNotActive       = errors.New("session is not active")
	ErrAlreadyMarked   = errors.New("attendance already marked for this session")
	ErrUnknownIdentity = errors.New("student identifier is not registered")
	ErrDeviceConflict  = errors.New("student is bound to a different device")
	ErrUnknownIssuer   = errors.New("issuer is not a registered staff member")

	nowFunc = time.Now // mockable
)

// DeviceInUseError refuses a check-in whose device already belongs to
// another student. OtherName is that student's display name.
type DeviceInUseError struct {
	OtherName string
}

func (e *DeviceInUseError) Error() string {
	name := e.OtherName
	if name == "" {
		name = "another student"
	}
	return "device already used by " + name
}

type (
	// IdentityStore is the slice of the student repository that the
	// check-in pipeline needs.
	IdentityStore interface {
		GetStudent(ctx context.Context, identifier string) (student.Student, error)
		GetStudentByDevice(ctx context.Context, deviceToken, excludedIdentifier string) (student.Student, error)
		BindStudentDevice(ctx context.Context, identifier, deviceToken string) error
	}

	// StaffDirectory resolves session issuers.
	StaffDirectory interface {
		GetStaff(ctx context.Context, identifier string) (staff.Staff, error)
	}

	Repository interface {
		// CreateSession persists a new session. The one-active-session-per-issuer
		// rule is enforced by the service; stores back the rule with a
		// uniqueness constraint on active sessions where they can.
		CreateSession(ctx context.Context, sess Session) (Session, error)
		// DeactivateIssuerSessions closes every active session of the issuer.
		DeactivateIssuerSessions(ctx context.Context, issuer string) error
		// GetSession returns the session with its entries in insertion order.
		GetSession(ctx context.Context, id uuid.UUID) (Session, error)
		// GetActiveSession is GetSession restricted to active sessions; an
		// absent and a closed session both read as ErrNotFound.
		GetActiveSession(ctx context.Context, id uuid.UUID) (Session, error)
		CloseSession(ctx context.Context, id uuid.UUID) error
		// AppendEntryIfAbsent records the entry unless the student is already
		// on the sheet (ErrAlreadyMarked) or the session is gone or closed
		// (ErrNotActive).
		AppendEntryIfAbsent(ctx context.Context, id uuid.UUID, entry Entry) error
		QuerySessions(ctx context.Context, filter QueryFilter) ([]Session, error)
	}

	ServiceInterface interface {
		Open(ctx context.Context, data NewSession) (Session, error)
		Close(ctx context.Context, id uuid.UUID) (Session, error)
		GetByID(ctx context.Context, id uuid.UUID) (Session, error)
		Roster(ctx context.Context, id uuid.UUID) ([]Entry, error)
		Query(ctx context.Context, filter QueryFilter) ([]Session, error)
		MarkAttendance(ctx context.Context, id uuid.UUID, data CheckIn) (Entry, error)
	}

	Service struct {
		repo       Repository
		identities IdentityStore
		staff      StaffDirectory
		mailSvc    core.EmailService
		conf       *core.Config

		sessLocks   *keyedMutex
		deviceLocks *keyedMutex
		issuerLocks *keyedMutex
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	repo Repository,
	identities IdentityStore,
	staffDir StaffDirectory,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		repo:        repo,
		identities:  identities,
		staff:       staffDir,
		mailSvc:     mailSvc,
		conf:        conf,
		sessLocks:   newKeyedMutex(),
		deviceLocks: newKeyedMutex(),
		issuerLocks: newKeyedMutex(),
	}
}

// Open starts a new active session for the issuer. Any session the issuer
// still has open is closed first so that at most one is active at a time.
func (svc *Service) Open(ctx context.Context, data NewSession) (Session, error) {
	issuer := core.CleanString(data.Issuer, true /* lower */)

	if _, err := svc.staff.GetStaff(ctx, issuer); err != nil {
		if errors.Cause(err) == staff.ErrNotFound {
			return Session{}, ErrUnknownIssuer
		}
		return Session{}, errors.Wrap(err, "resolving issuer")
	}

	unlock := svc.issuerLocks.lock(issuer)
	defer unlock()

	if err := svc.repo.DeactivateIssuerSessions(ctx, issuer); err != nil {
		return Session{}, errors.Wrap(err, "deactivating previous sessions")
	}

	sess := Session{
		ID:        uuid.New(),
		Subject:   core.CleanString(data.Subject),
		Issuer:    issuer,
		IsActive:  true,
		CreatedAt: nowFunc(),
	}
	sess, err := svc.repo.CreateSession(ctx, sess)
	if err != nil {
		return Session{}, errors.Wrap(err, "creating session")
	}
	return sess, nil
}

// Close deactivates the session and mails the roster to the issuer.
// Closing an already closed session is a no-op.
func (svc *Service) Close(ctx context.Context, id uuid.UUID) (Session, error) {
	unlock := svc.sessLocks.lock(id.String())
	defer unlock()

	sess, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !sess.IsActive {
		return sess, nil
	}

	if err := svc.repo.CloseSession(ctx, id); err != nil {
		return Session{}, errors.Wrap(err, "closing session")
	}
	sess.IsActive = false

	svc.sendRosterReport(ctx, sess)
	return sess, nil
}

func (svc *Service) GetByID(ctx context.Context, id uuid.UUID) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) Roster(ctx context.Context, id uuid.UUID) ([]Entry, error) {
	sess, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Entries == nil {
		return []Entry{}, nil
	}
	return sess.Entries, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Session, error) {
	filter.Clean()
	return svc.repo.QuerySessions(ctx, filter)
}

// sendRosterReport emails the closed session's roster to the issuer as a
// CSV attachment. Reporting is best effort and never fails the close.
func (svc *Service) sendRosterReport(ctx context.Context, sess Session) {
	stf, err := svc.staff.GetStaff(ctx, sess.Issuer)
	if err != nil || stf.Email == "" {
		return
	}

	var buf bytes.Buffer
	if err := WriteRosterCSV(&buf, sess.Entries); err != nil {
		return
	}

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: stf.Name, Address: stf.Email}},
		Subject: fmt.Sprintf("Attendance report: %s", sess.Subject),
		BodyStr: fmt.Sprintf(
			"%d student(s) marked attendance for %s. The full roster is attached.",
			len(sess.Entries), sess.Subject,
		),
	}
	if err := msg.Attach(&buf, fmt.Sprintf("attendance-%s.csv", sess.ID), "text/csv"); err != nil {
		return
	}
	svc.mailSvc.SendMessages(msg)
}
