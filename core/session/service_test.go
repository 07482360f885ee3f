package session_test

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/core/staff"
	"github.com/trezcool/mahudhurio/core/student"
	"github.com/trezcool/mahudhurio/services/email"
	"github.com/trezcool/mahudhurio/storage/database/dummy"
)

var conf = &core.Config{
	AppName:          "Mahudhurio",
	TestMode:         true,
	DefaultFromEmail: mail.Address{Name: "Mahudhurio", Address: "noreply@test.cd"},
}

func setup(t *testing.T) (*session.Service, session.Repository, student.Repository, staff.Repository) {
	t.Helper()

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	sessRepo := dummydb.NewSessionRepository(db)
	stuRepo := dummydb.NewStudentRepository(db)
	stfRepo := dummydb.NewStaffRepository(db)

	// set up services
	emailsvc.SentMessages = nil // reset
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	svc := session.NewService(sessRepo, stuRepo, stfRepo, mailSvc, conf)
	return svc, sessRepo, stuRepo, stfRepo
}

func createStudent(t *testing.T, repo student.Repository, identifier, name, deviceToken string) student.Student {
	t.Helper()
	stu, err := repo.CreateStudent(context.Background(), student.Student{
		Identifier:  identifier,
		Name:        name,
		Email:       identifier + "@test.cd",
		Department:  "CS",
		Section:     "A1",
		Password:    "pwd",
		DeviceToken: deviceToken,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return stu
}

func createStaff(t *testing.T, repo staff.Repository, identifier, name, email string) staff.Staff {
	t.Helper()
	stf, err := repo.CreateStaff(context.Background(), staff.Staff{
		Identifier: identifier,
		Name:       name,
		Email:      email,
		Role:       staff.RoleTeacher,
		Password:   "pwd",
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("createStaff() failed: %v", err)
	}
	return stf
}

func openSession(t *testing.T, svc *session.Service, issuer, subject string) session.Session {
	t.Helper()
	sess, err := svc.Open(context.Background(), session.NewSession{Issuer: issuer, Subject: subject})
	if err != nil {
		t.Fatalf("openSession() failed: %v", err)
	}
	return sess
}

func Test_sessionService_Open(t *testing.T) {
	svc, _, _, stfRepo := setup(t)
	ctx := context.Background()

	createStaff(t, stfRepo, "prof-1", "Prof One", "prof1@test.cd")
	createStaff(t, stfRepo, "prof-2", "Prof Two", "prof2@test.cd")

	if _, err := svc.Open(ctx, session.NewSession{Issuer: "lol", Subject: "Algorithms"}); err != session.ErrUnknownIssuer {
		t.Errorf("Open() error = %v, wantErr %v", err, session.ErrUnknownIssuer)
	}

	// issuer and subject are cleaned before anything else
	first, err := svc.Open(ctx, session.NewSession{Issuer: " PROF-1 ", Subject: "  Algorithms "})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if first.ID == uuid.Nil {
		t.Error("Open() did not assign an ID")
	}
	if first.Issuer != "prof-1" {
		t.Errorf("Issuer = %s, want prof-1", first.Issuer)
	}
	if first.Subject != "Algorithms" {
		t.Errorf("Subject = %s, want Algorithms", first.Subject)
	}
	if !first.IsActive {
		t.Error("Open() returned an inactive session")
	}
	if first.CreatedAt.IsZero() {
		t.Error("Open() did not stamp CreatedAt")
	}

	// a new session replaces the issuer's previous one
	second := openSession(t, svc, "prof-1", "Data Structures")
	refreshed, err := svc.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if refreshed.IsActive {
		t.Error("previous session still active after a new one opened")
	}

	// other issuers are not affected
	third := openSession(t, svc, "prof-2", "Compilers")
	for _, id := range []uuid.UUID{second.ID, third.ID} {
		sess, err := svc.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID() failed: %v", err)
		}
		if !sess.IsActive {
			t.Errorf("session %s should still be active", id)
		}
	}
}

func Test_sessionService_Close(t *testing.T) {
	svc, _, stuRepo, stfRepo := setup(t)
	ctx := context.Background()

	stf := createStaff(t, stfRepo, "prof-1", "Prof One", "prof1@test.cd")
	createStudent(t, stuRepo, "s-001", "Amani Moja", "")
	sess := openSession(t, svc, stf.Identifier, "Algorithms")
	if _, err := svc.MarkAttendance(ctx, sess.ID, session.CheckIn{Identifier: "s-001", DeviceToken: "dev-1"}); err != nil {
		t.Fatalf("MarkAttendance() failed: %v", err)
	}

	if _, err := svc.Close(ctx, uuid.New()); err != session.ErrNotFound {
		t.Errorf("Close() error = %v, wantErr %v", err, session.ErrNotFound)
	}

	closed, err := svc.Close(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if closed.IsActive {
		t.Error("Close() returned an active session")
	}

	// the issuer receives the roster report
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
	}
	msg := emailsvc.SentMessages[0]
	if want := (mail.Address{Name: stf.Name, Address: stf.Email}); msg.To[0] != want {
		t.Errorf("To = %v; want %v", msg.To[0], want)
	}
	if !strings.Contains(msg.Subject, "Algorithms") {
		t.Errorf("Subject = %q; want it to name the subject", msg.Subject)
	}
	if !strings.Contains(msg.TextContent, "1 student(s)") {
		t.Errorf("TextContent = %q; want the attendee count", msg.TextContent)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("len(Attachments) = %d; want 1", len(msg.Attachments))
	}
	at := msg.Attachments[0]
	if want := fmt.Sprintf("attendance-%s.csv", sess.ID); at.Filename != want {
		t.Errorf("Filename = %s; want %s", at.Filename, want)
	}
	if at.ContentType != "text/csv" {
		t.Errorf("ContentType = %s; want text/csv", at.ContentType)
	}

	// closing again is a no-op and sends no second report
	again, err := svc.Close(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Close() failed on a closed session: %v", err)
	}
	if again.IsActive {
		t.Error("Close() returned an active session")
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Errorf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
	}
}

func Test_sessionService_Close_noIssuerEmail(t *testing.T) {
	svc, _, _, stfRepo := setup(t)
	ctx := context.Background()

	createStaff(t, stfRepo, "prof-1", "Prof One", "")
	sess := openSession(t, svc, "prof-1", "Algorithms")

	closed, err := svc.Close(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if closed.IsActive {
		t.Error("Close() returned an active session")
	}
	if len(emailsvc.SentMessages) != 0 {
		t.Errorf("len(SentMessages) = %d; want 0 without an issuer email", len(emailsvc.SentMessages))
	}
}

func Test_sessionService_Roster(t *testing.T) {
	svc, _, stuRepo, stfRepo := setup(t)
	ctx := context.Background()

	createStaff(t, stfRepo, "prof-1", "Prof One", "prof1@test.cd")
	sess := openSession(t, svc, "prof-1", "Algorithms")

	if _, err := svc.Roster(ctx, uuid.New()); err != session.ErrNotFound {
		t.Errorf("Roster() error = %v, wantErr %v", err, session.ErrNotFound)
	}

	entries, err := svc.Roster(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Roster() failed: %v", err)
	}
	if entries == nil {
		t.Fatal("Roster() = nil; want an empty slice")
	}
	if len(entries) != 0 {
		t.Fatalf("len(entries) = %d; want 0", len(entries))
	}

	createStudent(t, stuRepo, "s-003", "Chuki Tatu", "")
	createStudent(t, stuRepo, "s-001", "Amani Moja", "")
	createStudent(t, stuRepo, "s-002", "Baraka Pili", "")

	// entries come back in check-in order, not identifier order
	marks := []struct{ identifier, device string }{
		{"s-003", "dev-3"},
		{"s-001", "dev-1"},
		{"s-002", "dev-2"},
	}
	for _, mark := range marks {
		if _, err := svc.MarkAttendance(ctx, sess.ID, session.CheckIn{Identifier: mark.identifier, DeviceToken: mark.device}); err != nil {
			t.Fatalf("MarkAttendance(%s) failed: %v", mark.identifier, err)
		}
	}

	entries, err = svc.Roster(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Roster() failed: %v", err)
	}
	if len(entries) != len(marks) {
		t.Fatalf("len(entries) = %d; want %d", len(entries), len(marks))
	}
	for i, mark := range marks {
		if entries[i].Identifier != mark.identifier {
			t.Errorf("entries[%d].Identifier = %s, want %s", i, entries[i].Identifier, mark.identifier)
		}
	}
}

func Test_sessionService_Query(t *testing.T) {
	svc, sessRepo, _, _ := setup(t)
	ctx := context.Background()

	now := time.Now()
	mkSess := func(issuer string, active bool, createdAt time.Time) session.Session {
		sess, err := sessRepo.CreateSession(ctx, session.Session{
			ID:        uuid.New(),
			Subject:   "Algorithms",
			Issuer:    issuer,
			IsActive:  active,
			CreatedAt: createdAt,
		})
		if err != nil {
			t.Fatalf("CreateSession() failed: %v", err)
		}
		return sess
	}
	s1 := mkSess("prof-1", false, now.Add(-2*time.Hour))
	s2 := mkSess("prof-1", true, now.Add(-time.Hour))
	s3 := mkSess("prof-2", true, now)

	bPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name   string
		filter session.QueryFilter
		want   []session.Session
	}{
		{name: "all, newest first", want: []session.Session{s3, s2, s1}},
		{name: "by issuer", filter: session.QueryFilter{Issuer: "prof-1"}, want: []session.Session{s2, s1}},
		{name: "issuer is cleaned", filter: session.QueryFilter{Issuer: " PROF-1 "}, want: []session.Session{s2, s1}},
		{name: "active only", filter: session.QueryFilter{IsActive: bPtr(true)}, want: []session.Session{s3, s2}},
		{name: "closed only", filter: session.QueryFilter{IsActive: bPtr(false)}, want: []session.Session{s1}},
		{name: "no match", filter: session.QueryFilter{Issuer: "lol"}, want: []session.Session{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].ID != tt.want[i].ID {
					t.Errorf("got[%d].ID = %s, want %s", i, got[i].ID, tt.want[i].ID)
				}
			}
		})
	}
}
