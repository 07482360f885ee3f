package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/trezcool/mahudhurio/core/session"
)

func Test_sessionService_MarkAttendance(t *testing.T) {
	svc, _, stuRepo, stfRepo := setup(t)
	ctx := context.Background()

	createStaff(t, stfRepo, "prof-1", "Prof One", "prof1@test.cd")
	createStaff(t, stfRepo, "prof-2", "Prof Two", "prof2@test.cd")
	createStudent(t, stuRepo, "s-001", "Amani Moja", "dev-1")
	createStudent(t, stuRepo, "s-002", "Baraka Pili", "")
	createStudent(t, stuRepo, "s-003", "Chuki Tatu", "")

	sess := openSession(t, svc, "prof-1", "Algorithms")
	closedSess := openSession(t, svc, "prof-2", "Compilers")
	if _, err := svc.Close(ctx, closedSess.ID); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	type wantEntry struct {
		name       string
		department string
		section    string
		device     string
	}
	tests := []struct {
		name       string
		sess       session.Session
		data       session.CheckIn
		wantErr    error
		wantErrStr string
		extra      interface{}
	}{
		{
			name: "unknown session reads as inactive", sess: session.Session{},
			data:    session.CheckIn{Identifier: "s-002", DeviceToken: "dev-2"},
			wantErr: session.ErrNotActive,
		},
		{
			name: "closed session", sess: closedSess,
			data:    session.CheckIn{Identifier: "s-002", DeviceToken: "dev-2"},
			wantErr: session.ErrNotActive,
		},
		{
			name: "unknown identifier", sess: sess,
			data:    session.CheckIn{Identifier: "lol", DeviceToken: "dev-2"},
			wantErr: session.ErrUnknownIdentity,
		},
		{
			name: "bound student on another device", sess: sess,
			data:    session.CheckIn{Identifier: "s-001", DeviceToken: "dev-9"},
			wantErr: session.ErrDeviceConflict,
		},
		{
			name: "device owned by another student", sess: sess,
			data:       session.CheckIn{Identifier: "s-002", DeviceToken: "dev-1"},
			wantErrStr: "device already used by Amani Moja",
		},
		{
			name: "first check-in claims the device", sess: sess,
			data:  session.CheckIn{Identifier: "s-002", DeviceToken: "dev-2"},
			extra: wantEntry{name: "Baraka Pili", department: "CS", section: "A1", device: "dev-2"},
		},
		{
			name: "marking twice", sess: sess,
			data:    session.CheckIn{Identifier: "s-002", DeviceToken: "dev-2"},
			wantErr: session.ErrAlreadyMarked,
		},
		{
			name: "duplicate wins over device conflict", sess: sess,
			data:    session.CheckIn{Identifier: "s-002", DeviceToken: "dev-9"},
			wantErr: session.ErrAlreadyMarked,
		},
		{
			name: "identifier is cleaned", sess: sess,
			data:  session.CheckIn{Identifier: " S-001 ", DeviceToken: "dev-1"},
			extra: wantEntry{name: "Amani Moja", department: "CS", section: "A1", device: "dev-1"},
		},
		{
			name: "display overrides win over the profile", sess: sess,
			data:  session.CheckIn{Identifier: "s-003", DeviceToken: "dev-3", Name: "C. Tatu", Section: "B2"},
			extra: wantEntry{name: "C. Tatu", department: "CS", section: "B2", device: "dev-3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := svc.MarkAttendance(ctx, tt.sess.ID, tt.data)
			if err == nil {
				want, ok := tt.extra.(wantEntry)
				if !ok {
					t.Fatal("MarkAttendance() expected an error")
				}
				if entry.Name != want.name {
					t.Errorf("Name = %s, want %s", entry.Name, want.name)
				}
				if entry.Department != want.department {
					t.Errorf("Department = %s, want %s", entry.Department, want.department)
				}
				if entry.Section != want.section {
					t.Errorf("Section = %s, want %s", entry.Section, want.section)
				}
				if entry.DeviceToken != want.device {
					t.Errorf("DeviceToken = %s, want %s", entry.DeviceToken, want.device)
				}
				if entry.MarkedAt.IsZero() {
					t.Error("MarkedAt not stamped")
				}
			} else if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("MarkAttendance() error = %v, wantErr %v", err, tt.wantErr)
				}
			} else if err.Error() != tt.wantErrStr {
				t.Errorf("MarkAttendance() error = %q, wantErrStr %q", err.Error(), tt.wantErrStr)
			}
		})
	}

	// the first successful check-in bound the device to the student
	stu, err := stuRepo.GetStudent(ctx, "s-002")
	if err != nil {
		t.Fatalf("GetStudent() failed: %v", err)
	}
	if stu.DeviceToken != "dev-2" {
		t.Errorf("DeviceToken = %s, want dev-2", stu.DeviceToken)
	}

	// refused attempts never appended; admitted entries sit in check-in order
	entries, err := svc.Roster(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Roster() failed: %v", err)
	}
	wantOrder := []string{"s-002", "s-001", "s-003"}
	if len(entries) != len(wantOrder) {
		t.Fatalf("len(entries) = %d, want %d", len(entries), len(wantOrder))
	}
	for i, identifier := range wantOrder {
		if entries[i].Identifier != identifier {
			t.Errorf("entries[%d].Identifier = %s, want %s", i, entries[i].Identifier, identifier)
		}
	}
}

func Test_sessionService_MarkAttendance_deletedStudentStaysMarked(t *testing.T) {
	svc, _, stuRepo, stfRepo := setup(t)
	ctx := context.Background()

	createStaff(t, stfRepo, "prof-1", "Prof One", "prof1@test.cd")
	createStudent(t, stuRepo, "s-001", "Amani Moja", "")
	sess := openSession(t, svc, "prof-1", "Algorithms")

	if _, err := svc.MarkAttendance(ctx, sess.ID, session.CheckIn{Identifier: "s-001", DeviceToken: "dev-1"}); err != nil {
		t.Fatalf("MarkAttendance() failed: %v", err)
	}
	if err := stuRepo.DeleteStudents(ctx, "s-001"); err != nil {
		t.Fatalf("DeleteStudents() failed: %v", err)
	}

	// the mark is checked before the identity, so the entry still counts
	if _, err := svc.MarkAttendance(ctx, sess.ID, session.CheckIn{Identifier: "s-001", DeviceToken: "dev-1"}); err != session.ErrAlreadyMarked {
		t.Errorf("MarkAttendance() error = %v, wantErr %v", err, session.ErrAlreadyMarked)
	}

	entries, err := svc.Roster(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Roster() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d; want the deleted student's entry kept", len(entries))
	}
}

func Test_sessionService_MarkAttendance_deviceResetAllowsNewDevice(t *testing.T) {
	svc, _, stuRepo, stfRepo := setup(t)
	ctx := context.Background()

	createStaff(t, stfRepo, "prof-1", "Prof One", "prof1@test.cd")
	createStudent(t, stuRepo, "s-001", "Amani Moja", "")

	first := openSession(t, svc, "prof-1", "Algorithms")
	if _, err := svc.MarkAttendance(ctx, first.ID, session.CheckIn{Identifier: "s-001", DeviceToken: "dev-1"}); err != nil {
		t.Fatalf("MarkAttendance() failed: %v", err)
	}

	second := openSession(t, svc, "prof-1", "Data Structures")
	if _, err := svc.MarkAttendance(ctx, second.ID, session.CheckIn{Identifier: "s-001", DeviceToken: "dev-2"}); err != session.ErrDeviceConflict {
		t.Errorf("MarkAttendance() error = %v, wantErr %v", err, session.ErrDeviceConflict)
	}

	if err := stuRepo.ClearStudentDevice(ctx, "s-001"); err != nil {
		t.Fatalf("ClearStudentDevice() failed: %v", err)
	}

	if _, err := svc.MarkAttendance(ctx, second.ID, session.CheckIn{Identifier: "s-001", DeviceToken: "dev-2"}); err != nil {
		t.Fatalf("MarkAttendance() after reset failed: %v", err)
	}
	stu, err := stuRepo.GetStudent(ctx, "s-001")
	if err != nil {
		t.Fatalf("GetStudent() failed: %v", err)
	}
	if stu.DeviceToken != "dev-2" {
		t.Errorf("DeviceToken = %s, want dev-2", stu.DeviceToken)
	}
}

func Test_sessionService_MarkAttendance_sharedDeviceRace(t *testing.T) {
	svc, _, stuRepo, stfRepo := setup(t)
	ctx := context.Background()

	createStaff(t, stfRepo, "prof-1", "Prof One", "prof1@test.cd")
	sess := openSession(t, svc, "prof-1", "Algorithms")

	const n = 16
	for i := 0; i < n; i++ {
		createStudent(t, stuRepo, fmt.Sprintf("s-%03d", i), fmt.Sprintf("Student %d", i), "")
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		inUse    int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := svc.MarkAttendance(ctx, sess.ID, session.CheckIn{
				Identifier:  fmt.Sprintf("s-%03d", i),
				DeviceToken: "shared-device",
			})

			mu.Lock()
			defer mu.Unlock()
			switch err.(type) {
			case nil:
				admitted++
			case *session.DeviceInUseError:
				inUse++
			default:
				t.Errorf("MarkAttendance() unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// exactly one student claims the device, everyone else is turned away
	if admitted != 1 {
		t.Errorf("admitted = %d, want 1", admitted)
	}
	if inUse != n-1 {
		t.Errorf("device in use refusals = %d, want %d", inUse, n-1)
	}

	entries, err := svc.Roster(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Roster() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1", len(entries))
	}
}

func Test_sessionService_MarkAttendance_duplicateRace(t *testing.T) {
	svc, _, stuRepo, stfRepo := setup(t)
	ctx := context.Background()

	createStaff(t, stfRepo, "prof-1", "Prof One", "prof1@test.cd")
	createStudent(t, stuRepo, "s-001", "Amani Moja", "")
	sess := openSession(t, svc, "prof-1", "Algorithms")

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		repeats  int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.MarkAttendance(ctx, sess.ID, session.CheckIn{Identifier: "s-001", DeviceToken: "dev-1"})

			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				admitted++
			case session.ErrAlreadyMarked:
				repeats++
			default:
				t.Errorf("MarkAttendance() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("admitted = %d, want 1", admitted)
	}
	if repeats != n-1 {
		t.Errorf("already marked refusals = %d, want %d", repeats, n-1)
	}

	entries, err := svc.Roster(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Roster() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1", len(entries))
	}
	stu, err := stuRepo.GetStudent(ctx, "s-001")
	if err != nil {
		t.Fatalf("GetStudent() failed: %v", err)
	}
	if stu.DeviceToken != "dev-1" {
		t.Errorf("DeviceToken = %s, want dev-1", stu.DeviceToken)
	}
}
