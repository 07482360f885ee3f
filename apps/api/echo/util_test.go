package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/core/settings"
	"github.com/trezcool/mahudhurio/core/staff"
	"github.com/trezcool/mahudhurio/core/student"
	"github.com/trezcool/mahudhurio/services/email"
	"github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database/dummy"
)

var (
	stuRepo  student.Repository
	stfRepo  staff.Repository
	sessRepo session.Repository
	setsRepo settings.Repository

	errNotFound = httpErr{Error: "not found"}
)

func setup(t *testing.T) *Server {
	t.Helper()

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	stuRepo = dummydb.NewStudentRepository(db)
	stfRepo = dummydb.NewStaffRepository(db)
	sessRepo = dummydb.NewSessionRepository(db)
	setsRepo = dummydb.NewSettingsRepository(db)

	conf := &core.Config{
		AppName:          "Mahudhurio",
		TestMode:         true,
		DefaultFromEmail: mail.Address{Name: "Mahudhurio", Address: "noreply@test.cd"},
		LoginLockExempt:  []string{"admin"},
	}

	// set up services
	emailsvc.SentMessages = nil // reset
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)

	// set up server
	return NewServer(ServerDeps{
		Conf:        conf,
		Logger:      logger,
		StudentSvc:  student.NewService(stuRepo, mailSvc, conf),
		StaffSvc:    staff.NewService(stfRepo, conf),
		SessionSvc:  session.NewService(sessRepo, stuRepo, stfRepo, mailSvc, conf),
		SettingsSvc: settings.NewService(setsRepo, conf),
		Validate:    validate,
		Translator:  translator,
	})
}

func createStudent(t *testing.T, identifier, name, department, section, pwd, deviceToken string) student.Student {
	t.Helper()
	now := time.Now().UTC()
	stu, err := stuRepo.CreateStudent(context.Background(), student.Student{
		Identifier:  identifier,
		Name:        name,
		Email:       identifier + "@test.cd",
		Department:  department,
		Section:     section,
		Password:    pwd,
		DeviceToken: deviceToken,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return stu
}

func createStaff(t *testing.T, identifier, name, role, pwd string) staff.Staff {
	t.Helper()
	stf, err := stfRepo.CreateStaff(context.Background(), staff.Staff{
		Identifier: identifier,
		Name:       name,
		Email:      identifier + "@test.cd",
		Role:       role,
		Password:   pwd,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createStaff() failed: %v", err)
	}
	return stf
}

func createSession(t *testing.T, issuer, subject string, active bool, createdAt time.Time) session.Session {
	t.Helper()
	sess, err := sessRepo.CreateSession(context.Background(), session.Session{
		ID:        uuid.New(),
		Subject:   subject,
		Issuer:    issuer,
		IsActive:  active,
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("createSession() failed: %v", err)
	}
	return sess
}

func appendEntry(t *testing.T, id uuid.UUID, entry session.Entry) session.Entry {
	t.Helper()
	if err := sessRepo.AppendEntryIfAbsent(context.Background(), id, entry); err != nil {
		t.Fatalf("appendEntry() failed: %v", err)
	}
	return entry
}

type httpErr struct {
	Error string `json:"error"`
}

// codedErr mirrors refusal bodies that carry a machine-readable code.
type codedErr struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
	extra    interface{}
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func newUploadRequest(t *testing.T, path, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	if _, err = fw.Write(content); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	if err = w.Close(); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		if rec.Body.Len() > 0 {
			t.Errorf("failed! data = %v; want no content", rec.Body.String())
		}
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
