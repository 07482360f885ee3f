package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

const studentCols = "identifier, name, email, department, section, password, device_token, created_at, updated_at"

// orderable student columns; ordering fields come from requests and
// anything not listed here stays out of the SQL
var studentOrderCols = map[string]bool{
	"identifier": true,
	"name":       true,
	"email":      true,
	"department": true,
	"section":    true,
	"created_at": true,
	"updated_at": true,
}

type studentRow struct {
	Identifier  string      `db:"identifier"`
	Name        string      `db:"name"`
	Email       string      `db:"email"`
	Department  string      `db:"department"`
	Section     string      `db:"section"`
	Password    string      `db:"password"`
	DeviceToken null.String `db:"device_token"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) pack(stu student.Student) studentRow {
	return studentRow{
		Identifier:  stu.Identifier,
		Name:        stu.Name,
		Email:       stu.Email,
		Department:  stu.Department,
		Section:     stu.Section,
		Password:    stu.Password,
		DeviceToken: null.NewString(stu.DeviceToken, stu.DeviceToken != ""),
		CreatedAt:   stu.CreatedAt.UTC(),
		UpdatedAt:   stu.UpdatedAt.UTC(),
	}
}

func (repo studentRepository) unpack(row studentRow) student.Student {
	return student.Student{
		Identifier:  row.Identifier,
		Name:        row.Name,
		Email:       row.Email,
		Department:  row.Department,
		Section:     row.Section,
		Password:    row.Password,
		DeviceToken: row.DeviceToken.String,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to student.ErrNotFound
func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CheckIdentifierUniqueness(ctx context.Context, identifier string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM student WHERE identifier = $1)", identifier)
	if err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	if exists {
		return student.ErrIdentifierExists
	}
	return nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	row := repo.pack(stu)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO student (`+studentCols+`)
		VALUES (:identifier, :name, :email, :department, :section, :password, :device_token, :created_at, :updated_at)`,
		row)
	if err != nil {
		if isUniqueViolation(err, "student_pkey") {
			return student.Student{}, student.ErrIdentifierExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.unpack(row), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, orderings ...core.DBOrdering) ([]student.Student, error) {
	query := "SELECT " + studentCols + " FROM student"

	var (
		conds []string
		args  []interface{}
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		p := fmt.Sprintf("$%d", len(args))
		conds = append(conds, fmt.Sprintf("(identifier ILIKE %[1]s OR name ILIKE %[1]s OR email ILIKE %[1]s)", p))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conds = append(conds, fmt.Sprintf("department ILIKE $%d", len(args)))
	}
	if filter.Section != "" {
		args = append(args, filter.Section)
		conds = append(conds, fmt.Sprintf("section ILIKE $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	orderList := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if studentOrderCols[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) > 0 {
		query += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		query += " ORDER BY identifier ASC"
	}

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.unpack(row))
	}
	return students, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, identifier string) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+studentCols+" FROM student WHERE identifier = $1", identifier)
	if err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "finding student")
	}
	return repo.unpack(row), nil
}

func (repo studentRepository) GetStudentByDevice(ctx context.Context, deviceToken, excludedIdentifier string) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+studentCols+" FROM student WHERE device_token = $1 AND identifier <> $2",
		deviceToken, excludedIdentifier)
	if err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "finding student by device")
	}
	return repo.unpack(row), nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	row := repo.pack(stu)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE student
		SET name = :name, email = :email, department = :department, section = :section,
		    password = :password, device_token = :device_token, updated_at = :updated_at
		WHERE identifier = :identifier`,
		row)
	if err != nil {
		if isUniqueViolation(err, "student_device_token_key") {
			return student.Student{}, student.ErrDeviceTaken
		}
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.unpack(row), nil
}

// BindStudentDevice claims the device for the student. The update only
// applies while the student is unbound or already holds the same token;
// the partial unique index on device_token rejects tokens held by others.
func (repo studentRepository) BindStudentDevice(ctx context.Context, identifier, deviceToken string) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE student
		SET device_token = $2, updated_at = now()
		WHERE identifier = $1 AND (device_token IS NULL OR device_token = $2)`,
		identifier, deviceToken)
	if err != nil {
		if isUniqueViolation(err, "student_device_token_key") {
			return student.ErrDeviceTaken
		}
		return errors.Wrap(err, "binding device")
	}

	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "binding device")
	}
	if cnt == 0 {
		var exists bool
		err := repo.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM student WHERE identifier = $1)", identifier)
		if err != nil {
			return errors.Wrap(err, "binding device")
		}
		if !exists {
			return student.ErrNotFound
		}
		return student.ErrDeviceBound
	}
	return nil
}

func (repo studentRepository) ClearStudentDevice(ctx context.Context, identifier string) error {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE student SET device_token = NULL, updated_at = now() WHERE identifier = $1", identifier)
	if err != nil {
		return errors.Wrap(err, "clearing device")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo studentRepository) DeleteStudents(ctx context.Context, identifiers ...string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM student WHERE identifier = ANY ($1)", pq.Array(identifiers))
	return errors.Wrap(err, "deleting students")
}
