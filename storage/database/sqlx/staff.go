package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/staff"
)

const staffCols = "identifier, name, email, role, password, created_at"

type staffRow struct {
	Identifier string    `db:"identifier"`
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	Role       string    `db:"role"`
	Password   string    `db:"password"`
	CreatedAt  time.Time `db:"created_at"`
}

type staffRepository struct {
	db *sqlx.DB
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *sqlx.DB) *staffRepository {
	return &staffRepository{db: db}
}

func (repo staffRepository) pack(stf staff.Staff) staffRow {
	return staffRow{
		Identifier: stf.Identifier,
		Name:       stf.Name,
		Email:      stf.Email,
		Role:       stf.Role,
		Password:   stf.Password,
		CreatedAt:  stf.CreatedAt.UTC(),
	}
}

func (repo staffRepository) unpack(row staffRow) staff.Staff {
	return staff.Staff{
		Identifier: row.Identifier,
		Name:       row.Name,
		Email:      row.Email,
		Role:       row.Role,
		Password:   row.Password,
		CreatedAt:  row.CreatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to staff.ErrNotFound
func (repo staffRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return staff.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo staffRepository) CheckIdentifierUniqueness(ctx context.Context, identifier string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM staff WHERE identifier = $1)", identifier)
	if err != nil {
		return errors.Wrap(err, "checking staff uniqueness")
	}
	if exists {
		return staff.ErrIdentifierExists
	}
	return nil
}

func (repo staffRepository) CreateStaff(ctx context.Context, stf staff.Staff) (staff.Staff, error) {
	row := repo.pack(stf)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO staff (`+staffCols+`)
		VALUES (:identifier, :name, :email, :role, :password, :created_at)`,
		row)
	if err != nil {
		if isUniqueViolation(err, "staff_pkey") {
			return staff.Staff{}, staff.ErrIdentifierExists
		}
		return staff.Staff{}, errors.Wrap(err, "inserting staff member")
	}
	return repo.unpack(row), nil
}

// UpdateOrCreateStaff inserts the staff member, or refreshes name, email, role and
// password on an existing one. created_at is kept from the original record.
func (repo staffRepository) UpdateOrCreateStaff(ctx context.Context, stf staff.Staff) (staff.Staff, error) {
	row := repo.pack(stf)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO staff (`+staffCols+`)
		VALUES (:identifier, :name, :email, :role, :password, :created_at)
		ON CONFLICT (identifier) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role, password = EXCLUDED.password`,
		row)
	if err != nil {
		return staff.Staff{}, errors.Wrap(err, "upserting staff member")
	}
	return repo.GetStaff(ctx, stf.Identifier)
}

func (repo staffRepository) QueryAllStaff(ctx context.Context) ([]staff.Staff, error) {
	var rows []staffRow
	err := repo.db.SelectContext(ctx, &rows, "SELECT "+staffCols+" FROM staff ORDER BY identifier ASC")
	if err != nil {
		return nil, errors.Wrap(err, "querying staff")
	}

	members := make([]staff.Staff, 0, len(rows))
	for _, row := range rows {
		members = append(members, repo.unpack(row))
	}
	return members, nil
}

func (repo staffRepository) GetStaff(ctx context.Context, identifier string) (staff.Staff, error) {
	var row staffRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+staffCols+" FROM staff WHERE identifier = $1", identifier)
	if err != nil {
		return staff.Staff{}, repo.trapNoRowsErr(err, "finding staff member")
	}
	return repo.unpack(row), nil
}

func (repo staffRepository) DeleteStaff(ctx context.Context, identifiers ...string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM staff WHERE identifier = ANY ($1)", pq.Array(identifiers))
	return errors.Wrap(err, "deleting staff")
}
