package core

import (
	"context"
	"database/sql"
)

type (
	// DBExecutor is the slice of a database/sql handle the app issues
	// queries through. *sql.DB, *sql.Tx and *sql.Conn all satisfy it.
	DBExecutor interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// DB is a transaction-capable DBExecutor.
	DB interface {
		DBExecutor

		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}
)

// DBOrdering is one ORDER BY term. Stores only honor fields they know;
// anything else coming from a request is dropped, not interpolated.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
