// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package dbconn provides the database connection facade that the
// reconciliation engine talks to, and its PostgreSQL implementation.
package dbconn

import (
	"fmt"
)

// Row is one result row, keyed by the column names the caller asked for.
type Row map[string]any

// Result is the outcome of an executed query.
type Result interface {
	// Scalar returns the first column of the first row. It fails when the
	// query returned no rows.
	Scalar() (any, error)
	// GetAll maps the given names onto the result columns by position and
	// returns one Row per result row.
	GetAll(columns ...string) ([]Row, error)
	// GetOne is like GetAll, but returns nil when there is no row and fails
	// when there is more than one.
	GetOne(columns ...string) (Row, error)
}

// Transaction is a database transaction. It is obtained from
// Connection.Begin and must be finished with Commit or Rollback.
type Transaction interface {
	Execute(query string, params ...any) error
	Commit() error
	// Rollback is a no-op when the transaction was already committed or
	// rolled back. (This satisfies sqlext.Rollbacker.)
	Rollback() error
}

// Connection is a connection to one database of the cluster. Connections
// run in autocommit mode; Begin is the only way to group statements.
type Connection interface {
	Execute(query string, params ...any) (Result, error)
	Begin() (Transaction, error)
	// Clone returns a connection to a different database of the same server,
	// reusing host, port and credentials.
	Clone(database string) (Connection, error)
	// Close is idempotent.
	Close() error

	Database() string
	Username() string
	Host() string

	// LogQuery writes the query to the log, with password literals redacted
	// and DDL/grant statements elevated to warning level.
	LogQuery(query string, dryRun bool)
}

// bufferedResult holds a fully fetched result set.
type bufferedResult struct {
	rows [][]any
}

// Scalar implements the Result interface.
func (r *bufferedResult) Scalar() (any, error) {
	if len(r.rows) == 0 {
		return nil, fmt.Errorf("query returned no rows")
	}
	if len(r.rows[0]) == 0 {
		return nil, fmt.Errorf("query returned no columns")
	}
	return r.rows[0][0], nil
}

// GetAll implements the Result interface.
func (r *bufferedResult) GetAll(columns ...string) ([]Row, error) {
	result := make([]Row, 0, len(r.rows))
	for _, values := range r.rows {
		if len(columns) > len(values) {
			return nil, fmt.Errorf("requested %d columns, but rows only have %d", len(columns), len(values))
		}
		row := make(Row, len(columns))
		for idx, name := range columns {
			row[name] = values[idx]
		}
		result = append(result, row)
	}
	return result, nil
}

// GetOne implements the Result interface.
func (r *bufferedResult) GetOne(columns ...string) (Row, error) {
	rows, err := r.GetAll(columns...)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("multiple (%d) rows returned when one was expected", len(rows))
	}
}
