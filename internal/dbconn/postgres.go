// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package dbconn

import (
	"database/sql"
	"regexp"
	"strings"

	_ "github.com/lib/pq" // database/sql driver
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/sqlext"
)

// Config holds the settings of a PostgresConnection.
type Config struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
}

// PostgresConnection implements the Connection interface on top of lib/pq.
// The network connection is only established on first use.
type PostgresConnection struct {
	cfg Config
	db  *sql.DB
}

// NewPostgresConnection builds a connection from the given config.
func NewPostgresConnection(cfg Config) *PostgresConnection {
	return &PostgresConnection{cfg: cfg}
}

// Database implements the Connection interface.
func (c *PostgresConnection) Database() string { return c.cfg.Database }

// Username implements the Connection interface.
func (c *PostgresConnection) Username() string { return c.cfg.Username }

// Host implements the Connection interface.
func (c *PostgresConnection) Host() string { return c.cfg.Host }

// Clone implements the Connection interface.
func (c *PostgresConnection) Clone(database string) (Connection, error) {
	cfg := c.cfg
	cfg.Database = database
	return NewPostgresConnection(cfg), nil
}

func (c *PostgresConnection) open() (*sql.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	dbURL, err := easypg.URLFrom(easypg.URLParts{
		HostName:     c.cfg.Host,
		Port:         c.cfg.Port,
		UserName:     c.cfg.Username,
		Password:     c.cfg.Password,
		DatabaseName: c.cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dbURL.String())
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

// Execute implements the Connection interface. Statements without bind
// parameters go through the simple query protocol, so DDL statements like
// CREATE DATABASE work as well.
func (c *PostgresConnection) Execute(query string, params ...any) (Result, error) {
	db, err := c.open()
	if err != nil {
		return nil, err
	}
	c.LogQuery(query, false)
	var buffered [][]any
	err = sqlext.ForeachRow(db, query, params, func(rows *sql.Rows) error {
		columns, err := rows.Columns()
		if err != nil {
			return err
		}
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for idx := range values {
			pointers[idx] = &values[idx]
		}
		err = rows.Scan(pointers...)
		if err != nil {
			return err
		}
		for idx, value := range values {
			if buf, ok := value.([]byte); ok {
				values[idx] = string(buf)
			}
		}
		buffered = append(buffered, values)
		return nil
	})
	if err != nil {
		logg.Other("WARNING", "failed to execute query (as %q): %s", c.cfg.Username, c.formatQuery(query))
		return nil, err
	}
	return &bufferedResult{rows: buffered}, nil
}

// Begin implements the Connection interface.
func (c *PostgresConnection) Begin() (Transaction, error) {
	db, err := c.open()
	if err != nil {
		return nil, err
	}
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	return &pgTransaction{tx: tx, conn: c}, nil
}

// Close implements the Connection interface.
func (c *PostgresConnection) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

var passwordRx = regexp.MustCompile(`(?i)(password\s+['"])([^'"]+)(['"])`)

// keyQueries are the statement prefixes that get elevated to warning level,
// so that every change applied to the cluster shows up in the default log.
var keyQueries = []string{"drop ", "create ", "grant ", "revoke ", "alter "}

func (c *PostgresConnection) formatQuery(query string) string {
	formatted := strings.TrimSpace(sqlext.SimplifyWhitespace(query))
	formatted = passwordRx.ReplaceAllString(formatted, "${1}***${3}")
	return c.cfg.Database + ": " + formatted
}

// LogQuery implements the Connection interface.
func (c *PostgresConnection) LogQuery(query string, dryRun bool) {
	formatted := c.formatQuery(query)
	if dryRun {
		logg.Info("dry-run: %s", formatted)
		return
	}
	head := strings.ToLower(query)
	head = strings.TrimSpace(head)
	if len(head) > 30 {
		head = head[:30]
	}
	for _, keyword := range keyQueries {
		if strings.Contains(head, keyword) {
			logg.Other("WARNING", "%s", formatted)
			return
		}
	}
	logg.Debug("%s", formatted)
}

type pgTransaction struct {
	tx   *sql.Tx
	conn *PostgresConnection
}

// Execute implements the Transaction interface.
func (t *pgTransaction) Execute(query string, params ...any) error {
	t.conn.LogQuery(query, false)
	_, err := t.tx.Exec(query, params...)
	if err != nil {
		logg.Other("WARNING", "failed to execute query (as %q): %s", t.conn.cfg.Username, t.conn.formatQuery(query))
	}
	return err
}

// Commit implements the Transaction interface.
func (t *pgTransaction) Commit() error {
	return t.tx.Commit()
}

// Rollback implements the Transaction interface.
func (t *pgTransaction) Rollback() error {
	return t.tx.Rollback()
}
