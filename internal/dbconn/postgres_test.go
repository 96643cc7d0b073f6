// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package dbconn

import (
	"bytes"
	stdlog "log"
	"strings"
	"testing"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/logg"
)

func testConnection() *PostgresConnection {
	return NewPostgresConnection(Config{
		Host:     "localhost",
		Port:     "5432",
		Database: "postgres",
		Username: "admin",
		Password: "hunter2",
	})
}

func TestFormatQueryRedactsPasswords(t *testing.T) {
	conn := testConnection()
	testCases := []struct {
		input    string
		expected string
	}{
		{
			"ALTER USER johnny WITH LOGIN PASSWORD 'md5e2471bbf363fbbb5'",
			"postgres: ALTER USER johnny WITH LOGIN PASSWORD '***'",
		},
		{
			`ALTER USER johnny WITH login Password "secret"`,
			`postgres: ALTER USER johnny WITH login Password "***"`,
		},
		{
			"SELECT rolname FROM pg_roles",
			"postgres: SELECT rolname FROM pg_roles",
		},
		{
			"ALTER USER johnny\n  WITH LOGIN",
			"postgres: ALTER USER johnny WITH LOGIN",
		},
	}
	for _, c := range testCases {
		assert.DeepEqual(t, "formatted query", conn.formatQuery(c.input), c.expected)
	}
}

func captureLog(action func()) string {
	var buf bytes.Buffer
	logg.SetLogger(stdlog.New(&buf, "", 0))
	defer logg.SetLogger(stdlog.New(stdlog.Writer(), "", stdlog.Flags()))
	action()
	return buf.String()
}

func TestLogQueryElevatesKeyQueries(t *testing.T) {
	conn := testConnection()

	showDebug := logg.ShowDebug
	logg.ShowDebug = true
	defer func() { logg.ShowDebug = showDebug }()

	testCases := []struct {
		query         string
		expectedLevel string
	}{
		{"CREATE DATABASE sales", "WARNING"},
		{"DROP USER johnny", "WARNING"},
		{"GRANT CONNECT ON DATABASE sales TO devops", "WARNING"},
		{"REVOKE ALL ON SCHEMA public FROM johnny", "WARNING"},
		{"ALTER GROUP devops ADD USER peter", "WARNING"},
		{"SELECT datname, datacl FROM pg_database", "DEBUG"},
		// the keyword scan only covers the head of the statement
		{"SELECT datname FROM pg_database WHERE datname != 'drop me'", "DEBUG"},
	}
	for _, c := range testCases {
		output := captureLog(func() { conn.LogQuery(c.query, false) })
		if !strings.HasPrefix(output, c.expectedLevel+":") {
			t.Errorf("expected %s log for %q, got %q", c.expectedLevel, c.query, output)
		}
	}
}

func TestLogQueryDryRun(t *testing.T) {
	conn := testConnection()
	output := captureLog(func() { conn.LogQuery("DROP DATABASE sales", true) })
	if !strings.HasPrefix(output, "INFO: dry-run:") {
		t.Errorf("expected an INFO dry-run log, got %q", output)
	}
}

func TestCloneReplacesOnlyDatabase(t *testing.T) {
	conn := testConnection()
	clone, err := conn.Clone("sales")
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "database", clone.Database(), "sales")
	assert.DeepEqual(t, "username", clone.Username(), "admin")
	assert.DeepEqual(t, "host", clone.Host(), "localhost")
	assert.DeepEqual(t, "original database", conn.Database(), "postgres")
}

func TestCloseWithoutOpenIsIdempotent(t *testing.T) {
	conn := testConnection()
	for range 3 {
		err := conn.Close()
		if err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}
	}
}
