// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package objects

import (
	"fmt"

	"github.com/sapcc/seneschal/internal/graph"
)

// UnsupportedConfigurationError is returned at statement generation when an
// object is configured in a way the engine explicitly refuses to handle.
type UnsupportedConfigurationError struct {
	Message string
}

// Error implements the builtin/error interface.
func (e UnsupportedConfigurationError) Error() string { return e.Message }

// DefaultPrivilege makes a SchemaTablesPrivilege apply to tables created in
// the future. The grantor is the role that will be creating the tables.
type DefaultPrivilege struct {
	grantor string
	target  *SchemaTablesPrivilege
	present bool
	deps    []Object
}

// NewDefaultPrivilege builds a DefaultPrivilege. Both the grantor and the
// target privilege must be registered.
func NewDefaultPrivilege(reg Registry, grantor string, target *SchemaTablesPrivilege, present bool) (*DefaultPrivilege, error) {
	role, err := resolveRole(reg, grantor, present)
	if err != nil {
		return nil, err
	}
	return &DefaultPrivilege{
		grantor: grantor,
		target:  target,
		present: present,
		deps:    []Object{target, role},
	}, nil
}

// Grantor returns the role that will be creating the covered tables.
func (dp *DefaultPrivilege) Grantor() string { return dp.grantor }

// Target returns the privilege that is projected onto future tables.
func (dp *DefaultPrivilege) Target() *SchemaTablesPrivilege { return dp.target }

// Present implements the Object interface.
func (dp *DefaultPrivilege) Present() bool { return dp.present }

// Key implements the Object interface.
func (dp *DefaultPrivilege) Key() string {
	return fmt.Sprintf("DefaultPrivilege(%s:%s)", dp.grantor, dp.target.Key())
}

// Dependencies implements the Object interface.
func (dp *DefaultPrivilege) Dependencies() []Object { return dp.deps }

// AddToGraph implements the Object interface.
func (dp *DefaultPrivilege) AddToGraph(g *graph.Graph) error {
	return addToGraph(g, dp)
}

// schemaSQL returns the schema scope of the ALTER DEFAULT PRIVILEGES
// statements. Without a schema the default privilege would apply to all
// schemas of the database, which the engine refuses to manage.
func (dp *DefaultPrivilege) schemaSQL() (string, error) {
	if dp.target.Schema() == "" {
		return "", UnsupportedConfigurationError{"global default privileges are not supported"}
	}
	return fmt.Sprintf("IN SCHEMA %s", dp.target.Schema()), nil
}

func (dp *DefaultPrivilege) revokeAllStatement() (Statement, error) {
	schemaSQL, err := dp.schemaSQL()
	if err != nil {
		return nil, err
	}
	return TextOn(
		OnDatabase(dp.target.Database()),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES FOR ROLE %s %s %s",
			dp.grantor, schemaSQL, dp.target.defaultPrivilegeClause(TablePrivileges.All, false)),
	), nil
}

// StatementsToCreate implements the Object interface. The observed state of
// default privileges is not loaded, so there is nothing create-specific to
// emit; the maintain statements enforce the declaration on every run.
func (dp *DefaultPrivilege) StatementsToCreate() ([]Statement, error) { return nil, nil }

// StatementsToMaintain implements the Object interface. All matching
// default privileges of the grantor are revoked first so that the grant
// leaves exactly the declared set.
func (dp *DefaultPrivilege) StatementsToMaintain() ([]Statement, error) {
	revokeAll, err := dp.revokeAllStatement()
	if err != nil {
		return nil, err
	}
	schemaSQL, err := dp.schemaSQL()
	if err != nil {
		return nil, err
	}
	grant := TextOn(
		OnDatabase(dp.target.Database()),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES FOR ROLE %s %s %s",
			dp.grantor, schemaSQL, dp.target.defaultPrivilegeClause(dp.target.Privileges(), true)),
	)
	return []Statement{
		TransactionOfStatements{
			Statements: []Statement{revokeAll, grant},
			On:         OnDatabase(dp.target.Database()),
		},
	}, nil
}

// StatementsToDrop implements the Object interface.
func (dp *DefaultPrivilege) StatementsToDrop() ([]Statement, error) {
	revokeAll, err := dp.revokeAllStatement()
	if err != nil {
		return nil, err
	}
	return []Statement{revokeAll}, nil
}
